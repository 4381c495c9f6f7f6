package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ListingOwner is copied from the owner's account when the listing is created.
type ListingOwner struct {
	Email string `bson:"email" json:"email"`
	First string `bson:"first" json:"first"`
	Last  string `bson:"last" json:"last"`
}

// Listing is an offer to buy or sell a single swipe. Time and TimePosted are unix milliseconds.
type Listing struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User       ListingOwner       `bson:"user" json:"user"`
	Location   string             `bson:"location" json:"location"`
	Price      float64            `bson:"price" json:"price"`
	Time       int64              `bson:"time" json:"time"`
	TimePosted int64              `bson:"time_posted" json:"time_posted"`
	Selling    bool               `bson:"selling" json:"selling"`
	Resolved   bool               `bson:"resolved" json:"resolved"`
}
