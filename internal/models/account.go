package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is stored in Accounts.accounts. Only Certified changes after signup.
type Account struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt  time.Time          `bson:"time" json:"created_at"`
	First      string             `bson:"first" json:"first"`
	Last       string             `bson:"last" json:"last"`
	Email      string             `bson:"email" json:"email"`
	EmailLower string             `bson:"email_lower" json:"-"`
	Hash       string             `bson:"hash" json:"-"`
	Salt       string             `bson:"salt" json:"-"`
	Certified  bool               `bson:"certified" json:"certified"`
}

// FullName joins first and last name the way profiles and emails display it.
func (a *Account) FullName() string {
	return a.First + " " + a.Last
}

// Session is stored in Accounts.sessions; at most one per user id.
type Session struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID   string             `bson:"user_id" json:"user_id"`
	Token    string             `bson:"token" json:"-"`
	IssuedAt time.Time          `bson:"issue_time" json:"issue_time"`
}

// Profile is the public part of an account, stored in Accounts.profiles.
type Profile struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"-"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Bio       string             `bson:"description" json:"bio"`
	Img       string             `bson:"img" json:"img"`
	CreatedAt time.Time          `bson:"time" json:"created_at"`
}

// ProfileUpdate carries the whitelisted mutable profile fields. Nil means "leave as is".
type ProfileUpdate struct {
	Bio *string
	Img *string
}

// Empty reports whether the update would not change anything.
func (u ProfileUpdate) Empty() bool {
	return u.Bio == nil && u.Img == nil
}
