package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Notification struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID string             `bson:"user_id" json:"user_id"`
	Title  string             `bson:"title" json:"title"`
	Desc   string             `bson:"desc" json:"desc"`
	Time   time.Time          `bson:"time" json:"time"`
	Read   bool               `bson:"read" json:"read"`
}

// PendingCount accumulates unread messages from one sender to one recipient
// until the hourly digest drains it. Stored in Accounts.cronMessages.
type PendingCount struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email string             `bson:"email" json:"email"`
	From  string             `bson:"from" json:"from"`
	Count int                `bson:"count" json:"count"`
}
