package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is a single entry of a conversation thread.
type Message struct {
	Sender   string    `bson:"sender" json:"sender"`
	Contents string    `bson:"contents" json:"contents"`
	Time     time.Time `bson:"time" json:"time"`
}

// Conversation is the append-only thread between exactly two emails.
// Messages always holds at least one entry.
type Conversation struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	People   []string           `bson:"people" json:"people"`
	PairKey  string             `bson:"pair_key" json:"-"`
	Messages []Message          `bson:"messages" json:"messages"`
}

// PairKey returns the order-independent key of the pair {a, b}.
func PairKey(a, b string) string {
	pair := []string{strings.ToLower(a), strings.ToLower(b)}
	sort.Strings(pair)
	return pair[0] + "|" + pair[1]
}
