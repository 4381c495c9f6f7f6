package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

type collectionIndexes struct {
	db, coll string
	models   []mongo.IndexModel
}

// EnsureIndexes configures the indexes every collection relies on.
// Called on startup from main after Mongo has connected.
func EnsureIndexes(ctx context.Context, client *mongo.Client) error {
	stringField := func(name string) bson.M {
		return bson.M{name: bson.M{"$type": "string"}}
	}

	all := []collectionIndexes{
		{store.AccountsDB, store.AccountsColl, []mongo.IndexModel{
			{
				Keys: bson.D{{Key: "email_lower", Value: 1}},
				Options: options.Index().SetName("uniq_email_lower").SetUnique(true).
					SetPartialFilterExpression(stringField("email_lower")),
			},
		}},
		{store.AccountsDB, store.ProfilesColl, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("idx_email")},
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetName("idx_user_id")},
		}},
		{store.AccountsDB, store.SessionsColl, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetName("uniq_user_id").SetUnique(true)},
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetName("uniq_token").SetUnique(true)},
		}},
		{store.AccountsDB, store.NotificationColl, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetName("idx_user_id")},
		}},
		{store.AccountsDB, store.PendingColl, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "email", Value: 1}, {Key: "from", Value: 1}},
				Options: options.Index().SetName("uniq_email_from").SetUnique(true),
			},
		}},
		{store.MessagesDB, store.MessagesColl, []mongo.IndexModel{
			{
				Keys: bson.D{{Key: "pair_key", Value: 1}},
				Options: options.Index().SetName("uniq_pair_key").SetUnique(true).
					SetPartialFilterExpression(stringField("pair_key")),
			},
			{Keys: bson.D{{Key: "people", Value: 1}}, Options: options.Index().SetName("idx_people")},
		}},
		{store.ListingsDB, store.ListingsColl, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user.email", Value: 1}}, Options: options.Index().SetName("idx_owner_email")},
			{
				Keys:    bson.D{{Key: "resolved", Value: 1}, {Key: "time", Value: 1}},
				Options: options.Index().SetName("idx_resolved_time"),
			},
		}},
	}

	for _, ci := range all {
		col := collection(client, ci.db, ci.coll)
		if _, err := col.Indexes().CreateMany(ctx, ci.models); err != nil {
			return fmt.Errorf("create indexes on %s.%s: %w", ci.db, ci.coll, err)
		}
	}
	return nil
}
