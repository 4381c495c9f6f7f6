package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(client *mongo.Client) *ListingRepository {
	return &ListingRepository{col: collection(client, store.ListingsDB, store.ListingsColl)}
}

func (r *ListingRepository) Create(ctx context.Context, listing *models.Listing) (primitive.ObjectID, error) {
	if listing.ID.IsZero() {
		listing.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, listing); err != nil {
		return primitive.NilObjectID, err
	}
	return listing.ID, nil
}

func (r *ListingRepository) Find(ctx context.Context, q store.ListingQuery) ([]models.Listing, error) {
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	filter := q.Filter
	if filter == nil {
		filter = bson.D{}
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Listing{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ListingRepository) Resolve(ctx context.Context, id primitive.ObjectID, ownerEmail string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "user.email": equalFoldRegex(ownerEmail)},
		bson.M{"$set": bson.M{"resolved": true}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *ListingRepository) FindOwned(ctx context.Context, id primitive.ObjectID, ownerEmail string) (*models.Listing, error) {
	return findOne[models.Listing](ctx, r.col, bson.M{"_id": id, "user.email": equalFoldRegex(ownerEmail)})
}

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(client *mongo.Client) *ConversationRepository {
	return &ConversationRepository{col: collection(client, store.MessagesDB, store.MessagesColl)}
}

// AppendMessage pushes onto the pair's conversation, creating it on the first
// message. Documents written before pair_key existed are matched by people and
// get their pair_key set on the way. Two concurrent first messages race on the
// unique index; the loser retries once and lands on the winner's document.
func (r *ConversationRepository) AppendMessage(ctx context.Context, a, b string, msg models.Message) (bool, error) {
	key := models.PairKey(a, b)
	push := bson.M{"$push": bson.M{"messages": msg}}

	res, err := r.col.UpdateOne(ctx, bson.M{"pair_key": key}, push)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return false, nil
	}

	adopted, err := r.adoptLegacy(ctx, a, b, key, msg)
	if err != nil || adopted {
		return false, err
	}

	filter := bson.M{"pair_key": key}
	update := bson.M{
		"$push":        bson.M{"messages": msg},
		"$setOnInsert": bson.M{"people": bson.A{a, b}},
	}
	opts := options.Update().SetUpsert(true)

	res, err = r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		res, err = r.col.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

// adoptLegacy appends to a conversation that has people but no pair_key and
// stamps the key onto it. A duplicate key means another writer already owns
// the key, so the caller falls through to the keyed path.
func (r *ConversationRepository) adoptLegacy(ctx context.Context, a, b, key string, msg models.Message) (bool, error) {
	filter := bson.M{
		"pair_key": bson.M{"$exists": false},
		"people":   bson.M{"$all": bson.A{equalFoldRegex(a), equalFoldRegex(b)}},
	}
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"pair_key": key},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *ConversationRepository) FindByParticipant(ctx context.Context, email string) ([]models.Conversation, error) {
	cursor, err := r.col.Find(ctx, bson.M{"people": equalFoldRegex(email)})
	if err != nil {
		return nil, err
	}
	out := []models.Conversation{}
	if err := cursor.All(ctx, &out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return out, nil
		}
		return nil, err
	}
	return out, nil
}
