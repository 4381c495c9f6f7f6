package database

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
	"github.com/bruinswipes/bruinswipes-backend/pkg/utils"
)

// equalFoldRegex matches s exactly, ignoring case. Older documents carry no
// email_lower so lookups go through the email field.
func equalFoldRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter interface{}) (*T, error) {
	var out T
	err := col.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type AccountRepository struct {
	col *mongo.Collection
}

func NewAccountRepository(client *mongo.Client) *AccountRepository {
	return &AccountRepository{col: collection(client, store.AccountsDB, store.AccountsColl)}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (primitive.ObjectID, error) {
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	account.EmailLower = utils.NormalizeEmail(account.Email)
	if _, err := r.col.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, store.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return account.ID, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return findOne[models.Account](ctx, r.col, bson.M{"_id": id})
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return findOne[models.Account](ctx, r.col, bson.M{"email": equalFoldRegex(email)})
}

func (r *AccountRepository) SetCertified(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"certified": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

type ProfileRepository struct {
	col *mongo.Collection
}

func NewProfileRepository(client *mongo.Client) *ProfileRepository {
	return &ProfileRepository{col: collection(client, store.AccountsDB, store.ProfilesColl)}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID.IsZero() {
		profile.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, profile)
	return err
}

func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return findOne[models.Profile](ctx, r.col, bson.M{"email": equalFoldRegex(email)})
}

func (r *ProfileRepository) Update(ctx context.Context, userID string, update models.ProfileUpdate) (bool, error) {
	set := bson.M{}
	if update.Bio != nil {
		set["description"] = *update.Bio
	}
	if update.Img != nil {
		set["img"] = *update.Img
	}
	if len(set) == 0 {
		return false, nil
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

type SessionRepository struct {
	col *mongo.Collection
}

func NewSessionRepository(client *mongo.Client) *SessionRepository {
	return &SessionRepository{col: collection(client, store.AccountsDB, store.SessionsColl)}
}

func (r *SessionRepository) FindByUserID(ctx context.Context, userID string) (*models.Session, error) {
	return findOne[models.Session](ctx, r.col, bson.M{"user_id": userID})
}

func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	return findOne[models.Session](ctx, r.col, bson.M{"token": token})
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *SessionRepository) Touch(ctx context.Context, userID string, at time.Time) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": bson.M{"issue_time": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"token": token})
	return err
}

type NotificationRepository struct {
	col *mongo.Collection
}

func NewNotificationRepository(client *mongo.Client) *NotificationRepository {
	return &NotificationRepository{col: collection(client, store.AccountsDB, store.NotificationColl)}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, n)
	return err
}

func (r *NotificationRepository) FindByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	return err
}

type PendingCountRepository struct {
	col *mongo.Collection
}

func NewPendingCountRepository(client *mongo.Client) *PendingCountRepository {
	return &PendingCountRepository{col: collection(client, store.AccountsDB, store.PendingColl)}
}

func (r *PendingCountRepository) Increment(ctx context.Context, recipient, sender string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"email": recipient, "from": sender},
		bson.M{"$inc": bson.M{"count": 1}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *PendingCountRepository) All(ctx context.Context) ([]models.PendingCount, error) {
	cursor, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	out := []models.PendingCount{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PendingCountRepository) Delete(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}
