// Package store declares the document-store repositories the services depend on.
// internal/database implements them on MongoDB, internal/store/memory in process.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document")
)

// Database and collection names.
const (
	AccountsDB       = "Accounts"
	MessagesDB       = "Messages"
	ListingsDB       = "Listings"
	AccountsColl     = "accounts"
	ProfilesColl     = "profiles"
	SessionsColl     = "sessions"
	NotificationColl = "notifications"
	PendingColl      = "cronMessages"
	MessagesColl     = "messages"
	ListingsColl     = "listings"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	SetCertified(ctx context.Context, id primitive.ObjectID) error
}

type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	// Update applies the non-nil fields and reports whether a document changed.
	Update(ctx context.Context, userID string, update models.ProfileUpdate) (bool, error)
}

type SessionRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Session, error)
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Touch(ctx context.Context, userID string, at time.Time) error
	DeleteByToken(ctx context.Context, token string) error
}

// ListingQuery is a ready-to-run filter plus an optional sort (nil means natural order).
type ListingQuery struct {
	Filter bson.D
	Sort   bson.D
}

type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) (primitive.ObjectID, error)
	Find(ctx context.Context, q ListingQuery) ([]models.Listing, error)
	// Resolve flips resolved=true only when the listing belongs to ownerEmail.
	// changed is false when nothing matched or the listing was already resolved.
	Resolve(ctx context.Context, id primitive.ObjectID, ownerEmail string) (changed bool, err error)
	FindOwned(ctx context.Context, id primitive.ObjectID, ownerEmail string) (*models.Listing, error)
}

type ConversationRepository interface {
	// AppendMessage adds msg to the conversation of the pair {a, b}, creating it
	// when missing. created reports whether this call created the conversation.
	AppendMessage(ctx context.Context, a, b string, msg models.Message) (created bool, err error)
	FindByParticipant(ctx context.Context, email string) ([]models.Conversation, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
}

type PendingCountRepository interface {
	Increment(ctx context.Context, recipient, sender string) error
	All(ctx context.Context) ([]models.PendingCount, error)
	Delete(ctx context.Context, ids []primitive.ObjectID) error
}

// Store bundles every repository so it can be injected as one value.
type Store struct {
	Accounts      AccountRepository
	Profiles      ProfileRepository
	Sessions      SessionRepository
	Listings      ListingRepository
	Conversations ConversationRepository
	Notifications NotificationRepository
	Pending       PendingCountRepository
}
