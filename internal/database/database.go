package database

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

// Connect opens a MongoDB client and pings it before returning.
func Connect(mongoURI string, logger logrus.FieldLogger) (*mongo.Client, error) {
	// Use longer timeout for Atlas connections
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	logger.WithField("uri", maskURI(mongoURI)).Info("connecting to MongoDB")
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("connected to MongoDB")
	return client, nil
}

func Disconnect(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

// NewStore wires every Mongo repository onto client.
func NewStore(client *mongo.Client) *store.Store {
	return &store.Store{
		Accounts:      NewAccountRepository(client),
		Profiles:      NewProfileRepository(client),
		Sessions:      NewSessionRepository(client),
		Listings:      NewListingRepository(client),
		Conversations: NewConversationRepository(client),
		Notifications: NewNotificationRepository(client),
		Pending:       NewPendingCountRepository(client),
	}
}

// maskURI hides the password part of a connection string for logging.
func maskURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return strings.Replace(u.String(), "%2A%2A%2A", "***", 1)
}

func collection(client *mongo.Client, db, name string) *mongo.Collection {
	return client.Database(db).Collection(name)
}
