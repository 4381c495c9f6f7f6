package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

func TestAccountRepository(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("create stores lowered email", func(mt *mtest.T) {
		repo := &AccountRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := repo.Create(ctx, &models.Account{Email: "Joe@UCLA.edu"})
		require.NoError(mt, err)
		assert.False(mt, id.IsZero())

		doc := sentCommand(mt).Lookup("documents", "0")
		assert.Equal(mt, "Joe@UCLA.edu", doc.Document().Lookup("email").StringValue())
		assert.Equal(mt, "joe@ucla.edu", doc.Document().Lookup("email_lower").StringValue())
	})

	mt.Run("create maps duplicate key", func(mt *mtest.T) {
		repo := &AccountRepository{col: mt.Coll}
		mt.AddMockResponses(duplicateKeyResponse())

		_, err := repo.Create(ctx, &models.Account{Email: "joe@ucla.edu"})
		assert.ErrorIs(mt, err, store.ErrDuplicate)
	})

	mt.Run("find by email matches case-insensitively", func(mt *mtest.T) {
		repo := &AccountRepository{col: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(cursorResponse(mt, bson.D{
			{Key: "_id", Value: id},
			{Key: "email", Value: "joe@ucla.edu"},
			{Key: "certified", Value: true},
		}))

		account, err := repo.FindByEmail(ctx, "JOE@ucla.edu")
		require.NoError(mt, err)
		assert.Equal(mt, id, account.ID)
		assert.True(mt, account.Certified)

		pattern, options := sentCommand(mt).Lookup("filter", "email").Regex()
		assert.Equal(mt, `^JOE@ucla\.edu$`, pattern)
		assert.Equal(mt, "i", options)
	})

	mt.Run("find by email not found", func(mt *mtest.T) {
		repo := &AccountRepository{col: mt.Coll}
		mt.AddMockResponses(cursorResponse(mt))

		_, err := repo.FindByEmail(ctx, "nobody@ucla.edu")
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	tests := []struct {
		name    string
		matched int32
		wantErr error
	}{
		{"certify existing account", 1, nil},
		{"certify missing account", 0, store.ErrNotFound},
	}
	for _, tc := range tests {
		mt.Run(tc.name, func(mt *mtest.T) {
			repo := &AccountRepository{col: mt.Coll}
			mt.AddMockResponses(updateResponse(tc.matched, tc.matched))

			err := repo.SetCertified(ctx, primitive.NewObjectID())
			if tc.wantErr != nil {
				assert.ErrorIs(mt, err, tc.wantErr)
				return
			}
			require.NoError(mt, err)
			assert.True(mt, sentCommand(mt).Lookup("updates", "0", "u", "$set", "certified").Boolean())
		})
	}
}

func TestProfileRepository(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()
	bio := "north campus"

	mt.Run("find by email uses regex", func(mt *mtest.T) {
		repo := &ProfileRepository{col: mt.Coll}
		mt.AddMockResponses(cursorResponse(mt, bson.D{{Key: "email", Value: "jane@ucla.edu"}, {Key: "description", Value: bio}}))

		profile, err := repo.FindByEmail(ctx, "Jane@ucla.edu")
		require.NoError(mt, err)
		assert.Equal(mt, bio, profile.Bio)

		pattern, _ := sentCommand(mt).Lookup("filter", "email").Regex()
		assert.Equal(mt, `^Jane@ucla\.edu$`, pattern)
	})

	tests := []struct {
		name     string
		modified int32
		want     bool
	}{
		{"update changes profile", 1, true},
		{"update with same values", 0, false},
	}
	for _, tc := range tests {
		mt.Run(tc.name, func(mt *mtest.T) {
			repo := &ProfileRepository{col: mt.Coll}
			mt.AddMockResponses(updateResponse(1, tc.modified))

			changed, err := repo.Update(ctx, "u1", models.ProfileUpdate{Bio: &bio})
			require.NoError(mt, err)
			assert.Equal(mt, tc.want, changed)

			cmd := sentCommand(mt)
			assert.Equal(mt, "u1", cmd.Lookup("updates", "0", "q", "user_id").StringValue())
			assert.Equal(mt, bio, cmd.Lookup("updates", "0", "u", "$set", "description").StringValue())
		})
	}

	mt.Run("empty update sends nothing", func(mt *mtest.T) {
		repo := &ProfileRepository{col: mt.Coll}

		changed, err := repo.Update(ctx, "u1", models.ProfileUpdate{})
		require.NoError(mt, err)
		assert.False(mt, changed)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})
}

func TestSessionRepository(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("create maps duplicate key", func(mt *mtest.T) {
		repo := &SessionRepository{col: mt.Coll}
		mt.AddMockResponses(duplicateKeyResponse())

		err := repo.Create(ctx, &models.Session{UserID: "u1", Token: "t"})
		assert.ErrorIs(mt, err, store.ErrDuplicate)
	})

	mt.Run("find by token", func(mt *mtest.T) {
		repo := &SessionRepository{col: mt.Coll}
		mt.AddMockResponses(cursorResponse(mt, bson.D{{Key: "user_id", Value: "u1"}, {Key: "token", Value: "tok"}}))

		session, err := repo.FindByToken(ctx, "tok")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", session.UserID)
		assert.Equal(mt, "tok", sentCommand(mt).Lookup("filter", "token").StringValue())
	})

	tests := []struct {
		name    string
		matched int32
		wantErr error
	}{
		{"touch refreshes issue time", 1, nil},
		{"touch without a session", 0, store.ErrNotFound},
	}
	for _, tc := range tests {
		mt.Run(tc.name, func(mt *mtest.T) {
			repo := &SessionRepository{col: mt.Coll}
			mt.AddMockResponses(updateResponse(tc.matched, tc.matched))

			err := repo.Touch(ctx, "u1", time.Now())
			if tc.wantErr != nil {
				assert.ErrorIs(mt, err, tc.wantErr)
				return
			}
			assert.NoError(mt, err)
		})
	}
}

func TestNotificationRepository(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("find by user sorts newest first", func(mt *mtest.T) {
		repo := &NotificationRepository{col: mt.Coll}
		mt.AddMockResponses(cursorResponse(mt,
			bson.D{{Key: "user_id", Value: "u1"}, {Key: "title", Value: "new"}},
			bson.D{{Key: "user_id", Value: "u1"}, {Key: "title", Value: "old"}},
		))

		got, err := repo.FindByUser(ctx, "u1")
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "new", got[0].Title)
		assert.Equal(mt, int32(-1), sentCommand(mt).Lookup("sort", "time").Int32())
	})

	mt.Run("mark all read touches only unread", func(mt *mtest.T) {
		repo := &NotificationRepository{col: mt.Coll}
		mt.AddMockResponses(updateResponse(2, 2))

		require.NoError(mt, repo.MarkAllRead(ctx, "u1"))
		cmd := sentCommand(mt)
		assert.False(mt, cmd.Lookup("updates", "0", "q", "read").Boolean())
		assert.True(mt, cmd.Lookup("updates", "0", "multi").Boolean())
	})
}

func TestPendingCountRepository(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("increment upserts", func(mt *mtest.T) {
		repo := &PendingCountRepository{col: mt.Coll}
		mt.AddMockResponses(upsertResponse(primitive.NewObjectID()))

		require.NoError(mt, repo.Increment(ctx, "jane@ucla.edu", "joe@ucla.edu"))
		cmd := sentCommand(mt)
		assert.True(mt, cmd.Lookup("updates", "0", "upsert").Boolean())
		assert.Equal(mt, int32(1), cmd.Lookup("updates", "0", "u", "$inc", "count").Int32())
	})

	mt.Run("delete with no ids sends nothing", func(mt *mtest.T) {
		repo := &PendingCountRepository{col: mt.Coll}

		require.NoError(mt, repo.Delete(ctx, nil))
		assert.Empty(mt, mt.GetAllStartedEvents())
	})

	mt.Run("all", func(mt *mtest.T) {
		repo := &PendingCountRepository{col: mt.Coll}
		mt.AddMockResponses(cursorResponse(mt, bson.D{{Key: "email", Value: "jane@ucla.edu"}, {Key: "count", Value: int32(3)}}))

		got, err := repo.All(ctx)
		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, 3, got[0].Count)
	})
}
