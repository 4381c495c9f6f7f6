package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

func TestAccountsAreCaseInsensitiveAndUnique(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Accounts.Create(ctx, &models.Account{Email: "Joe@UCLA.edu", First: "Joe"})
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	_, err = s.Accounts.Create(ctx, &models.Account{Email: "joe@ucla.edu"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	found, err := s.Accounts.FindByEmail(ctx, "JOE@ucla.EDU")
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "joe@ucla.edu", found.EmailLower)

	_, err = s.Accounts.FindByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Accounts.SetCertified(ctx, id))
	found, err = s.Accounts.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, found.Certified)
}

func TestSessionsOnePerUser(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Sessions.Create(ctx, &models.Session{UserID: "u1", Token: "t1", IssuedAt: time.Now()}))
	assert.ErrorIs(t, s.Sessions.Create(ctx, &models.Session{UserID: "u1", Token: "t2"}), store.ErrDuplicate)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Sessions.Touch(ctx, "u1", past))
	sess, err := s.Sessions.FindByToken(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, sess.IssuedAt.Equal(past))

	require.NoError(t, s.Sessions.DeleteByToken(ctx, "t1"))
	_, err = s.Sessions.FindByUserID(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProfileUpdateReportsChange(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Profiles.Create(ctx, &models.Profile{UserID: "u1", Email: "a@ucla.edu", Bio: "old"}))

	bio := "new"
	changed, err := s.Profiles.Update(ctx, "u1", models.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Profiles.Update(ctx, "u1", models.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.Profiles.Update(ctx, "missing", models.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestListingFindFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, p := range []float64{10, 1, 5} {
		_, err := s.Listings.Create(ctx, &models.Listing{Price: p, Location: "De Neve"})
		require.NoError(t, err)
	}

	got, err := s.Listings.Find(ctx, store.ListingQuery{
		Filter: bson.D{{Key: "price", Value: bson.D{{Key: "$gte", Value: 2}}}},
		Sort:   bson.D{{Key: "price", Value: -1}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].Price)
	assert.Equal(t, 5.0, got[1].Price)
}

func TestListingResolveChecksOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.Listings.Create(ctx, &models.Listing{User: models.ListingOwner{Email: "owner@ucla.edu"}})
	require.NoError(t, err)

	ok, err := s.Listings.Resolve(ctx, id, "other@ucla.edu")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Listings.Resolve(ctx, id, "OWNER@ucla.edu")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Listings.Resolve(ctx, id, "owner@ucla.edu")
	require.NoError(t, err)
	assert.False(t, ok, "already resolved")

	l, err := s.Listings.FindOwned(ctx, id, "owner@ucla.edu")
	require.NoError(t, err)
	assert.True(t, l.Resolved)
}

func TestConversationPairIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.Conversations.AppendMessage(ctx, "a@ucla.edu", "b@ucla.edu", models.Message{Sender: "a@ucla.edu", Contents: "hi"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Conversations.AppendMessage(ctx, "b@ucla.edu", "a@ucla.edu", models.Message{Sender: "b@ucla.edu", Contents: "hey"})
	require.NoError(t, err)
	assert.False(t, created)

	convs, err := s.Conversations.FindByParticipant(ctx, "A@ucla.edu")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Len(t, convs[0].Messages, 2)
	assert.Equal(t, "hi", convs[0].Messages[0].Contents)
}

func TestConversationAdoptsDocumentWithoutPairKey(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := s.Conversations.(*ConversationRepository).db
	d.conversations = append(d.conversations, models.Conversation{
		ID:       primitive.NewObjectID(),
		People:   []string{"A@ucla.edu", "b@ucla.edu"},
		Messages: []models.Message{{Sender: "A@ucla.edu", Contents: "old"}},
	})

	created, err := s.Conversations.AppendMessage(ctx, "b@ucla.edu", "a@ucla.edu", models.Message{Sender: "b@ucla.edu", Contents: "new"})
	require.NoError(t, err)
	assert.False(t, created)

	convs, err := s.Conversations.FindByParticipant(ctx, "a@ucla.edu")
	require.NoError(t, err)
	require.Len(t, convs, 1, "no second conversation for the pair")
	assert.Len(t, convs[0].Messages, 2)
	assert.Equal(t, models.PairKey("a@ucla.edu", "b@ucla.edu"), convs[0].PairKey)
}

func TestNotificationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	require.NoError(t, s.Notifications.Create(ctx, &models.Notification{UserID: "u1", Title: "old", Time: now.Add(-time.Hour)}))
	require.NoError(t, s.Notifications.Create(ctx, &models.Notification{UserID: "u1", Title: "new", Time: now}))
	require.NoError(t, s.Notifications.Create(ctx, &models.Notification{UserID: "u2", Title: "other", Time: now}))

	got, err := s.Notifications.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Title)

	require.NoError(t, s.Notifications.MarkAllRead(ctx, "u1"))
	got, _ = s.Notifications.FindByUser(ctx, "u1")
	for _, n := range got {
		assert.True(t, n.Read)
	}
	other, _ := s.Notifications.FindByUser(ctx, "u2")
	assert.False(t, other[0].Read)
}

func TestPendingIncrementAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Pending.Increment(ctx, "b@ucla.edu", "a@ucla.edu"))
	require.NoError(t, s.Pending.Increment(ctx, "b@ucla.edu", "a@ucla.edu"))
	require.NoError(t, s.Pending.Increment(ctx, "b@ucla.edu", "c@ucla.edu"))

	all, err := s.Pending.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[0].Count)

	require.NoError(t, s.Pending.Delete(ctx, []primitive.ObjectID{all[0].ID}))
	all, _ = s.Pending.All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "c@ucla.edu", all[0].From)
}
