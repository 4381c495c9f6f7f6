package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageKeepsOneConversationPerPair(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.certifiedUser(t, "Alice", "Able", "a@ucla.edu")
	env.certifiedUser(t, "Bobby", "Baker", "b@ucla.edu")

	require.True(t, env.messaging.SendMessage(ctx, "a@ucla.edu", "b@ucla.edu", "hi").OK())
	require.True(t, env.messaging.SendMessage(ctx, "b@ucla.edu", "a@ucla.edu", "yo").OK())
	env.notifications.Wait()

	for _, who := range []string{"a@ucla.edu", "b@ucla.edu"} {
		convs := env.messaging.GetMessages(ctx, who)
		require.Len(t, convs, 1, who)
		require.Len(t, convs[0].Messages, 2)
		assert.Equal(t, "hi", convs[0].Messages[0].Contents)
		assert.Equal(t, "a@ucla.edu", convs[0].Messages[0].Sender)
		assert.Equal(t, "yo", convs[0].Messages[1].Contents)
	}
}

func TestSendMessageNotifications(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.certifiedUser(t, "Alice", "Able", "a@ucla.edu")
	bob := env.certifiedUser(t, "Bobby", "Baker", "b@ucla.edu")

	require.True(t, env.messaging.SendMessage(ctx, "a@ucla.edu", "b@ucla.edu", "first").OK())
	require.True(t, env.messaging.SendMessage(ctx, "a@ucla.edu", "b@ucla.edu", "second").OK())
	require.True(t, env.messaging.SendMessage(ctx, "a@ucla.edu", "b@ucla.edu", "third").OK())
	env.notifications.Wait()

	notes := env.notifications.GetAll(ctx, bob)
	require.Len(t, notes, 1)
	assert.Equal(t, "New Conversation", notes[0].Title)
	assert.Equal(t, "You have a new conversation from a@ucla.edu.", notes[0].Desc)

	pending, err := env.store.Pending.All(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b@ucla.edu", pending[0].Email)
	assert.Equal(t, "a@ucla.edu", pending[0].From)
	assert.Equal(t, 2, pending[0].Count)
}

func TestSendMessageCanonicalisesRecipient(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.certifiedUser(t, "Alice", "Able", "a@ucla.edu")
	env.certifiedUser(t, "Bobby", "Baker", "b@ucla.edu")

	require.True(t, env.messaging.SendMessage(ctx, "a@ucla.edu", "B@UCLA.EDU", "hi").OK())
	require.True(t, env.messaging.SendMessage(ctx, "a@ucla.edu", "b@ucla.edu", "again").OK())
	env.notifications.Wait()

	convs := env.messaging.GetMessages(ctx, "b@ucla.edu")
	require.Len(t, convs, 1)
	assert.Contains(t, convs[0].People, "b@ucla.edu")
	assert.Len(t, convs[0].Messages, 2)
}

func TestSendMessageRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.certifiedUser(t, "Alice", "Able", "a@ucla.edu")
	env.certifiedUser(t, "Bobby", "Baker", "b@ucla.edu")

	tests := []struct {
		name, from, to, contents string
	}{
		{"self", "a@ucla.edu", "A@ucla.edu", "hi"},
		{"empty contents", "a@ucla.edu", "b@ucla.edu", ""},
		{"too long", "a@ucla.edu", "b@ucla.edu", strings.Repeat("x", MaxMessageLength+1)},
		{"no sender", "", "b@ucla.edu", "hi"},
		{"no recipient", "a@ucla.edu", " ", "hi"},
		{"unknown recipient", "a@ucla.edu", "ghost@ucla.edu", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, env.messaging.SendMessage(ctx, tt.from, tt.to, tt.contents).OK())
		})
	}
	assert.Empty(t, env.messaging.GetMessages(ctx, "a@ucla.edu"))

	assert.True(t, env.messaging.SendMessage(ctx, "a@ucla.edu", "b@ucla.edu", strings.Repeat("x", MaxMessageLength)).OK())
	env.notifications.Wait()
}
