package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
)

type mapProfileCache struct {
	mu    sync.Mutex
	items map[string]models.Profile
	hits  int
}

func newMapProfileCache() *mapProfileCache {
	return &mapProfileCache{items: make(map[string]models.Profile)}
}

func (c *mapProfileCache) Get(_ context.Context, email string) (*models.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &p, nil
}

func (c *mapProfileCache) Set(_ context.Context, p *models.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[strings.ToLower(p.Email)] = *p
	return nil
}

func (c *mapProfileCache) Delete(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, strings.ToLower(email))
	return nil
}

func TestFetchProfileUsesCache(t *testing.T) {
	env := newTestEnv(t)
	cache := newMapProfileCache()
	env.accounts.WithProfileCache(cache)
	ctx := context.Background()
	id := env.certifiedUser(t, "Jane", "Doe", "jane@ucla.edu")

	first := env.accounts.FetchProfile(ctx, "jane@ucla.edu")
	require.NotNil(t, first)
	assert.Equal(t, 0, cache.hits)

	second := env.accounts.FetchProfile(ctx, "JANE@ucla.edu")
	require.NotNil(t, second)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, DefaultBio, second.Bio)

	bio := "Selling swipes at BPlate"
	require.True(t, env.accounts.PostProfile(ctx, id, models.ProfileUpdate{Bio: &bio}).OK())

	updated := env.accounts.FetchProfile(ctx, "jane@ucla.edu")
	require.NotNil(t, updated)
	assert.Equal(t, bio, updated.Bio, "update invalidates the cached copy")
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "cache:profile:jane@ucla.edu", profileCacheKey(" Jane@UCLA.edu "))
}
