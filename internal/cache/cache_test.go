package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financegpt/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redisv9.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestHistoryCache(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewHistoryCache(client, time.Minute, 5*time.Second)

	_, hit, err := c.GetHistory(ctx, 7)
	require.NoError(t, err)
	assert.False(t, hit)

	chats := []model.Chat{
		{ID: 1, UserID: 7, UserMessage: "q", AssistantReply: "a", Documents: []model.DocumentInfo{{Name: "x.pdf"}}},
	}
	require.NoError(t, c.SetHistory(ctx, 7, chats))

	got, hit, err := c.GetHistory(ctx, 7)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, "q", got[0].UserMessage)
	assert.Equal(t, "x.pdf", got[0].Documents[0].Name)

	require.NoError(t, c.MarkDirty(ctx, 7))
	dirty, err := c.IsDirty(ctx, 7)
	require.NoError(t, err)
	assert.True(t, dirty)

	require.NoError(t, c.ClearDirty(ctx, 7))
	dirty, err = c.IsDirty(ctx, 7)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, c.MarkDirty(ctx, 7))
	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, 7)
	require.NoError(t, err)
	assert.False(t, dirty, "dirty marker expires on its own")

	require.NoError(t, c.DeleteHistory(ctx, 7))
	_, hit, err = c.GetHistory(ctx, 7)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetHistory(ctx, 7, chats))
	mr.FastForward(2 * time.Minute)
	_, hit, err = c.GetHistory(ctx, 7)
	require.NoError(t, err)
	assert.False(t, hit, "history expires after its ttl")
}

func TestOAuthStateStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewOAuthStateStore(client, time.Minute)

	require.NoError(t, s.Save(ctx, "abc"))

	ok, err := s.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "state is single use")

	require.NoError(t, s.Save(ctx, "late"))
	mr.FastForward(2 * time.Minute)
	ok, err = s.Consume(ctx, "late")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenDenylist(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	d := NewTokenDenylist(client)

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// already-expired tokens are not stored
	require.NoError(t, d.Revoke(ctx, "jti-2", 0))
	assert.False(t, mr.Exists("auth:revoked:jti-2"))

	mr.FastForward(2 * time.Minute)
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
