package clients

import (
	"context"
	"testing"
	"time"

	"gremio-backoffice/pkg/cache/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisClient(RedisConfig{Addr: mr.Addr(), Timeout: time.Second, Prefix: "test_"})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, mr
}

func TestRedisClient_Prefix(t *testing.T) {
	c, mr := newMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "reports:1", "payload", time.Minute))
	assert.True(t, mr.Exists("test_reports:1"))

	got, err := c.Get(ctx, "reports:1")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "reports:1")
	assert.True(t, redis.IsNil(err))
}

func TestRedisClient_Sets(t *testing.T) {
	c, _ := newMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "report_ids", "a", "b"))
	require.NoError(t, c.SRem(ctx, "report_ids", "a"))

	members, err := c.SMembers(ctx, "report_ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(RedisConfig{Addr: addr, Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
