package refreshtokens

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRedisRepo connects to AUTH_TEST_REDIS_ADDR and skips the test when it
// is unset or unreachable.
func newRedisRepo(t *testing.T) *RedisRepository {
	t.Helper()

	addr := os.Getenv("AUTH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AUTH_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	return NewRedisRepository(rdb)
}

func uniq(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

func TestRedisRepository_Lifecycle(t *testing.T) {
	r := newRedisRepo(t)
	ctx := context.Background()

	user := uniq("user")
	hash := uniq("hash")
	exp := time.Now().Add(time.Hour).Unix()

	require.NoError(t, r.Create(ctx, &models.RefreshToken{ID: uniq("id"), Token: hash, ExpiryDate: exp, UserID: user}))
	assert.ErrorIs(t, r.Create(ctx, &models.RefreshToken{ID: uniq("id"), Token: hash, ExpiryDate: exp, UserID: user}), common.ErrorAlreadyExists)

	got, err := r.FindByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, user, got.UserID)
	assert.Equal(t, exp, got.ExpiryDate)

	consumed, err := r.Consume(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, hash, consumed.Token)

	_, err = r.Consume(ctx, hash)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorIs(t, r.Delete(ctx, hash), common.ErrorNotFound)
}

func TestRedisRepository_DeleteForUser(t *testing.T) {
	r := newRedisRepo(t)
	ctx := context.Background()

	user := uniq("user")
	now := time.Now().Unix()
	current, stale, other := uniq("cur"), uniq("stale"), uniq("other")

	require.NoError(t, r.Create(ctx, &models.RefreshToken{ID: "1", Token: current, ExpiryDate: now + 3600, UserID: user}))
	require.NoError(t, r.Create(ctx, &models.RefreshToken{ID: "2", Token: stale, ExpiryDate: now - 10, UserID: user}))
	require.NoError(t, r.Create(ctx, &models.RefreshToken{ID: "3", Token: other, ExpiryDate: now + 3600, UserID: user}))

	n, err := r.DeleteForUser(ctx, user, current, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = r.FindByHash(ctx, other)
	assert.NoError(t, err)
	require.NoError(t, r.Delete(ctx, other))
}

func TestRedisRepository_ConcurrentConsume(t *testing.T) {
	r := newRedisRepo(t)
	ctx := context.Background()

	hash := uniq("hash")
	require.NoError(t, r.Create(ctx, &models.RefreshToken{ID: "1", Token: hash, ExpiryDate: time.Now().Add(time.Hour).Unix(), UserID: uniq("user")}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Consume(ctx, hash); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
