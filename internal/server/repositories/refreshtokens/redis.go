package refreshtokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisTokenPrefix = "authsession:refresh:token:"
	redisUserPrefix  = "authsession:refresh:user:"

	// Keys outlive ExpiryDate by this much so an expired row is still seen
	// (and rejected) rather than silently missing.
	redisExpiryGrace = time.Minute
)

// consumeScript deletes the token key and its user-index entry atomically
// and returns the stored row.
var consumeScript = redis.NewScript(`
	local v = redis.call('GETDEL', KEYS[1])
	if not v then
		return false
	end
	local row = cjson.decode(v)
	redis.call('SREM', ARGV[1] .. row['user_id'], ARGV[2])
	return v
`)

type redisRow struct {
	ID         string    `json:"id"`
	Token      string    `json:"token"`
	ExpiryDate int64     `json:"expiry_date"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// RedisRepository stores each row as a JSON string under its hash with a
// key TTL, plus a per-user set of hashes for DeleteForUser.
type RedisRepository struct {
	rdb redis.UniversalClient
}

func NewRedisRepository(rdb redis.UniversalClient) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

func tokenKey(hash string) string { return redisTokenPrefix + hash }
func userKey(userID string) string { return redisUserPrefix + userID }

func (r *RedisRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(redisRow{
		ID:         token.ID,
		Token:      token.Token,
		ExpiryDate: token.ExpiryDate,
		UserID:     token.UserID,
		CreatedAt:  token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode refresh token: %w", err)
	}

	ttl := time.Until(time.Unix(token.ExpiryDate, 0)) + redisExpiryGrace
	if ttl <= 0 {
		ttl = redisExpiryGrace
	}

	ok, err := r.rdb.SetNX(ctx, tokenKey(token.Token), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if !ok {
		return common.ErrorAlreadyExists
	}
	if err := r.rdb.SAdd(ctx, userKey(token.UserID), token.Token).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	v, err := r.rdb.Get(ctx, tokenKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decodeRow(v)
}

func (r *RedisRepository) Consume(ctx context.Context, hash string) (*models.RefreshToken, error) {
	v, err := consumeScript.Run(ctx, r.rdb, []string{tokenKey(hash)}, redisUserPrefix, hash).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decodeRow(v)
}

func (r *RedisRepository) Delete(ctx context.Context, hash string) error {
	_, err := r.Consume(ctx, hash)
	return err
}

func (r *RedisRepository) DeleteForUser(ctx context.Context, userID, hash string, now int64) (int64, error) {
	members, err := r.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}

	var n int64
	for _, h := range members {
		row, err := r.FindByHash(ctx, h)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			// key already gone through its TTL
			if err := r.rdb.SRem(ctx, userKey(userID), h).Err(); err != nil {
				return n, fmt.Errorf("redis error: %w", err)
			}
			continue
		case err != nil:
			return n, err
		}

		if h != hash && !row.Expired(now) {
			continue
		}
		if _, err := r.Consume(ctx, h); err == nil {
			n++
		} else if !errors.Is(err, common.ErrorNotFound) {
			return n, err
		}
	}
	return n, nil
}

func (r *RedisRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	var n int64
	iter := r.rdb.Scan(ctx, 0, redisTokenPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		hash := key[len(redisTokenPrefix):]

		row, err := r.FindByHash(ctx, hash)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if !row.Expired(now) {
			continue
		}
		if _, err := r.Consume(ctx, hash); err == nil {
			n++
		} else if !errors.Is(err, common.ErrorNotFound) {
			return n, err
		}
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

func decodeRow(v string) (*models.RefreshToken, error) {
	var row redisRow
	if err := json.Unmarshal([]byte(v), &row); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	return &models.RefreshToken{
		ID:         row.ID,
		Token:      row.Token,
		ExpiryDate: row.ExpiryDate,
		UserID:     row.UserID,
		CreatedAt:  row.CreatedAt,
	}, nil
}
