package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepo keeps access tokens revoked by logout until their natural expiry.
// Access tokens are stateless JWTs, so logout needs a denylist for immediate
// invalidation.
type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

func (r *RedisRepo) BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	const op = "storage.redis.BlacklistAccessToken"

	if ttl <= 0 {
		return nil
	}

	key := fmt.Sprintf("token:revoked:%s", token)

	if err := r.client.Set(ctx, key, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	const op = "storage.redis.IsAccessTokenBlacklisted"

	key := fmt.Sprintf("token:revoked:%s", token)

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (r *RedisRepo) Close() {
	r.client.Close()
}
