package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"box-office/internal/config"
)

type Redis struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{Client: client}, nil
}

const refundLockTTL = 15 * time.Minute

// AcquireRefundLock takes a short-lived exclusive lock on a payable so two
// refund requests cannot race each other across processes.
func (r *Redis) AcquireRefundLock(kind, id string) (bool, error) {
	key := refundLockKey(kind, id)
	ok, err := r.Client.SetNX(context.Background(), key, "locked", refundLockTTL).Result()
	return ok, err
}

func (r *Redis) ReleaseRefundLock(kind, id string) error {
	_, err := r.Client.Del(context.Background(), refundLockKey(kind, id)).Result()
	return err
}

func refundLockKey(kind, id string) string {
	return fmt.Sprintf("refund_lock:%s:%s", kind, id)
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
