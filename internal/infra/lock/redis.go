package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockTTL       = 5 * time.Second
	retryInterval = 25 * time.Millisecond
)

// RedisLocker сериализует изменения по ключу через SetNX. Закрывает
// гонку "прочитал лимит — записал счётчик" между параллельными
// запросами одного пользователя.
type RedisLocker struct {
	client *redis.Client
}

// NewRedis создаёт блокировщик.
func NewRedis(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// WithLock выполняет fn под блокировкой ключа.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	lockKey := "lock:" + key
	for {
		ok, err := l.client.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	defer l.client.Del(context.Background(), lockKey)
	return fn()
}

// NoopLocker не блокирует ничего: поведение исходной системы, где
// проверка лимита и запись счётчика могут перемежаться.
type NoopLocker struct{}

// WithLock просто выполняет fn.
func (NoopLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	return fn()
}
