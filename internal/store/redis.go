package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBackend maps keys to imigra:<namespace>:<key>. A set at
// imigra:<namespace>:keys indexes the namespace so Clear can find every key,
// and each write is announced on imigra:<namespace>:changes.
type RedisBackend struct {
	client    *redis.Client
	namespace string
	logger    *zap.Logger
}

// NewRedisBackend does not take ownership of client; Close leaves it open.
func NewRedisBackend(client *redis.Client, namespace string, logger *zap.Logger) (*RedisBackend, error) {
	if err := validateName(namespace); err != nil {
		return nil, err
	}
	return &RedisBackend{client: client, namespace: namespace, logger: logger}, nil
}

func (b *RedisBackend) key(k string) string {
	return "imigra:" + b.namespace + ":" + k
}

func (b *RedisBackend) indexKey() string   { return b.key("keys") }
func (b *RedisBackend) channelName() string { return b.key("changes") }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateName(key); err != nil {
		return nil, err
	}
	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := validateName(key); err != nil {
		return err
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.key(key), value, 0)
		pipe.SAdd(ctx, b.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	b.publish(ctx, Change{Key: key})
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := validateName(key); err != nil {
		return err
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key(key))
		pipe.SRem(ctx, b.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	b.publish(ctx, Change{Key: key, Deleted: true})
	return nil
}

func (b *RedisBackend) Clear(ctx context.Context) error {
	members, err := b.client.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("redis list namespace %s: %w", b.namespace, err)
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, b.key(m))
	}
	keys = append(keys, b.indexKey())

	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear namespace %s: %w", b.namespace, err)
	}
	b.publish(ctx, Change{Cleared: true})
	return nil
}

func (b *RedisBackend) Close() error { return nil }

// publish is best effort: the write already succeeded.
func (b *RedisBackend) publish(ctx context.Context, c Change) {
	payload, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := b.client.Publish(ctx, b.channelName(), payload).Err(); err != nil {
		b.logger.Warn("failed to publish change",
			zap.String("namespace", b.namespace),
			zap.Error(err))
	}
}

// Watch subscribes to the namespace channel. The subscription is confirmed
// before Watch returns, so writes made afterwards are always delivered.
func (b *RedisBackend) Watch(ctx context.Context) (<-chan Change, error) {
	sub := b.client.Subscribe(ctx, b.channelName())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", b.channelName(), err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					b.logger.Warn("ignoring malformed change notification",
						zap.String("channel", msg.Channel),
						zap.Error(err))
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
