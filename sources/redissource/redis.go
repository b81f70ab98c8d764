// sources/redissource/redis.go

// Package redissource resolves batched permission flags from Redis: one
// MGET round trip per batch instead of one GET per checked item.
package redissource

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/prosapient/datacop/logging"
)

// Source reads boolean permission flags stored under
// "{prefix}:{batchKey}:{input}". Missing keys resolve to false; "1" and
// "true" resolve to true.
type Source struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Source {
	if prefix == "" {
		prefix = "perm"
	}
	return &Source{client: client, prefix: prefix}
}

func (s *Source) key(batchKey, input interface{}) string {
	return fmt.Sprintf("%s:%v:%v", s.prefix, batchKey, input)
}

// Grant sets a permission flag, mostly useful for seeding demos and tests.
func (s *Source) Grant(ctx context.Context, batchKey, input interface{}, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(batchKey, input), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to grant permission flag: %w", err)
	}
	return nil
}

// BatchLoad resolves all inputs of one batch with a single MGET.
func (s *Source) BatchLoad(ctx context.Context, batchKey interface{}, inputs []interface{}) (map[interface{}]interface{}, error) {
	keys := make([]string, len(inputs))
	for i, input := range inputs {
		keys[i] = s.key(batchKey, input)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to batch-load permission flags: %w", err)
	}

	out := make(map[interface{}]interface{}, len(inputs))
	granted := 0
	for i, input := range inputs {
		flag := false
		if v, ok := values[i].(string); ok {
			flag = v == "1" || v == "true"
		}
		if flag {
			granted++
		}
		out[input] = flag
	}

	logger.Debug("Resolved permission batch from Redis",
		zap.Any("batchKey", batchKey),
		zap.Int("inputs", len(inputs)),
		zap.Int("granted", granted))
	return out, nil
}
