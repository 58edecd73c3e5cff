package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

var _ core.SnapshotStore = (*RedisStore)(nil)

// RedisStore keeps the last pod list in Redis so a restarted or scaled-out
// server can serve a list before its first refresh completes.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store writing to "<prefix>:pods".
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("%s:pods", prefix),
		ttl:    ttl,
	}
}

// Save stores pods for the configured TTL.
func (s *RedisStore) Save(ctx context.Context, pods []model.Pod) error {
	data, err := json.Marshal(pods)
	if err != nil {
		return fmt.Errorf("failed to marshal pod snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

// Load returns the stored pods, or nil when nothing is stored.
func (s *RedisStore) Load(ctx context.Context) ([]model.Pod, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var pods []model.Pod
	if err := json.Unmarshal(data, &pods); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pod snapshot: %w", err)
	}
	return pods, nil
}
