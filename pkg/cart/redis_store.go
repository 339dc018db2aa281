package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore persists cart snapshots keyed by tenant+session so a cart
// survives page navigation within one browsing session. The persistence
// backend is an external collaborator; this is only the consuming adapter.
type SnapshotStore interface {
	Save(ctx context.Context, tenant, sessionID string, lines []Line) error
	Load(ctx context.Context, tenant, sessionID string) ([]Line, error)
}

// RedisStore is the Redis-backed snapshot adapter.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func snapshotKey(tenant, sessionID string) string {
	return fmt.Sprintf("cart:%s:%s", tenant, sessionID)
}

func (s *RedisStore) Save(ctx context.Context, tenant, sessionID string, lines []Line) error {
	payload, err := json.Marshal(struct {
		Items     []Line  `json:"items"`
		UpdatedAt float64 `json:"updatedAt"`
	}{Items: lines, UpdatedAt: float64(time.Now().UnixMilli()) / 1000.0})
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}

	if err := s.rdb.Set(ctx, snapshotKey(tenant, sessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, tenant, sessionID string) ([]Line, error) {
	raw, err := s.rdb.Get(ctx, snapshotKey(tenant, sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}

	var payload struct {
		Items []Line `json:"items"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}
	return payload.Items, nil
}

// NoopStore discards snapshots. Used when Redis is unavailable.
type NoopStore struct{}

func (NoopStore) Save(context.Context, string, string, []Line) error   { return nil }
func (NoopStore) Load(context.Context, string, string) ([]Line, error) { return nil, nil }
