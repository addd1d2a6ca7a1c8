package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSnapshotTTL = 30 * 24 * time.Hour

// SnapshotStore persists per-user progress blobs so practice state survives
// an engine restart. It is a cache, not a system of record: a miss or a
// store failure only costs hydration, never correctness.
type SnapshotStore interface {
	Get(ctx context.Context, userID string) ([]byte, error)
	Set(ctx context.Context, userID string, blob []byte) error
}

// RedisStore keeps progress snapshots in Redis with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SnapshotStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(userID string) string {
	return fmt.Sprintf("progress:%s", userID)
}

// Get returns the stored blob, or nil on a miss.
func (s *RedisStore) Get(ctx context.Context, userID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return data, nil
}

// Set stores the blob, refreshing the TTL.
func (s *RedisStore) Set(ctx context.Context, userID string, blob []byte) error {
	if err := s.client.Set(ctx, s.key(userID), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// MemoryStore is the in-process fallback used when Redis is not configured,
// and by tests.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ SnapshotStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[userID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

func (s *MemoryStore) Set(_ context.Context, userID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[userID] = append([]byte(nil), blob...)
	return nil
}
