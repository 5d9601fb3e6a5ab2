package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore persists snapshots in Redis: the record under
// {prefix}:snapshot:{key}, plus a per-agent sorted set indexed by timestamp
// so the latest snapshot is one ZREVRANGE away. Redis SET is atomic, which
// gives the all-or-nothing write the store contract requires.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "snapshot_redis_store")),
	}
}

// Save writes the snapshot record and indexes it for the agent.
func (s *RedisStore) Save(ctx context.Context, snap *AgentSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.snapshotKey(snap.SnapshotID), data, 0).Err(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	err = s.client.ZAdd(ctx, s.indexKey(snap.AgentName), redis.Z{
		Score:  float64(snap.Timestamp.UnixNano()),
		Member: snap.SnapshotID,
	}).Err()
	if err != nil {
		return fmt.Errorf("index snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved to redis",
		zap.String("snapshot_id", snap.SnapshotID),
		zap.String("agent", snap.AgentName))
	return nil
}

// Load returns the snapshot with the given ID, or the newest indexed one for
// any agent when snapshotID is empty.
func (s *RedisStore) Load(ctx context.Context, snapshotID string) (*AgentSnapshot, error) {
	if snapshotID == "" {
		return s.loadLatest(ctx)
	}
	return s.loadByID(ctx, snapshotID)
}

// LoadLatestFor returns the newest snapshot for one agent.
func (s *RedisStore) LoadLatestFor(ctx context.Context, agentName string) (*AgentSnapshot, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(agentName), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("query snapshot index: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: agent %s", ErrNotFound, agentName)
	}
	return s.loadByID(ctx, ids[0])
}

func (s *RedisStore) loadLatest(ctx context.Context) (*AgentSnapshot, error) {
	indexes, err := s.client.Keys(ctx, s.prefix+":index:*").Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshot indexes: %w", err)
	}

	var newest *AgentSnapshot
	for _, index := range indexes {
		ids, err := s.client.ZRevRange(ctx, index, 0, 0).Result()
		if err != nil || len(ids) == 0 {
			continue
		}
		snap, err := s.loadByID(ctx, ids[0])
		if err != nil {
			continue
		}
		if newest == nil || snap.Timestamp.After(newest.Timestamp) {
			newest = snap
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("%w: no snapshots indexed", ErrNotFound)
	}
	return newest, nil
}

func (s *RedisStore) loadByID(ctx context.Context, snapshotID string) (*AgentSnapshot, error) {
	data, err := s.client.Get(ctx, s.snapshotKey(snapshotID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap AgentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisStore) snapshotKey(id string) string {
	return fmt.Sprintf("%s:snapshot:%s", s.prefix, id)
}

func (s *RedisStore) indexKey(agentName string) string {
	return fmt.Sprintf("%s:index:%s", s.prefix, agentName)
}
