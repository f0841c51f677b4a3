package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/metrics"
	"github.com/scholarflow/orchestrator/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a workflow id.
var ErrNotFound = errors.New("workflow state not found")

const keyPrefix = "scholarflow:state:"

// StateStore persists read-only workflow state snapshots to Redis so
// external observers can poll progress and a crashed run leaves an
// inspectable trail. The workflow is the only writer; one state per run.
type StateStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStateStore connects to Redis and verifies the connection.
// REDIS_PASSWORD is honored when set.
func NewStateStore(addr string, ttl time.Duration, logger *zap.Logger) (*StateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StateStore{client: client, logger: logger, ttl: ttl}, nil
}

// NewStateStoreWithClient wraps an existing client (tests).
func NewStateStoreWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StateStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StateStore{client: client, logger: logger, ttl: ttl}
}

// Save writes the snapshot for a workflow run, refreshing the TTL.
func (s *StateStore) Save(ctx context.Context, workflowID string, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal state snapshot: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+workflowID, data, s.ttl).Err(); err != nil {
		metrics.StatePersistenceErrors.Inc()
		return fmt.Errorf("save state snapshot: %w", err)
	}
	metrics.StateSnapshotsSaved.Inc()
	s.logger.Debug("Saved workflow state snapshot",
		zap.String("workflow_id", workflowID),
		zap.String("phase", string(snap.Phase)),
	)
	return nil
}

// Get loads the latest snapshot for a workflow run.
func (s *StateStore) Get(ctx context.Context, workflowID string) (models.Snapshot, error) {
	data, err := s.client.Get(ctx, keyPrefix+workflowID).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load state snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("unmarshal state snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes the snapshot for a workflow run.
func (s *StateStore) Delete(ctx context.Context, workflowID string) error {
	return s.client.Del(ctx, keyPrefix+workflowID).Err()
}

// Ping verifies the Redis connection.
func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (s *StateStore) Close() error {
	return s.client.Close()
}
