package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/providentiaww/jira-connector/internal/models"
	"github.com/redis/go-redis/v9"
)

// SnapshotMirror keeps the latest issue snapshot per project in Redis so
// dashboards can read it without touching the relational store. Only the
// most recent run is mirrored; history lives in SQL.
type SnapshotMirror struct {
	client *redis.Client
}

// NewSnapshotMirror connects to Redis using a redis:// URL and verifies
// connectivity.
func NewSnapshotMirror(ctx context.Context, redisURL string) (*SnapshotMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: pinging redis: %w", err)
	}
	return &SnapshotMirror{client: client}, nil
}

func snapshotKey(projectKey string) string {
	return "jira:snapshot:" + projectKey
}

func runKey(projectKey string) string {
	return "jira:snapshot:" + projectKey + ":run"
}

// StoreLatest replaces the mirrored snapshot for a project.
func (m *SnapshotMirror) StoreLatest(ctx context.Context, projectKey, runID string, issues []models.Issue) error {
	payload, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("storage: encoding snapshot: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, snapshotKey(projectKey), payload, 0)
	pipe.Set(ctx, runKey(projectKey), runID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: writing snapshot to redis: %w", err)
	}
	return nil
}

// Latest returns the mirrored snapshot and the run id it came from.
// A project with no mirrored snapshot yields an empty slice and run id.
func (m *SnapshotMirror) Latest(ctx context.Context, projectKey string) ([]models.Issue, string, error) {
	payload, err := m.client.Get(ctx, snapshotKey(projectKey)).Bytes()
	if err == redis.Nil {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("storage: reading snapshot from redis: %w", err)
	}

	var issues []models.Issue
	if err := json.Unmarshal(payload, &issues); err != nil {
		return nil, "", fmt.Errorf("storage: decoding snapshot: %w", err)
	}

	runID, err := m.client.Get(ctx, runKey(projectKey)).Result()
	if err != nil && err != redis.Nil {
		return nil, "", fmt.Errorf("storage: reading run id from redis: %w", err)
	}
	return issues, runID, nil
}

// Close closes the Redis connection.
func (m *SnapshotMirror) Close() error {
	return m.client.Close()
}
