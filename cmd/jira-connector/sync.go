package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/providentiaww/jira-connector/internal/export"
	"github.com/providentiaww/jira-connector/internal/models"
	"github.com/providentiaww/jira-connector/internal/storage"
	"go.uber.org/zap"
)

func newBatch(projectKey string, started time.Time, issues []models.Issue) export.IssueBatch {
	return export.IssueBatch{
		RunID:      uuid.NewString(),
		ProjectKey: projectKey,
		FetchedAt:  started,
		Issues:     issues,
	}
}

// deliver pushes one batch to every configured sink. Sinks are
// independent: the relational store, the Redis mirror, the queue and the
// snapshot file are each skipped when unconfigured, but a failure in any
// configured sink fails the sync.
func deliver(ctx context.Context, a *app, batch export.IssueBatch) error {
	finished := time.Now()

	if a.cfg.DatabaseDSN != "" {
		store, err := storage.NewSnapshotStore(a.cfg.DatabaseDriver, a.cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		run := storage.SyncRun{
			ID:         batch.RunID,
			ProjectKey: batch.ProjectKey,
			StartedAt:  batch.FetchedAt,
			FinishedAt: finished,
			IssueCount: len(batch.Issues),
		}
		if err := store.SaveRun(ctx, run, batch.Issues); err != nil {
			return err
		}
		a.log.Info("snapshot persisted",
			zap.String("run", batch.RunID),
			zap.String("driver", a.cfg.DatabaseDriver))
	}

	if a.cfg.RedisURL != "" {
		mirror, err := storage.NewSnapshotMirror(ctx, a.cfg.RedisURL)
		if err != nil {
			return err
		}
		defer mirror.Close()

		if err := mirror.StoreLatest(ctx, batch.ProjectKey, batch.RunID, batch.Issues); err != nil {
			return err
		}
		a.log.Info("snapshot mirrored to redis", zap.String("run", batch.RunID))
	}

	if a.cfg.AMQPUrl != "" {
		publisher, err := export.NewPublisher(a.cfg.AMQPUrl, a.cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer publisher.Close()

		if err := publisher.PublishBatch(ctx, batch); err != nil {
			return err
		}
		a.log.Info("batch published",
			zap.String("run", batch.RunID),
			zap.String("queue", a.cfg.AMQPQueue))
	}

	if syncOutPath != "" {
		if err := export.WriteSnapshotFile(syncOutPath, batch); err != nil {
			return err
		}
		a.log.Info("snapshot written", zap.String("path", syncOutPath))
	}

	return nil
}
