package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/careops/mongo-migration-engine/internal/migration"
)

// Rollback reverses all applied migrations with versions strictly
// greater than target, in reverse-applied order, and returns the
// versions rolled back in rollback order. An applied version whose
// definition is no longer registered is an error, not a silent skip:
// skipping a down step would leave the schema inconsistent with the
// tracking collection without any signal. The first failure halts the
// batch; versions already rolled back in the batch stay unrecorded.
//
// Passing a target lower than every applied version rolls back
// everything. In dry-run mode the candidate versions are returned
// without executing or recording anything.
func (e *Executor) Rollback(ctx context.Context, target string) ([]string, error) {
	lock, err := e.acquireLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	if err := e.tracker.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	candidates, err := e.rollbackCandidates(ctx, target)
	if err != nil {
		return nil, err
	}

	rolledBack := []string{}

	for _, m := range candidates {
		if e.dryRun {
			e.fireProgress(ProgressEvent{
				Version:     m.Version(),
				Description: m.Description(),
				Status:      StatusSkipped,
			})
			rolledBack = append(rolledBack, m.Version())

			continue
		}

		if err := e.rollbackOne(ctx, m); err != nil {
			return rolledBack, err
		}

		rolledBack = append(rolledBack, m.Version())
	}

	return rolledBack, nil
}

// rollbackCandidates resolves applied versions above target to their
// registered definitions, in reverse-applied order.
func (e *Executor) rollbackCandidates(ctx context.Context, target string) ([]migration.Migration, error) {
	versions, err := e.tracker.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []migration.Migration

	for i := len(versions) - 1; i >= 0; i-- {
		version := versions[i]
		if version <= target {
			continue
		}

		m, ok := e.registry.Get(version)
		if !ok {
			return nil, fmt.Errorf("version %s: %w", version, ErrUnregisteredVersion)
		}

		candidates = append(candidates, m)
	}

	return candidates, nil
}

// rollbackOne executes a single migration's Down and deletes its
// tracking record.
func (e *Executor) rollbackOne(ctx context.Context, m migration.Migration) error {
	version := m.Version()

	e.logger.Info("rolling back migration",
		zap.String("version", version),
		zap.String("description", m.Description()),
	)
	e.fireProgress(ProgressEvent{
		Version:     version,
		Description: m.Description(),
		Status:      StatusStarting,
	})

	start := time.Now()
	downErr := m.Down(ctx, e.db)
	duration := time.Since(start)

	if downErr != nil {
		e.logger.Error("rollback failed",
			zap.String("version", version),
			zap.Duration("duration", duration),
			zap.Error(downErr),
		)
		e.fireProgress(ProgressEvent{
			Version:     version,
			Description: m.Description(),
			Status:      StatusFailed,
			Duration:    duration,
			Error:       downErr,
		})

		return fmt.Errorf("rolling back migration %s: %w", version, downErr)
	}

	if err := e.tracker.RecordRolledBack(ctx, version); err != nil {
		return fmt.Errorf("unrecording migration %s: %w", version, err)
	}

	e.logger.Info("migration rolled back",
		zap.String("version", version),
		zap.Duration("duration", duration),
	)
	e.fireProgress(ProgressEvent{
		Version:     version,
		Description: m.Description(),
		Status:      StatusCompleted,
		Duration:    duration,
	})

	return nil
}
