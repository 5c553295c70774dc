package executor

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/careops/mongo-migration-engine/internal/database"
	"github.com/careops/mongo-migration-engine/internal/migration"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ProgressEvent is emitted by the executor for each migration processed.
type ProgressEvent struct {
	Version     string
	Description string
	Status      string
	Duration    time.Duration
	Error       error
}

// MigrationTracker abstracts schema_migrations operations for testability.
type MigrationTracker interface {
	EnsureCollection(ctx context.Context) error
	AppliedVersions(ctx context.Context) ([]string, error)
	RecordApplied(ctx context.Context, version, description string) error
	RecordRolledBack(ctx context.Context, version string) error
}

// lockReleaser is returned by lockFunc and must be released when done.
type lockReleaser interface {
	Release(ctx context.Context) error
}

// lockFunc acquires the migration lock and returns a releaser.
type lockFunc func(ctx context.Context) (lockReleaser, error)

const defaultLockTTL = 5 * time.Minute

// Executor applies and rolls back registered migrations sequentially,
// holding a database lock to prevent concurrent migration runs.
//
// An Executor is not safe for concurrent use by multiple goroutines.
type Executor struct {
	db          *mongo.Database
	registry    *migration.Registry
	tracker     MigrationTracker
	lockTTL     time.Duration
	dryRun      bool
	logger      *zap.Logger
	onProgress  func(ProgressEvent)
	acquireLock lockFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithLockTTL sets how long an abandoned migration lock survives before
// the TTL monitor reclaims it.
func WithLockTTL(d time.Duration) Option {
	return func(e *Executor) { e.lockTTL = d }
}

// WithDryRun enables dry-run mode where no migration is executed or recorded.
func WithDryRun(b bool) Option {
	return func(e *Executor) { e.dryRun = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithLogger sets the structured logger used around each migration.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New creates an Executor with the given database, registry, tracker, and options.
func New(db *mongo.Database, registry *migration.Registry, t MigrationTracker, opts ...Option) *Executor {
	e := &Executor{
		db:       db,
		registry: registry,
		tracker:  t,
		lockTTL:  defaultLockTTL,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	// Set the default lock function after options are applied, so tests
	// can override it via options.
	if e.acquireLock == nil {
		e.acquireLock = func(ctx context.Context) (lockReleaser, error) {
			return database.TryAcquireLock(ctx, e.db, e.lockTTL)
		}
	}

	return e
}

// Apply executes pending migrations in ascending version order and
// returns the versions applied, in application order. If target is
// non-empty, only pending versions up to and including target are
// applied. The first failure halts the batch: the error propagates and
// versions already applied in the batch stay recorded.
//
// In dry-run mode the pending versions are returned without executing
// or recording anything.
func (e *Executor) Apply(ctx context.Context, target string) ([]string, error) {
	if target != "" {
		if _, ok := e.registry.Get(target); !ok {
			return nil, fmt.Errorf("target %s: %w", target, ErrTargetNotRegistered)
		}
	}

	lock, err := e.acquireLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	if err := e.tracker.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	pending, err := e.pendingMigrations(ctx, target)
	if err != nil {
		return nil, err
	}

	applied := []string{}

	for _, m := range pending {
		if e.dryRun {
			e.fireProgress(ProgressEvent{
				Version:     m.Version(),
				Description: m.Description(),
				Status:      StatusSkipped,
			})
			applied = append(applied, m.Version())

			continue
		}

		if err := e.applyOne(ctx, m); err != nil {
			return applied, err
		}

		applied = append(applied, m.Version())
	}

	return applied, nil
}

// pendingMigrations returns registered migrations not yet applied, in
// ascending version order, truncated at target when given.
func (e *Executor) pendingMigrations(ctx context.Context, target string) ([]migration.Migration, error) {
	versions, err := e.tracker.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[string]bool, len(versions))
	for _, v := range versions {
		appliedSet[v] = true
	}

	var pending []migration.Migration

	for _, m := range e.registry.All() {
		if target != "" && m.Version() > target {
			break
		}

		if !appliedSet[m.Version()] {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// applyOne executes a single migration's Up and records it as applied.
func (e *Executor) applyOne(ctx context.Context, m migration.Migration) error {
	version := m.Version()

	e.logger.Info("applying migration",
		zap.String("version", version),
		zap.String("description", m.Description()),
	)
	e.fireProgress(ProgressEvent{
		Version:     version,
		Description: m.Description(),
		Status:      StatusStarting,
	})

	start := time.Now()
	upErr := m.Up(ctx, e.db)
	duration := time.Since(start)

	if upErr != nil {
		e.logger.Error("migration failed",
			zap.String("version", version),
			zap.Duration("duration", duration),
			zap.Error(upErr),
		)
		e.fireProgress(ProgressEvent{
			Version:     version,
			Description: m.Description(),
			Status:      StatusFailed,
			Duration:    duration,
			Error:       upErr,
		})

		return fmt.Errorf("executing migration %s: %w", version, upErr)
	}

	if err := e.tracker.RecordApplied(ctx, version, m.Description()); err != nil {
		return fmt.Errorf("recording migration %s: %w", version, err)
	}

	e.logger.Info("migration applied",
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

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
