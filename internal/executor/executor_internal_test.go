package executor

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/careops/mongo-migration-engine/internal/migration"
	"github.com/careops/mongo-migration-engine/internal/tracker"
)

// mockLock implements lockReleaser for testing.
type mockLock struct {
	released bool
}

func (m *mockLock) Release(_ context.Context) error {
	m.released = true
	return nil
}

// mockTracker implements MigrationTracker for testing.
type mockTracker struct {
	ensureErr  error
	appliedErr error
	recordErr  error
	removeErr  error
	applied    map[string]bool
	recorded   []string
	removed    []string
}

func newMockTracker(applied ...string) *mockTracker {
	m := &mockTracker{applied: make(map[string]bool)}
	for _, v := range applied {
		m.applied[v] = true
	}

	return m
}

func (m *mockTracker) EnsureCollection(_ context.Context) error {
	return m.ensureErr
}

func (m *mockTracker) AppliedVersions(_ context.Context) ([]string, error) {
	if m.appliedErr != nil {
		return nil, m.appliedErr
	}

	versions := make([]string, 0, len(m.applied))
	for v := range m.applied {
		versions = append(versions, v)
	}

	sort.Strings(versions)

	return versions, nil
}

func (m *mockTracker) RecordApplied(_ context.Context, version, _ string) error {
	if m.recordErr != nil {
		return m.recordErr
	}

	m.applied[version] = true
	m.recorded = append(m.recorded, version)

	return nil
}

func (m *mockTracker) RecordRolledBack(_ context.Context, version string) error {
	if m.removeErr != nil {
		return m.removeErr
	}

	if !m.applied[version] {
		return tracker.ErrMigrationNotFound
	}

	delete(m.applied, version)
	m.removed = append(m.removed, version)

	return nil
}

// callCounter counts Up/Down invocations per version.
type callCounter struct {
	ups   map[string]int
	downs map[string]int
}

func newCallCounter() *callCounter {
	return &callCounter{ups: make(map[string]int), downs: make(map[string]int)}
}

func (c *callCounter) migration(version string) migration.Migration {
	return migration.Func{
		Ver:  version,
		Desc: "test " + version,
		UpFn: func(_ context.Context, _ *mongo.Database) error {
			c.ups[version]++
			return nil
		},
		DownFn: func(_ context.Context, _ *mongo.Database) error {
			c.downs[version]++
			return nil
		},
	}
}

func (c *callCounter) failingUp(version string, err error) migration.Migration {
	return migration.Func{
		Ver:  version,
		Desc: "test " + version,
		UpFn: func(_ context.Context, _ *mongo.Database) error {
			return err
		},
	}
}

func (c *callCounter) failingDown(version string, err error) migration.Migration {
	m := c.migration(version)
	f, _ := m.(migration.Func)
	f.DownFn = func(_ context.Context, _ *mongo.Database) error {
		return err
	}

	return f
}

func newTestRegistry(t *testing.T, migrations ...migration.Migration) *migration.Registry {
	t.Helper()

	registry := migration.NewRegistry()
	for _, m := range migrations {
		require.NoError(t, registry.Register(m))
	}

	return registry
}

func noopLockFn(_ context.Context) (lockReleaser, error) {
	return &mockLock{}, nil
}

func newTestExecutor(registry *migration.Registry, mt *mockTracker) *Executor {
	return &Executor{
		registry:    registry,
		tracker:     mt,
		logger:      zap.NewNop(),
		acquireLock: noopLockFn,
	}
}

// --- Apply tests ---

func TestApply_appliesAllPendingInAscendingOrder(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	// Registered out of order; apply order must still be ascending.
	registry := newTestRegistry(t, counter.migration("002"), counter.migration("001"), counter.migration("003"))
	mt := newMockTracker()
	e := newTestExecutor(registry, mt)

	applied, err := e.Apply(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, []string{"001", "002", "003"}, applied)
	assert.Equal(t, []string{"001", "002", "003"}, mt.recorded)
	assert.Equal(t, 1, counter.ups["001"])
	assert.Equal(t, 1, counter.ups["002"])
	assert.Equal(t, 1, counter.ups["003"])
}

func TestApply_target_limitsBatch(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"), counter.migration("003"))
	mt := newMockTracker()
	e := newTestExecutor(registry, mt)

	applied, err := e.Apply(context.Background(), "002")

	require.NoError(t, err)
	assert.Equal(t, []string{"001", "002"}, applied)
	assert.Zero(t, counter.ups["003"])
}

func TestApply_targetNotRegistered_returnsError(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	e := newTestExecutor(registry, newMockTracker())

	_, err := e.Apply(context.Background(), "999")

	require.ErrorIs(t, err, ErrTargetNotRegistered)
}

func TestApply_nothingPending_returnsEmpty(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"))
	mt := newMockTracker("001", "002")
	e := newTestExecutor(registry, mt)

	applied, err := e.Apply(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Empty(t, mt.recorded)
	assert.Zero(t, counter.ups["001"])
}

func TestApply_twiceInARow_secondRunAppliesNothing(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"))
	mt := newMockTracker()
	e := newTestExecutor(registry, mt)

	first, err := e.Apply(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"001", "002"}, first)

	second, err := e.Apply(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, counter.ups["001"])
	assert.Equal(t, 1, counter.ups["002"])
}

func TestApply_upError_haltsBatch(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	upErr := errors.New("index build failed")
	registry := newTestRegistry(t,
		counter.migration("001"),
		counter.failingUp("002", upErr),
		counter.migration("003"),
	)
	mt := newMockTracker()
	e := newTestExecutor(registry, mt)

	applied, err := e.Apply(context.Background(), "")

	require.Error(t, err)
	assert.ErrorIs(t, err, upErr)
	assert.Contains(t, err.Error(), "executing migration 002")

	// 001 stays applied; 002 and everything after it never recorded.
	assert.Equal(t, []string{"001"}, applied)
	assert.Equal(t, []string{"001"}, mt.recorded)
	assert.Zero(t, counter.ups["003"])
}

func TestApply_recordError_returnsError(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	mt := newMockTracker()
	mt.recordErr = errors.New("insert failed")
	e := newTestExecutor(registry, mt)

	_, err := e.Apply(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording migration 001")
}

func TestApply_lockError_returnsError(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	e := newTestExecutor(registry, newMockTracker())

	lockErr := errors.New("lock held")
	e.acquireLock = func(_ context.Context) (lockReleaser, error) {
		return nil, lockErr
	}

	_, err := e.Apply(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquiring migration lock")
	assert.Zero(t, counter.ups["001"])
}

func TestApply_lockReleased(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	e := newTestExecutor(registry, newMockTracker())

	lock := &mockLock{}
	e.acquireLock = func(_ context.Context) (lockReleaser, error) {
		return lock, nil
	}

	_, err := e.Apply(context.Background(), "")

	require.NoError(t, err)
	assert.True(t, lock.released)
}

func TestApply_ensureError_returnsError(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	mt := newMockTracker()
	mt.ensureErr = errors.New("index creation failed")
	e := newTestExecutor(registry, mt)

	_, err := e.Apply(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index creation failed")
}

func TestApply_dryRun_executesAndRecordsNothing(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"))
	mt := newMockTracker()
	e := newTestExecutor(registry, mt)
	e.dryRun = true

	var events []ProgressEvent
	e.onProgress = func(ev ProgressEvent) { events = append(events, ev) }

	applied, err := e.Apply(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, []string{"001", "002"}, applied)
	assert.Empty(t, mt.recorded)
	assert.Zero(t, counter.ups["001"])

	require.Len(t, events, 2)
	assert.Equal(t, StatusSkipped, events[0].Status)
	assert.Equal(t, StatusSkipped, events[1].Status)
}

func TestApply_progressEvents_startingThenCompleted(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	e := newTestExecutor(registry, newMockTracker())

	var events []ProgressEvent
	e.onProgress = func(ev ProgressEvent) { events = append(events, ev) }

	_, err := e.Apply(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StatusStarting, events[0].Status)
	assert.Equal(t, StatusCompleted, events[1].Status)
	assert.Equal(t, "001", events[0].Version)
	assert.Equal(t, "test 001", events[0].Description)
}

// --- Rollback tests ---

func TestRollback_rollsBackAboveTargetInReverseOrder(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"), counter.migration("003"))
	mt := newMockTracker("001", "002", "003")
	e := newTestExecutor(registry, mt)

	rolledBack, err := e.Rollback(context.Background(), "001")

	require.NoError(t, err)
	assert.Equal(t, []string{"003", "002"}, rolledBack)
	assert.Equal(t, []string{"003", "002"}, mt.removed)
	assert.Equal(t, 1, counter.downs["003"])
	assert.Equal(t, 1, counter.downs["002"])
	assert.Zero(t, counter.downs["001"])
	assert.True(t, mt.applied["001"])
}

func TestRollback_targetBelowAllApplied_rollsBackEverything(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"))
	mt := newMockTracker("001", "002")
	e := newTestExecutor(registry, mt)

	rolledBack, err := e.Rollback(context.Background(), "000")

	require.NoError(t, err)
	assert.Equal(t, []string{"002", "001"}, rolledBack)
	assert.Empty(t, mt.applied)
}

func TestRollback_nothingAboveTarget_returnsEmpty(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	mt := newMockTracker("001")
	e := newTestExecutor(registry, mt)

	rolledBack, err := e.Rollback(context.Background(), "001")

	require.NoError(t, err)
	assert.Empty(t, rolledBack)
	assert.Zero(t, counter.downs["001"])
}

func TestRollback_unregisteredAppliedVersion_returnsError(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	// 002 is applied but its definition was never registered.
	mt := newMockTracker("001", "002")
	e := newTestExecutor(registry, mt)

	_, err := e.Rollback(context.Background(), "000")

	require.ErrorIs(t, err, ErrUnregisteredVersion)
	assert.Contains(t, err.Error(), "version 002")

	// Nothing rolled back: the batch fails before any down runs.
	assert.Zero(t, counter.downs["001"])
	assert.Empty(t, mt.removed)
}

func TestRollback_downError_haltsBatch(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	downErr := errors.New("drop failed")
	registry := newTestRegistry(t,
		counter.migration("001"),
		counter.failingDown("002", downErr),
		counter.migration("003"),
	)
	mt := newMockTracker("001", "002", "003")
	e := newTestExecutor(registry, mt)

	rolledBack, err := e.Rollback(context.Background(), "000")

	require.Error(t, err)
	assert.ErrorIs(t, err, downErr)
	assert.Contains(t, err.Error(), "rolling back migration 002")

	// 003 was rolled back before the failure; 002 and 001 stay applied.
	assert.Equal(t, []string{"003"}, rolledBack)
	assert.True(t, mt.applied["001"])
	assert.True(t, mt.applied["002"])
	assert.Zero(t, counter.downs["001"])
}

func TestRollback_dryRun_executesAndRemovesNothing(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"))
	mt := newMockTracker("001", "002")
	e := newTestExecutor(registry, mt)
	e.dryRun = true

	rolledBack, err := e.Rollback(context.Background(), "000")

	require.NoError(t, err)
	assert.Equal(t, []string{"002", "001"}, rolledBack)
	assert.Empty(t, mt.removed)
	assert.Zero(t, counter.downs["002"])
}

// --- round trip ---

func TestRoundTrip_rollbackThenApply_reappliesOnlyRolledBack(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"))
	mt := newMockTracker()
	e := newTestExecutor(registry, mt)

	_, err := e.Apply(context.Background(), "")
	require.NoError(t, err)

	rolledBack, err := e.Rollback(context.Background(), "001")
	require.NoError(t, err)
	require.Equal(t, []string{"002"}, rolledBack)
	assert.Equal(t, 1, counter.downs["002"])
	assert.True(t, mt.applied["001"])

	reapplied, err := e.Apply(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"002"}, reapplied)
	assert.Equal(t, 1, counter.ups["001"])
	assert.Equal(t, 2, counter.ups["002"])
}

// --- Status tests ---

func TestStatus_countsAndListsConsistent(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"), counter.migration("002"), counter.migration("003"))
	mt := newMockTracker("001")
	e := newTestExecutor(registry, mt)

	status, err := e.Status(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, status.AppliedCount)
	assert.Equal(t, 2, status.PendingCount)
	assert.Equal(t, status.AppliedCount+status.PendingCount, status.TotalCount)
	assert.Equal(t, []string{"001"}, status.Applied)
	assert.Equal(t, []string{"002", "003"}, status.Pending)

	for _, v := range status.Applied {
		assert.NotContains(t, status.Pending, v)
	}
}

func TestStatus_takesNoLock(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	e := newTestExecutor(registry, newMockTracker())
	e.acquireLock = func(_ context.Context) (lockReleaser, error) {
		return nil, errors.New("lock must not be taken for status")
	}

	_, err := e.Status(context.Background())

	require.NoError(t, err)
}

func TestStatus_withUnregisteredApplied_countsIt(t *testing.T) {
	t.Parallel()

	counter := newCallCounter()
	registry := newTestRegistry(t, counter.migration("001"))
	mt := newMockTracker("001", "002")
	e := newTestExecutor(registry, mt)

	status, err := e.Status(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, status.AppliedCount)
	assert.Equal(t, 0, status.PendingCount)
	assert.Equal(t, 2, status.TotalCount)
}
