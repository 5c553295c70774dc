package executor

import "context"

// Status is a read-only diagnostic view of migration state.
// AppliedCount + PendingCount == TotalCount, and the two version lists
// are disjoint.
type Status struct {
	AppliedCount int      `json:"applied_count"`
	PendingCount int      `json:"pending_count"`
	TotalCount   int      `json:"total_count"`
	Applied      []string `json:"applied_migrations"`
	Pending      []string `json:"pending_migrations"`
}

// Status returns applied and pending versions without taking the
// migration lock or mutating anything. Applied versions come from the
// tracking collection; pending versions are registered migrations not
// present there.
func (e *Executor) Status(ctx context.Context) (*Status, error) {
	if err := e.tracker.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	applied, err := e.tracker.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[string]bool, len(applied))
	for _, v := range applied {
		appliedSet[v] = true
	}

	pending := []string{}

	for _, m := range e.registry.All() {
		if !appliedSet[m.Version()] {
			pending = append(pending, m.Version())
		}
	}

	return &Status{
		AppliedCount: len(applied),
		PendingCount: len(pending),
		TotalCount:   len(applied) + len(pending),
		Applied:      applied,
		Pending:      pending,
	}, nil
}
