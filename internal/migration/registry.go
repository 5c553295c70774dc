package migration

import "fmt"

// Registry holds the set of known migrations keyed by version.
// Duplicate versions are rejected at registration time so the apply
// order is always well defined.
type Registry struct {
	byVersion map[string]Migration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byVersion: make(map[string]Migration)}
}

// Register adds a migration to the registry. Registering a version that
// is already present fails with ErrDuplicateVersion.
func (r *Registry) Register(m Migration) error {
	version := m.Version()
	if version == "" {
		return ErrEmptyVersion
	}

	if _, exists := r.byVersion[version]; exists {
		return fmt.Errorf("registering migration %s: %w", version, ErrDuplicateVersion)
	}

	r.byVersion[version] = m

	return nil
}

// MustRegister is Register for process-start wiring where a duplicate
// version is a programming error.
func (r *Registry) MustRegister(m Migration) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Get returns the migration registered under version, if any.
func (r *Registry) Get(version string) (Migration, bool) {
	m, ok := r.byVersion[version]

	return m, ok
}

// All returns every registered migration sorted by version ascending.
func (r *Registry) All() []Migration {
	all := make([]Migration, 0, len(r.byVersion))
	for _, m := range r.byVersion {
		all = append(all, m)
	}

	return Sort(all)
}

// Len returns the number of registered migrations.
func (r *Registry) Len() int {
	return len(r.byVersion)
}
