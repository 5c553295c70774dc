package migration

import "errors"

// ErrDuplicateVersion indicates two migrations were registered with the same version.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// ErrEmptyVersion indicates a migration with an empty version string.
var ErrEmptyVersion = errors.New("migration version must not be empty")
