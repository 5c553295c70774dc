package tracker

import "errors"

// ErrMigrationNotFound indicates no record exists for the given migration version.
var ErrMigrationNotFound = errors.New("migration not found in schema_migrations")

// ErrTrackerInit indicates the tracking collection could not be prepared.
var ErrTrackerInit = errors.New("initializing schema_migrations collection")
