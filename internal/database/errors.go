package database

import "errors"

// ErrInvalidURI indicates the provided MongoDB URI could not be parsed.
var ErrInvalidURI = errors.New("invalid MongoDB URI")

// ErrConnectionFailed indicates a connection to the database could not be established.
var ErrConnectionFailed = errors.New("database connection failed")

// ErrLockNotAcquired indicates the migration lock is already held by another process.
var ErrLockNotAcquired = errors.New("migration lock not acquired")
