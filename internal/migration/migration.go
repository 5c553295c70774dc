package migration

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Migration is a single named, versioned, reversible unit of schema change.
type Migration interface {
	// Version returns the unique version identifier, e.g. "001".
	// Versions sort lexicographically, so fixed-width zero-padded
	// numbers or timestamps are expected.
	Version() string

	// Description returns a human-readable summary of the change.
	Description() string

	// Up applies the schema change to the database.
	Up(ctx context.Context, db *mongo.Database) error

	// Down reverses exactly the changes made by Up.
	Down(ctx context.Context, db *mongo.Database) error
}

// Record is the persisted form of an applied migration in the
// tracking collection.
type Record struct {
	Version     string    `bson:"version"`
	Description string    `bson:"description"`
	AppliedAt   time.Time `bson:"applied_at"`
}

// StepFunc is one direction of a migration implemented as a closure.
type StepFunc func(ctx context.Context, db *mongo.Database) error

// Func assembles a Migration from closures, for one-off migrations
// that do not warrant their own type.
type Func struct {
	Ver    string
	Desc   string
	UpFn   StepFunc
	DownFn StepFunc
}

// Version implements Migration.
func (f Func) Version() string { return f.Ver }

// Description implements Migration.
func (f Func) Description() string { return f.Desc }

// Up implements Migration. A nil UpFn is a no-op.
func (f Func) Up(ctx context.Context, db *mongo.Database) error {
	if f.UpFn == nil {
		return nil
	}

	return f.UpFn(ctx, db)
}

// Down implements Migration. A nil DownFn is a no-op.
func (f Func) Down(ctx context.Context, db *mongo.Database) error {
	if f.DownFn == nil {
		return nil
	}

	return f.DownFn(ctx, db)
}
