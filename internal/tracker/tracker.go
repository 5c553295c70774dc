package tracker

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careops/mongo-migration-engine/internal/migration"
)

// Collection is the name of the tracking collection.
const Collection = "schema_migrations"

// Tracker manages the schema_migrations collection. A version is
// present there iff its migration has been applied and not yet rolled
// back.
type Tracker struct {
	db *mongo.Database
}

// New creates a Tracker backed by the given database handle.
func New(db *mongo.Database) *Tracker {
	return &Tracker{db: db}
}

func (t *Tracker) collection() *mongo.Collection {
	return t.db.Collection(Collection)
}

// EnsureCollection prepares the tracking collection by creating a
// unique index on version. CreateOne is a no-op when an identical
// index already exists.
func (t *Tracker) EnsureCollection(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	if _, err := t.collection().Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("%w: %w", ErrTrackerInit, err)
	}

	return nil
}

// IsApplied checks whether a migration version has been applied.
func (t *Tracker) IsApplied(ctx context.Context, version string) (bool, error) {
	count, err := t.collection().CountDocuments(ctx, bson.D{{Key: "version", Value: version}})
	if err != nil {
		return false, fmt.Errorf("checking if migration %s is applied: %w", version, err)
	}

	return count > 0, nil
}

// GetApplied returns all applied migration records ordered by version ascending.
func (t *Tracker) GetApplied(ctx context.Context) ([]migration.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})

	cursor, err := t.collection().Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}

	var applied []migration.Record
	if err := cursor.All(ctx, &applied); err != nil {
		return nil, fmt.Errorf("decoding applied migrations: %w", err)
	}

	return applied, nil
}

// AppliedVersions returns the version strings of all applied
// migrations, sorted ascending.
func (t *Tracker) AppliedVersions(ctx context.Context) ([]string, error) {
	records, err := t.GetApplied(ctx)
	if err != nil {
		return nil, err
	}

	versions := make([]string, len(records))
	for i, r := range records {
		versions[i] = r.Version
	}

	return versions, nil
}

// RecordApplied inserts a tracking record for the given migration.
// The unique index on version makes the second of two concurrent
// inserts for the same version fail.
func (t *Tracker) RecordApplied(ctx context.Context, version, description string) error {
	record := migration.Record{
		Version:     version,
		Description: description,
		AppliedAt:   time.Now().UTC(),
	}

	if _, err := t.collection().InsertOne(ctx, record); err != nil {
		return fmt.Errorf("recording migration %s as applied: %w", version, err)
	}

	return nil
}

// RecordRolledBack deletes the tracking record for the given version.
func (t *Tracker) RecordRolledBack(ctx context.Context, version string) error {
	result, err := t.collection().DeleteOne(ctx, bson.D{{Key: "version", Value: version}})
	if err != nil {
		return fmt.Errorf("recording migration %s as rolled back: %w", version, err)
	}

	if result.DeletedCount == 0 {
		return fmt.Errorf("migration %s: %w", version, ErrMigrationNotFound)
	}

	return nil
}
