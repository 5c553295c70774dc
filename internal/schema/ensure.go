package schema

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB server error codes tolerated by the ensure helpers.
const (
	codeNamespaceExists       = 48
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// hasErrorCode reports whether err carries the given server error code.
func hasErrorCode(err error, code int) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorCode(code)
	}

	return false
}

// ensureCollection creates a collection with the given $jsonSchema
// validator. An already-existing collection is not an error; every
// other failure propagates.
func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	opts := options.CreateCollection().SetValidator(validator)

	if err := db.CreateCollection(ctx, name, opts); err != nil {
		if hasErrorCode(err, codeNamespaceExists) {
			return nil
		}

		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	return nil
}

// ensureIndexes creates each index individually so a conflicting
// existing index does not fail the whole migration.
func ensureIndexes(ctx context.Context, db *mongo.Database, name string, indexes []mongo.IndexModel) error {
	coll := db.Collection(name)

	for _, index := range indexes {
		if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
			if hasErrorCode(err, codeIndexOptionsConflict) || hasErrorCode(err, codeIndexKeySpecsConflict) {
				continue
			}

			return fmt.Errorf("creating index on %s: %w", name, err)
		}
	}

	return nil
}

// dropCollection drops the named collection. Dropping a collection that
// does not exist is a no-op in MongoDB.
func dropCollection(ctx context.Context, db *mongo.Database, name string) error {
	if err := db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}

	return nil
}
