package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMaxPoolSize = 5

// Connect creates a MongoDB client for the given URI.
// It sets a conservative pool size limit and pings the primary to
// verify connectivity before returning.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri).SetMaxPoolSize(defaultMaxPoolSize)

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return client, nil
}

// Disconnect closes the client. Safe to call with a nil client.
func Disconnect(ctx context.Context, client *mongo.Client) error {
	if client == nil {
		return nil
	}

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting from database: %w", err)
	}

	return nil
}
