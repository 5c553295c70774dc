//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	mongoImage = "mongo:7"
	testDB     = "careplatform_test"
)

// SetupMongoURI starts a MongoDB 7 container and returns its connection
// URI. The container is automatically terminated when the test completes.
func SetupMongoURI(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        mongoImage,
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor: wait.ForLog("Waiting for connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	return "mongodb://" + host + ":" + port.Port()
}

// SetupMongo starts a MongoDB 7 container and returns a handle on the
// test database. The container and client are automatically cleaned up
// when the test completes.
func SetupMongo(t *testing.T) *mongo.Database {
	t.Helper()

	ctx := context.Background()
	uri := SetupMongoURI(t)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, client.Disconnect(context.Background()))
	})

	require.NoError(t, client.Ping(ctx, readpref.Primary()))

	return client.Database(testDB)
}

// collectionNames returns the names of all collections in db.
func collectionNames(t *testing.T, db *mongo.Database) []string {
	t.Helper()

	names, err := db.ListCollectionNames(context.Background(), bson.D{})
	require.NoError(t, err)

	return names
}
