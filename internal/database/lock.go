package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LockCollection is the collection holding the migration lock document.
const LockCollection = "migration_lock"

// lockID is the fixed _id of the singleton lock document.
const lockID = "schema_migrations"

// lockDocument is the persisted shape of the migration lock.
type lockDocument struct {
	ID         string    `bson:"_id"`
	Owner      string    `bson:"owner"`
	AcquiredAt time.Time `bson:"acquired_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

// LockHandle represents a held migration lock. Call Release to delete
// the lock document when done.
type LockHandle struct {
	coll  *mongo.Collection
	owner string
}

// TryAcquireLock attempts to insert the singleton lock document. The
// unique _id makes exactly one of two concurrent migrators win; the
// loser gets ErrLockNotAcquired. A TTL index on expires_at reclaims
// locks abandoned by a crashed holder after ttl elapses.
func TryAcquireLock(ctx context.Context, db *mongo.Database, ttl time.Duration) (*LockHandle, error) {
	coll := db.Collection(LockCollection)

	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}

	if _, err := coll.Indexes().CreateOne(ctx, ttlIndex); err != nil {
		return nil, fmt.Errorf("ensuring lock TTL index: %w", err)
	}

	now := time.Now().UTC()
	doc := lockDocument{
		ID:         lockID,
		Owner:      uuid.NewString(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrLockNotAcquired
		}

		return nil, fmt.Errorf("inserting lock document: %w", err)
	}

	return &LockHandle{coll: coll, owner: doc.Owner}, nil
}

// Release deletes the lock document if this handle still owns it.
// Safe to call multiple times; subsequent calls are no-ops.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || h.coll == nil {
		return nil
	}

	filter := bson.D{{Key: "_id", Value: lockID}, {Key: "owner", Value: h.owner}}

	_, err := h.coll.DeleteOne(ctx, filter)
	h.coll = nil

	if err != nil {
		return fmt.Errorf("releasing migration lock: %w", err)
	}

	return nil
}
