// Package schema contains the care platform's schema migrations.
//
// Collection validators and indexes are defined declaratively in a
// per-collection spec table and materialized by a generic loop, so
// adding a collection is a table edit rather than a new method.
package schema

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careops/mongo-migration-engine/internal/migration"
)

// collectionSpec declares one collection's validator and indexes.
type collectionSpec struct {
	name     string
	required []string
	enums    map[string][]string
	indexes  []mongo.IndexModel
}

// validator builds the $jsonSchema document enforcing required fields
// and enum constraints.
func (s collectionSpec) validator() bson.M {
	schema := bson.M{
		"bsonType": "object",
		"required": s.required,
	}

	if len(s.enums) > 0 {
		properties := bson.M{}
		for field, values := range s.enums {
			properties[field] = bson.M{"enum": values}
		}

		schema["properties"] = properties
	}

	return bson.M{"$jsonSchema": schema}
}

func ascending(fields ...string) bson.D {
	keys := make(bson.D, len(fields))
	for i, f := range fields {
		keys[i] = bson.E{Key: f, Value: 1}
	}

	return keys
}

func uniqueIndex(fields ...string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    ascending(fields...),
		Options: options.Index().SetUnique(true),
	}
}

func lookupIndex(fields ...string) mongo.IndexModel {
	return mongo.IndexModel{Keys: ascending(fields...)}
}

func partialIndex(filter bson.D, fields ...string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    ascending(fields...),
		Options: options.Index().SetPartialFilterExpression(filter),
	}
}

// platformCollections is the full set of collections provisioned by the
// initial platform migration.
var platformCollections = []collectionSpec{ //nolint:gochecknoglobals // fixed declarative schema table
	{
		name:     "users",
		required: []string{"email", "full_name", "role", "status", "created_at"},
		enums: map[string][]string{
			"role":   {"admin", "coordinator", "provider", "client"},
			"status": {"active", "invited", "suspended"},
		},
		indexes: []mongo.IndexModel{
			uniqueIndex("email"),
			lookupIndex("role", "status"),
		},
	},
	{
		name:     "organizations",
		required: []string{"name", "slug", "status", "created_at"},
		enums: map[string][]string{
			"status": {"active", "suspended", "archived"},
		},
		indexes: []mongo.IndexModel{
			uniqueIndex("slug"),
		},
	},
	{
		name:     "organization_memberships",
		required: []string{"user_id", "organization_id", "role", "created_at"},
		enums: map[string][]string{
			"role": {"owner", "manager", "member"},
		},
		indexes: []mongo.IndexModel{
			uniqueIndex("user_id", "organization_id"),
			lookupIndex("organization_id"),
		},
	},
	{
		name:     "provider_profiles",
		required: []string{"user_id", "display_name", "status", "created_at"},
		enums: map[string][]string{
			"status": {"draft", "published", "suspended"},
		},
		indexes: []mongo.IndexModel{
			uniqueIndex("user_id"),
			lookupIndex("status", "created_at"),
		},
	},
	{
		name:     "client_profiles",
		required: []string{"user_id", "organization_id", "created_at"},
		indexes: []mongo.IndexModel{
			uniqueIndex("user_id"),
			lookupIndex("organization_id"),
		},
	},
	{
		name:     "assessments",
		required: []string{"client_id", "template", "status", "created_at"},
		enums: map[string][]string{
			"status": {"draft", "submitted", "scored"},
		},
		indexes: []mongo.IndexModel{
			lookupIndex("client_id", "created_at"),
		},
	},
	{
		name:     "action_plans",
		required: []string{"client_id", "assessment_id", "status", "created_at"},
		enums: map[string][]string{
			"status": {"draft", "active", "completed", "cancelled"},
		},
		indexes: []mongo.IndexModel{
			lookupIndex("client_id", "created_at"),
			lookupIndex("assessment_id"),
		},
	},
	{
		name:     "tasks",
		required: []string{"action_plan_id", "title", "status", "created_at"},
		enums: map[string][]string{
			"status": {"pending", "in_progress", "completed", "cancelled"},
		},
		indexes: []mongo.IndexModel{
			lookupIndex("action_plan_id"),
			partialIndex(bson.D{{Key: "status", Value: "in_progress"}}, "due_at"),
		},
	},
	{
		name:     "outcome_records",
		required: []string{"client_id", "metric", "value", "created_at"},
		indexes: []mongo.IndexModel{
			lookupIndex("client_id", "created_at"),
		},
	},
	{
		name:     "alerts",
		required: []string{"severity", "status", "message", "created_at"},
		enums: map[string][]string{
			"severity": {"info", "warning", "critical"},
			"status":   {"open", "acknowledged", "resolved"},
		},
		indexes: []mongo.IndexModel{
			lookupIndex("status", "created_at"),
		},
	},
	{
		name:     "sla_records",
		required: []string{"organization_id", "metric", "status", "period_start", "period_end", "created_at"},
		enums: map[string][]string{
			"status": {"met", "at_risk", "breached"},
		},
		indexes: []mongo.IndexModel{
			lookupIndex("organization_id", "period_start"),
			lookupIndex("status", "created_at"),
		},
	},
	{
		name:     "audit_events",
		required: []string{"entity_type", "entity_id", "action", "actor_id", "recorded_at"},
		indexes: []mongo.IndexModel{
			lookupIndex("entity_type", "entity_id", "recorded_at"),
		},
	},
	{
		name:     "outbox_events",
		required: []string{"event_type", "payload", "published", "created_at"},
		indexes: []mongo.IndexModel{
			partialIndex(bson.D{{Key: "published", Value: false}}, "created_at"),
		},
	},
}

// CollectionNames returns the names of all collections provisioned by
// the platform migration, in table order.
func CollectionNames() []string {
	names := make([]string, len(platformCollections))
	for i, spec := range platformCollections {
		names[i] = spec.name
	}

	return names
}

// platformMigration is the initial schema-creation migration.
type platformMigration struct{}

// Platform returns the migration that provisions the care platform
// collections, validators, and indexes.
func Platform() migration.Migration {
	return platformMigration{}
}

func (platformMigration) Version() string { return "001" }

func (platformMigration) Description() string { return "create initial care platform schema" }

// Up creates every collection in the spec table with its validator,
// then its indexes. Already-existing collections and indexes are
// tolerated so a partially applied run can be retried.
func (platformMigration) Up(ctx context.Context, db *mongo.Database) error {
	for _, spec := range platformCollections {
		if err := ensureCollection(ctx, db, spec.name, spec.validator()); err != nil {
			return err
		}

		if err := ensureIndexes(ctx, db, spec.name, spec.indexes); err != nil {
			return err
		}
	}

	return nil
}

// Down drops every collection created by Up.
func (platformMigration) Down(ctx context.Context, db *mongo.Database) error {
	for _, spec := range platformCollections {
		if err := dropCollection(ctx, db, spec.name); err != nil {
			return err
		}
	}

	return nil
}
