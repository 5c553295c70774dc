package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/careops/mongo-migration-engine/internal/config"
	"github.com/careops/mongo-migration-engine/internal/database"
	"github.com/careops/mongo-migration-engine/internal/executor"
	"github.com/careops/mongo-migration-engine/internal/migration"
	"github.com/careops/mongo-migration-engine/internal/schema"
	"github.com/careops/mongo-migration-engine/internal/tracker"
)

// newRegistry builds the registry of all known platform migrations.
// New migrations are added here so every entrypoint sees the full
// historical chain.
func newRegistry() (*migration.Registry, error) {
	registry := migration.NewRegistry()

	if err := registry.Register(schema.Platform()); err != nil {
		return nil, fmt.Errorf("building migration registry: %w", err)
	}

	return registry, nil
}

// newLogger builds the structured logger passed to the executor.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}

		return logger, nil
	}

	return zap.NewNop(), nil
}

// commandContext returns the command's context, falling back to Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// connectDB connects to MongoDB with the configured operation timeout.
func connectDB(ctx context.Context, cfg *config.Config, out io.Writer) (*mongo.Client, error) {
	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURI(cfg.MongoURI))

	connectCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()

	client, err := database.Connect(connectCtx, cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return client, nil
}

// trackerFor returns the tracker over the configured database.
func trackerFor(client *mongo.Client, cfg *config.Config) *tracker.Tracker {
	return tracker.New(client.Database(cfg.Database))
}

// progressPrinter writes per-migration progress lines the way apply and
// rollback report them. ingVerb is the progressive form ("Applying"),
// baseVerb the dry-run form ("apply").
func progressPrinter(out io.Writer, ingVerb, baseVerb string) func(executor.ProgressEvent) {
	return func(event executor.ProgressEvent) {
		switch event.Status {
		case executor.StatusStarting:
			fmt.Fprintf(out, "  %s %s (%s) ... ", ingVerb, event.Version, event.Description)
		case executor.StatusCompleted:
			fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
		case executor.StatusSkipped:
			fmt.Fprintf(out, "  would %s %s (%s)\n", baseVerb, event.Version, event.Description)
		case executor.StatusFailed:
			fmt.Fprintf(out, "FAILED\n")
			fmt.Fprintf(out, "    Error: %v\n", event.Error)
		}
	}
}
