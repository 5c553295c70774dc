package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careops/mongo-migration-engine/internal/database"
	"github.com/careops/mongo-migration-engine/internal/executor"
)

// errRollbackTargetRequired is returned when rollback is invoked without a target.
var errRollbackTargetRequired = errors.New(
	"rollback target is required (use --target; \"000\" rolls back every applied migration)",
)

var rollbackCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "rollback",
	Short: "Roll back applied migrations",
	Long: `Roll back every applied migration with a version greater than the
target, in reverse-applied order, removing each from the
schema_migrations collection.`,
	RunE: runRollback,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rollbackCmd.Flags().String("target", "", "roll back to this version (exclusive)")
	rollbackCmd.Flags().Bool("dry-run", false, "show what would be rolled back without executing")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.MongoURI == "" {
		return errMongoURIRequired
	}

	target, _ := cmd.Flags().GetString("target")
	if !cmd.Flags().Changed("target") {
		return errRollbackTargetRequired
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	registry, err := newRegistry()
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // flush is best-effort on exit

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	client, err := connectDB(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer database.Disconnect(ctx, client) //nolint:errcheck // best-effort close on return

	exec := executor.New(client.Database(cfg.Database), registry, trackerFor(client, cfg),
		executor.WithLockTTL(cfg.LockTTL),
		executor.WithDryRun(dryRun),
		executor.WithLogger(logger),
		executor.WithProgressCallback(progressPrinter(out, "Rolling back", "roll back")),
	)

	if dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	rolledBack, err := exec.Rollback(ctx, target)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be rolled back.\n", len(rolledBack))
	} else {
		fmt.Fprintf(out, "\nRollback complete: %d migration(s) rolled back.\n", len(rolledBack))
	}

	return nil
}
