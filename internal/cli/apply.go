package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careops/mongo-migration-engine/internal/database"
	"github.com/careops/mongo-migration-engine/internal/executor"
)

var applyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "apply",
	Short: "Apply pending migrations",
	Long: `Apply pending schema migrations in ascending version order,
recording each success in the schema_migrations collection. Supports
dry-run mode and stopping at a target version.`,
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	applyCmd.Flags().String("target", "", "apply only up to and including this version")
	applyCmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	applyCmd.Flags().Duration("lock-ttl", 0, "override migration lock TTL (e.g., 1m, 10m)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.MongoURI == "" {
		return errMongoURIRequired
	}

	target, _ := cmd.Flags().GetString("target")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	lockTTL := cfg.LockTTL
	if cmd.Flags().Changed("lock-ttl") {
		lockTTL, _ = cmd.Flags().GetDuration("lock-ttl")
	}

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
		executor.WithLockTTL(lockTTL),
		executor.WithDryRun(dryRun),
		executor.WithLogger(logger),
		executor.WithProgressCallback(progressPrinter(out, "Applying", "apply")),
	)

	if dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	applied, err := exec.Apply(ctx, target)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be applied.\n", len(applied))
	} else {
		fmt.Fprintf(out, "\nApply complete: %d migration(s) applied.\n", len(applied))
	}

	return nil
}
