package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careops/mongo-migration-engine/internal/database"
	"github.com/careops/mongo-migration-engine/internal/executor"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "plan",
	Short: "Show execution plan for pending migrations",
	Long: `Display the pending migrations in the order apply would execute
them, with their descriptions. Read-only.`,
	RunE: runPlan,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.MongoURI == "" {
		return errMongoURIRequired
	}

	registry, err := newRegistry()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	client, err := connectDB(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer database.Disconnect(ctx, client) //nolint:errcheck // best-effort close on return

	exec := executor.New(client.Database(cfg.Database), registry, trackerFor(client, cfg))

	status, err := exec.Status(ctx)
	if err != nil {
		return err
	}

	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "Nothing to apply: all registered migrations are applied.")

		return nil
	}

	fmt.Fprintf(out, "\n%d migration(s) pending:\n", len(status.Pending))

	for i, version := range status.Pending {
		m, _ := registry.Get(version)
		fmt.Fprintf(out, "  %d. %s: %s\n", i+1, version, m.Description())
	}

	return nil
}
