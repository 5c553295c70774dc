package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careops/mongo-migration-engine/internal/database"
	"github.com/careops/mongo-migration-engine/internal/executor"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display the current migration status showing applied and pending
migrations. Read-only: takes no lock and changes nothing.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusCmd.Flags().String("format", "", "output format (text, json)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.MongoURI == "" {
		return errMongoURIRequired
	}

	format := cfg.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
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

	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(status)
	}

	fmt.Fprintf(out, "\nMigrations: %d applied, %d pending, %d total.\n",
		status.AppliedCount, status.PendingCount, status.TotalCount)

	for _, version := range status.Applied {
		fmt.Fprintf(out, "  [applied] %s\n", version)
	}

	for _, version := range status.Pending {
		fmt.Fprintf(out, "  [pending] %s\n", version)
	}

	return nil
}
