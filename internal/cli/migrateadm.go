package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/config"
	"github.com/lherron/ghl2hs/internal/db"
)

var migrateAdmCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending staging database migrations",
	Long: `Migrate applies the SQL migrations embedded in the binary to the SQLite
staging database. Applied versions are tracked in schema_migrations, so
running it again only applies what is new.

ghl2hs refuses to open a staging database with pending migrations; run this
after every upgrade.

Examples:
  ghl2hsadm migrate
  ghl2hsadm migrate --status
  ghl2hsadm migrate --dry-run --db ./staging.db`,
	RunE: runMigrateAdm,
}

var (
	migrateDryRun bool
	migrateStatus bool
)

func init() {
	rootAdmCmd.AddCommand(migrateAdmCmd)

	migrateAdmCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Show which migrations would be applied without running them")
	migrateAdmCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show applied and pending migrations")
}

func runMigrateAdm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return exitError(1, fmt.Errorf("failed to load config: %w", err))
	}
	if dbPath := cmd.Flag("db").Value.String(); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		return exitError(2, fmt.Errorf("database path not specified (use --db flag or set GHL2HS_DB_PATH)"))
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return exitError(1, err)
	}
	defer database.Close()

	out := cmd.OutOrStdout()
	if migrateStatus || migrateDryRun {
		applied, pending, err := database.MigrationStatus()
		if err != nil {
			return exitError(1, fmt.Errorf("failed to get migration status: %w", err))
		}
		if migrateDryRun {
			applied = nil
		}
		printMigrationStatus(out, applied, pending)
		return nil
	}

	applied, err := database.MigrateContext(cmd.Context())
	for _, m := range applied {
		fmt.Fprintf(out, "✓ Applied migration: %s\n", m)
	}
	if err != nil {
		return exitError(1, fmt.Errorf("failed to run migrations: %w", err))
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "Database is up to date. No migrations to apply.")
		return nil
	}
	fmt.Fprintf(out, "\nApplied %d migration(s).\n", len(applied))
	return nil
}

// printMigrationStatus lists applied then pending versions
func printMigrationStatus(out io.Writer, applied, pending []string) {
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(out, "No pending migrations. Database is up to date.")
		return
	}
	if len(applied) > 0 {
		fmt.Fprintln(out, "Applied migrations:")
		for _, m := range applied {
			fmt.Fprintf(out, "  ✓ %s\n", m)
		}
	}
	if len(pending) > 0 {
		if len(applied) > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, "Pending migrations:")
		for _, m := range pending {
			fmt.Fprintf(out, "  ○ %s\n", m)
		}
	} else {
		fmt.Fprintln(out, "\nDatabase is up to date.")
	}
}
