package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/config"
	"github.com/lherron/ghl2hs/internal/db"
	"github.com/lherron/ghl2hs/internal/render"
)

var dbAdmCmd = &cobra.Command{
	Use:   "db",
	Short: "Staging database maintenance",
}

var dbSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the staging database to a single self-contained file",
	Long: `Snapshot writes a consistent copy of the SQLite staging database with
VACUUM INTO. The copy carries staged documents, identity mappings,
checkpoints and the failure log, and needs no WAL or SHM files.

Take one before a large migrate run or a --reset; point GHL2HS_DB_PATH at
the copy to go back to it.`,
	RunE: runDBSnapshot,
}

var (
	dbSnapshotOut  string
	dbSnapshotJSON bool
)

type snapshotManifest struct {
	Timestamp      string `json:"timestamp" yaml:"timestamp"`
	SourceDBPath   string `json:"source_db_path" yaml:"source_db_path"`
	SnapshotDBPath string `json:"snapshot_db_path" yaml:"snapshot_db_path"`
	Migrations     int    `json:"migrations" yaml:"migrations"`
}

func init() {
	rootAdmCmd.AddCommand(dbAdmCmd)
	dbAdmCmd.AddCommand(dbSnapshotCmd)

	dbSnapshotCmd.Flags().StringVar(&dbSnapshotOut, "out", "", "Output path for the snapshot (required)")
	dbSnapshotCmd.Flags().BoolVar(&dbSnapshotJSON, "json", false, "Output the manifest as JSON")
	_ = dbSnapshotCmd.MarkFlagRequired("out")
}

func runDBSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return exitError(1, fmt.Errorf("failed to load config: %w", err))
	}
	if dbPath := cmd.Flag("db").Value.String(); dbPath != "" {
		cfg.DBPath = dbPath
	}

	manifest, err := snapshotDatabase(cmd.Context(), cfg.DBPath, dbSnapshotOut, time.Now())
	if err != nil {
		return exitError(1, err)
	}

	if dbSnapshotJSON {
		return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON}).RenderJSON(manifest)
	}
	printSnapshot(cmd.OutOrStdout(), manifest)
	return nil
}

func snapshotDatabase(ctx context.Context, src, out string, now time.Time) (*snapshotManifest, error) {
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("source database not found: %w", err)
	}

	database, err := db.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	defer database.Close()

	applied, _, err := database.MigrationStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}
	if err := database.Snapshot(ctx, out); err != nil {
		return nil, err
	}

	return &snapshotManifest{
		Timestamp:      now.UTC().Format(time.RFC3339),
		SourceDBPath:   src,
		SnapshotDBPath: out,
		Migrations:     len(applied),
	}, nil
}

func printSnapshot(w io.Writer, m *snapshotManifest) {
	fmt.Fprintf(w, "✓ Created snapshot: %s\n", m.SnapshotDBPath)
	fmt.Fprintf(w, "  Source: %s\n", m.SourceDBPath)
	fmt.Fprintf(w, "  Timestamp: %s\n", m.Timestamp)
	fmt.Fprintf(w, "\nTo use this snapshot:\n")
	fmt.Fprintf(w, "  export GHL2HS_DB_PATH=%s\n", m.SnapshotDBPath)
}
