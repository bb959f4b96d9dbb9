package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ghl2hs",
	Short: "Incremental GoHighLevel to HubSpot migration",
	Long: `ghl2hs migrates staged GoHighLevel records (contacts, companies,
opportunities, calendars, appointments, conversations and notes) into
HubSpot. Every stream is resumable: progress is checkpointed after each
record and an identity map guarantees no record is created twice.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to staging database file (overrides GHL2HS_DB_PATH)")
	rootCmd.PersistentFlags().String("backend", "", "Staging backend: sqlite or mongo (overrides GHL2HS_BACKEND)")
	rootCmd.PersistentFlags().String("mongo-uri", "", "MongoDB connection string (overrides GHL2HS_MONGO_URI)")
	rootCmd.PersistentFlags().String("mongo-db", "", "MongoDB database name (overrides GHL2HS_MONGO_DB)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides GHL2HS_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides GHL2HS_LOG_FORMAT)")
	rootCmd.PersistentFlags().String("output", "", "Output format: table, json or yaml (overrides GHL2HS_OUTPUT)")
	rootCmd.PersistentFlags().Bool("porcelain", false, "Stable tab-separated table output")
}
