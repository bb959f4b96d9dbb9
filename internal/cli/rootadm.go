package cli

import (
	"github.com/spf13/cobra"
)

var rootAdmCmd = &cobra.Command{
	Use:   "ghl2hsadm",
	Short: "Administrative CLI for the ghl2hs staging database",
	Long: `ghl2hsadm is the administrative companion to ghl2hs. It handles the
lifecycle of the SQLite staging database. MongoDB staging needs no
migrations; its indexes are created on connect.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteAdmin runs the admin root command
func ExecuteAdmin() error {
	return rootAdmCmd.Execute()
}

func init() {
	rootAdmCmd.PersistentFlags().String("db", "", "Path to staging database file (overrides GHL2HS_DB_PATH)")
}
