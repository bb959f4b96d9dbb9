package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/schema"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information.`,
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionJSON {
		streams := make([]string, len(domain.MigratableEntities))
		for i, e := range domain.MigratableEntities {
			streams[i] = string(e)
		}
		output := map[string]interface{}{
			"version":             Version,
			"commit":              GitCommit,
			"build_date":          BuildDate,
			"field_rules_version": schema.FieldRulesVersion,
			"streams":             streams,
			"backends":            []string{"sqlite", "mongo"},
			"supported_formats":   []string{"table", "json", "yaml"},
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ghl2hs version %s\n", Version)
	fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", GitCommit)
	fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", BuildDate)
	fmt.Fprintf(cmd.OutOrStdout(), "  field rules: v%d\n", schema.FieldRulesVersion)

	return nil
}
