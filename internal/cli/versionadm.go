package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/render"
)

var versionAdmCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information for ghl2hsadm.`,
	RunE:  runVersionAdm,
}

var versionAdmJSON bool

func init() {
	rootAdmCmd.AddCommand(versionAdmCmd)
	versionAdmCmd.Flags().BoolVar(&versionAdmJSON, "json", false, "Output as JSON")
}

func runVersionAdm(cmd *cobra.Command, args []string) error {
	if versionAdmJSON {
		return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON}).RenderJSON(map[string]interface{}{
			"binary":             "ghl2hsadm",
			"version":            Version,
			"commit":             GitCommit,
			"build_date":         BuildDate,
			"supported_commands": []string{"migrate", "db", "version", "completion"},
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ghl2hsadm version %s\n", Version)
	fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", GitCommit)
	fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", BuildDate)
	return nil
}
