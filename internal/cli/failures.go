package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/cli/appctx"
	"github.com/lherron/ghl2hs/internal/domain"
)

var failuresCmd = &cobra.Command{
	Use:   "failures [entity]",
	Short: "List failure records for manual triage",
	Long: `Failures lists the failure log: one record per source id that could not be
migrated, with the reason and the detail of the last attempt. A later
successful run does not remove the record; reset the stream to clear it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runFailures),
}

var (
	failuresLimit int
	failuresJSON  bool
)

func init() {
	rootCmd.AddCommand(failuresCmd)
	failuresCmd.Flags().IntVar(&failuresLimit, "limit", 100, "Maximum records per entity")
	failuresCmd.Flags().BoolVar(&failuresJSON, "json", false, "Output as JSON")
}

func runFailures(app *appctx.App, cmd *cobra.Command, args []string) error {
	entities := domain.MigratableEntities
	if len(args) == 1 {
		entity, err := domain.ValidateEntityType(args[0])
		if err != nil {
			return exitError(2, err)
		}
		entities = []domain.EntityType{entity}
	}

	var all []domain.FailureRecord
	for _, entity := range entities {
		failures, err := app.Store.ListFailures(cmd.Context(), entity, failuresLimit)
		if err != nil {
			return exitError(1, err)
		}
		all = append(all, failures...)
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return exitError(1, err)
	}
	return r.Failures(all)
}
