package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/cli/appctx"
	"github.com/lherron/ghl2hs/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [entity]",
	Short: "Show staged counts, mappings, failures and checkpoints per stream",
	Long: `Status reports, for every stream (or only the one given), how many records
are staged, how many have an identity mapping, how many are in the failure
log, and where each checkpoint currently stands.

With --mappings it lists the identity mappings themselves instead, one row
per source id with the destination id it was created as.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runStatus),
}

var (
	statusJSON     bool
	statusMappings bool
	statusLimit    int
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	statusCmd.Flags().BoolVar(&statusMappings, "mappings", false, "List identity mappings instead of counts")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 100, "Maximum mappings per entity with --mappings")
	statusCmd.Flags().String("calendar-object", "", "Custom object type id for calendars (overrides HUBSPOT_CALENDAR_OBJECT)")
}

func runStatus(app *appctx.App, cmd *cobra.Command, args []string) error {
	entities := domain.MigratableEntities
	if len(args) == 1 {
		entity, err := domain.ValidateEntityType(args[0])
		if err != nil {
			return exitError(2, err)
		}
		entities = []domain.EntityType{entity}
	}

	if statusMappings {
		return runStatusMappings(app, cmd, entities)
	}

	statuses := make([]*domain.StreamStatus, 0, len(entities))
	for _, entity := range entities {
		st, err := app.Store.Status(cmd.Context(), entity, primaryObjectType(entity, app.Config.CalendarObject))
		if err != nil {
			return exitError(1, err)
		}
		statuses = append(statuses, st)
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return exitError(1, err)
	}
	return r.Status(statuses)
}

func runStatusMappings(app *appctx.App, cmd *cobra.Command, entities []domain.EntityType) error {
	var all []domain.IdentityMapping
	for _, entity := range entities {
		objectType := primaryObjectType(entity, app.Config.CalendarObject)
		if objectType == "" {
			continue
		}
		mappings, err := app.Store.ListMappings(cmd.Context(), objectType, statusLimit)
		if err != nil {
			return exitError(1, err)
		}
		all = append(all, mappings...)
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return exitError(1, err)
	}
	return r.Mappings(all)
}
