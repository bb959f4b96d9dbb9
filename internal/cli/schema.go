package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/cli/appctx"
	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/migrate"
	"github.com/lherron/ghl2hs/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Map staged custom field definitions to HubSpot properties",
	Long: `Schema maps the staged GoHighLevel custom field definitions onto HubSpot
custom properties. Stage the custom_fields collection first.`,
}

var schemaPlanCmd = &cobra.Command{
	Use:   "plan <contact|deal|company>",
	Short: "Show the properties sync would create, as a unified diff",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithDestination(), runSchemaPlan),
}

var schemaSyncCmd = &cobra.Command{
	Use:   "sync <contact|deal|company>",
	Short: "Create every mapped property that HubSpot does not have yet",
	Long: `Sync looks up every desired property. A missing property is created; one
that already exists, or that another writer creates first, is left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.WithDestination(), runSchemaSync),
}

var (
	schemaGroup string
	schemaJSON  bool
)

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaPlanCmd, schemaSyncCmd)

	schemaCmd.PersistentFlags().StringVar(&schemaGroup, "group", "", "Property group (overrides GHL2HS_PROPERTY_GROUP)")
	schemaCmd.PersistentFlags().BoolVar(&schemaJSON, "json", false, "Output as JSON")
	schemaCmd.PersistentFlags().String("token", "", "HubSpot private app token (overrides HUBSPOT_TOKEN)")
	schemaCmd.PersistentFlags().Duration("delay", 0, "Pause after every HubSpot call (overrides GHL2HS_REQUEST_DELAY)")
}

// sourceModel maps a destination object type to the source model name of
// its custom field definitions
func sourceModel(arg string) (domain.ObjectType, string, error) {
	switch arg {
	case "contact", "contacts":
		return domain.ObjectContact, "contact", nil
	case "deal", "deals", "opportunity", "opportunities":
		return domain.ObjectDeal, "opportunity", nil
	case "company", "companies":
		return domain.ObjectCompany, "company", nil
	}
	return "", "", fmt.Errorf("invalid object type %q: must be contact, deal or company", arg)
}

func desiredProperties(app *appctx.App, cmd *cobra.Command, arg string) (domain.ObjectType, []domain.DestinationProperty, string, error) {
	objectType, model, err := sourceModel(arg)
	if err != nil {
		return "", nil, "", exitError(2, err)
	}
	defs, err := migrate.LoadFieldDefinitions(cmd.Context(), app.Store)
	if err != nil {
		return "", nil, "", exitError(1, err)
	}
	group := schemaGroup
	if group == "" {
		group = app.Config.PropertyGroup
	}
	if group == "" {
		group = schema.DefaultGroup
	}
	unique := schema.NewFieldDefinitions(model, defs).Unique()
	return objectType, schema.DesiredProperties(unique, group), group, nil
}

func runSchemaPlan(app *appctx.App, cmd *cobra.Command, args []string) error {
	objectType, desired, _, err := desiredProperties(app, cmd, args[0])
	if err != nil {
		return err
	}

	changes, err := schema.Plan(cmd.Context(), app.Destination(), objectType, desired)
	if err != nil {
		return exitError(1, err)
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return exitError(1, err)
	}
	return r.PropertyPlan(objectType, changes)
}

func runSchemaSync(app *appctx.App, cmd *cobra.Command, args []string) error {
	objectType, desired, group, err := desiredProperties(app, cmd, args[0])
	if err != nil {
		return err
	}

	dest := app.Destination()
	if len(desired) > 0 {
		if err := dest.EnsurePropertyGroup(cmd.Context(), objectType, group, "GoHighLevel custom fields"); err != nil {
			return exitError(1, fmt.Errorf("failed to create property group %s: %w", group, err))
		}
	}

	res, err := schema.Sync(cmd.Context(), dest, objectType, desired)
	if err != nil {
		return exitError(1, err)
	}
	app.Log.WithField("object_type", objectType).Infof("schema sync: %d created, %d existing", res.Created, res.Existing)

	r, err := app.Renderer(cmd)
	if err != nil {
		return exitError(1, err)
	}
	if ok, err := r.Structured(res); ok {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d propert(ies) created, %d already present\n", objectType, res.Created, res.Existing)
	return nil
}
