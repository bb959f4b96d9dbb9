package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/cli/appctx"
	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/migrate"
	"github.com/lherron/ghl2hs/internal/schema"
	"github.com/lherron/ghl2hs/internal/tracing"
)

// flagUseConfigured is the value of --reset or --delete-import-tag given without an argument
const flagUseConfigured = "\x00"

var migrateCmd = &cobra.Command{
	Use:   "migrate <contacts|companies|opportunities|calendars|appointments|conversations|notes>",
	Short: "Migrate one staged stream into HubSpot",
	Long: `Migrate reads staged records of one entity in insertion order and creates
the matching HubSpot objects and associations.

Progress is checkpointed after every record, so an interrupted run resumes
where it stopped. Records that already have an identity mapping are never
created again. Records that cannot be migrated are counted, logged to the
failure log, and skipped.

A dry run keeps its own checkpoint (<checkpoint-id>.dry-run), so it never
moves the position of the real stream.

Examples:
  ghl2hs migrate contacts --dry-run
  ghl2hs migrate opportunities --pipeline default --limit 500
  ghl2hs migrate conversations --import-tag run-2024-06
  ghl2hs migrate contacts --reset
  ghl2hs migrate contacts --delete-import-tag=run-2024-06`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

var migrateFlags struct {
	collection      string
	limit           int
	checkpointID    string
	noResume        bool
	dryRun          bool
	pageSize        int
	reset           string
	deleteImportTag string
	jsonOutput      bool
	otlpEndpoint    string
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	f := migrateCmd.Flags()
	f.StringVar(&migrateFlags.collection, "collection", "", "Staging collection to read (defaults to the entity name)")
	f.IntVar(&migrateFlags.limit, "limit", 0, "Stop after this many records (0 = no limit)")
	f.StringVar(&migrateFlags.checkpointID, "checkpoint-id", "", "Checkpoint stream id (defaults to the entity name)")
	f.Bool("resume", true, "Resume from the saved checkpoint")
	f.BoolVar(&migrateFlags.noResume, "no-resume", false, "Ignore the saved checkpoint and start from the beginning")
	f.BoolVar(&migrateFlags.dryRun, "dry-run", false, "Plan every record without calling HubSpot; checkpoints under <checkpoint-id>.dry-run and writes no mappings or failures")
	f.IntVar(&migrateFlags.pageSize, "page-size", 0, "Staged records read per page")
	f.String("token", "", "HubSpot private app token (overrides HUBSPOT_TOKEN)")
	f.String("dealstage", "", "Deal stage id for opportunities (overrides HUBSPOT_DEALSTAGE)")
	f.String("pipeline", "", "Deal pipeline whose first open stage is the default (overrides HUBSPOT_PIPELINE)")
	f.String("calendar-object", "", "Custom object type id for calendars (overrides HUBSPOT_CALENDAR_OBJECT)")
	f.Duration("delay", 300*time.Millisecond, "Pause after every HubSpot call (overrides GHL2HS_REQUEST_DELAY)")
	f.String("import-tag", "", "Tag every created object with this value (overrides GHL2HS_IMPORT_TAG)")
	f.StringVar(&migrateFlags.deleteImportTag, "delete-import-tag", "", "Archive every object of this stream carrying the tag, then exit")
	f.Lookup("delete-import-tag").NoOptDefVal = flagUseConfigured
	f.StringVar(&migrateFlags.reset, "reset", "", "Forget mappings, failures and checkpoints of a stream, then exit")
	f.Lookup("reset").NoOptDefVal = flagUseConfigured
	f.BoolVar(&migrateFlags.jsonOutput, "json", false, "Output the summary as JSON")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides GHL2HS_METRICS_ADDR)")
	f.StringVar(&migrateFlags.otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP/HTTP collector (overrides OTEL_EXPORTER_OTLP_ENDPOINT)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	entity, err := domain.ValidateEntityType(args[0])
	if err != nil {
		return exitError(2, err)
	}

	cleanup := cmd.Flags().Changed("delete-import-tag")
	opts := appctx.Options{NeedsStore: true, NeedsDestination: !migrateFlags.dryRun || cleanup}
	if cmd.Flags().Changed("reset") {
		opts.NeedsDestination = false
	}
	app, err := appctx.Bootstrap(cmd, opts)
	if err != nil {
		return exitError(1, err)
	}
	defer app.Close()

	ctx, stop := interruptible(cmd)
	defer stop()

	cfg := streamConfig(cmd, app, entity)

	switch {
	case cmd.Flags().Changed("reset"):
		return resetStream(ctx, cmd, app, cfg)
	case cleanup:
		return deleteImportTag(ctx, cmd, app, cfg)
	}

	if app.Config.MetricsAddr != "" {
		srv := app.Metrics.Serve(app.Config.MetricsAddr, app.Log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	endpoint := app.Config.OTLPEndpoint
	if migrateFlags.otlpEndpoint != "" {
		endpoint = migrateFlags.otlpEndpoint
	}
	tp, err := tracing.Init(ctx, endpoint)
	if err != nil {
		return exitError(1, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			app.Log.WithError(err).Warn("failed to flush traces")
		}
	}()

	rules := schema.DefaultFieldRules
	if app.Config.FieldRules != "" {
		if rules, err = schema.LoadFieldRules(app.Config.FieldRules); err != nil {
			return exitError(1, err)
		}
	}

	engine := migrate.NewEngine(app.Store, app.Destination(),
		migrate.WithLogger(app.Log),
		migrate.WithRules(rules),
		migrate.WithTracer(tp.Tracer),
		migrate.WithMetrics(app.Metrics),
	)

	summary, runErr := engine.Run(ctx, cfg)
	if summary.Stream != "" {
		r, err := app.Renderer(cmd)
		if err != nil {
			return exitError(1, err)
		}
		if err := r.Summary(summary); err != nil {
			return exitError(1, err)
		}
	}
	if runErr != nil {
		return exitError(1, runErr)
	}
	return nil
}

// streamConfig merges flags and configuration into one stream invocation
func streamConfig(cmd *cobra.Command, app *appctx.App, entity domain.EntityType) migrate.StreamConfig {
	resume, _ := cmd.Flags().GetBool("resume")
	cfg := migrate.StreamConfig{
		Entity:         entity,
		StreamID:       migrateFlags.checkpointID,
		Resume:         resume && !migrateFlags.noResume,
		Limit:          migrateFlags.limit,
		DryRun:         migrateFlags.dryRun,
		PageSize:       migrateFlags.pageSize,
		DealStage:      app.Config.DealStage,
		Pipeline:       app.Config.Pipeline,
		CalendarObject: domain.ObjectType(app.Config.CalendarObject),
		ImportTag:      app.Config.ImportTag,
	}
	if migrateFlags.collection != "" {
		cfg.Collection = domain.EntityType(migrateFlags.collection)
	}
	return cfg
}

func resetStream(ctx context.Context, cmd *cobra.Command, app *appctx.App, cfg migrate.StreamConfig) error {
	entity := cfg.Entity
	if migrateFlags.reset != flagUseConfigured && migrateFlags.reset != "" {
		var err error
		if entity, err = domain.ValidateEntityType(migrateFlags.reset); err != nil {
			return exitError(2, err)
		}
	}
	types, err := resetObjectTypes(entity, app.Config.CalendarObject)
	if err != nil {
		return exitError(2, err)
	}

	var total domain.ResetResult
	for _, objectType := range types {
		res, err := app.Store.ResetStream(ctx, entity, objectType, migrateFlags.checkpointID)
		if err != nil {
			return exitError(1, fmt.Errorf("failed to reset %s: %w", entity, err))
		}
		total.Mappings += res.Mappings
		total.Failures += res.Failures
		total.Checkpoints += res.Checkpoints
	}
	app.Log.WithFields(logrus.Fields{
		"stream":      entity,
		"mappings":    total.Mappings,
		"failures":    total.Failures,
		"checkpoints": total.Checkpoints,
	}).Info("stream reset")

	r, err := app.Renderer(cmd)
	if err != nil {
		return exitError(1, err)
	}
	if ok, err := r.Structured(total); ok {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset %s: %d mapping(s), %d failure(s), %d checkpoint(s) removed\n",
		entity, total.Mappings, total.Failures, total.Checkpoints)
	return nil
}

func deleteImportTag(ctx context.Context, cmd *cobra.Command, app *appctx.App, cfg migrate.StreamConfig) error {
	tag := migrateFlags.deleteImportTag
	if tag == flagUseConfigured {
		tag = app.Config.ImportTag
	}
	types := migrate.ObjectTypesFor(cfg)
	if len(types) == 0 {
		return exitError(2, fmt.Errorf("no destination object type for %s", cfg.Entity))
	}

	archived, err := migrate.DeleteImportTag(ctx, app.Destination(), tag, types, app.Log.WithField("stream", cfg.Entity))
	if err != nil {
		return exitError(1, err)
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return exitError(1, err)
	}
	if ok, err := r.Structured(archived); ok {
		return err
	}
	rows := make([][]string, 0, len(archived))
	for objectType, n := range archived {
		rows = append(rows, []string{string(objectType), fmt.Sprint(n)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return r.RenderTable([]string{"OBJECT TYPE", "ARCHIVED"}, rows)
}
