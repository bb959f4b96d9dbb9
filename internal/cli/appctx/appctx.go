// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup and staging store opening
// to reduce boilerplate across commands.
package appctx

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/config"
	"github.com/lherron/ghl2hs/internal/db"
	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/ghl"
	"github.com/lherron/ghl2hs/internal/hubspot"
	"github.com/lherron/ghl2hs/internal/logger"
	"github.com/lherron/ghl2hs/internal/metrics"
	"github.com/lherron/ghl2hs/internal/migrate"
	"github.com/lherron/ghl2hs/internal/mongostore"
	"github.com/lherron/ghl2hs/internal/render"
	"github.com/lherron/ghl2hs/internal/store"
)

// Backend is the staging store behind every command, SQLite or MongoDB
type Backend interface {
	migrate.Staging
	UpsertDocument(ctx context.Context, collection domain.EntityType, doc domain.Document) error
	CountDocuments(ctx context.Context, collection domain.EntityType) (int64, error)
	ListFailures(ctx context.Context, entity domain.EntityType, limit int) ([]domain.FailureRecord, error)
	ListMappings(ctx context.Context, objectType domain.ObjectType, limit int) ([]domain.IdentityMapping, error)
	ResetStream(ctx context.Context, entity domain.EntityType, objectType domain.ObjectType, streamID string) (domain.ResetResult, error)
	Status(ctx context.Context, entity domain.EntityType, objectType domain.ObjectType) (*domain.StreamStatus, error)
	Close(ctx context.Context) error
}

var (
	_ Backend = (*store.Store)(nil)
	_ Backend = (*mongostore.Store)(nil)
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration with flag overrides applied
	Config *config.Config

	// Log is the process logger
	Log *logrus.Logger

	// Store is the opened staging store (nil if NeedsStore is false)
	Store Backend

	// Metrics counts record outcomes and destination calls
	Metrics *metrics.Recorder
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Store.Close(ctx); err != nil {
			a.Log.WithError(err).Warn("failed to close staging store")
		}
		a.Store = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsStore indicates whether to open the staging store.
	NeedsStore bool

	// NeedsDestination requires a destination token before anything runs.
	NeedsDestination bool
}

// DefaultOptions returns default options (store required, no destination).
func DefaultOptions() Options {
	return Options{NeedsStore: true}
}

// WithDestination returns options that require both store and destination.
func WithDestination() Options {
	return Options{NeedsStore: true, NeedsDestination: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The store is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(opts.NeedsDestination); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile, Output: cmd.ErrOrStderr()})
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	if opts.NeedsStore {
		backend, err := OpenBackend(cmd.Context(), cfg)
		if err != nil {
			return nil, err
		}
		app.Store = backend
	}

	return app, nil
}

// OpenBackend opens the staging store selected by cfg. A SQLite database
// with pending migrations is refused.
func OpenBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch cfg.Backend {
	case config.BackendMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		return s, nil
	default:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.RequiresMigrationError(); err != nil {
			database.Close()
			return nil, err
		}
		return store.New(database), nil
	}
}

// Destination builds the destination client, counting calls in app metrics
func (a *App) Destination() *hubspot.Client {
	return hubspot.New(a.Config.HubSpotToken,
		hubspot.WithBaseURL(a.Config.HubSpotBaseURL),
		hubspot.WithDelay(a.Config.RequestDelay),
		hubspot.WithObserver(a.Metrics.ObserveCall),
	)
}

// Source builds the source API client
func (a *App) Source() (*ghl.Client, error) {
	if err := a.Config.ValidateSource(); err != nil {
		return nil, err
	}
	return ghl.New(a.Config.GHLToken, a.Config.GHLLocationID,
		ghl.WithBaseURL(a.Config.GHLBaseURL),
		ghl.WithDelay(a.Config.RequestDelay),
	), nil
}

// Renderer builds an output renderer honoring --json and the configured format
func (a *App) Renderer(cmd *cobra.Command) (*render.Renderer, error) {
	format, err := render.ParseFormat(a.Config.Output)
	if err != nil {
		return nil, err
	}
	if f := cmd.Flag("json"); f != nil && f.Value.String() == "true" {
		format = render.FormatJSON
	}
	porcelain := false
	if f := cmd.Flag("porcelain"); f != nil && f.Value.String() == "true" {
		porcelain = true
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format, Porcelain: porcelain}), nil
}

// applyFlags overrides config values with flags the user set explicitly
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	str := func(name string, dst *string) {
		if f := cmd.Flag(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	str("db", &cfg.DBPath)
	str("backend", &cfg.Backend)
	str("mongo-uri", &cfg.MongoURI)
	str("mongo-db", &cfg.MongoDB)
	str("token", &cfg.HubSpotToken)
	str("dealstage", &cfg.DealStage)
	str("pipeline", &cfg.Pipeline)
	str("calendar-object", &cfg.CalendarObject)
	str("import-tag", &cfg.ImportTag)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("output", &cfg.Output)
	str("metrics-addr", &cfg.MetricsAddr)

	if f := cmd.Flag("delay"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.RequestDelay = d
		}
	}
}
