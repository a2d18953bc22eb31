// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/dinogen/adapters/clock"
	apihttp "github.com/artpar/dinogen/adapters/http"
	"github.com/artpar/dinogen/adapters/idgen"
	"github.com/artpar/dinogen/adapters/memory"
	"github.com/artpar/dinogen/adapters/metrics"
	"github.com/artpar/dinogen/adapters/remote"
	"github.com/artpar/dinogen/adapters/sqlite"
	"github.com/artpar/dinogen/app"
	"github.com/artpar/dinogen/config"
	"github.com/artpar/dinogen/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Sessions   *app.SessionService

	holder   *config.Holder
	registry *prometheus.Registry
}

// Options controls application initialization.
type Options struct {
	// ConfigPath is a YAML config file. When it does not exist the
	// configuration is read from DINOGEN_* environment variables.
	ConfigPath string

	// Config, when set, is used as is and disables hot reload.
	Config *config.Config

	// Version is reported by /version and /doctor.
	Version string

	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	a := &App{}

	if err := a.loadConfig(opts); err != nil {
		return nil, err
	}
	a.Logger = setupLogger(a.Config.Logging, opts.LogOutput)
	a.Logger.Info().Str("version", opts.Version).Msg("initializing dinogen")

	if a.Config.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.registry)
		a.Logger.Info().Msg("prometheus metrics enabled")
	}

	store, err := a.initStore()
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if err := a.initHTTPServer(store, opts.Version); err != nil {
		a.closeDB()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	if a.holder != nil {
		a.watchConfig()
	}

	return a, nil
}

func (a *App) loadConfig(opts Options) error {
	if opts.Config != nil {
		a.Config = opts.Config
		return nil
	}

	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			h, err := config.NewHolder(opts.ConfigPath)
			if err != nil {
				return err
			}
			a.holder = h
			a.Config = h.Get()
			return nil
		}
	}

	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.Config = cfg
	return nil
}

func (a *App) initStore() (ports.SubmissionStore, error) {
	cfg := a.Config.Database
	if cfg.Driver == "memory" {
		a.Logger.Info().Msg("submission history kept in memory")
		return memory.NewSubmissionStore(), nil
	}

	db, err := sqlite.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.DB = db

	a.Logger.Info().Str("dsn", cfg.DSN).Msg("database initialized")
	return sqlite.NewSubmissionStore(db), nil
}

func (a *App) initHTTPServer(store ports.SubmissionStore, version string) error {
	cfg := a.Config

	client := remote.NewClient(remote.ClientConfig{
		BaseURL:         cfg.Remote.URL,
		APIKey:          cfg.Remote.APIKey,
		Timeout:         cfg.Remote.Timeout,
		MaxIdleConns:    cfg.Remote.MaxIdleConns,
		IdleConnTimeout: cfg.Remote.IdleConnTimeout,
		Headers:         cfg.Remote.Headers,
	})
	catalog := remote.NewCatalogSource(client, cfg.Remote.DataTypesPath)

	var recorder ports.Recorder
	if a.Metrics != nil {
		recorder = a.Metrics
	}

	a.Sessions = app.NewSessionService(app.SessionDeps{
		Catalog:   catalog,
		Generator: remote.NewGenerator(client, cfg.Remote.GeneratePath),
		Store:     store,
		Clock:     clock.Real{},
		IDGen:     idgen.UUID{},
		FieldIDs:  idgen.UUID{Prefix: "fld_"},
		Recorder:  recorder,
		Logger:    a.Logger.With().Str("component", "sessions").Logger(),
	}, sessionConfig(cfg.Generator))

	probes := []apihttp.Probe{{Name: "catalog", Check: catalog.HealthCheck}}
	if a.DB != nil {
		probes = append(probes, apihttp.Probe{Name: "database", Check: a.DB.PingContext})
	}

	routerCfg := apihttp.RouterConfig{
		Metrics:       a.Metrics,
		Version:       version,
		Timeout:       cfg.Server.RequestTimeout,
		EnableOpenAPI: cfg.OpenAPI.Enabled,
		Doctor: apihttp.NewDoctorHandler(version, func() int {
			return len(a.Sessions.List())
		}, probes...),
	}
	if a.registry != nil {
		routerCfg.MetricsHandler = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	}

	router := apihttp.NewRouter(
		apihttp.NewSessionHandler(a.Sessions, a.Logger.With().Str("component", "http").Logger()),
		apihttp.NewHealthHandler(catalog),
		a.Logger,
		routerCfg,
	)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

// watchConfig applies hot-reloadable settings when the config file changes
// or the process receives SIGHUP.
func (a *App) watchConfig() {
	err := a.holder.Watch(a.Logger.With().Str("component", "config").Logger(), config.Hooks{
		Applied: a.applyConfig,
		Failed: func(error) {
			if a.Metrics != nil {
				a.Metrics.ConfigReloadErrors.Inc()
			}
		},
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching disabled, SIGHUP still reloads")
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	a.Sessions.UpdateConfig(sessionConfig(cfg.Generator))

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if a.Metrics != nil {
		a.Metrics.ConfigReloads.Inc()
		a.Metrics.ConfigLastReload.SetToCurrentTime()
	}
}

// Reload re-reads the config file and applies the hot-reloadable settings.
func (a *App) Reload() error {
	if a.holder == nil {
		return fmt.Errorf("reload: no config file")
	}
	return a.holder.Reload()
}

func sessionConfig(g config.GeneratorConfig) app.SessionConfig {
	return app.SessionConfig{
		Format:         g.Format,
		DefaultSamples: g.DefaultSamples,
		MaxSamples:     g.MaxSamples,
		MaxSessions:    g.MaxSessions,
	}
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Str("remote", a.Config.Remote.URL).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the server, the config watchers and closes the database.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.closeDB()

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) closeDB() {
	if a.DB == nil {
		return
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("database close error")
	}
	a.DB = nil
}

// setupLogger builds the root logger from the logging section.
func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
