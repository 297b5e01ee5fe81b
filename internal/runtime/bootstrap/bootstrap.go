// Package bootstrap turns a Config into a ready Processor: it builds the
// logger, the storage backend, the notification publisher and the metrics
// collectors, and tracks what has to be closed afterwards.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/drblury/alertflow/internal/runtime/config"
	"github.com/drblury/alertflow/internal/runtime/enricher"
	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
	"github.com/drblury/alertflow/internal/runtime/ids"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/notify"
	"github.com/drblury/alertflow/internal/runtime/parser"
	"github.com/drblury/alertflow/internal/runtime/pipeline"
	"github.com/drblury/alertflow/internal/runtime/storage"
	"github.com/drblury/alertflow/transport"

	_ "github.com/drblury/alertflow/internal/runtime/storage/dynamodb"
	_ "github.com/drblury/alertflow/internal/runtime/storage/memory"
	_ "github.com/drblury/alertflow/internal/runtime/storage/postgres"
	_ "github.com/drblury/alertflow/internal/runtime/storage/redis"
	_ "github.com/drblury/alertflow/internal/runtime/storage/sqlite"
	_ "github.com/drblury/alertflow/transport/transports"
)

// LogOutput receives the log stream of every App built without an explicit
// logger.
var LogOutput io.Writer = os.Stderr

// Options tweak how an App is assembled.
type Options struct {
	// Logger overrides the logger derived from LOG_LEVEL and LOG_FORMAT.
	Logger logging.ServiceLogger
	// Hooks are appended to the built-in logging, metrics and stats hooks.
	Hooks pipeline.RecordHooks
	// Publisher replaces the configured notification backend.
	Publisher notify.Publisher
	// Store replaces the configured storage backend. The App does not close it.
	Store storage.Store
}

// App holds everything one process needs to handle invocations.
type App struct {
	Config    *config.Config
	Logger    logging.ServiceLogger
	Store     storage.Store
	Publisher notify.Publisher
	Processor *pipeline.Processor
	Stats     *pipeline.Stats
	// Metrics and Registry are nil unless METRICS_ENABLED is set.
	Metrics  *pipeline.Metrics
	Registry *prometheus.Registry

	closers []func() error
}

// NewLogger builds the slog backed logger configured by cfg.
func NewLogger(cfg *config.Config) (logging.ServiceLogger, error) {
	if cfg == nil {
		return nil, errspkg.ErrConfigRequired
	}
	return logging.New(cfg.LogLevel, cfg.LogFormat, LogOutput)
}

// New assembles an App. On error everything built so far is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (app *App, err error) {
	if cfg == nil {
		return nil, errspkg.ErrConfigRequired
	}

	app = &App{Config: cfg, Logger: opts.Logger, Stats: pipeline.NewStats()}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	if app.Logger == nil {
		if app.Logger, err = NewLogger(cfg); err != nil {
			return nil, err
		}
	}
	app.Logger.Info("Starting alertflow", logging.LogFields{"config": cfg.String()})

	if cfg.MetricsEnabled {
		app.Registry = prometheus.NewRegistry()
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.Metrics = pipeline.NewMetrics(app.Registry)
		if err = app.Metrics.Register(); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	app.Store = opts.Store
	if app.Store == nil {
		if app.Store, err = storage.Build(ctx, cfg, app.Logger); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, app.Store.Close)
	}

	app.Publisher = opts.Publisher
	if app.Publisher == nil {
		if app.Publisher, err = app.buildPublisher(ctx); err != nil {
			return nil, err
		}
	}

	gen, err := ids.ForScheme(cfg.IDScheme)
	if err != nil {
		return nil, err
	}

	app.Processor, err = pipeline.NewProcessor(pipeline.Dependencies{
		Sink:      app.Store,
		Publisher: app.Publisher,
		Parser:    parser.New(parser.WithLogger(app.Logger)),
		Enricher:  enricher.New(enricher.WithIDGenerator(gen)),
		Logger:    app.Logger,
		Hooks:     opts.Hooks,
		Metrics:   app.Metrics,
		Stats:     app.Stats,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) buildPublisher(ctx context.Context) (notify.Publisher, error) {
	backend := a.Config.NotificationBackend
	if backend == "" || backend == config.NotifySNS {
		return notify.NewSNSPublisherFromConfig(ctx, a.Config, a.Logger)
	}

	built, err := transport.Build(ctx, a.Config, logging.NewWatermillAdapter(a.Logger))
	if err != nil {
		return nil, err
	}
	if built.Subscriber != nil {
		a.closers = append(a.closers, built.Subscriber.Close)
	}
	pub, err := notify.NewTransportPublisher(backend, built.Publisher, a.Config.NotificationTopic, a.Logger)
	if err != nil {
		if built.Publisher != nil {
			err = errors.Join(err, built.Publisher.Close())
		}
		return nil, err
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// Close releases backends in reverse order of creation.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
