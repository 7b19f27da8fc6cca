package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sandevgo/tuskmem/internal/cache"
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/metrics"
	"github.com/sandevgo/tuskmem/internal/service/orchestrator"
	"github.com/sandevgo/tuskmem/internal/service/poller"
	"github.com/sandevgo/tuskmem/internal/sink"
	"github.com/sandevgo/tuskmem/internal/sources"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
	"github.com/sandevgo/tuskmem/internal/transport/api"
	natstransport "github.com/sandevgo/tuskmem/internal/transport/nats"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/srv"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.AppConfig
	db       *sql.DB
	memories *sqlite.MemoriesRepo
	seen     *sqlite.SeenRepo
	metrics  *metrics.Metrics
	sources  []*sources.Dir
	nats     *natstransport.Client
}

func newApp(ctx context.Context) (*app, error) {
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, fmt.Errorf("failed to init env: %w", err)
	}

	cfg, err := config.ParseAppConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to parse app config: %w", err)
	}

	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &app{
		cfg:      cfg,
		db:       db,
		memories: sqlite.NewMemoriesRepo(db),
		seen:     sqlite.NewSeenRepo(db),
		metrics:  metrics.New(),
	}, nil
}

func (a *app) loadSources(only string) error {
	cfgs, err := config.LoadSources(a.cfg.GetSourcesPath())
	if err != nil {
		return err
	}
	if only != "" {
		var picked []core.SourceConfig
		for _, c := range cfgs {
			if c.Name == only {
				picked = append(picked, c)
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("source %q is not configured in %s", only, a.cfg.GetSourcesPath())
		}
		cfgs = picked
	}

	dirs, err := sources.FromConfigs(cfgs)
	if err != nil {
		return err
	}
	a.sources = dirs
	return nil
}

// writers builds the configured sinks. The NATS client is connected lazily.
func (a *app) writers(ctx context.Context) ([]sink.Writer, error) {
	var writers []sink.Writer
	for _, name := range a.cfg.Sinks {
		switch name {
		case config.SinkSQLite:
			writers = append(writers, sink.NewStore(a.memories))
		case config.SinkMarkdown:
			writers = append(writers, sink.NewMarkdownLog(a.cfg.GetConversationLogPath()))
		case config.SinkNATS:
			client, err := a.natsClient(ctx)
			if err != nil {
				return nil, err
			}
			writers = append(writers, sink.NewPublisher(client, config.NewNATSConfig(ctx).MemorySubject))
		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("no sinks configured, set TUSKMEM_SINKS")
	}
	return writers, nil
}

func (a *app) natsClient(ctx context.Context) (*natstransport.Client, error) {
	if a.nats != nil {
		return a.nats, nil
	}
	client, err := natstransport.NewClient(ctx, config.NewNATSConfig(ctx))
	if err != nil {
		return nil, err
	}
	a.nats = client
	return client, nil
}

func (a *app) seenSet() core.SeenSet {
	if a.cfg.IsSeenPersisted() {
		return poller.NewRepoSeen(a.seen)
	}
	return poller.NewMemorySeen()
}

// pollers builds one poller per source, each capturing into
// <cache>/<source> before analysis.
func (a *app) pollers(ctx context.Context, interval time.Duration, extra ...poller.Option) ([]*poller.Poller, error) {
	writers, err := a.writers(ctx)
	if err != nil {
		return nil, err
	}
	out := sink.NewMulti(writers, sink.WithMetrics(a.metrics))
	orch := orchestrator.New()
	if interval <= 0 {
		interval = a.cfg.GetPollInterval()
	}

	pollers := make([]*poller.Poller, 0, len(a.sources))
	for _, src := range a.sources {
		opts := append([]poller.Option{
			poller.WithSeen(a.seenSet()),
			poller.WithCapture(cache.NewWriter(src, filepath.Join(a.cfg.GetCacheDir(), src.Name()))),
			poller.WithMetrics(a.metrics),
			poller.WithInterval(interval),
		}, extra...)
		pollers = append(pollers, poller.New(src, orch, out, opts...))
	}
	return pollers, nil
}

func (a *app) Close() error {
	if a.nats != nil {
		a.nats.Close()
	}
	return a.db.Close()
}

// NewServices wires the daemon: pollers first, then the optional watcher,
// bus listener and HTTP API. Shutdown runs in reverse order.
func NewServices(ctx context.Context, interval time.Duration) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	a, err := newApp(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize")
	}
	services = append(services, srv.NewCleanup("storage", a.Close))

	if err := a.loadSources(""); err != nil {
		logger.Fatal().Err(err).Msg("failed to load sources")
	}

	pollers, err := a.pollers(ctx, interval)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pollers")
	}
	for _, p := range pollers {
		services = append(services, p)
	}

	if a.cfg.Watch {
		for i, p := range pollers {
			services = append(services, poller.NewWatcher(p, a.sources[i].Root()))
		}
	}

	if a.cfg.HasSink(config.SinkNATS) {
		client, err := a.natsClient(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		targets := make([]natstransport.Target, 0, len(pollers))
		for _, p := range pollers {
			targets = append(targets, p)
		}
		services = append(services, natstransport.NewCaptureListener(client, config.NewNATSConfig(ctx).CaptureSubject, targets...))
	}

	if a.cfg.EnableAPI {
		targets := make([]api.Target, 0, len(pollers))
		for _, p := range pollers {
			targets = append(targets, p)
		}
		server := api.NewServer(config.NewAPIConfig(ctx).Port, a.memories,
			api.WithMetrics(a.metrics),
			api.WithTargets(targets...),
		)
		services = append(services, server)
	}

	return services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
