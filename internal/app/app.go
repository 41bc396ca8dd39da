package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/yungbote/promptlab-backend/internal/data/db"
	types "github.com/yungbote/promptlab-backend/internal/domain"
	"github.com/yungbote/promptlab-backend/internal/http"
	"github.com/yungbote/promptlab-backend/internal/observability"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

const collectorInterval = 15 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *db.Service
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	Server   *http.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel())
	metrics := observability.Init(log, cfg.MetricsEnabled)

	dbs, err := db.NewService(cfg.DB(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(dbs.DB(), log)
	serviceset := wireServices(dbs.DB(), log, reposet, clients, metrics)
	handlerset := wireHandlers(log, cfg, serviceset)
	server := wireServer(log, cfg, handlerset, metrics)

	return &App{
		Log:          log,
		DB:           dbs,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background collectors and the version event tail.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Metrics.StartDBPoolCollector(ctx, a.Log, a.DB.DB(), collectorInterval)

	if bus := a.Clients.VersionBus; bus != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, bus.Client(), collectorInterval)
		tailLog := a.Log.With("component", "VersionEventTail")
		err := bus.StartForwarder(ctx, func(ev types.VersionEvent) {
			a.Metrics.IncVersionEvent("received")
			tailLog.Debug("version event",
				"prompt_id", ev.PromptID,
				"version_number", ev.VersionNumber,
				"kind", ev.Kind,
			)
		})
		if err != nil {
			return fmt.Errorf("start version event tail: %w", err)
		}
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.Addr())
	return a.Server.Run(a.Cfg.Addr())
}

// Close stops the server and releases every resource, returning all failures.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var result *multierror.Error
	if err := a.Server.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if err := a.Clients.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close clients: %w", err))
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close database: %w", err))
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return result.ErrorOrNil()
}
