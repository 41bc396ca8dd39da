package app

import (
	"github.com/yungbote/promptlab-backend/internal/http"
	httpH "github.com/yungbote/promptlab-backend/internal/http/handlers"
	"github.com/yungbote/promptlab-backend/internal/observability"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

type Handlers struct {
	Health        *httpH.HealthHandler
	PromptVersion *httpH.PromptVersionHandler
}

func wireHandlers(log *logger.Logger, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(cfg.AppVersion),
		PromptVersion: httpH.NewPromptVersionHandler(log, services.PromptVersion, httpH.WriteRetry{
			Attempts: cfg.PromptWriteRetries,
			Interval: cfg.PromptWriteRetryInterval,
		}),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *http.Server {
	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.OtelServiceName
	}
	return http.NewServer(http.RouterConfig{
		PromptVersionHandler: handlers.PromptVersion,
		HealthHandler:        handlers.Health,
		Log:                  log,
		Metrics:              metrics,
		CORSOrigins:          cfg.CORSOrigins,
		ServiceName:          serviceName,
	})
}
