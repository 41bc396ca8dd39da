package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/promptlab-backend/internal/data/aggregates"
	"github.com/yungbote/promptlab-backend/internal/observability"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
	"github.com/yungbote/promptlab-backend/internal/services"
)

const slowWriteThreshold = 500 * time.Millisecond

type Services struct {
	PromptVersion services.PromptVersionService
}

func wireServices(db *gorm.DB, log *logger.Logger, repos Repos, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	agg := aggregates.NewPromptVersionAggregate(aggregates.PromptVersionAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.ChainHooks(
				aggregates.NewObservabilityHooks(metrics),
				aggregates.NewLoggingHooks(log, slowWriteThreshold),
			),
		},
		Prompts:  repos.Prompt,
		Versions: repos.PromptVersion,
	})

	var publisher services.VersionPublisher
	if clients.VersionBus != nil {
		publisher = clients.VersionBus
	}

	return Services{
		PromptVersion: services.NewPromptVersionService(log, agg, repos.Prompt, repos.PromptVersion, publisher, metrics),
	}
}
