package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/promptlab-backend/internal/clients/redis"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

type Clients struct {
	VersionBus redis.VersionEventBus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis is optional; without it committed versions are not fanned out.
	var bus redis.VersionEventBus
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		b, err := redis.NewVersionEventBus(log, redis.VersionBusConfig{
			Addr:    cfg.RedisAddr,
			Channel: cfg.RedisChannel,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis version bus: %w", err)
		}
		bus = b
	}
	return Clients{VersionBus: bus}, nil
}

func (c *Clients) Close() error {
	if c == nil || c.VersionBus == nil {
		return nil
	}
	return c.VersionBus.Close()
}
