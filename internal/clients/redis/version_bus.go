package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/promptlab-backend/internal/domain"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

const DefaultChannel = "promptlab.versions"

type VersionBusConfig struct {
	Addr    string
	Channel string
}

// VersionEventBus fans committed-version events out over redis pub/sub.
type VersionEventBus interface {
	Publish(ctx context.Context, ev types.VersionEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev types.VersionEvent)) error
	Client() *goredis.Client
	Close() error
}

type versionBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewVersionEventBus(log *logger.Logger, cfg VersionBusConfig) (VersionEventBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(cfg.Channel)
	if ch == "" {
		ch = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &versionBus{
		log:     log.With("client", "RedisVersionBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *versionBus) Publish(ctx context.Context, ev types.VersionEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis version bus not initialized")
	}
	raw, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *versionBus) StartForwarder(ctx context.Context, onEvent func(ev types.VersionEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis version bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				ev, err := DecodeEvent([]byte(m.Payload))
				if err != nil {
					b.log.Warn("bad redis version payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *versionBus) Client() *goredis.Client {
	if b == nil {
		return nil
	}
	return b.rdb
}

func (b *versionBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func EncodeEvent(ev types.VersionEvent) ([]byte, error) {
	if ev.Type == "" {
		ev.Type = types.EventVersionCommitted
	}
	return json.Marshal(ev)
}

func DecodeEvent(raw []byte) (types.VersionEvent, error) {
	var ev types.VersionEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return types.VersionEvent{}, err
	}
	if ev.Type != types.EventVersionCommitted {
		return types.VersionEvent{}, fmt.Errorf("unexpected event type %q", ev.Type)
	}
	return ev, nil
}
