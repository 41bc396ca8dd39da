package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/promptlab-backend/internal/observability"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

// Hooks receives one ObserveOperation per aggregate write, plus a conflict or
// retry signal when the write lost a race or hit a transient failure.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type observabilityHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks creates aggregate hooks backed by observability metrics.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return &observabilityHooks{metrics: metrics}
}

func (h *observabilityHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(strings.TrimSpace(name), strings.TrimSpace(status), dur)
}

func (h *observabilityHooks) IncConflict(name string) {
	h.metrics.IncAggregateConflict(strings.TrimSpace(name))
}

func (h *observabilityHooks) IncRetry(name string) {
	h.metrics.IncAggregateRetry(strings.TrimSpace(name))
}

type loggingHooks struct {
	log       *logger.Logger
	slowAfter time.Duration
}

// NewLoggingHooks logs lost races and writes slower than slowAfter.
// slowAfter <= 0 disables slow-write logging.
func NewLoggingHooks(log *logger.Logger, slowAfter time.Duration) Hooks {
	if log == nil {
		return noopHooks{}
	}
	return &loggingHooks{log: log.With("component", "AggregateHooks"), slowAfter: slowAfter}
}

func (h *loggingHooks) ObserveOperation(name, status string, dur time.Duration) {
	if h.slowAfter > 0 && dur >= h.slowAfter {
		h.log.Warn("slow aggregate write", "op", name, "status", status, "duration_ms", dur.Milliseconds())
	}
}

func (h *loggingHooks) IncConflict(name string) {
	h.log.Info("aggregate write lost race", "op", name)
}

func (h *loggingHooks) IncRetry(name string) {
	h.log.Info("aggregate write hit transient failure", "op", name)
}

type chainHooks []Hooks

// ChainHooks fans every signal out to hs in order. Nil entries are skipped.
func ChainHooks(hs ...Hooks) Hooks {
	out := make(chainHooks, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			out = append(out, h)
		}
	}
	switch len(out) {
	case 0:
		return noopHooks{}
	case 1:
		return out[0]
	}
	return out
}

func (c chainHooks) ObserveOperation(name, status string, dur time.Duration) {
	for _, h := range c {
		h.ObserveOperation(name, status, dur)
	}
}

func (c chainHooks) IncConflict(name string) {
	for _, h := range c {
		h.IncConflict(name)
	}
}

func (c chainHooks) IncRetry(name string) {
	for _, h := range c {
		h.IncRetry(name)
	}
}
