package observability

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *GaugeVec

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	versionsCommitted *CounterVec
	eventsPublished   *CounterVec

	dbPool  *GaugeVec
	redisUp *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// NewMetrics builds an unregistered metrics set. Most callers want Init.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("promptlab_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"promptlab_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight: NewGaugeVec("promptlab_api_inflight_requests", "In-flight API requests.", nil),

		aggregateOps: NewCounterVec("promptlab_aggregate_operations_total", "Aggregate write operations by operation/status.", []string{"operation", "status"}),
		aggregateLatency: NewHistogramVec(
			"promptlab_aggregate_operation_duration_seconds",
			"Aggregate write latency in seconds by operation/status.",
			[]string{"operation", "status"},
			nil,
		),
		aggregateConflicts: NewCounterVec("promptlab_aggregate_conflicts_total", "Aggregate writes rejected because a concurrent writer committed first.", []string{"operation"}),
		aggregateRetries:   NewCounterVec("promptlab_aggregate_retryable_total", "Aggregate writes that failed with a transient error.", []string{"operation"}),

		versionsCommitted: NewCounterVec("promptlab_versions_committed_total", "Prompt versions committed by kind.", []string{"kind"}),
		eventsPublished:   NewCounterVec("promptlab_version_events_total", "Version events handed to the event bus by status.", []string{"status"}),

		dbPool:  NewGaugeVec("promptlab_db_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp: NewGaugeVec("promptlab_redis_up", "Whether the last redis ping succeeded.", nil),
	}
}

// Init returns the process-wide metrics set, or nil when metrics are disabled.
// Every Metrics method is nil-safe.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func Current() *Metrics {
	return instance
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.aggregateOps,
		m.aggregateLatency,
		m.aggregateConflicts,
		m.aggregateRetries,
		m.versionsCommitted,
		m.eventsPublished,
		m.dbPool,
		m.redisUp,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveAggregateOperation(operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Inc(operation, status)
	m.aggregateLatency.Observe(dur.Seconds(), operation, status)
}

func (m *Metrics) IncAggregateConflict(operation string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(operation)
}

func (m *Metrics) IncAggregateRetry(operation string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(operation)
}

// IncVersionCommitted counts committed versions; kind is create, update or rollback.
func (m *Metrics) IncVersionCommitted(kind string) {
	if m == nil {
		return
	}
	m.versionsCommitted.Inc(strings.TrimSpace(kind))
}

func (m *Metrics) IncVersionEvent(status string) {
	if m == nil {
		return
	}
	m.eventsPublished.Inc(strings.TrimSpace(status))
}

// AggregateConflicts returns the conflict count for one operation.
func (m *Metrics) AggregateConflicts(operation string) float64 {
	if m == nil {
		return 0
	}
	return m.aggregateConflicts.Value(operation)
}

const defaultScrapeInterval = 10 * time.Second

// StartDBPoolCollector samples database/sql pool stats until ctx is done.
func (m *Metrics) StartDBPoolCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = defaultScrapeInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				m.recordPoolStats(sqlDB.Stats())
			}
		}
	}()
}

func (m *Metrics) recordPoolStats(stats sql.DBStats) {
	m.dbPool.Set(float64(stats.OpenConnections), "open_connections")
	m.dbPool.Set(float64(stats.InUse), "in_use")
	m.dbPool.Set(float64(stats.Idle), "idle")
	m.dbPool.Set(float64(stats.WaitCount), "wait_count")
	m.dbPool.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	m.dbPool.Set(float64(stats.MaxOpenConnections), "max_open_connections")
}

// StartRedisCollector pings the event bus client until ctx is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = defaultScrapeInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}
