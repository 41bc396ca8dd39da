package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/promptlab-backend/internal/http/handlers"
	httpMW "github.com/yungbote/promptlab-backend/internal/http/middleware"
	"github.com/yungbote/promptlab-backend/internal/observability"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

type RouterConfig struct {
	PromptVersionHandler *httpH.PromptVersionHandler
	HealthHandler        *httpH.HealthHandler

	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	ServiceName string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, "/metrics", "/healthcheck"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Metrics; 503 when disabled.
	r.GET("/metrics", func(c *gin.Context) { cfg.Metrics.WriteHTTP(c.Writer, c.Request) })

	api := r.Group("/api")
	{
		// Prompts
		if h := cfg.PromptVersionHandler; h != nil {
			api.GET("/prompts", h.ListPrompts)
			api.POST("/prompts", h.CreatePrompt)
			api.GET("/prompts/:id", h.GetPrompt)
			api.PUT("/prompts/:id", h.UpdatePrompt)
			api.DELETE("/prompts/:id", h.DeletePrompt)

			// Versions
			api.GET("/prompts/:id/versions", h.ListVersions)
			api.GET("/prompts/:id/versions/current", h.GetCurrentVersion)
			api.GET("/prompts/:id/versions/:number", h.GetVersion)
			api.POST("/prompts/:id/versions/:number/rollback", h.RollbackVersion)
		}
	}

	return r
}
