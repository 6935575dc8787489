// Package router 提供路由注册
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/interfaces/http/handler"
	"llm-sentinel-api/internal/interfaces/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	cfg          *config.Config
	health       *handler.HealthHandler
	call         *handler.CallHandler
	eval         *handler.EvalHandler
	analytics    *handler.AnalyticsHandler
	metrics      *handler.MetricsHandler
	notification *handler.NotificationHandler
	knowledge    *handler.KnowledgeHandler
	limiter      middleware.RateLimiter
}

// NewRouter 创建路由器
func NewRouter(
	cfg *config.Config,
	health *handler.HealthHandler,
	call *handler.CallHandler,
	eval *handler.EvalHandler,
	analytics *handler.AnalyticsHandler,
	metrics *handler.MetricsHandler,
	notification *handler.NotificationHandler,
	knowledge *handler.KnowledgeHandler,
	limiter middleware.RateLimiter,
) *Router {
	return &Router{
		cfg:          cfg,
		health:       health,
		call:         call,
		eval:         eval,
		analytics:    analytics,
		metrics:      metrics,
		notification: notification,
		knowledge:    knowledge,
		limiter:      limiter,
	}
}

// Setup 构建 gin 引擎并注册中间件与路由
func (r *Router) Setup() *gin.Engine {
	if r.cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))
	if r.cfg.Observability.Tracing.Enabled {
		engine.Use(middleware.Trace(r.cfg.App.Name))
		engine.Use(middleware.TraceContext())
	}
	if r.cfg.Observability.Metrics.Enabled {
		engine.Use(middleware.Metrics())
	}

	r.registerRoutes(engine)

	return engine
}

// registerRoutes 注册所有路由
func (r *Router) registerRoutes(engine *gin.Engine) {
	engine.GET("/health", r.health.Health)
	engine.GET("/ready", r.health.Ready)
	engine.GET("/live", r.health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	rateLimit := middleware.RateLimit(&r.cfg.Security.RateLimit, r.limiter)

	v1 := engine.Group("/v1")
	{
		calls := v1.Group("/calls")
		{
			calls.POST("", rateLimit, r.call.Create)
			calls.GET("", r.call.List)
			calls.GET("/:id", r.call.Get)
		}

		evals := v1.Group("/evals")
		{
			evals.POST("/run", rateLimit, r.eval.Run)
			evals.GET("/summary", r.eval.Summary)
		}

		v1.GET("/evaluations/:callId", r.eval.Details)

		analytics := v1.Group("/analytics")
		{
			analytics.GET("/models", r.analytics.Models)
			analytics.GET("/users", r.analytics.Users)
			analytics.GET("/daily", r.analytics.Daily)
		}

		v1.GET("/reports/summary", r.analytics.Report)

		metrics := v1.Group("/metrics")
		{
			metrics.GET("/summary", r.metrics.Summary)
			metrics.GET("/realtime", r.metrics.Realtime)
			metrics.GET("/stream", r.metrics.Stream)
		}

		v1.GET("/notifications", r.notification.Feed)

		v1.POST("/knowledge/search", r.knowledge.Search)
	}
}
