package http

import (
	"github.com/gin-gonic/gin"
	"github.com/wisdom-oss/service-water-usage-history/internal/config"
	"github.com/wisdom-oss/service-water-usage-history/pkg/metrics"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter wires the usage routes behind guard and the conditional-request
// middleware. A nil guard leaves the routes unprotected.
func NewRouter(handler *Handler, cfg *config.Config, guard gin.HandlerFunc, freshness FreshnessSource) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.Recovery())
	if cfg.Observability.TraceEnabled {
		router.Use(otelgin.Middleware(serviceName))
	}
	router.Use(loggingMiddleware())

	router.GET("/healthz", handler.Healthz)
	if cfg.Observability.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/")
	if guard != nil {
		api.Use(guard)
	}
	api.Use(ConditionalRequest(freshness))

	api.GET("/", handler.Usages)
	api.GET("/consumers/*consumerID", handler.ConsumerUsages)
	api.GET("/municipals/*ars", handler.MunicipalUsages)
	api.GET("/types/*usageTypeID", handler.TypedUsages)

	router.NoRoute(func(c *gin.Context) { abortWith(c, errRouteNotFound) })
	router.NoMethod(func(c *gin.Context) { abortWith(c, errMethodNotAllowed) })

	return router
}
