package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/retail/backend/internal/infrastructure/config"
	"github.com/retail/backend/internal/infrastructure/logger"
	"github.com/retail/backend/internal/interfaces/http/dto"
	"github.com/retail/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig configures the gin engine and its middleware chain
type EngineConfig struct {
	ServiceName      string
	HTTP             config.HTTPConfig
	TracingEnabled   bool
	ProfilingEnabled bool
	// Meter records HTTP metrics; nil disables them
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewEngine creates a gin engine with the standard middleware chain and
// the JSON envelope for unknown routes.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	metrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled),
		middleware.SpanAttributes(),
		logger.GinMiddleware(cfg.Logger),
		logger.Recovery(cfg.Logger),
		middleware.Secure(),
		middleware.CORS(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		metrics,
		middleware.Profiling(cfg.ProfilingEnabled),
	)

	engine.NoRoute(func(c *gin.Context) {
		resp := dto.NewErrorResponse(dto.ErrCodeRouteNotFound, "No route for "+c.Request.Method+" "+c.Request.URL.Path)
		resp.Error.RequestID = c.GetString(middleware.RequestIDKey)
		c.JSON(http.StatusNotFound, resp)
	})
	return engine, nil
}
