package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	middleware "insightforge.com/insightforge/internal/http/middlewares"
	"insightforge.com/insightforge/internal/http/validators"
)

type RouteConfig struct {
	RateLimitPerMinute int
	WebhookSecret      string
}

func NewServer(logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validators.New()
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestLogger(logger))

	return e
}

func Register(e *echo.Echo, h *Handler, cfg RouteConfig) {
	api := e.Group("/api")

	api.GET("/health", h.Health)
	api.POST("/data/upload", h.Upload, middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))
	api.POST("/analysis/result", h.AnalysisResult, middleware.WebhookSignature(cfg.WebhookSecret))
	api.GET("/tasks/:task_id", h.GetTask)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
