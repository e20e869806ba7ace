package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "insightforge.com/insightforge/internal/configs"
	middleware "insightforge.com/insightforge/internal/http/middlewares"
	"insightforge.com/insightforge/internal/mockai"
)

var mockAICmd = &cobra.Command{
	Use:   "mock-ai",
	Short: "Run a local stand-in for the AI analysis service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		defer func() { _ = logger.Sync() }()

		ttl := time.Duration(cfg.MockAIResultTTLSeconds) * time.Second
		var store mockai.Store = mockai.NewMemoryStore(ttl)
		if cfg.MockAIStore == "redis" {
			client := config.NewRedisClient(cfg.RedisAddr)
			defer client.Close()
			store = mockai.NewRedisStore(client, ttl)
		}

		server := mockai.NewServer(mockai.NewModel("v1.0"), store, mockai.Config{
			Delay:          time.Duration(cfg.MockAIDelayMilliseconds) * time.Millisecond,
			FallbackSecret: cfg.WebhookSecret,
		}, logger)

		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.Use(middleware.Recovery(logger))
		e.Use(middleware.RequestLogger(logger))
		server.Register(e)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			logger.Info("mock AI service listening", zap.String("addr", cfg.MockAIAddr))
			if err := e.Start(cfg.MockAIAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("mock AI service stopped", zap.Error(err))
				stop()
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
		server.Shutdown(shutdownCtx)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(mockAICmd)
}
