package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "insightforge.com/insightforge/internal/configs"
	httpapi "insightforge.com/insightforge/internal/http"
	repository "insightforge.com/insightforge/internal/repositories"
	"insightforge.com/insightforge/internal/services"
)

var serveWithWorkers bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the HTTP API, the stale task sweeper and, unless disabled, the worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		defer func() { _ = logger.Sync() }()

		if !serveWithWorkers && cfg.QueueDriver == config.QueueDriverMemory {
			return errors.New("--with-workers=false requires a shared queue driver (redis or nats)")
		}

		database := config.NewDatabaseClient(cfg.DBDriver, cfg.DatabaseDSN)
		taskRepo := repository.NewTaskRepository(database)

		q, closeQueue, err := newQueue(cfg)
		if err != nil {
			return err
		}
		defer closeQueue()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var poolService *services.PoolService
		if serveWithWorkers {
			poolService = newPool(cfg, taskRepo, q, logger)
		}

		dispatcher := services.NewDispatcher(taskRepo, q, logger)
		sweeper := services.NewStaleTaskSweeper(
			taskRepo,
			dispatcher,
			time.Duration(cfg.RequeueIntervalSeconds)*time.Second,
			time.Duration(cfg.RequeueStaleSeconds)*time.Second,
			logger,
		)
		sweeper.Start(ctx)

		taskService := services.NewTaskService(taskRepo, dispatcher, logger)

		e := httpapi.NewServer(logger)
		httpapi.Register(e, httpapi.NewHandler(taskService, cfg.AppEnv), httpapi.RouteConfig{
			RateLimitPerMinute: cfg.RateLimit,
			WebhookSecret:      cfg.WebhookSecret,
		})

		go func() {
			logger.Info("HTTP server listening",
				zap.String("addr", cfg.AppAddr),
				zap.String("queue_driver", cfg.QueueDriver),
				zap.Bool("workers", serveWithWorkers),
			)
			if err := e.Start(cfg.AppAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server stopped", zap.Error(err))
				stop()
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown", zap.Error(err))
		}

		sweeper.Stop()
		if poolService != nil {
			poolService.Shutdown(shutdownCtx)
		}

		logger.Info("HTTP server and worker pool shut down gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWorkers, "with-workers", true, "run the worker pool in this process")
	rootCmd.AddCommand(serveCmd)
}
