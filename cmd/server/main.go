package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/autobill/internal/api"
	"github.com/flexprice/autobill/internal/api/cron"
	v1 "github.com/flexprice/autobill/internal/api/v1"
	"github.com/flexprice/autobill/internal/config"
	"github.com/flexprice/autobill/internal/lock"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/metrics"
	"github.com/flexprice/autobill/internal/postgres"
	"github.com/flexprice/autobill/internal/repository"
	"github.com/flexprice/autobill/internal/scheduler"
	"github.com/flexprice/autobill/internal/sentry"
	"github.com/flexprice/autobill/internal/service"
	"github.com/flexprice/autobill/internal/types"
	"github.com/flexprice/autobill/internal/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// @title Autobill API
// @version 1.0
// @description Recurring subscription billing scheduler
// @BasePath /v1
// @schemes http https

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			lock.NewLocker,
		),
		sentry.Module(),
		metrics.Module(),
		postgres.Module(),
		repository.Module(),
		service.Module(),
		scheduler.Module(),
	)

	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			validator.NewValidator,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	db *postgres.DB,
	schedulerService service.SchedulerService,
	billingRecordService service.BillingRecordService,
	customerService service.CustomerService,
) api.Handlers {
	return api.Handlers{
		Health:        v1.NewHealthHandler(db, logger),
		BillingRecord: v1.NewBillingRecordHandler(billingRecordService, logger),
		Customer:      v1.NewCustomerHandler(customerService, billingRecordService, logger),
		CronBilling:   cron.NewBillingHandler(schedulerService, cfg, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, m *metrics.Metrics) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, m)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	s *scheduler.Scheduler,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		s.RegisterWithLifecycle(lc)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeScheduler:
		s.RegisterWithLifecycle(lc)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}
