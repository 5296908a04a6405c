package api

import (
	"github.com/flexprice/autobill/internal/api/cron"
	v1 "github.com/flexprice/autobill/internal/api/v1"
	"github.com/flexprice/autobill/internal/config"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/metrics"
	"github.com/flexprice/autobill/internal/rest/middleware"
	"github.com/flexprice/autobill/internal/types"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health        *v1.HealthHandler
	BillingRecord *v1.BillingRecordHandler
	Customer      *v1.CustomerHandler
	CronBilling   *cron.BillingHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, m *metrics.Metrics) *gin.Engine {
	if cfg.Logging.Level != types.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.SentryMiddleware(cfg)...)
	router.Use(m.GinMiddleware())
	router.Use(middleware.ErrorHandler(logger))

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1Router := router.Group("/v1")

	records := v1Router.Group("/billing-records")
	{
		records.GET("", handlers.BillingRecord.ListBillingRecords)
		records.GET("/:order_id", handlers.BillingRecord.GetBillingRecord)
		records.PATCH("/:order_id", handlers.BillingRecord.UpdateBillingRecord)
		records.PUT("/:order_id/status", handlers.BillingRecord.UpdateBillingRecordStatus)
		records.DELETE("/:order_id", handlers.BillingRecord.DeleteBillingRecord)
	}

	customers := v1Router.Group("/customers")
	{
		customers.GET("", handlers.Customer.ListCustomers)
		customers.GET("/:id/billing-records/pending", handlers.Customer.ListPendingBillingRecords)
		customers.PUT("/:id/payment-day", handlers.Customer.UpdatePaymentDay)
		customers.GET("/:id/billing-schedule", handlers.Customer.GetBillingSchedule)
		customers.POST("/:id/ledger/reconcile", handlers.Customer.ReconcileLedger)
	}

	// Cron routes, triggered by an external scheduler in api mode
	cronGroup := v1Router.Group("/cron")
	{
		billing := cronGroup.Group("/billing")
		billing.POST("/daily-check", handlers.CronBilling.RunDailyCheck)
	}

	return router
}
