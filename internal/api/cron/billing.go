package cron

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/flexprice/autobill/internal/api/dto"
	"github.com/flexprice/autobill/internal/config"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/service"
	"github.com/gin-gonic/gin"
)

// BillingHandler triggers the daily billing check over HTTP, for deployments
// where an external cron calls the API instead of the in-process scheduler
type BillingHandler struct {
	scheduler service.SchedulerService
	config    *config.Configuration
	logger    *logger.Logger
	now       func() time.Time
}

func NewBillingHandler(
	scheduler service.SchedulerService,
	config *config.Configuration,
	logger *logger.Logger,
) *BillingHandler {
	return &BillingHandler{
		scheduler: scheduler,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// @Summary Run the daily billing check
// @Description Creates the billing records due today. A second run on the same day creates nothing.
// @Tags Cron
// @Accept json
// @Produce json
// @Param request body dto.DailyCheckRequest false "Optional calendar day, defaults to today"
// @Success 200 {object} dto.DailyCheckResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /cron/billing/daily-check [post]
func (h *BillingHandler) RunDailyCheck(c *gin.Context) {
	var req dto.DailyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	loc, err := h.config.Scheduler.GetLocation()
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Scheduler timezone is misconfigured").
			Mark(ierr.ErrSystem))
		return
	}

	today, err := req.ResolveToday(h.now(), loc)
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Infow("starting daily billing check cron job", "today", req.Today)

	created, err := h.scheduler.RunDailyCheckForAll(c.Request.Context(), today)
	if err != nil {
		h.logger.Errorw("failed to run daily billing check",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed daily billing check cron job", "created", len(created))
	c.JSON(http.StatusOK, dto.NewDailyCheckResponse(today, created))
}
