package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/postgres"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewHealthHandler builds the liveness handler. db may be nil, in which case
// the database is not probed.
func NewHealthHandler(db *postgres.DB, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warnw("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
