package v1

import (
	"net/http"
	"strconv"

	"github.com/flexprice/autobill/internal/api/dto"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/service"
	"github.com/gin-gonic/gin"
)

type BillingRecordHandler struct {
	service service.BillingRecordService
	log     *logger.Logger
}

func NewBillingRecordHandler(service service.BillingRecordService, log *logger.Logger) *BillingRecordHandler {
	return &BillingRecordHandler{
		service: service,
		log:     log,
	}
}

// @Summary List billing records
// @Description List billing records, optionally filtered by customer and status
// @Tags BillingRecords
// @Produce json
// @Param filter query dto.ListBillingRecordsRequest false "Filter"
// @Success 200 {object} dto.ListBillingRecordsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /billing-records [get]
func (h *BillingRecordHandler) ListBillingRecords(c *gin.Context) {
	var req dto.ListBillingRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	records, err := h.service.ListBillingRecords(c.Request.Context(), req.ToFilter())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListBillingRecordsResponse(records))
}

// @Summary Get a billing record
// @Tags BillingRecords
// @Produce json
// @Param order_id path string true "Order ID"
// @Success 200 {object} dto.BillingRecordResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /billing-records/{order_id} [get]
func (h *BillingRecordHandler) GetBillingRecord(c *gin.Context) {
	record, err := h.service.GetBillingRecord(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewBillingRecordResponse(record))
}

// @Summary Update a billing record
// @Description Edit the customer snapshot or amount of a billing record. Status and ledger are unchanged.
// @Tags BillingRecords
// @Accept json
// @Produce json
// @Param order_id path string true "Order ID"
// @Param record body dto.UpdateBillingRecordRequest true "Fields to update"
// @Success 200 {object} dto.BillingRecordResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /billing-records/{order_id} [patch]
func (h *BillingRecordHandler) UpdateBillingRecord(c *gin.Context) {
	orderID := c.Param("order_id")

	var req dto.UpdateBillingRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	ok, err := h.service.UpdateFields(c.Request.Context(), orderID, req.ToFieldUpdates())
	if err != nil {
		c.Error(err)
		return
	}
	if !ok {
		c.Error(orderNotFound(orderID))
		return
	}

	h.respondWithRecord(c, orderID)
}

// @Summary Set the status of a billing record
// @Description Moving a record into or out of completed updates the customer's paid periods
// @Tags BillingRecords
// @Accept json
// @Produce json
// @Param order_id path string true "Order ID"
// @Param status body dto.UpdateBillingRecordStatusRequest true "New status"
// @Success 200 {object} dto.BillingRecordResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /billing-records/{order_id}/status [put]
func (h *BillingRecordHandler) UpdateBillingRecordStatus(c *gin.Context) {
	orderID := c.Param("order_id")

	var req dto.UpdateBillingRecordStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	ok, err := h.service.SetStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		c.Error(err)
		return
	}
	if !ok {
		c.Error(orderNotFound(orderID))
		return
	}

	h.respondWithRecord(c, orderID)
}

// @Summary Delete a billing record
// @Tags BillingRecords
// @Param order_id path string true "Order ID"
// @Param reverse_ledger query bool false "Remove the period from the customer's paid periods when the record was completed"
// @Success 204
// @Failure 404 {object} ierr.ErrorResponse
// @Router /billing-records/{order_id} [delete]
func (h *BillingRecordHandler) DeleteBillingRecord(c *gin.Context) {
	orderID := c.Param("order_id")

	opts := service.DeleteOptions{}
	if raw := c.Query("reverse_ledger"); raw != "" {
		reverse, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(ierr.WithError(err).
				WithHint("reverse_ledger must be true or false").
				Mark(ierr.ErrValidation))
			return
		}
		opts.ReverseLedger = reverse
	}

	ok, err := h.service.DeleteBillingRecord(c.Request.Context(), orderID, opts)
	if err != nil {
		c.Error(err)
		return
	}
	if !ok {
		c.Error(orderNotFound(orderID))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *BillingRecordHandler) respondWithRecord(c *gin.Context, orderID string) {
	record, err := h.service.GetBillingRecord(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewBillingRecordResponse(record))
}

func orderNotFound(orderID string) error {
	return ierr.NewError("billing record not found").
		WithHintf("Billing record %s was not found", orderID).
		WithReportableDetails(map[string]any{
			"order_id": orderID,
		}).
		Mark(ierr.ErrNotFound)
}
