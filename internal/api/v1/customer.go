package v1

import (
	"net/http"
	"strconv"

	"github.com/flexprice/autobill/internal/api/dto"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/service"
	"github.com/flexprice/autobill/internal/types"
	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	service service.CustomerService
	records service.BillingRecordService
	log     *logger.Logger
}

func NewCustomerHandler(
	service service.CustomerService,
	records service.BillingRecordService,
	log *logger.Logger,
) *CustomerHandler {
	return &CustomerHandler{
		service: service,
		records: records,
		log:     log,
	}
}

// @Summary List customers
// @Tags Customers
// @Produce json
// @Param filter query types.CustomerFilter false "Filter"
// @Success 200 {object} dto.ListCustomersResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /customers [get]
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	var filter types.CustomerFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	customers, err := h.service.ListCustomers(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListCustomersResponse(customers))
}

// @Summary List pending billing records of a customer
// @Tags Customers
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} dto.ListBillingRecordsResponse
// @Router /customers/{id}/billing-records/pending [get]
func (h *CustomerHandler) ListPendingBillingRecords(c *gin.Context) {
	id, err := customerIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	records, err := h.records.ListPendingForCustomer(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListBillingRecordsResponse(records))
}

// @Summary Set the payment day of a customer
// @Tags Customers
// @Accept json
// @Produce json
// @Param id path int true "Customer ID"
// @Param request body dto.UpdatePaymentDayRequest true "Payment day"
// @Success 200 {object} dto.CustomerResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /customers/{id}/payment-day [put]
func (h *CustomerHandler) UpdatePaymentDay(c *gin.Context) {
	id, err := customerIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req dto.UpdatePaymentDayRequest
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

	ok, err := h.service.SetCustomerPaymentDay(c.Request.Context(), id, req.PaymentDay)
	if err != nil {
		c.Error(err)
		return
	}
	if !ok {
		c.Error(customerNotFound(id))
		return
	}

	cust, err := h.service.GetCustomer(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCustomerResponse(cust))
}

// @Summary Preview the next billing period of a customer
// @Tags Customers
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} dto.BillingScheduleResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /customers/{id}/billing-schedule [get]
func (h *CustomerHandler) GetBillingSchedule(c *gin.Context) {
	id, err := customerIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	schedule, err := h.service.GetBillingSchedule(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewBillingScheduleResponse(schedule))
}

// @Summary Rebuild the paid periods of a customer from completed records
// @Tags Customers
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} dto.LedgerReconciliationResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /customers/{id}/ledger/reconcile [post]
func (h *CustomerHandler) ReconcileLedger(c *gin.Context) {
	id, err := customerIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	result, err := h.service.ReconcileLedger(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewLedgerReconciliationResponse(result))
}

func customerIDParam(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ierr.NewError("invalid customer id").
			WithHint("Customer id must be a positive integer").
			WithReportableDetails(map[string]any{
				"id": raw,
			}).
			Mark(ierr.ErrValidation)
	}
	return id, nil
}

func customerNotFound(id int64) error {
	return ierr.NewError("customer not found").
		WithHintf("Customer %d was not found", id).
		WithReportableDetails(map[string]any{
			"customer_id": id,
		}).
		Mark(ierr.ErrNotFound)
}
