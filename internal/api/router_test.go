package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flexprice/autobill/internal/api/cron"
	"github.com/flexprice/autobill/internal/api/dto"
	v1 "github.com/flexprice/autobill/internal/api/v1"
	"github.com/flexprice/autobill/internal/domain/customer"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/idempotency"
	"github.com/flexprice/autobill/internal/service"
	"github.com/flexprice/autobill/internal/testutil"
	"github.com/flexprice/autobill/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router   *gin.Engine
	customer *customer.Customer
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	gin.SetMode(gin.TestMode)

	stores := s.GetStores()
	params := service.ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		DB:                s.GetDB(),
		Sentry:            s.GetSentry(),
		Metrics:           s.GetMetrics(),
		Locker:            s.GetLocker(),
		Idempotency:       idempotency.NewGenerator(),
		CustomerRepo:      stores.CustomerRepo,
		BillingRecordRepo: stores.BillingRecordRepo,
		SequenceRepo:      stores.SequenceRepo,
	}
	sequence := service.NewSequenceAllocator(params)
	ledger := service.NewLedgerSynchronizer(params)
	scheduler := service.NewSchedulerService(params, service.NewOrderGenerator(params, sequence))
	records := service.NewBillingRecordService(params, ledger)
	customers := service.NewCustomerService(params, ledger)

	s.router = NewRouter(Handlers{
		Health:        v1.NewHealthHandler(nil, s.GetLogger()),
		BillingRecord: v1.NewBillingRecordHandler(records, s.GetLogger()),
		Customer:      v1.NewCustomerHandler(customers, records, s.GetLogger()),
		CronBilling:   cron.NewBillingHandler(scheduler, s.GetConfig(), s.GetLogger()),
	}, s.GetConfig(), s.GetLogger(), s.GetMetrics())

	s.customer = s.CreateSubscribedCustomer(testutil.Date(2024, time.January, 5), 5, testutil.PeriodsUpTo(7)...)
}

func (s *RouterSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out))
}

// runDailyCheck triggers the check for 2024-08-05 and returns the created order id
func (s *RouterSuite) runDailyCheck() string {
	w := s.do(http.MethodPost, "/v1/cron/billing/daily-check", dto.DailyCheckRequest{Today: "2024-08-05"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.DailyCheckResponse
	s.decode(w, &resp)
	s.Require().Len(resp.Created, 1)
	return resp.Created[0].OrderID
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/health", nil)

	w := s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "autobill_http_requests_total")
}

func (s *RouterSuite) TestDailyCheckCreatesAndCompletes() {
	w := s.do(http.MethodPost, "/v1/cron/billing/daily-check", dto.DailyCheckRequest{Today: "2024-08-05"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.DailyCheckResponse
	s.decode(w, &resp)
	s.Equal("2024-08-05", resp.Today)
	s.Require().Len(resp.Created, 1)
	created := resp.Created[0]
	s.Equal(8, created.PeriodNumber)
	s.Equal("2024-08-05", created.DueDate)
	s.Equal(types.BillingRecordStatusPending, created.Status)
	s.Regexp(`^AUTO-2024-\d{4}$`, created.OrderID)

	// second run the same day creates nothing
	w = s.do(http.MethodPost, "/v1/cron/billing/daily-check", dto.DailyCheckRequest{Today: "2024-08-05"})
	s.Require().Equal(http.StatusOK, w.Code)
	var again dto.DailyCheckResponse
	s.decode(w, &again)
	s.NotNil(again.Created)
	s.Empty(again.Created)

	w = s.do(http.MethodPut, "/v1/billing-records/"+created.OrderID+"/status",
		dto.UpdateBillingRecordStatusRequest{Status: types.BillingRecordStatusCompleted})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	c, err := s.GetStores().CustomerRepo.Get(s.GetContext(), s.customer.ID)
	s.Require().NoError(err)
	s.Equal(types.NewPaidPeriods(testutil.PeriodsUpTo(8)...), c.PaidPeriods)
}

func (s *RouterSuite) TestDailyCheckRejectsMalformedDay() {
	w := s.do(http.MethodPost, "/v1/cron/billing/daily-check", dto.DailyCheckRequest{Today: "05/08/2024"})
	s.Equal(http.StatusBadRequest, w.Code)

	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.False(resp.Success)
	s.Equal(ierr.ErrCodeValidation, resp.Error.Code)
}

func (s *RouterSuite) TestDailyCheckWithoutBodyUsesToday() {
	req := httptest.NewRequest(http.MethodPost, "/v1/cron/billing/daily-check", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *RouterSuite) TestListAndGetBillingRecords() {
	orderID := s.runDailyCheck()

	w := s.do(http.MethodGet, fmt.Sprintf("/v1/billing-records?customer_id=%d&status=pending", s.customer.ID), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var list dto.ListBillingRecordsResponse
	s.decode(w, &list)
	s.Equal(1, list.Total)

	w = s.do(http.MethodGet, "/v1/billing-records?status=completed", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &list)
	s.Zero(list.Total)

	w = s.do(http.MethodGet, "/v1/billing-records/"+orderID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var record dto.BillingRecordResponse
	s.decode(w, &record)
	s.Equal(orderID, record.OrderID)
	s.Equal(s.customer.Name, record.CustomerName)

	w = s.do(http.MethodGet, "/v1/billing-records/AUTO-2024-9999", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestUpdateBillingRecord() {
	orderID := s.runDailyCheck()

	w := s.do(http.MethodPatch, "/v1/billing-records/"+orderID, map[string]any{
		"email":  "billing@example.com",
		"amount": "1500.00",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var record dto.BillingRecordResponse
	s.decode(w, &record)
	s.Equal("billing@example.com", record.Email)
	s.Equal("1500", record.Amount.String())
	s.Equal(types.BillingRecordStatusPending, record.Status)

	w = s.do(http.MethodPatch, "/v1/billing-records/"+orderID, map[string]any{"amount": "-1"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/v1/billing-records/"+orderID, map[string]any{"email": "not-an-email"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/v1/billing-records/AUTO-2024-9999", map[string]any{"email": "a@example.com"})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestSetStatusErrors() {
	w := s.do(http.MethodPut, "/v1/billing-records/AUTO-2024-9999/status",
		dto.UpdateBillingRecordStatusRequest{Status: types.BillingRecordStatusCompleted})
	s.Equal(http.StatusNotFound, w.Code)

	orderID := s.runDailyCheck()
	w = s.do(http.MethodPut, "/v1/billing-records/"+orderID+"/status", map[string]any{"status": "refunded"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestDeleteBillingRecord() {
	orderID := s.runDailyCheck()

	w := s.do(http.MethodPut, "/v1/billing-records/"+orderID+"/status",
		dto.UpdateBillingRecordStatusRequest{Status: types.BillingRecordStatusCompleted})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/v1/billing-records/"+orderID+"?reverse_ledger=maybe", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/v1/billing-records/"+orderID+"?reverse_ledger=true", nil)
	s.Equal(http.StatusNoContent, w.Code)

	c, err := s.GetStores().CustomerRepo.Get(s.GetContext(), s.customer.ID)
	s.Require().NoError(err)
	s.Equal(types.NewPaidPeriods(testutil.PeriodsUpTo(7)...), c.PaidPeriods)

	w = s.do(http.MethodDelete, "/v1/billing-records/"+orderID, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestCustomerEndpoints() {
	w := s.do(http.MethodGet, "/v1/customers?subscribed_only=true", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var list dto.ListCustomersResponse
	s.decode(w, &list)
	s.Equal(1, list.Total)
	s.Equal("2024-01-05", *list.Items[0].SubscriptionStart)

	base := fmt.Sprintf("/v1/customers/%d", s.customer.ID)

	w = s.do(http.MethodGet, base+"/billing-schedule", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var schedule dto.BillingScheduleResponse
	s.decode(w, &schedule)
	s.Equal(8, schedule.NextPeriod)
	s.Equal("2024-08-05", *schedule.NextDueDate)
	s.Equal(17, schedule.RemainingPeriods)

	s.runDailyCheck()
	w = s.do(http.MethodGet, base+"/billing-records/pending", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var pending dto.ListBillingRecordsResponse
	s.decode(w, &pending)
	s.Equal(1, pending.Total)

	w = s.do(http.MethodPut, base+"/payment-day", dto.UpdatePaymentDayRequest{PaymentDay: 20})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var cust dto.CustomerResponse
	s.decode(w, &cust)
	s.Equal(20, cust.PaymentDay)

	w = s.do(http.MethodPut, base+"/payment-day", dto.UpdatePaymentDayRequest{PaymentDay: 32})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/v1/customers/9999/payment-day", dto.UpdatePaymentDayRequest{PaymentDay: 10})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/v1/customers/abc/billing-schedule", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, base+"/ledger/reconcile", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var reconciled dto.LedgerReconciliationResponse
	s.decode(w, &reconciled)
	s.Equal([]int{1, 2, 3, 4, 5, 6, 7}, reconciled.Removed)
	s.Empty(reconciled.Added)
}

func (s *RouterSuite) TestRequestIDIsPropagated() {
	body := bytes.NewBufferString(`{"status":"completed"}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/billing-records/AUTO-2024-9999/status", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(types.HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal("req-123", w.Header().Get(types.HeaderRequestID))
	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.Equal("req-123", resp.Error.RequestID)
	s.Equal("Billing record AUTO-2024-9999 was not found", resp.Error.Display)
	s.Equal("AUTO-2024-9999", resp.Error.Details["order_id"])
}
