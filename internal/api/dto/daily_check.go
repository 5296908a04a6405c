package dto

import (
	"time"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/types"
)

// DailyCheckRequest triggers the daily check. Today defaults to the current
// calendar day in the scheduler timezone.
type DailyCheckRequest struct {
	Today string `json:"today,omitempty" example:"2024-08-05"`
}

// ResolveToday returns the calendar day the check runs for, at midnight in loc
func (r *DailyCheckRequest) ResolveToday(now time.Time, loc *time.Location) (time.Time, error) {
	if r.Today == "" {
		return types.StartOfDay(now.In(loc)), nil
	}
	day, err := time.ParseInLocation(types.DateLayout, r.Today, loc)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("today must be a date in %s format", types.DateLayout).
			WithReportableDetails(map[string]any{
				"today": r.Today,
			}).
			Mark(ierr.ErrValidation)
	}
	return day, nil
}

type DailyCheckResponse struct {
	Today   string                   `json:"today"`
	Created []*BillingRecordResponse `json:"created"`
}

func NewDailyCheckResponse(today time.Time, created []*billingrecord.BillingRecord) *DailyCheckResponse {
	return &DailyCheckResponse{
		Today:   types.FormatDate(today),
		Created: NewListBillingRecordsResponse(created).Items,
	}
}
