package billingrecord

import (
	"context"
	"fmt"
)

// SequenceRepository hands out the global order counter. Values are strictly
// increasing; a rolled back transaction may leave a gap.
type SequenceRepository interface {
	NextValue(ctx context.Context) (int64, error)
}

// FormatOrderID renders the human readable order id, e.g. AUTO-2024-0042.
// Counters past 9999 keep all their digits.
func FormatOrderID(prefix string, year int, value int64) string {
	return fmt.Sprintf("%s-%04d-%04d", prefix, year, value)
}
