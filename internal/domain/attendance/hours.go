package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// HoursPrecision is the number of decimal places used when hours are displayed.
const HoursPrecision = 2

// ComputeHours returns the length of [clockIn, clockOut) in hours at full
// precision. Both values are treated as instants, so intervals crossing
// midnight or a DST change are measured in elapsed time, not wall-clock hours.
func ComputeHours(clockIn, clockOut time.Time) (float64, error) {
	if clockIn.IsZero() || clockOut.IsZero() {
		return 0, fmt.Errorf("%w: clock in and clock out are required", ErrInvalidInterval)
	}
	d := clockOut.Sub(clockIn)
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidInterval, d)
	}
	return d.Hours(), nil
}

// RoundHours rounds hours to HoursPrecision decimal places for display.
// Sums must be taken over unrounded values.
func RoundHours(hours float64) float64 {
	return decimal.NewFromFloat(hours).Round(HoursPrecision).InexactFloat64()
}
