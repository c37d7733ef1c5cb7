package service

import (
	"math"
	"time"
)

// ElapsedMinutes converts a session's run interval into billable minutes.
// Negative intervals (clock skew, out-of-order calls) clamp to zero.
func ElapsedMinutes(startedAt, endedAt time.Time) float64 {
	minutes := endedAt.Sub(startedAt).Minutes()
	if minutes < 0 {
		return 0
	}
	return minutes
}

// BillableCredits converts metered minutes into whole credits. Partial
// minutes always round up to a full unit, so a 61-second run at rate 1
// costs 2 credits.
func BillableCredits(minutes, ratePerMinute float64) int64 {
	if minutes <= 0 {
		return 0
	}
	return int64(math.Ceil(minutes * ratePerMinute))
}
