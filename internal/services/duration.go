package services

import (
	"math"
	"time"
)

// TimeCalculator converts shift start/end instants to worked hours
type TimeCalculator struct{}

func NewTimeCalculator() TimeCalculator {
	return TimeCalculator{}
}

// Hours returns the elapsed time in hours, rounded to two decimals.
// Ordering is the caller's responsibility: end before start yields a
// negative value rather than being clamped.
func (TimeCalculator) Hours(start, end time.Time) float64 {
	hours := end.Sub(start).Seconds() / 3600
	return math.Round(hours*100) / 100
}
