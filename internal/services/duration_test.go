package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHoursRoundsToTwoDecimals(t *testing.T) {
	calc := NewTimeCalculator()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, 1.5, calc.Hours(start, start.Add(90*time.Minute)))
	assert.Equal(t, 8.5, calc.Hours(start, start.Add(8*time.Hour+30*time.Minute)))
	assert.Equal(t, 0.25, calc.Hours(start, start.Add(15*time.Minute)))

	// 100 minutes is 1.666... hours, rounds to 1.67
	assert.Equal(t, 1.67, calc.Hours(start, start.Add(100*time.Minute)))
}

func TestHoursZeroDuration(t *testing.T) {
	calc := NewTimeCalculator()
	now := time.Now()
	assert.Equal(t, 0.0, calc.Hours(now, now))
}

func TestHoursNegativeDurationPassesThrough(t *testing.T) {
	calc := NewTimeCalculator()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	end := start.Add(-30 * time.Minute)

	assert.Equal(t, -0.5, calc.Hours(start, end))
}

func TestHoursSubSecondShift(t *testing.T) {
	calc := NewTimeCalculator()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	// Shorter than 18 seconds rounds down to 0.00
	assert.Equal(t, 0.0, calc.Hours(start, start.Add(10*time.Second)))
}
