package services

import (
	"context"
	"fmt"
	"log"
	"time"
)

// StaleSweeper periodically flags shifts that have been running longer
// than the threshold and nudges their workers. Purely observational: it
// never closes or mutates a shift.
type StaleSweeper struct {
	controller *ShiftController
	notifier   Notifier
	interval   time.Duration
	threshold  time.Duration
}

func NewStaleSweeper(controller *ShiftController, notifier Notifier, interval, threshold time.Duration) *StaleSweeper {
	return &StaleSweeper{
		controller: controller,
		notifier:   notifier,
		interval:   interval,
		threshold:  threshold,
	}
}

// Run loops until the context is cancelled. A failed iteration is
// logged and the sweep resumes on its next tick.
func (s *StaleSweeper) Run(ctx context.Context) {
	log.Printf("🕐 Stale shift sweeper started (every %s, threshold %s)", s.interval, s.threshold)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🕐 Stale shift sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("❌ Stale shift sweep failed: %v", err)
			}
		}
	}
}

// Sweep runs one iteration: find stale shifts, notify their workers
func (s *StaleSweeper) Sweep(ctx context.Context) error {
	stale, err := s.controller.CheckStaleShifts(ctx, s.threshold)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	log.Printf("⚠️  %d stale shift(s) found", len(stale))
	for _, shift := range stale {
		hours := time.Since(shift.StartTime).Hours()
		s.notifier.NotifyUser(ctx, shift.UserID, "Shift still running",
			fmt.Sprintf("Your shift has been running for %.0f hours. Please remember to end it if you are done working.", hours),
			map[string]string{"type": "stale_shift", "shift_id": shift.ShiftID})
	}
	return nil
}
