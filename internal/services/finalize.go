package services

import (
	"context"
	"fmt"
	"log"

	"github.com/Mihailchik/TG-TimeChecker/internal/history"
)

// Notifier delivers follow-up messages to a worker out of band (push,
// live feed). Best effort.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, title, body string, data map[string]string)
}

// FinalizeResult is the outcome of a dispatched finalize
type FinalizeResult struct {
	Entry history.Entry
	Err   error
}

// DispatchFinalize runs FinalizeShift detached from the request that
// triggered it: the caller acknowledges "saving" immediately and the
// worker learns the outcome through the notifier. A panic inside the
// background work is captured and delivered as a failure, never
// swallowed. The returned channel receives exactly one result.
func DispatchFinalize(c *ShiftController, notifier Notifier, userID int64, mediaRef, startVideoLink, endVideoLink string) <-chan FinalizeResult {
	done := make(chan FinalizeResult, 1)

	go func() {
		// Detached from the HTTP request context: once dispatched, the
		// logging fan-out runs to completion or failure.
		ctx := context.Background()

		var result FinalizeResult
		func() {
			defer func() {
				if r := recover(); r != nil {
					result.Err = fmt.Errorf("finalize panicked: %v", r)
				}
			}()
			result.Entry, result.Err = c.FinalizeShift(ctx, userID, mediaRef, startVideoLink, endVideoLink)
		}()

		if result.Err != nil {
			log.Printf("❌ Background finalize failed for worker %d: %v", userID, result.Err)
			notifier.NotifyUser(ctx, userID, "Shift not saved",
				"Your shift could not be saved. Please contact your manager.",
				map[string]string{"type": "shift_save_failed"})
		} else {
			hours := 0.0
			if result.Entry.Hours != nil {
				hours = *result.Entry.Hours
			}
			notifier.NotifyUser(ctx, userID, "Shift saved",
				fmt.Sprintf("Shift %s recorded: %.2f hours, status %s.",
					result.Entry.ShiftID, hours, result.Entry.Status),
				map[string]string{
					"type":     "shift_saved",
					"shift_id": result.Entry.ShiftID,
					"status":   result.Entry.Status,
				})
		}

		done <- result
	}()

	return done
}
