package history

import (
	"context"
	"log"

	"github.com/Mihailchik/TG-TimeChecker/internal/models"
)

// Composite writes to every configured backend in order. One degraded
// backend must never suppress writes to healthy ones, so errors are
// caught, logged and folded into a weak aggregate result. A false
// aggregate does NOT mean nothing was recorded.
type Composite struct {
	backends []Backend
}

func NewComposite(backends ...Backend) *Composite {
	return &Composite{backends: backends}
}

// LogStart appends the start row to every backend and returns the first
// row handle any of them assigned, or 0 when none did.
func (c *Composite) LogStart(ctx context.Context, e Entry) int {
	handle := 0
	for _, b := range c.backends {
		row, err := b.LogStart(ctx, e)
		if err != nil {
			log.Printf("❌ [%s] log start failed for shift %s: %v", b.Name(), e.ShiftID, err)
			continue
		}
		if row != 0 && handle == 0 {
			handle = row
		}
	}
	return handle
}

// LogComplete appends the terminal row to every backend. True only when
// all of them succeeded; every backend is attempted regardless.
func (c *Composite) LogComplete(ctx context.Context, e Entry) bool {
	ok := true
	for _, b := range c.backends {
		if err := b.LogComplete(ctx, e); err != nil {
			log.Printf("❌ [%s] log complete failed for shift %s: %v", b.Name(), e.ShiftID, err)
			ok = false
		}
	}
	return ok
}

// UpdateAt rewrites the closing fields of a previously appended row on
// every backend that supports in-place update.
func (c *Composite) UpdateAt(ctx context.Context, row int, u EndUpdate) bool {
	ok := true
	for _, b := range c.backends {
		updater, supported := b.(RowUpdater)
		if !supported {
			continue
		}
		if err := updater.UpdateRow(ctx, row, u); err != nil {
			log.Printf("❌ [%s] update row %d failed: %v", b.Name(), row, err)
			ok = false
		}
	}
	return ok
}

// RecordWorker mirrors a registration into every backend that keeps a
// Users sheet. Best effort.
func (c *Composite) RecordWorker(ctx context.Context, w models.Worker) {
	for _, b := range c.backends {
		recorder, supported := b.(WorkerRecorder)
		if !supported {
			continue
		}
		if err := recorder.RecordWorker(ctx, w); err != nil {
			log.Printf("❌ [%s] record worker %d failed: %v", b.Name(), w.UserID, err)
		}
	}
}
