package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mihailchik/TG-TimeChecker/internal/history"
	"github.com/Mihailchik/TG-TimeChecker/internal/models"
)

type memNotifier struct {
	titles []string
}

func (n *memNotifier) NotifyUser(_ context.Context, _ int64, title, _ string, _ map[string]string) {
	n.titles = append(n.titles, title)
}

func waitForResult(t *testing.T, done <-chan FinalizeResult) FinalizeResult {
	t.Helper()
	select {
	case result := <-done:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("finalize did not complete")
		return FinalizeResult{}
	}
}

func TestDispatchFinalizeNotifiesSuccess(t *testing.T) {
	sink := newMemSink(0)
	c, store := newTestController(sink, 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "start|circle")
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.1,37.1"))

	notifier := &memNotifier{}
	result := waitForResult(t, DispatchFinalize(c, notifier, 100, "end|circle", "", ""))

	require.NoError(t, result.Err)
	assert.Equal(t, string(models.StatusCompletedOK), result.Entry.Status)
	assert.Nil(t, store.shifts[100])
	require.Len(t, notifier.titles, 1)
	assert.Equal(t, "Shift saved", notifier.titles[0])
}

func TestDispatchFinalizeNotifiesFailure(t *testing.T) {
	c, _ := newTestController(newMemSink(0), 100)

	// No shift at all: finalize fails, the worker hears about it
	notifier := &memNotifier{}
	result := waitForResult(t, DispatchFinalize(c, notifier, 100, "end|circle", "", ""))

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, ErrNoActiveShift)
	require.Len(t, notifier.titles, 1)
	assert.Equal(t, "Shift not saved", notifier.titles[0])
}

// panicSink blows up on the in-place update path
type panicSink struct {
	*memSink
}

func (p *panicSink) UpdateAt(context.Context, int, history.EndUpdate) bool {
	panic("backend exploded")
}

func TestDispatchFinalizeCapturesPanic(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sink := &panicSink{memSink: newMemSink(12)}
	c := NewShiftController(store, sink, NewTimeCalculator(),
		NewStaticSitesRepo([]string{"Site A"}), newMemDirectory(100))

	runStartFlow(t, c, 100, "start|circle")
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.1,37.1"))

	notifier := &memNotifier{}
	result := waitForResult(t, DispatchFinalize(c, notifier, 100, "end|circle", "", ""))

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "backend exploded")
	require.Len(t, notifier.titles, 1)
	assert.Equal(t, "Shift not saved", notifier.titles[0])
}
