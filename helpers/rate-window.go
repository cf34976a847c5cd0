package helpers

import (
	"time"

	"github.com/gammazero/deque"
)

// RateWindow counts events over a sliding time window.
// It is not safe for concurrent use.
type RateWindow struct {
	window time.Duration
	events deque.Deque[time.Time]
}

func NewRateWindow(window time.Duration) *RateWindow {
	if window <= 0 {
		window = time.Second
	}
	return &RateWindow{window: window}
}

// Add records an event at t. Events must be added in time order.
func (w *RateWindow) Add(t time.Time) {
	w.events.PushBack(t)
	w.trim(t)
}

// Count returns the number of events within the window ending at now.
func (w *RateWindow) Count(now time.Time) int {
	w.trim(now)
	return w.events.Len()
}

// PerSecond returns the event rate within the window ending at now.
func (w *RateWindow) PerSecond(now time.Time) float64 {
	return float64(w.Count(now)) / w.window.Seconds()
}

func (w *RateWindow) trim(now time.Time) {
	cutoff := now.Add(-w.window)
	for w.events.Len() > 0 && !w.events.Front().After(cutoff) {
		w.events.PopFront()
	}
}
