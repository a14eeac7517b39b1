package billing

import (
	"time"
)

// SaleWindow gates purchases until a fixed UTC instant. The zero value is
// disabled and always open.
type SaleWindow struct {
	start   time.Time
	enabled bool
}

// NewSaleWindow returns a window that opens at start.
func NewSaleWindow(start time.Time) SaleWindow {
	return SaleWindow{start: start.UTC(), enabled: true}
}

// SaleStatus is the result of checking a SaleWindow at an instant.
type SaleStatus struct {
	Open        bool
	Now         time.Time
	Start       time.Time
	WaitSeconds int64
}

// Enabled reports whether the window gates anything.
func (w SaleWindow) Enabled() bool {
	return w.enabled
}

// Start returns the opening instant; zero when disabled.
func (w SaleWindow) Start() time.Time {
	return w.start
}

// Check evaluates the window at now. WaitSeconds is the millisecond gap
// rounded up to whole seconds and is never negative.
func (w SaleWindow) Check(now time.Time) SaleStatus {
	now = now.UTC()
	status := SaleStatus{Open: true, Now: now, Start: w.start}
	if !w.enabled || !now.Before(w.start) {
		return status
	}

	ms := w.start.Sub(now).Milliseconds()
	status.Open = false
	status.WaitSeconds = (ms + 999) / 1000
	return status
}
