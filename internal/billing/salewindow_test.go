package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSaleWindowDisabledIsAlwaysOpen(t *testing.T) {
	var w SaleWindow

	status := w.Check(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.False(t, w.Enabled())
	assert.True(t, status.Open)
	assert.Zero(t, status.WaitSeconds)
}

func TestSaleWindowCheck(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewSaleWindow(start)

	tests := []struct {
		name     string
		now      time.Time
		wantOpen bool
		wantWait int64
	}{
		{"one hour before", start.Add(-time.Hour), false, 3600},
		{"partial second rounds up", start.Add(-1500 * time.Millisecond), false, 2},
		{"one millisecond before", start.Add(-time.Millisecond), false, 1},
		{"sub-millisecond before", start.Add(-time.Microsecond), false, 0},
		{"exactly at start", start, true, 0},
		{"after start", start.Add(time.Minute), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := w.Check(tt.now)

			assert.Equal(t, tt.wantOpen, status.Open)
			assert.Equal(t, tt.wantWait, status.WaitSeconds)
			assert.GreaterOrEqual(t, status.WaitSeconds, int64(0))
			assert.Equal(t, start, status.Start)
		})
	}
}

func TestSaleWindowNormalizesToUTC(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	w := NewSaleWindow(time.Date(2025, 3, 1, 21, 0, 0, 0, jst))

	status := w.Check(time.Date(2025, 3, 1, 20, 59, 0, 0, jst))

	assert.Equal(t, time.UTC, w.Start().Location())
	assert.Equal(t, time.UTC, status.Now.Location())
	assert.False(t, status.Open)
	assert.Equal(t, int64(60), status.WaitSeconds)
}
