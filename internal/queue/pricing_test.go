package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testVenue() *Venue {
	return &Venue{
		ID:                  "venue1",
		HostUserID:          "host1",
		PricingEnabled:      true,
		BasePriceCents:      100,
		MinPriceCents:       1,
		MaxPriceCents:       50000,
		PriceMultiplier:     1.0,
		PeakHoursStart:      19,
		PeakHoursEnd:        23,
		PeakHoursMultiplier: 1.5,
	}
}

// offPeak is well outside the default 19-23 window.
var offPeak = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

// onPeak falls inside it.
var onPeak = time.Date(2026, 3, 10, 20, 30, 0, 0, time.UTC)

func TestPositionPrice(t *testing.T) {
	v := testVenue()

	t.Run("defaults off peak", func(t *testing.T) {
		assert.Equal(t, 100, PositionPrice(v, offPeak, 1))
		assert.Equal(t, 50, PositionPrice(v, offPeak, 2))
		assert.Equal(t, 33, PositionPrice(v, offPeak, 3))
		assert.Equal(t, 25, PositionPrice(v, offPeak, 4))
	})

	t.Run("peak hours", func(t *testing.T) {
		assert.Equal(t, 150, PositionPrice(v, onPeak, 1))
		assert.Equal(t, 75, PositionPrice(v, onPeak, 2))
	})

	t.Run("peak window boundaries", func(t *testing.T) {
		atStart := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
		atEnd := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
		assert.Equal(t, 150, PositionPrice(v, atStart, 1), "start hour is inside the window")
		assert.Equal(t, 100, PositionPrice(v, atEnd, 1), "end hour is outside the window")
	})

	t.Run("monotonic in position", func(t *testing.T) {
		prev := PositionPrice(v, offPeak, 1)
		for p := 2; p <= 30; p++ {
			cur := PositionPrice(v, offPeak, p)
			assert.LessOrEqual(t, cur, prev, "position %d", p)
			prev = cur
		}
	})

	t.Run("clamped to min", func(t *testing.T) {
		clamped := testVenue()
		clamped.MinPriceCents = 40
		assert.Equal(t, 40, PositionPrice(clamped, offPeak, 10))
	})

	t.Run("clamped to max", func(t *testing.T) {
		clamped := testVenue()
		clamped.BasePriceCents = 100000
		clamped.MaxPriceCents = 500
		assert.Equal(t, 500, PositionPrice(clamped, offPeak, 1))
	})

	t.Run("multiplier scales base", func(t *testing.T) {
		boosted := testVenue()
		boosted.PriceMultiplier = 2.0
		assert.Equal(t, 200, PositionPrice(boosted, offPeak, 1))
		assert.Equal(t, 300, PositionPrice(boosted, onPeak, 1))
	})

	t.Run("disabled pricing is flat", func(t *testing.T) {
		flat := testVenue()
		flat.PricingEnabled = false
		for _, p := range []int{1, 2, 5, 50} {
			assert.Equal(t, 100, PositionPrice(flat, onPeak, p))
		}
	})

	t.Run("position below one treated as one", func(t *testing.T) {
		assert.Equal(t, PositionPrice(v, offPeak, 1), PositionPrice(v, offPeak, 0))
		assert.Equal(t, PositionPrice(v, offPeak, 1), PositionPrice(v, offPeak, -3))
	})
}

func TestPositionFactors(t *testing.T) {
	v := testVenue()

	t.Run("breakdown matches quote", func(t *testing.T) {
		for p := 1; p <= 12; p++ {
			f := PositionFactors(v, onPeak, p)
			assert.Equal(t, PositionPrice(v, onPeak, p), f.FinalPriceCents, "position %d", p)
		}
	})

	t.Run("off peak breakdown", func(t *testing.T) {
		f := PositionFactors(v, offPeak, 2)
		assert.True(t, f.PricingEnabled)
		assert.False(t, f.PeakApplied)
		assert.Equal(t, 2, f.Position)
		assert.Equal(t, 100, f.BasePriceCents)
		assert.InDelta(t, 100.0, f.EffectiveBaseCents, 1e-9)
		assert.InDelta(t, 0.5, f.PositionWeight, 1e-9)
		assert.Equal(t, 50, f.RawPriceCents)
		assert.Equal(t, 50, f.FinalPriceCents)
	})

	t.Run("peak breakdown", func(t *testing.T) {
		f := PositionFactors(v, onPeak, 1)
		assert.True(t, f.PeakApplied)
		assert.InDelta(t, 150.0, f.EffectiveBaseCents, 1e-9)
		assert.Equal(t, 150, f.FinalPriceCents)
	})

	t.Run("disabled breakdown", func(t *testing.T) {
		flat := testVenue()
		flat.PricingEnabled = false
		f := PositionFactors(flat, onPeak, 7)
		assert.False(t, f.PricingEnabled)
		assert.False(t, f.PeakApplied)
		assert.InDelta(t, 1.0, f.PositionWeight, 1e-9)
		assert.Equal(t, 100, f.FinalPriceCents)
	})
}

func TestInPeakWindow(t *testing.T) {
	t.Run("normal window", func(t *testing.T) {
		assert.False(t, inPeakWindow(18, 19, 23))
		assert.True(t, inPeakWindow(19, 19, 23))
		assert.True(t, inPeakWindow(22, 19, 23))
		assert.False(t, inPeakWindow(23, 19, 23))
	})

	t.Run("wraps midnight", func(t *testing.T) {
		assert.True(t, inPeakWindow(23, 22, 2))
		assert.True(t, inPeakWindow(0, 22, 2))
		assert.True(t, inPeakWindow(1, 22, 2))
		assert.False(t, inPeakWindow(2, 22, 2))
		assert.False(t, inPeakWindow(12, 22, 2))
	})

	t.Run("empty window", func(t *testing.T) {
		for h := 0; h < 24; h++ {
			assert.False(t, inPeakWindow(h, 5, 5))
		}
	})
}
