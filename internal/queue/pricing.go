package queue

import (
	"math"
	"time"
)

// PricingFactors is the breakdown clients render next to a quote. It is
// produced by the same computation as the final price, never a parallel
// formula.
type PricingFactors struct {
	PricingEnabled     bool    `json:"pricingEnabled"`
	Position           int     `json:"position"`
	BasePriceCents     int     `json:"basePriceCents"`
	EffectiveBaseCents float64 `json:"effectiveBaseCents"`
	PeakApplied        bool    `json:"peakApplied"`
	PositionWeight     float64 `json:"positionWeight"`
	RawPriceCents      int     `json:"rawPriceCents"`
	MinPriceCents      int     `json:"minPriceCents"`
	MaxPriceCents      int     `json:"maxPriceCents"`
	FinalPriceCents    int     `json:"finalPriceCents"`
}

// PositionFactors computes the price of buying a queue position and every
// intermediate value. Pure: no I/O, no locks, safe to call on every poll.
//
// With pricing disabled the venue charges a flat base price for any
// position. Otherwise the base is scaled by the venue multiplier, the
// peak-hour multiplier when now falls inside the peak window, and a 1/p
// position weight (position 1, "play next", is the most expensive), then
// clamped into [min, max].
func PositionFactors(v *Venue, now time.Time, position int) PricingFactors {
	if position < 1 {
		position = 1
	}

	f := PricingFactors{
		PricingEnabled: v.PricingEnabled,
		Position:       position,
		BasePriceCents: v.BasePriceCents,
		MinPriceCents:  v.MinPriceCents,
		MaxPriceCents:  v.MaxPriceCents,
	}

	if !v.PricingEnabled {
		f.EffectiveBaseCents = float64(v.BasePriceCents)
		f.PositionWeight = 1.0
		f.RawPriceCents = v.BasePriceCents
		f.FinalPriceCents = v.BasePriceCents
		return f
	}

	f.EffectiveBaseCents = float64(v.BasePriceCents) * v.PriceMultiplier
	if inPeakWindow(now.Hour(), v.PeakHoursStart, v.PeakHoursEnd) {
		f.EffectiveBaseCents *= v.PeakHoursMultiplier
		f.PeakApplied = true
	}

	f.PositionWeight = 1.0 / float64(position)
	f.RawPriceCents = int(math.Round(f.EffectiveBaseCents * f.PositionWeight))
	f.FinalPriceCents = clampCents(f.RawPriceCents, v.MinPriceCents, v.MaxPriceCents)
	return f
}

// PositionPrice is the quote alone; it derives from PositionFactors so the
// two can never disagree.
func PositionPrice(v *Venue, now time.Time, position int) int {
	return PositionFactors(v, now, position).FinalPriceCents
}

// inPeakWindow reports whether hour falls within [start, end). Windows
// that cross midnight (start > end) wrap.
func inPeakWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func clampCents(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
