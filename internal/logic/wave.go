package logic

import (
	"math"
	"time"
)

// BreathLevel computes the instantaneous intensity of the triangular
// breathing wave: a linear ramp from minPct up to maxPct over the first half
// of the period and back down over the second half. The wave is a pure
// function of elapsed time modulo period, so callers reset the phase simply
// by moving phaseStart. Requires maxPct > minPct.
func BreathLevel(now, phaseStart time.Time, period time.Duration, minPct, maxPct int) int {
	if period < 2*time.Millisecond {
		// Too short to ramp, hold at the ceiling.
		return maxPct
	}

	elapsed := now.Sub(phaseStart) % period
	if elapsed < 0 {
		elapsed += period
	}

	half := period / 2
	span := float64(maxPct - minPct)
	if elapsed < half {
		return minPct + int(math.Round(span*float64(elapsed)/float64(half)))
	}
	return maxPct - int(math.Round(span*float64(elapsed-half)/float64(half)))
}
