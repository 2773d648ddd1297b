package app

import (
	"math"
	"time"
)

const (
	basePoints    = 1000
	maxSpeedBonus = 500
)

// Points awards base points plus a speed bonus that shrinks linearly to zero
// as elapsed approaches limit. Incorrect answers score zero.
func Points(correct bool, elapsed, limit time.Duration) int {
	if !correct {
		return 0
	}
	if limit <= 0 {
		return basePoints
	}
	ratio := float64(limit-elapsed) / float64(limit)
	ratio = math.Max(0, math.Min(1, ratio))
	return basePoints + int(math.Floor(ratio*maxSpeedBonus))
}
