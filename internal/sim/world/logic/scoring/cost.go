package scoring

import (
	"math"

	"spancraft.ai/internal/sim/world/logic/mathx"
)

// HeightPenalty taxes building above y=2 exponentially.
func HeightPenalty(y int) float64 {
	if y <= 2 {
		return 1
	}
	return math.Pow(1.15, float64(y-2))
}

// SlopePenalty grows with how far a column sits from the mean of its four neighbours.
func SlopePenalty(local int, neighbourMean float64) float64 {
	return 1 + 0.2*math.Abs(float64(local)-neighbourMean)
}

func BlockCost(base float64, y, local int, neighbourMean float64) int {
	return mathx.Round(base * HeightPenalty(y) * SlopePenalty(local, neighbourMean))
}

// SpanPenalty is 1 within 0.8..1.2 of the optimal span. Short spans add 0.3 per
// unit of ratio below the band, long spans 0.5 per unit above it.
func SpanPenalty(span, optimal float64) float64 {
	if optimal <= 0 {
		return 1
	}
	r := span / optimal
	switch {
	case r < 0.8:
		return 1 + 0.3*(0.8-r)
	case r > 1.2:
		return 1 + 0.5*(r-1.2)
	}
	return 1
}

func ConductorCost(base, span, optimal float64) int {
	return mathx.Round(base * SpanPenalty(span, optimal))
}

// Stars grades spend against budget: 3 within budget, 2 within 150%, else 1.
func Stars(spent, budget int) int {
	if budget <= 0 {
		if spent <= 0 {
			return 3
		}
		return 1
	}
	switch {
	case spent <= budget:
		return 3
	case spent*2 <= budget*3:
		return 2
	}
	return 1
}
