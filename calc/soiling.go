package calc

import (
	"math"

	"github.com/icodeforyou/pvsoiling/types/maybe"
)

const (
	MinValidPR = 0.30
	MaxValidPR = 1.05
)

func PerformanceRatio(kwhReal, kwhTheoretical float64) maybe.Maybe[float64] {
	if kwhTheoretical == 0 {
		return maybe.None[float64]()
	}
	return maybe.Some(kwhReal / kwhTheoretical)
}

// IsOutlierReading flags ratios that point to sensor or input errors.
// The bounds themselves are valid.
func IsOutlierReading(pr float64) bool {
	return pr < MinValidPR || pr > MaxValidPR
}

func SoilingPercent(prCurrent, prBaseline maybe.Maybe[float64]) maybe.Maybe[float64] {
	if !prCurrent.IsValid() || !prBaseline.IsValid() || prBaseline.Value() == 0 {
		return maybe.None[float64]()
	}
	return maybe.Some(math.Max(0, (1-prCurrent.Value()/prBaseline.Value())*100))
}

// LossPercent is the shortfall against the theoretical yield, whatever the cause.
func LossPercent(kwhReal, kwhTheoretical float64) maybe.Maybe[float64] {
	if kwhTheoretical == 0 {
		return maybe.None[float64]()
	}
	return maybe.Some(math.Max(0, (1-kwhReal/kwhTheoretical)*100))
}

// DailyLossKWh is the energy a clean array would have produced on top of
// the measured value: theoretical * baseline - real, never negative.
func DailyLossKWh(kwhReal, kwhTheoretical float64, prBaseline maybe.Maybe[float64]) float64 {
	if !prBaseline.IsValid() {
		return 0
	}
	return math.Max(0, kwhTheoretical*prBaseline.Value()-kwhReal)
}
