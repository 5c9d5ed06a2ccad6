package calc

import (
	"math"

	"github.com/icodeforyou/pvsoiling/types/maybe"
)

type Recommendation string

const (
	RecommendationOK          Recommendation = "OK"
	RecommendationWatch       Recommendation = "WATCH"
	RecommendationRecommended Recommendation = "RECOMMENDED"
	RecommendationUrgent      Recommendation = "URGENT"
)

// UnreachableBreakevenDays is the legacy sentinel for a break-even that can
// not be reached at the current loss rate. New code uses maybe.None.
const UnreachableBreakevenDays = 9999

func (r Recommendation) IsValid() bool {
	switch r {
	case RecommendationOK, RecommendationWatch, RecommendationRecommended, RecommendationUrgent:
		return true
	}
	return false
}

type CleaningAdvice struct {
	Recommendation  Recommendation
	DaysToBreakeven maybe.Maybe[int] // None when break-even is not reachable
}

// CleaningRecommendation applies the tier policy, first match wins:
// URGENT, RECOMMENDED, WATCH, OK. An unknown soiling percentage counts as 0.
func CleaningRecommendation(soilingPercent maybe.Maybe[float64], cumulativeLoss, cleaningCost, dailyLoss float64) CleaningAdvice {
	soiling := soilingPercent.ValueOrDefault(0)

	var rec Recommendation
	switch {
	case soiling > 15 || cumulativeLoss > 2*cleaningCost:
		rec = RecommendationUrgent
	case soiling > 7 || cumulativeLoss > 0.8*cleaningCost:
		rec = RecommendationRecommended
	case soiling > 3:
		rec = RecommendationWatch
	default:
		rec = RecommendationOK
	}

	return CleaningAdvice{
		Recommendation:  rec,
		DaysToBreakeven: DaysToBreakeven(cumulativeLoss, cleaningCost, dailyLoss),
	}
}

func DaysToBreakeven(cumulativeLoss, cleaningCost, dailyLoss float64) maybe.Maybe[int] {
	remaining := cleaningCost - cumulativeLoss
	if remaining <= 0 {
		return maybe.Some(0)
	}
	if dailyLoss <= 0 {
		return maybe.None[int]()
	}
	return maybe.Some(int(math.Ceil(remaining / dailyLoss)))
}
