package calc

import (
	"github.com/icodeforyou/pvsoiling/days"
)

type LossPoint struct {
	Date     days.Date
	KWh      float64
	Currency float64
}

type Loss struct {
	KWh      float64
	Currency float64
}

// CumulativeLoss sums the measured losses of date ordered points and, for
// every pair of neighbours with missing days in between, adds
// missing * (loss_a + loss_b) / 2 for the unmeasured days.
func CumulativeLoss(points []LossPoint) Loss {
	var total Loss
	for i, p := range points {
		total.KWh += p.KWh
		total.Currency += p.Currency
		if i == 0 {
			continue
		}
		prev := points[i-1]
		missing := float64(prev.Date.DaysUntil(p.Date) - 1)
		if missing > 0 {
			total.KWh += missing * (prev.KWh + p.KWh) / 2
			total.Currency += missing * (prev.Currency + p.Currency) / 2
		}
	}
	return total
}
