package types

import (
	"fmt"
	"time"

	"github.com/icodeforyou/pvsoiling/calc"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/types/maybe"
)

type ReadingType string

const (
	ReadingDaily   ReadingType = "daily"
	ReadingWeekly  ReadingType = "weekly"
	ReadingMonthly ReadingType = "monthly"
)

func ParseReadingType(s string) (ReadingType, error) {
	switch t := ReadingType(s); t {
	case ReadingDaily, ReadingWeekly, ReadingMonthly:
		return t, nil
	case "":
		return ReadingDaily, nil
	}
	return "", fmt.Errorf("unknown reading type %q", s)
}

type ProductionReading struct {
	ID            string      `json:"id"`
	PlantID       string      `json:"plant_id"`
	UserID        string      `json:"user_id"`
	Date          days.Date   `json:"date"`
	KWhReal       float64     `json:"kwh_real"`
	Type          ReadingType `json:"reading_type"`
	IsCleaningDay bool        `json:"is_cleaning_day"`

	// Meteorological inputs
	Ghi              float64          `json:"ghi_kwh_m2"`
	Poa              float64          `json:"poa_kwh_m2"`
	TempMax          float64          `json:"temp_max"`
	TempMean         float64          `json:"temp_mean"`
	IrradianceSource IrradianceSource `json:"irradiance_source"`

	CellTemp               float64              `json:"cell_temp"`
	KWhTheoretical         float64              `json:"kwh_theoretical"`
	KWhLoss                float64              `json:"kwh_loss"`
	LossPercent            maybe.Maybe[float64] `json:"loss_percent"`
	LossCurrency           float64              `json:"loss_currency"`
	PRCurrent              maybe.Maybe[float64] `json:"pr_current"`
	PRBaseline             maybe.Maybe[float64] `json:"pr_baseline"`
	IsOutlier              bool                 `json:"is_outlier"`
	SoilingPercent         maybe.Maybe[float64] `json:"soiling_percent"`
	CumulativeLossKWh      float64              `json:"cumulative_loss_kwh"`
	CumulativeLossCurrency float64              `json:"cumulative_loss_currency"`
	Recommendation         calc.Recommendation  `json:"recommendation"`
	DaysToBreakeven        maybe.Maybe[int]     `json:"days_to_breakeven"` // null when not reachable
	CreatedAt              time.Time            `json:"created_at"`
}
