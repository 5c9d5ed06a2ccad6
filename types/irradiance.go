package types

import (
	"fmt"
	"time"

	"github.com/icodeforyou/pvsoiling/convert"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/types/maybe"
)

type IrradianceSource string

const (
	IrradianceSourceCache IrradianceSource = "cache"
	IrradianceSourceAPI   IrradianceSource = "api"
)

type IrradianceData struct {
	Ghi      float64          `json:"ghi_kwh_m2"` // Global horizontal irradiation, kWh/m²/day
	Poa      float64          `json:"poa_kwh_m2"` // Plane-of-array irradiation, kWh/m²/day
	TempMax  float64          `json:"temp_max"`
	TempMean float64          `json:"temp_mean"`
	Source   IrradianceSource `json:"source"`
}

// IrradianceRecord is a cache entry shared by every plant within ~1 km.
type IrradianceRecord struct {
	Key       string
	Latitude  float64
	Longitude float64
	Date      days.Date
	Ghi       float64
	Poa       float64
	TempMax   float64
	TempMean  float64
	ExpiresAt maybe.Maybe[time.Time] // None never expires
}

func (r IrradianceRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt.IsValid() && !now.Before(r.ExpiresAt.Value())
}

// IrradianceKey rounds the coordinates to two decimals.
func IrradianceKey(lat, lon float64, date days.Date) string {
	return fmt.Sprintf("%.2f_%.2f_%s", keyCoordinate(lat), keyCoordinate(lon), date)
}

// Values rounding to zero from below would otherwise print as -0.00.
func keyCoordinate(v float64) float64 {
	r := convert.TwoDecimals(v)
	if r == 0 {
		return 0
	}
	return r
}
