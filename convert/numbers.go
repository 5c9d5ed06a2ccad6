package convert

import (
	"math"
)

func TwoDecimals(number float64) float64 {
	return RoundFloat64(number, 2)
}

func RoundFloat64(number float64, decimals int) float64 {
	return math.Round(number*math.Pow10(int(decimals))) / math.Pow10(int(decimals))
}

// MJToKWh converts MJ/m² to kWh/m² (1 kWh = 3.6 MJ).
func MJToKWh(mj float64) float64 {
	return mj / 3.6
}

// KWhPerDayToWm2 spreads a daily irradiation over an effective sun-day of
// the given length and returns the equivalent irradiance in W/m².
func KWhPerDayToWm2(kwh float64, sunHours float64) float64 {
	return kwh * 1000 / sunHours
}

func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
