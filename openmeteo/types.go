package openmeteo

import (
	"github.com/icodeforyou/pvsoiling/days"
)

const (
	ARCHIVE_URL  = "https://archive-api.open-meteo.com/v1/archive"
	FORECAST_URL = "https://api.open-meteo.com/v1/forecast"
)

type DailyWeather struct {
	Date days.Date
	/** Global horizontal irradiation (kWh/m²/day) */
	Ghi float64
	/** Maximum air temperature at 2 m (°C) */
	TempMax float64
	/** Mean air temperature at 2 m (°C) */
	TempMean float64
}

type openMeteo struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Timezone   string     `json:"timezone"`
	DailyUnits dailyUnits `json:"daily_units"`
	Daily      daily      `json:"daily"`
}

type dailyUnits struct {
	ShortwaveRadiationSum string `json:"shortwave_radiation_sum"`
	Temperature2mMax      string `json:"temperature_2m_max"`
	Temperature2mMean     string `json:"temperature_2m_mean"`
}

// Values are pointers since the API returns null for days without data.
type daily struct {
	Time                  []string   `json:"time"`
	ShortwaveRadiationSum []*float64 `json:"shortwave_radiation_sum"`
	Temperature2mMax      []*float64 `json:"temperature_2m_max"`
	Temperature2mMean     []*float64 `json:"temperature_2m_mean"`
}

type apiError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}
