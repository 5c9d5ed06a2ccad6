package types

type Plant struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	Name             string  `json:"name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	ModuleCount      int     `json:"module_count"`
	ModulePowerW     float64 `json:"module_power_w"`
	ModuleAreaM2     float64 `json:"module_area_m2"`
	Tilt             float64 `json:"tilt"`              // Degrees from horizontal
	Azimuth          float64 `json:"azimuth"`           // Degrees, 180 = south
	Noct             float64 `json:"noct"`              // Nominal operating cell temperature in °C
	TempCoefficient  float64 `json:"temp_coefficient"`  // Power temperature coefficient in %/°C, normally negative
	ModuleEfficiency float64 `json:"module_efficiency"` // Fraction, e.g. 0.21
	EnergyPrice      float64 `json:"energy_price"`      // Currency per kWh
	CleaningCost     float64 `json:"cleaning_cost"`     // Currency per cleaning
	Currency         string  `json:"currency"`
}

func (p Plant) TotalPowerKW() float64 {
	return float64(p.ModuleCount) * p.ModulePowerW / 1000
}

func (p Plant) TotalAreaM2() float64 {
	return float64(p.ModuleCount) * p.ModuleAreaM2
}
