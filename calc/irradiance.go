package calc

import (
	"math"

	"github.com/icodeforyou/pvsoiling/convert"
)

const (
	// Simplified tilt gain applied to horizontal irradiance. Not a
	// transposition model, kept as is so results stay comparable over time.
	tiltGain = 0.15
	// Daily irradiation is spread over this many hours to get W/m².
	effectiveSunHours = 8.0
	// Effective array power may exceed nameplate by this factor before it is clipped.
	clipHeadroom = 1.10

	stcTemperature = 25.0
)

type Poa struct {
	KWh float64 // Plane-of-array irradiation, kWh/m²/day
	Wm2 float64 // Equivalent irradiance over an effective sun-day, W/m²
}

func ConvertGhiToPoa(ghiKWh float64, tiltDegrees float64) Poa {
	factor := 1 + math.Sin(convert.DegToRad(tiltDegrees))*tiltGain
	poa := ghiKWh * factor
	return Poa{
		KWh: poa,
		Wm2: convert.KWhPerDayToWm2(poa, effectiveSunHours),
	}
}

// CellTemperature estimates cell temperature with the NOCT model.
func CellTemperature(ambient, noct, poaWm2 float64) float64 {
	return ambient + (noct-20)/800*poaWm2
}

// TempCorrectedPower derates (or boosts) nameplate power for cell
// temperature. tempCoeffPercent is normally negative.
func TempCorrectedPower(totalPowerKW, cellTemp, tempCoeffPercent float64) float64 {
	return totalPowerKW * (1 + (cellTemp-stcTemperature)*tempCoeffPercent/100)
}

// ClipPower limits effective power to [0, totalPowerKW * 1.10].
func ClipPower(power, totalPowerKW float64) float64 {
	return convert.Clamp(power, 0, totalPowerKW*clipHeadroom)
}

type Theoretical struct {
	Poa       Poa
	CellTemp  float64
	PowerKW   float64 // temperature corrected and clipped
	EnergyKWh float64
}

// TheoreticalKWh chains the POA conversion, the NOCT model, temperature
// correction and clipping into the expected daily energy of a clean array.
func TheoreticalKWh(ghiKWh, tiltDegrees, ambient, noct, tempCoeffPercent, totalPowerKW float64) Theoretical {
	poa := ConvertGhiToPoa(ghiKWh, tiltDegrees)
	cellTemp := CellTemperature(ambient, noct, poa.Wm2)
	power := ClipPower(TempCorrectedPower(totalPowerKW, cellTemp, tempCoeffPercent), totalPowerKW)
	return Theoretical{
		Poa:       poa,
		CellTemp:  cellTemp,
		PowerKW:   power,
		EnergyKWh: math.Max(0, power*poa.KWh),
	}
}
