package calc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertGhiToPoa(t *testing.T) {
	flat := ConvertGhiToPoa(6.0, 0)
	assert.InDelta(t, 6.0, flat.KWh, 1e-12)
	assert.InDelta(t, 750.0, flat.Wm2, 1e-9)

	vertical := ConvertGhiToPoa(6.0, 90)
	assert.InDelta(t, 6.9, vertical.KWh, 1e-12)

	tilted := ConvertGhiToPoa(7.2, 20)
	assert.InDelta(t, 7.2*(1+math.Sin(20*math.Pi/180)*0.15), tilted.KWh, 1e-12)
	assert.InDelta(t, tilted.KWh*1000/8, tilted.Wm2, 1e-9)
}

func TestCellTemperature(t *testing.T) {
	assert.InDelta(t, 45.0, CellTemperature(20, 45, 800), 1e-12)
	assert.InDelta(t, 10.0, CellTemperature(10, 45, 0), 1e-12)
}

func TestTempCorrectedPower(t *testing.T) {
	assert.InDelta(t, 10.0, TempCorrectedPower(10, 25, -0.4), 1e-12)
	assert.InDelta(t, 9.6, TempCorrectedPower(10, 35, -0.4), 1e-12)
	assert.InDelta(t, 10.4, TempCorrectedPower(10, 15, -0.4), 1e-12)
}

func TestClipPower(t *testing.T) {
	assert.InDelta(t, 9.68, ClipPower(12, 8.8), 1e-12)
	assert.Equal(t, 0.0, ClipPower(-1, 8.8))
	assert.Equal(t, 8.0, ClipPower(8, 8.8))
}

func TestTheoreticalKWhGoldenValue(t *testing.T) {
	th := TheoreticalKWh(7.2, 20, 29, 45, -0.4, 8.8)

	assert.InDelta(t, 7.569381754791722, th.Poa.KWh, 1e-9)
	assert.InDelta(t, 946.1727193489653, th.Poa.Wm2, 1e-9)
	assert.InDelta(t, 58.567897479655166, th.CellTemp, 1e-9)
	assert.InDelta(t, 7.618410008716139, th.PowerKW, 1e-9)
	assert.InDelta(t, 57.66665372049859, th.EnergyKWh, 1e-9)
	assert.LessOrEqual(t, th.PowerKW, 8.8*1.10)
}

func TestTheoreticalKWhClipsAndFloors(t *testing.T) {
	// Very cold and bright: correction exceeds clip headroom.
	cold := TheoreticalKWh(8, 0, -60, 45, -0.4, 10)
	assert.InDelta(t, 11.0, cold.PowerKW, 1e-12)
	assert.InDelta(t, 88.0, cold.EnergyKWh, 1e-9)

	// Absurd heat derates below zero and is floored.
	hot := TheoreticalKWh(8, 0, 300, 45, -0.4, 10)
	assert.Equal(t, 0.0, hot.PowerKW)
	assert.Equal(t, 0.0, hot.EnergyKWh)

	dark := TheoreticalKWh(0, 30, 15, 45, -0.4, 10)
	assert.Equal(t, 0.0, dark.EnergyKWh)
}
