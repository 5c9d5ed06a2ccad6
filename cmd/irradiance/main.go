package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/icodeforyou/pvsoiling/calc"
	"github.com/icodeforyou/pvsoiling/config"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/openmeteo"
	"github.com/lmittmann/tint"
)

func main() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC3339Nano,
		}),
	))

	configPath := flag.String("config", "", "path to config file, the built in Open-Meteo urls are used when empty")
	lat := flag.Float64("lat", 0, "latitude")
	lon := flag.Float64("lon", 0, "longitude")
	date := flag.String("date", "", "day as YYYY-MM-DD, default: yesterday")
	tilt := flag.Float64("tilt", 0, "module tilt in degrees")
	kwp := flag.Float64("kwp", 0, "array power in kWp, prints the expected yield when set")
	flag.Parse()

	var weather config.AppConfigWeather
	if *configPath != "" {
		cnfg, err := config.Load(*configPath)
		if err != nil {
			panic(err)
		}
		weather = cnfg.Weather
	}

	day := days.Yesterday()
	if *date != "" {
		d, err := days.Parse(*date)
		if err != nil {
			panic(err)
		}
		day = d
	}

	client := openmeteo.New(weather.GetArchiveURL(), weather.GetForecastURL(), weather.GetTimeout())
	dw, err := client.GetDaily(context.Background(), *lat, *lon, day, !day.Before(days.Today()))
	if err != nil {
		panic(err)
	}

	poa := calc.ConvertGhiToPoa(dw.Ghi, *tilt)
	fmt.Printf("Date: %s, GHI: %.3f kWh/m², POA: %.3f kWh/m² (%.1f W/m²), Temp max: %.1f°C, Temp mean: %.1f°C\n",
		dw.Date, dw.Ghi, poa.KWh, poa.Wm2, dw.TempMax, dw.TempMean)

	if *kwp > 0 {
		th := calc.TheoreticalKWh(dw.Ghi, *tilt, dw.TempMax, 45, -0.4, *kwp)
		fmt.Printf("Cell temp: %.1f°C, Power: %.2f kW, Expected: %.2f kWh\n", th.CellTemp, th.PowerKW, th.EnergyKWh)
	}
}
