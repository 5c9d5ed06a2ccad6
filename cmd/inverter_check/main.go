package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/icodeforyou/pvsoiling/config"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/huawei"
	"github.com/icodeforyou/pvsoiling/inverter"
	"github.com/lmittmann/tint"
)

func main() {
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC3339Nano,
		}),
	)
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to config file, vendor defaults are used when empty")
	provider := flag.String("provider", "", "solaredge or huawei")
	credsPath := flag.String("credentials", "", "path to a credentials JSON file")
	fetch := flag.Int("days", 0, "also fetch this many days of readings, ending yesterday")
	flag.Parse()

	p, err := inverter.ParseProvider(*provider)
	if err != nil {
		panic(err)
	}

	data, err := os.ReadFile(*credsPath)
	if err != nil {
		panic(err)
	}
	creds, err := inverter.DecodeCredentials(p, data)
	if err != nil {
		panic(err)
	}

	var cnfg config.AppConfig
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			panic(err)
		}
		cnfg = *c
	}

	factory := inverter.NewFactory(logger.With("module", "inverter"), inverter.Options{
		SolarEdgeBaseURL: cnfg.SolarEdge.GetBaseURL(),
		Huawei: huawei.Options{
			BaseURL:     cnfg.Huawei.GetBaseURL(),
			SessionTTL:  cnfg.Huawei.GetSessionTTL(),
			MinInterval: cnfg.Huawei.GetMinRequestInterval(),
		},
	})

	ctx := context.Background()
	res := factory.TestConnection(ctx, creds)
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	if !res.Success || *fetch <= 0 {
		return
	}

	end := days.Yesterday()
	start := end.AddDays(-(*fetch - 1))
	readings, err := factory.FetchReadings(ctx, creds, creds.ExternalSiteID(), start, end)
	if err != nil {
		panic(err)
	}
	for _, r := range readings {
		fmt.Printf("Date: %s, Energy: %.2f kWh\n", r.Date, r.KWh)
	}
}
