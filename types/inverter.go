package types

import (
	"context"

	"github.com/icodeforyou/pvsoiling/days"
)

type DailyReading struct {
	Date days.Date `json:"date"`
	KWh  float64   `json:"kwh"`
}

type ConnectionResult struct {
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// InverterClient is implemented once per vendor.
type InverterClient interface {
	FetchReadings(ctx context.Context, start, end days.Date) ([]DailyReading, error)
	TestConnection(ctx context.Context) ConnectionResult
}
