package inverter

import (
	"context"
	"log/slog"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/huawei"
	"github.com/icodeforyou/pvsoiling/types"
)

type Options struct {
	SolarEdgeBaseURL string
	Huawei           huawei.Options
}

// Factory creates a fresh vendor client for every call, clients keep
// session and throttle state that must not be shared between sync attempts.
type Factory struct {
	logger *slog.Logger
	opts   Options
}

func NewFactory(logger *slog.Logger, opts Options) *Factory {
	return &Factory{logger: logger, opts: opts}
}

// NewClient returns a client for the plant identified by externalSiteID, or
// by the credentials when externalSiteID is empty.
func (f *Factory) NewClient(c Credentials, externalSiteID string) types.InverterClient {
	if externalSiteID == "" {
		externalSiteID = c.ExternalSiteID()
	}
	return c.newClient(f.logger, f.opts, externalSiteID)
}

func (f *Factory) FetchReadings(ctx context.Context, c Credentials, externalSiteID string, start, end days.Date) ([]types.DailyReading, error) {
	return f.NewClient(c, externalSiteID).FetchReadings(ctx, start, end)
}

func (f *Factory) TestConnection(ctx context.Context, c Credentials) types.ConnectionResult {
	f.logger.Debug("testing inverter connection", slog.String("provider", c.Provider().String()))
	return f.NewClient(c, "").TestConnection(ctx)
}
