package solaredge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/types"
)

var (
	ErrInvalidKey       = errors.New("solaredge rejected the api key or site id")
	ErrUnexpectedStatus = errors.New("unexpected status from solaredge")
)

const (
	connectionTimeout = 10 * time.Second
	dataTimeout       = 30 * time.Second
)

// Client talks to the SolarEdge monitoring API for a single site.
type Client struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	siteID  string
	// Connection tests use a shorter timeout than data fetches.
	testClient *http.Client
	dataClient *http.Client
}

func New(logger *slog.Logger, baseURL, apiKey, siteID string) *Client {
	if baseURL == "" {
		baseURL = BASE_URL
	}
	return &Client{
		logger:     logger.With(slog.String("provider", "solaredge"), slog.String("site", siteID)),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		siteID:     siteID,
		testClient: &http.Client{Timeout: connectionTimeout},
		dataClient: &http.Client{Timeout: dataTimeout},
	}
}

// FetchReadings returns one reading per day in [start, end]. Days without a
// value are left out.
func (c *Client) FetchReadings(ctx context.Context, start, end days.Date) ([]types.DailyReading, error) {
	q := url.Values{}
	q.Set("timeUnit", "DAY")
	q.Set("startDate", start.String())
	q.Set("endDate", end.String())

	var res energyResponse
	if err := c.get(ctx, c.dataClient, "energy", q, &res); err != nil {
		return nil, err
	}

	perKWh, err := unitsPerKWh(res.Energy.Unit)
	if err != nil {
		return nil, err
	}

	readings := make([]types.DailyReading, 0, len(res.Energy.Values))
	for _, v := range res.Energy.Values {
		if v.Value == nil {
			continue
		}
		// Only the date part of "2006-01-02 15:04:05" is relevant.
		date, err := days.Parse(strings.SplitN(v.Date, " ", 2)[0])
		if err != nil {
			c.logger.Warn("skipping value with unparsable date", slog.String("date", v.Date))
			continue
		}
		readings = append(readings, types.DailyReading{Date: date, KWh: *v.Value / perKWh})
	}

	c.logger.Debug("fetched solaredge energy", slog.Int("days", len(readings)))
	return readings, nil
}

func (c *Client) TestConnection(ctx context.Context) types.ConnectionResult {
	var res detailsResponse
	if err := c.get(ctx, c.testClient, "details", nil, &res); err != nil {
		return types.ConnectionResult{Success: false, Error: err.Error()}
	}

	return types.ConnectionResult{
		Success: true,
		Metadata: map[string]any{
			"site_id":    res.Details.ID,
			"site_name":  res.Details.Name,
			"status":     res.Details.Status,
			"peak_power": res.Details.PeakPower,
			"country":    res.Details.Location.Country,
		},
	}
}

func (c *Client) get(ctx context.Context, client *http.Client, resource string, q url.Values, dest any) error {
	if q == nil {
		q = url.Values{}
	}
	reqURL := fmt.Sprintf("%s/site/%s/%s", c.baseURL, url.PathEscape(c.siteID), resource)
	c.logger.Debug("calling solaredge...", slog.String("url", reqURL+"?"+q.Encode()))
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("error creating solaredge request: %w", err)
	}
	res, err := client.Do(req)
	if err != nil {
		// The api key is part of the url, keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("error calling solaredge %s: %w", resource, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("error reading solaredge response body: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusForbidden:
		return ErrInvalidKey
	case res.StatusCode < 200 || res.StatusCode > 299:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("error unmarshaling solaredge json: %w", err)
	}
	return nil
}

func unitsPerKWh(unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "wh", "":
		return 1000, nil
	case "kwh":
		return 1, nil
	case "mwh":
		return 0.001, nil
	}
	return 0, fmt.Errorf("unknown solaredge energy unit %q", unit)
}
