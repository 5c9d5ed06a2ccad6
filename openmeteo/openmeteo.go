package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/icodeforyou/pvsoiling/convert"
	"github.com/icodeforyou/pvsoiling/days"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status from open-meteo")
	ErrNoData           = errors.New("open-meteo returned no data for the requested day")
)

type Client struct {
	logger      *slog.Logger
	httpClient  *http.Client
	archiveURL  string
	forecastURL string
}

func New(archiveURL, forecastURL string, timeout time.Duration) *Client {
	if archiveURL == "" {
		archiveURL = ARCHIVE_URL
	}
	if forecastURL == "" {
		forecastURL = FORECAST_URL
	}
	return &Client{
		logger:      slog.Default().With(slog.String("module", "openmeteo")),
		httpClient:  &http.Client{Timeout: timeout},
		archiveURL:  archiveURL,
		forecastURL: forecastURL,
	}
}

// GetDaily fetches daily aggregates for a single day. The archive endpoint
// only has settled data, so days from today onwards must use the forecast.
func (c *Client) GetDaily(ctx context.Context, lat, lon float64, date days.Date, forecast bool) (DailyWeather, error) {
	base := c.archiveURL
	if forecast {
		base = c.forecastURL
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%0.4f", lat))
	q.Set("longitude", fmt.Sprintf("%0.4f", lon))
	q.Set("start_date", date.String())
	q.Set("end_date", date.String())
	q.Set("daily", "shortwave_radiation_sum,temperature_2m_max,temperature_2m_mean")
	q.Set("timezone", "auto")
	reqURL := base + "?" + q.Encode()

	c.logger.Debug("fetching daily weather from open-meteo...", slog.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return DailyWeather{}, fmt.Errorf("error creating open-meteo request: %w", err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return DailyWeather{}, fmt.Errorf("error getting open-meteo weather: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return DailyWeather{}, fmt.Errorf("error reading open-meteo response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
			return DailyWeather{}, fmt.Errorf("%w: %d, %s", ErrUnexpectedStatus, res.StatusCode, apiErr.Reason)
		}
		return DailyWeather{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}

	var om openMeteo
	if err := json.Unmarshal(body, &om); err != nil {
		return DailyWeather{}, fmt.Errorf("error unmarshaling open-meteo json: %w", err)
	}

	return toDailyWeather(om.Daily, date)
}

func toDailyWeather(d daily, date days.Date) (DailyWeather, error) {
	for i, t := range d.Time {
		if t != date.String() {
			continue
		}
		radiation, tMax, tMean := valueAt(d.ShortwaveRadiationSum, i), valueAt(d.Temperature2mMax, i), valueAt(d.Temperature2mMean, i)
		if radiation == nil || (tMax == nil && tMean == nil) {
			return DailyWeather{}, fmt.Errorf("%w: %s", ErrNoData, date)
		}
		// Fall back on whichever temperature we have.
		if tMax == nil {
			tMax = tMean
		}
		if tMean == nil {
			tMean = tMax
		}
		return DailyWeather{
			Date:     date,
			Ghi:      convert.MJToKWh(*radiation),
			TempMax:  *tMax,
			TempMean: *tMean,
		}, nil
	}

	return DailyWeather{}, fmt.Errorf("%w: %s", ErrNoData, date)
}

func valueAt(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
