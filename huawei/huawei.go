package huawei

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/types"
)

var (
	ErrRateLimited      = errors.New("huawei rate limit reached, try again later")
	ErrLoginFailed      = errors.New("huawei login failed")
	ErrUnexpectedStatus = errors.New("unexpected status from huawei")
	ErrStationNotFound  = errors.New("station code not found for this account")
)

const (
	connectionTimeout = 10 * time.Second
	dataTimeout       = 30 * time.Second
)

type Options struct {
	BaseURL string
	// A new login is made when the session is older than this.
	SessionTTL time.Duration
	// Minimum time between two authenticated calls.
	MinInterval time.Duration
}

// Client owns one FusionSolar session. It is not safe for concurrent use and
// is meant to live for a single sync attempt.
type Client struct {
	logger      *slog.Logger
	opts        Options
	username    string
	systemCode  string
	stationCode string
	httpClient  *http.Client
	xsrfToken   string
	loggedInAt  time.Time
	lastCall    time.Time
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(logger *slog.Logger, opts Options, username, systemCode, stationCode string) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = BASE_URL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 25 * time.Minute
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = 30 * time.Second
	}

	// cookiejar.New only fails on a broken public suffix list, which we don't pass.
	jar, _ := cookiejar.New(nil)

	return &Client{
		logger:      logger.With(slog.String("provider", "huawei"), slog.String("station", stationCode)),
		opts:        opts,
		username:    username,
		systemCode:  systemCode,
		stationCode: stationCode,
		httpClient:  &http.Client{Jar: jar, Timeout: dataTimeout},
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// FetchReadings asks for one day at a time. A day that fails is logged and
// skipped, the call only fails when no day could be fetched.
func (c *Client) FetchReadings(ctx context.Context, start, end days.Date) ([]types.DailyReading, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	var (
		readings []types.DailyReading
		lastErr  error
	)
	for d := start; !d.After(end); d = d.AddDays(1) {
		r, ok, err := c.fetchDay(ctx, d)
		if err != nil {
			lastErr = err
			c.logger.Warn("skipping day", slog.String("date", d.String()), slog.Any("error", err))
			if errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
				break
			}
			continue
		}
		if ok {
			readings = append(readings, r)
		}
	}

	if len(readings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return readings, nil
}

func (c *Client) fetchDay(ctx context.Context, d days.Date) (types.DailyReading, bool, error) {
	t := d.Time()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, days.Location())

	var list []kpiDay
	err := c.call(ctx, kpiDayPath, kpiRequest{StationCodes: c.stationCode, CollectTime: midnight.UnixMilli()}, &list)
	if err != nil {
		return types.DailyReading{}, false, err
	}

	// The response may cover more days than the one asked for.
	for _, kpi := range list {
		if kpi.StationCode != "" && kpi.StationCode != c.stationCode {
			continue
		}
		if days.FromTime(time.UnixMilli(kpi.CollectTime)) != d {
			continue
		}
		kwh, ok := dailyYield(kpi.DataItemMap)
		if !ok {
			return types.DailyReading{}, false, nil
		}
		return types.DailyReading{Date: d, KWh: kwh}, true, nil
	}
	return types.DailyReading{}, false, nil
}

// dailyYield prefers the inverter yield and falls back on the PV yield.
func dailyYield(m map[string]any) (float64, bool) {
	for _, key := range []string{"inverter_power", "PVYield"} {
		if v, ok := toFloat(m[key]); ok {
			return v, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func (c *Client) TestConnection(ctx context.Context) types.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := c.ensureSession(ctx); err != nil {
		return types.ConnectionResult{Success: false, Error: err.Error()}
	}

	var stations []station
	if err := c.call(ctx, stationListPath, struct{}{}, &stations); err != nil {
		return types.ConnectionResult{Success: false, Error: err.Error()}
	}

	for _, s := range stations {
		if s.StationCode == c.stationCode {
			return types.ConnectionResult{
				Success: true,
				Metadata: map[string]any{
					"station_code": s.StationCode,
					"station_name": s.StationName,
					"capacity":     s.Capacity,
					"address":      s.StationAddr,
					"stations":     len(stations),
				},
			}
		}
	}

	return types.ConnectionResult{Success: false, Error: fmt.Sprintf("%s: %s", ErrStationNotFound, c.stationCode)}
}

func (c *Client) ensureSession(ctx context.Context) error {
	if c.xsrfToken != "" && c.now().Sub(c.loggedInAt) < c.opts.SessionTTL {
		return nil
	}
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	c.logger.Debug("logging in to huawei")

	res, env, err := c.post(ctx, loginPath, loginRequest{UserName: c.username, SystemCode: c.systemCode})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if !env.Success {
		return fmt.Errorf("%w: %w", ErrLoginFailed, apiError(env))
	}

	token := res.Header.Get("xsrf-token")
	for _, ck := range res.Cookies() {
		if ck.Name == "XSRF-TOKEN" {
			token = ck.Value
		}
	}
	if token == "" {
		return fmt.Errorf("%w: no XSRF-TOKEN in response", ErrLoginFailed)
	}

	c.xsrfToken = token
	c.loggedInAt = c.now()
	return nil
}

// call performs an authenticated request and logs in again once if the
// session has expired on the server side.
func (c *Client) call(ctx context.Context, path string, body any, dest any) error {
	for attempt := 0; ; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return err
		}

		_, env, err := c.post(ctx, path, body)
		if err != nil {
			return err
		}

		if !env.Success {
			switch env.FailCode {
			case failCodeSessionExpired:
				if attempt == 0 {
					c.logger.Debug("huawei session expired, logging in again")
					c.xsrfToken = ""
					if err := c.login(ctx); err != nil {
						return err
					}
					continue
				}
			case failCodeRateLimited:
				return fmt.Errorf("%w: %w", ErrRateLimited, apiError(env))
			}
			return apiError(env)
		}

		if dest != nil && len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, dest); err != nil {
				return fmt.Errorf("error unmarshaling huawei data from %s: %w", path, err)
			}
		}
		return nil
	}
}

func (c *Client) throttle(ctx context.Context) error {
	if !c.lastCall.IsZero() {
		if wait := c.lastCall.Add(c.opts.MinInterval).Sub(c.now()); wait > 0 {
			c.logger.Debug("waiting for huawei rate limit", slog.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	c.lastCall = c.now()
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, envelope{}, fmt.Errorf("error marshaling huawei request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, envelope{}, fmt.Errorf("error creating huawei request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.xsrfToken != "" {
		req.Header.Set("XSRF-TOKEN", c.xsrfToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, envelope{}, fmt.Errorf("error calling huawei %s: %w", path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, envelope{}, fmt.Errorf("error reading huawei response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, envelope{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, envelope{}, fmt.Errorf("error unmarshaling huawei json: %w", err)
	}

	return res, env, nil
}

func apiError(env envelope) *APIError {
	e := &APIError{FailCode: env.FailCode}
	if env.Message != nil {
		e.Message = *env.Message
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
