package huawei

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationCode = "NE=33554875"

type fakeFusionSolar struct {
	t        *testing.T
	logins   int
	kpiCalls int
	// Fail code returned by getKpiStationDay for a given day, 0 for success.
	failOn        map[days.Date]int
	expireOnce    bool
	missingPower  bool
	wrongUsername bool
}

func (f *fakeFusionSolar) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond := func(success bool, failCode int, data any) {
			json.NewEncoder(w).Encode(map[string]any{"success": success, "failCode": failCode, "data": data})
		}

		if r.URL.Path == loginPath {
			var req loginRequest
			assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
			if f.wrongUsername || req.UserName != "api-user" {
				respond(false, 20001, nil)
				return
			}
			f.logins++
			http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: fmt.Sprintf("token-%d", f.logins)})
			respond(true, 0, nil)
			return
		}

		if r.Header.Get("XSRF-TOKEN") != fmt.Sprintf("token-%d", f.logins) {
			respond(false, failCodeSessionExpired, nil)
			return
		}

		switch r.URL.Path {
		case stationListPath:
			respond(true, 0, []station{{StationCode: stationCode, StationName: "Roof", Capacity: 8.8}})
		case kpiDayPath:
			f.kpiCalls++
			var req kpiRequest
			assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(f.t, stationCode, req.StationCodes)

			if f.expireOnce {
				f.expireOnce = false
				respond(false, failCodeSessionExpired, nil)
				return
			}
			day := days.FromTime(time.UnixMilli(req.CollectTime))
			if code := f.failOn[day]; code != 0 {
				respond(false, code, nil)
				return
			}
			items := map[string]any{"inverter_power": 40.5, "PVYield": 41.0}
			if f.missingPower {
				items = map[string]any{"inverter_power": nil, "PVYield": "39.25"}
			}
			respond(true, 0, []kpiDay{{StationCode: stationCode, CollectTime: req.CollectTime, DataItemMap: items}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newTestClient(t *testing.T, fake *fakeFusionSolar) (*Client, *fakeClock) {
	t.Helper()
	fake.t = t
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	clock := &fakeClock{now: time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)}
	c := New(slog.New(slog.DiscardHandler), Options{BaseURL: srv.URL}, "api-user", "sys-code", stationCode)
	c.now = func() time.Time { return clock.now }
	c.sleep = func(_ context.Context, d time.Duration) error {
		clock.sleeps = append(clock.sleeps, d)
		clock.now = clock.now.Add(d)
		return nil
	}
	return c, clock
}

func TestFetchReadingsOneDayAtATime(t *testing.T) {
	fake := &fakeFusionSolar{}
	c, clock := newTestClient(t, fake)

	readings, err := c.FetchReadings(context.Background(), "2025-06-08", "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, []types.DailyReading{
		{Date: "2025-06-08", KWh: 40.5},
		{Date: "2025-06-09", KWh: 40.5},
	}, readings)
	assert.Equal(t, 1, fake.logins)
	assert.Equal(t, 2, fake.kpiCalls)
	assert.Equal(t, []time.Duration{30 * time.Second}, clock.sleeps)
}

func TestFetchReadingsFallsBackOnPVYield(t *testing.T) {
	fake := &fakeFusionSolar{missingPower: true}
	c, _ := newTestClient(t, fake)

	readings, err := c.FetchReadings(context.Background(), "2025-06-08", "2025-06-08")
	require.NoError(t, err)
	assert.Equal(t, []types.DailyReading{{Date: "2025-06-08", KWh: 39.25}}, readings)
}

func TestFetchReadingsLogsInAgainOnExpiredSession(t *testing.T) {
	fake := &fakeFusionSolar{expireOnce: true}
	c, _ := newTestClient(t, fake)

	readings, err := c.FetchReadings(context.Background(), "2025-06-08", "2025-06-08")
	require.NoError(t, err)
	assert.Len(t, readings, 1)
	assert.Equal(t, 2, fake.logins)
}

func TestFetchReadingsSkipsFailingDay(t *testing.T) {
	fake := &fakeFusionSolar{failOn: map[days.Date]int{"2025-06-08": 20400}}
	c, _ := newTestClient(t, fake)

	readings, err := c.FetchReadings(context.Background(), "2025-06-08", "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, []types.DailyReading{{Date: "2025-06-09", KWh: 40.5}}, readings)
}

func TestFetchReadingsRateLimited(t *testing.T) {
	fake := &fakeFusionSolar{failOn: map[days.Date]int{"2025-06-08": failCodeRateLimited}}
	c, _ := newTestClient(t, fake)

	_, err := c.FetchReadings(context.Background(), "2025-06-08", "2025-06-09")
	assert.ErrorIs(t, err, ErrRateLimited)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, failCodeRateLimited, apiErr.FailCode)
	// No further days are requested once rate limited.
	assert.Equal(t, 1, fake.kpiCalls)
}

func TestSessionIsReusedUntilTTL(t *testing.T) {
	fake := &fakeFusionSolar{}
	c, clock := newTestClient(t, fake)

	_, err := c.FetchReadings(context.Background(), "2025-06-08", "2025-06-08")
	require.NoError(t, err)
	clock.now = clock.now.Add(10 * time.Minute)
	_, err = c.FetchReadings(context.Background(), "2025-06-09", "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.logins)

	clock.now = clock.now.Add(26 * time.Minute)
	_, err = c.FetchReadings(context.Background(), "2025-06-09", "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.logins)
}

func TestTestConnection(t *testing.T) {
	fake := &fakeFusionSolar{}
	c, _ := newTestClient(t, fake)

	res := c.TestConnection(context.Background())
	assert.True(t, res.Success)
	assert.Equal(t, "Roof", res.Metadata["station_name"])

	other := New(slog.New(slog.DiscardHandler), c.opts, "api-user", "sys-code", "NE=1")
	res = other.TestConnection(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrStationNotFound.Error())
}

func TestTestConnectionLoginFailure(t *testing.T) {
	fake := &fakeFusionSolar{wrongUsername: true}
	c, _ := newTestClient(t, fake)

	res := c.TestConnection(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrLoginFailed.Error())
	assert.Contains(t, res.Error, "20001")
}
