package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailyResponse = `{
	"latitude": 59.33,
	"longitude": 18.07,
	"timezone": "Europe/Stockholm",
	"daily_units": {"shortwave_radiation_sum": "MJ/m²", "temperature_2m_max": "°C", "temperature_2m_mean": "°C"},
	"daily": {
		"time": ["2025-06-01"],
		"shortwave_radiation_sum": [25.92],
		"temperature_2m_max": [29.0],
		"temperature_2m_mean": [21.5]
	}
}`

func newTestServer(t *testing.T, status int, body string, paths *[]string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*paths = append(*paths, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "59.3293", q.Get("latitude"))
		assert.Equal(t, "18.0686", q.Get("longitude"))
		assert.Equal(t, q.Get("start_date"), q.Get("end_date"))
		assert.Equal(t, "shortwave_radiation_sum,temperature_2m_max,temperature_2m_mean", q.Get("daily"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetDaily(t *testing.T) {
	var paths []string
	srv := newTestServer(t, http.StatusOK, dailyResponse, &paths)
	c := New(srv.URL+"/archive", srv.URL+"/forecast", 5*time.Second)

	dw, err := c.GetDaily(context.Background(), 59.3293, 18.0686, "2025-06-01", false)
	require.NoError(t, err)
	assert.InDelta(t, 7.2, dw.Ghi, 1e-12)
	assert.Equal(t, 29.0, dw.TempMax)
	assert.Equal(t, 21.5, dw.TempMean)

	_, err = c.GetDaily(context.Background(), 59.3293, 18.0686, "2025-06-01", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"/archive", "/forecast"}, paths)
}

func TestGetDailyNullValues(t *testing.T) {
	body := `{"daily": {"time": ["2025-06-01"], "shortwave_radiation_sum": [null], "temperature_2m_max": [20.0], "temperature_2m_mean": [15.0]}}`
	var paths []string
	srv := newTestServer(t, http.StatusOK, body, &paths)
	c := New(srv.URL, srv.URL, 5*time.Second)

	_, err := c.GetDaily(context.Background(), 59.3293, 18.0686, "2025-06-01", false)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetDailyMissingDay(t *testing.T) {
	var paths []string
	srv := newTestServer(t, http.StatusOK, `{"daily": {"time": []}}`, &paths)
	c := New(srv.URL, srv.URL, 5*time.Second)

	_, err := c.GetDaily(context.Background(), 59.3293, 18.0686, "2025-06-01", false)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetDailyTemperatureFallback(t *testing.T) {
	body := `{"daily": {"time": ["2025-06-01"], "shortwave_radiation_sum": [3.6], "temperature_2m_max": [null], "temperature_2m_mean": [12.5]}}`
	var paths []string
	srv := newTestServer(t, http.StatusOK, body, &paths)
	c := New(srv.URL, srv.URL, 5*time.Second)

	dw, err := c.GetDaily(context.Background(), 59.3293, 18.0686, "2025-06-01", false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, dw.Ghi, 1e-12)
	assert.Equal(t, 12.5, dw.TempMax)
}

func TestGetDailyErrorStatus(t *testing.T) {
	var paths []string
	srv := newTestServer(t, http.StatusBadRequest, `{"error": true, "reason": "Parameter 'start_date' is out of allowed range"}`, &paths)
	c := New(srv.URL, srv.URL, 5*time.Second)

	_, err := c.GetDaily(context.Background(), 59.3293, 18.0686, "2025-06-01", false)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "out of allowed range")
}
