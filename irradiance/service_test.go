package irradiance

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/openmeteo"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records  map[string]types.IrradianceRecord
	readErr  error
	writeErr error
	writes   int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]types.IrradianceRecord)}
}

func (m *memStore) GetIrradiance(_ context.Context, key string) (types.IrradianceRecord, error) {
	if m.readErr != nil {
		return types.IrradianceRecord{}, m.readErr
	}
	rec, ok := m.records[key]
	if !ok {
		return types.IrradianceRecord{}, types.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) UpsertIrradiance(_ context.Context, rec types.IrradianceRecord) error {
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	m.records[rec.Key] = rec
	return nil
}

type fakeProvider struct {
	calls     int
	forecasts []bool
	err       error
}

func (f *fakeProvider) GetDaily(_ context.Context, _, _ float64, date days.Date, forecast bool) (openmeteo.DailyWeather, error) {
	f.calls++
	f.forecasts = append(f.forecasts, forecast)
	if f.err != nil {
		return openmeteo.DailyWeather{}, f.err
	}
	return openmeteo.DailyWeather{Date: date, Ghi: 7.2, TempMax: 29, TempMean: 22}, nil
}

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestService(store Store, provider WeatherProvider) *Service {
	s := NewService(slog.New(slog.DiscardHandler), store, provider)
	s.now = func() time.Time { return now }
	return s
}

func TestGetOrFetchCachesHistoricalDays(t *testing.T) {
	store, provider := newMemStore(), &fakeProvider{}
	s := newTestService(store, provider)

	first, err := s.GetOrFetch(context.Background(), 59.3293, 18.0686, "2025-06-01", 20)
	require.NoError(t, err)
	assert.Equal(t, types.IrradianceSourceAPI, first.Source)

	// Within the same rounded cell.
	second, err := s.GetOrFetch(context.Background(), 59.3312, 18.0711, "2025-06-01", 20)
	require.NoError(t, err)
	assert.Equal(t, types.IrradianceSourceCache, second.Source)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, []bool{false}, provider.forecasts)
	assert.Equal(t, first.Ghi, second.Ghi)
	assert.Equal(t, first.Poa, second.Poa)
	assert.Equal(t, first.TempMax, second.TempMax)
	assert.Equal(t, first.TempMean, second.TempMean)

	rec := store.records["59.33_18.07_2025-06-01"]
	assert.False(t, rec.ExpiresAt.IsValid())
	assert.Equal(t, 59.33, rec.Latitude)
}

func TestGetOrFetchTodayExpires(t *testing.T) {
	store, provider := newMemStore(), &fakeProvider{}
	s := newTestService(store, provider)

	_, err := s.GetOrFetch(context.Background(), 59.33, 18.07, days.FromTime(now), 20)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, provider.forecasts)

	rec := store.records[types.IrradianceKey(59.33, 18.07, days.FromTime(now))]
	require.True(t, rec.ExpiresAt.IsValid())
	assert.Equal(t, now.Add(24*time.Hour), rec.ExpiresAt.Value())

	// Still valid an hour later, refetched once expired.
	s.now = func() time.Time { return now.Add(time.Hour) }
	data, err := s.GetOrFetch(context.Background(), 59.33, 18.07, days.FromTime(now), 20)
	require.NoError(t, err)
	assert.Equal(t, types.IrradianceSourceCache, data.Source)

	s.now = func() time.Time { return now.Add(25 * time.Hour) }
	data, err = s.GetOrFetch(context.Background(), 59.33, 18.07, days.FromTime(now), 20)
	require.NoError(t, err)
	assert.Equal(t, types.IrradianceSourceAPI, data.Source)
	assert.Equal(t, 2, provider.calls)
	// Now the day is in the past and the archive is used.
	assert.Equal(t, []bool{true, false}, provider.forecasts)
}

func TestGetOrFetchRecomputesPoaForTilt(t *testing.T) {
	store, provider := newMemStore(), &fakeProvider{}
	s := newTestService(store, provider)

	flat, err := s.GetOrFetch(context.Background(), 59.33, 18.07, "2025-06-01", 0)
	require.NoError(t, err)
	tilted, err := s.GetOrFetch(context.Background(), 59.33, 18.07, "2025-06-01", 30)
	require.NoError(t, err)

	assert.Equal(t, types.IrradianceSourceCache, tilted.Source)
	assert.InDelta(t, 7.2, flat.Poa, 1e-12)
	assert.InDelta(t, 7.2*1.075, tilted.Poa, 1e-9)
}

func TestGetOrFetchCacheWriteFailureIsIgnored(t *testing.T) {
	store, provider := newMemStore(), &fakeProvider{}
	store.writeErr = errors.New("disk full")
	s := newTestService(store, provider)

	data, err := s.GetOrFetch(context.Background(), 59.33, 18.07, "2025-06-01", 20)
	require.NoError(t, err)
	assert.Equal(t, types.IrradianceSourceAPI, data.Source)
	assert.Equal(t, 1, store.writes)
}

func TestGetOrFetchCacheReadFailureFallsBack(t *testing.T) {
	store, provider := newMemStore(), &fakeProvider{}
	store.readErr = errors.New("database is locked")
	s := newTestService(store, provider)

	data, err := s.GetOrFetch(context.Background(), 59.33, 18.07, "2025-06-01", 20)
	require.NoError(t, err)
	assert.Equal(t, types.IrradianceSourceAPI, data.Source)
}

func TestGetOrFetchProviderError(t *testing.T) {
	store, provider := newMemStore(), &fakeProvider{err: openmeteo.ErrNoData}
	s := newTestService(store, provider)

	_, err := s.GetOrFetch(context.Background(), 59.33, 18.07, "2025-06-01", 20)
	assert.ErrorIs(t, err, openmeteo.ErrNoData)
	assert.Empty(t, store.records)
}
