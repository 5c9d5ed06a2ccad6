package irradiance

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/icodeforyou/pvsoiling/database"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/openmeteo"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unroundedProvider struct {
	calls int
}

func (p *unroundedProvider) GetDaily(_ context.Context, _, _ float64, date days.Date, _ bool) (openmeteo.DailyWeather, error) {
	p.calls++
	return openmeteo.DailyWeather{Date: date, Ghi: 25 / 3.6, TempMax: 29.123, TempMean: 22.456}, nil
}

func TestGetOrFetchCacheHitMatchesFirstFetch(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetLogger(slog.New(slog.DiscardHandler))
	t.Cleanup(db.Close)

	provider := &unroundedProvider{}
	s := newTestService(db, provider)

	first, err := s.GetOrFetch(ctx, 48.137, 11.575, "2025-06-01", 25)
	require.NoError(t, err)
	assert.Equal(t, types.IrradianceSourceAPI, first.Source)
	assert.Equal(t, 6.9444, first.Ghi)
	assert.Equal(t, 29.12, first.TempMax)
	assert.Equal(t, 22.46, first.TempMean)

	second, err := s.GetOrFetch(ctx, 48.137, 11.575, "2025-06-01", 25)
	require.NoError(t, err)
	assert.Equal(t, types.IrradianceSourceCache, second.Source)
	assert.Equal(t, 1, provider.calls)

	second.Source = first.Source
	assert.Equal(t, first, second)
}
