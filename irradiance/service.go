package irradiance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/pvsoiling/calc"
	"github.com/icodeforyou/pvsoiling/convert"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/openmeteo"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/icodeforyou/pvsoiling/types/maybe"
)

// Forecast values for today are provisional, the archive supersedes them.
const provisionalTTL = 24 * time.Hour

type Store interface {
	GetIrradiance(ctx context.Context, key string) (types.IrradianceRecord, error)
	UpsertIrradiance(ctx context.Context, rec types.IrradianceRecord) error
}

type WeatherProvider interface {
	GetDaily(ctx context.Context, lat, lon float64, date days.Date, forecast bool) (openmeteo.DailyWeather, error)
}

// Service is a cache-aside lookup in front of the weather provider.
// Concurrent misses for the same key may both fetch, the upsert is idempotent.
type Service struct {
	logger   *slog.Logger
	store    Store
	provider WeatherProvider
	now      func() time.Time
}

func NewService(logger *slog.Logger, store Store, provider WeatherProvider) *Service {
	return &Service{
		logger:   logger,
		store:    store,
		provider: provider,
		now:      time.Now,
	}
}

func (s *Service) GetOrFetch(ctx context.Context, lat, lon float64, date days.Date, tilt float64) (types.IrradianceData, error) {
	key := types.IrradianceKey(lat, lon, date)
	now := s.now()

	rec, err := s.store.GetIrradiance(ctx, key)
	switch {
	case err == nil && !rec.IsExpired(now):
		return types.IrradianceData{
			Ghi:      rec.Ghi,
			Poa:      calc.ConvertGhiToPoa(rec.Ghi, tilt).KWh,
			TempMax:  rec.TempMax,
			TempMean: rec.TempMean,
			Source:   types.IrradianceSourceCache,
		}, nil
	case err == nil:
		s.logger.Debug("irradiance cache entry expired", slog.String("key", key))
	case !errors.Is(err, types.ErrNotFound):
		s.logger.Warn("irradiance cache read failed, fetching from provider", slog.String("key", key), slog.Any("error", err))
	}

	today := days.FromTime(now)
	forecast := !date.Before(today)
	dw, err := s.provider.GetDaily(ctx, convert.RoundFloat64(lat, 4), convert.RoundFloat64(lon, 4), date, forecast)
	if err != nil {
		return types.IrradianceData{}, fmt.Errorf("fetching irradiance for %s: %w", key, err)
	}

	// Rounded like the cache columns so a later hit returns the same numbers.
	ghi := convert.RoundFloat64(dw.Ghi, 4)
	tempMax := convert.TwoDecimals(dw.TempMax)
	tempMean := convert.TwoDecimals(dw.TempMean)

	poa := calc.ConvertGhiToPoa(ghi, tilt).KWh
	expiresAt := maybe.None[time.Time]()
	if forecast {
		expiresAt = maybe.Some(now.Add(provisionalTTL))
	}

	// Best effort, a failed cache write must never fail the read.
	if err := s.store.UpsertIrradiance(ctx, types.IrradianceRecord{
		Key:       key,
		Latitude:  convert.TwoDecimals(lat),
		Longitude: convert.TwoDecimals(lon),
		Date:      date,
		Ghi:       ghi,
		Poa:       poa,
		TempMax:   tempMax,
		TempMean:  tempMean,
		ExpiresAt: expiresAt,
	}); err != nil {
		s.logger.Warn("irradiance cache write failed", slog.String("key", key), slog.Any("error", err))
	}

	return types.IrradianceData{
		Ghi:      ghi,
		Poa:      poa,
		TempMax:  tempMax,
		TempMean: tempMean,
		Source:   types.IrradianceSourceAPI,
	}, nil
}
