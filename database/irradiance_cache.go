package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/pvsoiling/convert"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/icodeforyou/pvsoiling/types/maybe"
)

func (d *Database) GetIrradiance(ctx context.Context, key string) (types.IrradianceRecord, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT cache_key, latitude, longitude, date, ghi_kwh_m2, poa_kwh_m2, temp_max, temp_mean, expires_at
		FROM irradiance_cache
		WHERE cache_key = ?`, key)

	var (
		rec       types.IrradianceRecord
		expiresAt sql.NullString
	)
	err := row.Scan(&rec.Key, &rec.Latitude, &rec.Longitude, &rec.Date,
		&rec.Ghi, &rec.Poa, &rec.TempMax, &rec.TempMean, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.IrradianceRecord{}, types.ErrNotFound
	}
	if err != nil {
		return types.IrradianceRecord{}, fmt.Errorf("fetching irradiance %s: %w", key, err)
	}

	t, ok, err := nullTime(expiresAt)
	if err != nil {
		return types.IrradianceRecord{}, err
	}
	rec.ExpiresAt = maybe.SqlNull(t, ok)

	return rec, nil
}

// UpsertIrradiance replaces any cached value for the key, last write wins.
func (d *Database) UpsertIrradiance(ctx context.Context, rec types.IrradianceRecord) error {
	var expiresAt sql.NullString
	if rec.ExpiresAt.IsValid() {
		expiresAt = sql.NullString{String: formatTime(rec.ExpiresAt.Value()), Valid: true}
	}

	_, err := d.write.ExecContext(ctx, `
		INSERT INTO irradiance_cache (
			cache_key, latitude, longitude, date, ghi_kwh_m2, poa_kwh_m2, temp_max, temp_mean, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			ghi_kwh_m2 = excluded.ghi_kwh_m2,
			poa_kwh_m2 = excluded.poa_kwh_m2,
			temp_max = excluded.temp_max,
			temp_mean = excluded.temp_mean,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		rec.Key,
		convert.TwoDecimals(rec.Latitude),
		convert.TwoDecimals(rec.Longitude),
		rec.Date.String(),
		ratio(rec.Ghi),
		ratio(rec.Poa),
		convert.TwoDecimals(rec.TempMax),
		convert.TwoDecimals(rec.TempMean),
		expiresAt,
		formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving irradiance %s: %w", rec.Key, err)
	}

	return nil
}

// PurgeExpiredIrradiance removes forecast entries that have passed their expiry.
func (d *Database) PurgeExpiredIrradiance(ctx context.Context, now time.Time) error {
	d.logger.Debug("purging expired irradiance")
	res, err := d.write.ExecContext(ctx, `
		DELETE FROM irradiance_cache
		WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		formatTime(now))
	if err != nil {
		return fmt.Errorf("error when purging irradiance_cache: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", "irradiance_cache"), slog.Any("error", err))
	} else {
		d.logger.Debug(fmt.Sprintf("purged %d rows from irradiance_cache", rows))
	}

	return nil
}
