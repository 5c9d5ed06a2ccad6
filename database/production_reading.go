package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/icodeforyou/pvsoiling/calc"
	"github.com/icodeforyou/pvsoiling/convert"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/icodeforyou/pvsoiling/types/maybe"
)

func kwh(v float64) float64   { return convert.RoundFloat64(v, 3) }
func ratio(v float64) float64 { return convert.RoundFloat64(v, 4) }

func roundMaybe(m maybe.Maybe[float64], decimals int) sql.NullFloat64 {
	return sql.NullFloat64{Float64: convert.RoundFloat64(m.Value(), decimals), Valid: m.IsValid()}
}

func (d *Database) InsertReading(ctx context.Context, r types.ProductionReading) error {
	d.logger.Debug("saving production reading", "plant", r.PlantID, "date", r.Date)

	_, err := d.write.ExecContext(ctx, `
		INSERT INTO production_reading (
			id, plant_id, user_id, date, kwh_real, reading_type, is_cleaning_day,
			ghi_kwh_m2, poa_kwh_m2, temp_max, temp_mean, irradiance_source,
			cell_temp, kwh_theoretical, kwh_loss, loss_percent, loss_currency,
			pr_current, pr_baseline, is_outlier, soiling_percent,
			cumulative_loss_kwh, cumulative_loss_currency,
			recommendation, days_to_breakeven, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlantID, r.UserID, r.Date.String(), kwh(r.KWhReal), string(r.Type), boolToInt(r.IsCleaningDay),
		ratio(r.Ghi), ratio(r.Poa), convert.TwoDecimals(r.TempMax), convert.TwoDecimals(r.TempMean), string(r.IrradianceSource),
		convert.TwoDecimals(r.CellTemp), kwh(r.KWhTheoretical), kwh(r.KWhLoss), roundMaybe(r.LossPercent, 2), convert.TwoDecimals(r.LossCurrency),
		roundMaybe(r.PRCurrent, 4), roundMaybe(r.PRBaseline, 4), boolToInt(r.IsOutlier), roundMaybe(r.SoilingPercent, 2),
		kwh(r.CumulativeLossKWh), convert.TwoDecimals(r.CumulativeLossCurrency),
		string(r.Recommendation), sql.NullInt64{Int64: int64(r.DaysToBreakeven.Value()), Valid: r.DaysToBreakeven.IsValid()},
		formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving production reading for %s: %w", r.Date, mapConstraintError(err))
	}

	return nil
}

func (d *Database) DeleteReading(ctx context.Context, plantID string, date days.Date) error {
	res, err := d.write.ExecContext(ctx, `
		DELETE FROM production_reading WHERE plant_id = ? AND date = ?`,
		plantID, date.String())
	if err != nil {
		return fmt.Errorf("deleting production reading for %s: %w", date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting production reading for %s: %w", date, err)
	}
	if n == 0 {
		return fmt.Errorf("production reading for %s: %w", date, types.ErrNotFound)
	}
	return nil
}

func (d *Database) GetBaselinePR(ctx context.Context, plantID string, before days.Date) (maybe.Maybe[float64], error) {
	var pr float64
	err := d.read.QueryRowContext(ctx, `
		SELECT pr_current
		FROM production_reading
		WHERE plant_id = ?
			AND date < ?
			AND is_cleaning_day = 1
			AND is_outlier = 0
			AND pr_current IS NOT NULL
		ORDER BY date DESC
		LIMIT 1`,
		plantID, before.String()).Scan(&pr)
	if errors.Is(err, sql.ErrNoRows) {
		return maybe.None[float64](), nil
	}
	if err != nil {
		return maybe.None[float64](), fmt.Errorf("fetching baseline before %s: %w", before, err)
	}
	return maybe.Some(pr), nil
}

func (d *Database) GetLastCleaningDate(ctx context.Context, plantID string, before days.Date) (maybe.Maybe[days.Date], error) {
	var date string
	err := d.read.QueryRowContext(ctx, `
		SELECT date
		FROM production_reading
		WHERE plant_id = ? AND date < ? AND is_cleaning_day = 1
		ORDER BY date DESC
		LIMIT 1`,
		plantID, before.String()).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return maybe.None[days.Date](), nil
	}
	if err != nil {
		return maybe.None[days.Date](), fmt.Errorf("fetching last cleaning day before %s: %w", before, err)
	}
	return maybe.Some(days.Date(date)), nil
}

func (d *Database) GetLossesBetween(ctx context.Context, plantID string, after maybe.Maybe[days.Date], before days.Date) ([]calc.LossPoint, error) {
	// An empty string sorts before every date.
	from := after.ValueOrDefault("").String()

	rows, err := d.read.QueryContext(ctx, `
		SELECT date, kwh_loss, loss_currency
		FROM production_reading
		WHERE plant_id = ? AND date > ? AND date < ?
		ORDER BY date`,
		plantID, from, before.String())
	if err != nil {
		return nil, fmt.Errorf("fetching losses before %s: %w", before, err)
	}
	defer rows.Close()

	var points []calc.LossPoint
	for rows.Next() {
		var p calc.LossPoint
		if err := rows.Scan(&p.Date, &p.KWh, &p.Currency); err != nil {
			return nil, fmt.Errorf("scanning loss row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading loss rows: %w", err)
	}

	return points, nil
}

// GetReadingDates returns the dates in [from, to] that already have a reading.
func (d *Database) GetReadingDates(ctx context.Context, plantID string, from, to days.Date) (map[days.Date]bool, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT date
		FROM production_reading
		WHERE plant_id = ? AND date >= ? AND date <= ?`,
		plantID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("fetching reading dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[days.Date]bool)
	for rows.Next() {
		var date days.Date
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scanning reading date: %w", err)
		}
		dates[date] = true
	}
	return dates, rows.Err()
}

func (d *Database) GetReadings(ctx context.Context, plantID string, from, to days.Date) ([]types.ProductionReading, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT id, plant_id, user_id, date, kwh_real, reading_type, is_cleaning_day,
			ghi_kwh_m2, poa_kwh_m2, temp_max, temp_mean, irradiance_source,
			cell_temp, kwh_theoretical, kwh_loss, loss_percent, loss_currency,
			pr_current, pr_baseline, is_outlier, soiling_percent,
			cumulative_loss_kwh, cumulative_loss_currency,
			recommendation, days_to_breakeven, created_at
		FROM production_reading
		WHERE plant_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		plantID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("fetching production readings: %w", err)
	}
	defer rows.Close()

	var readings []types.ProductionReading
	for rows.Next() {
		var (
			r                                      types.ProductionReading
			lossPct, prCurrent, prBaseline, soiled sql.NullFloat64
			breakeven                              sql.NullInt64
			createdAt                              string
		)
		err := rows.Scan(
			&r.ID, &r.PlantID, &r.UserID, &r.Date, &r.KWhReal, &r.Type, &r.IsCleaningDay,
			&r.Ghi, &r.Poa, &r.TempMax, &r.TempMean, &r.IrradianceSource,
			&r.CellTemp, &r.KWhTheoretical, &r.KWhLoss, &lossPct, &r.LossCurrency,
			&prCurrent, &prBaseline, &r.IsOutlier, &soiled,
			&r.CumulativeLossKWh, &r.CumulativeLossCurrency,
			&r.Recommendation, &breakeven, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning production reading: %w", err)
		}
		r.LossPercent = maybe.SqlNull(lossPct.Float64, lossPct.Valid)
		r.PRCurrent = maybe.SqlNull(prCurrent.Float64, prCurrent.Valid)
		r.PRBaseline = maybe.SqlNull(prBaseline.Float64, prBaseline.Valid)
		r.SoilingPercent = maybe.SqlNull(soiled.Float64, soiled.Valid)
		r.DaysToBreakeven = maybe.SqlNull(int(breakeven.Int64), breakeven.Valid)
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading production reading rows: %w", err)
	}

	return readings, nil
}
