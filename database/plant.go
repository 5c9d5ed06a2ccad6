package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/icodeforyou/pvsoiling/types"
)

func (d *Database) SavePlant(ctx context.Context, p types.Plant) error {
	d.logger.Debug("saving plant", "plant", p.ID)

	_, err := d.write.ExecContext(ctx, `
		INSERT INTO plant (
			id, user_id, name, latitude, longitude,
			module_count, module_power_w, module_area_m2,
			tilt, azimuth, noct, temp_coefficient, module_efficiency,
			energy_price, cleaning_cost, currency, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			module_count = excluded.module_count,
			module_power_w = excluded.module_power_w,
			module_area_m2 = excluded.module_area_m2,
			tilt = excluded.tilt,
			azimuth = excluded.azimuth,
			noct = excluded.noct,
			temp_coefficient = excluded.temp_coefficient,
			module_efficiency = excluded.module_efficiency,
			energy_price = excluded.energy_price,
			cleaning_cost = excluded.cleaning_cost,
			currency = excluded.currency`,
		p.ID, p.UserID, p.Name, p.Latitude, p.Longitude,
		p.ModuleCount, p.ModulePowerW, p.ModuleAreaM2,
		p.Tilt, p.Azimuth, p.Noct, p.TempCoefficient, p.ModuleEfficiency,
		p.EnergyPrice, p.CleaningCost, p.Currency, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving plant %s: %w", p.ID, err)
	}

	return nil
}

func (d *Database) GetPlant(ctx context.Context, id string) (types.Plant, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT id, user_id, name, latitude, longitude,
			module_count, module_power_w, module_area_m2,
			tilt, azimuth, noct, temp_coefficient, module_efficiency,
			energy_price, cleaning_cost, currency
		FROM plant
		WHERE id = ?`, id)

	var p types.Plant
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Latitude, &p.Longitude,
		&p.ModuleCount, &p.ModulePowerW, &p.ModuleAreaM2,
		&p.Tilt, &p.Azimuth, &p.Noct, &p.TempCoefficient, &p.ModuleEfficiency,
		&p.EnergyPrice, &p.CleaningCost, &p.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Plant{}, fmt.Errorf("plant %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Plant{}, fmt.Errorf("fetching plant %s: %w", id, err)
	}

	return p, nil
}
