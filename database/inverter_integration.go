package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/icodeforyou/pvsoiling/types"
	"github.com/icodeforyou/pvsoiling/types/maybe"
)

const integrationColumns = `
	id, plant_id, provider, credentials_ciphertext, credentials_iv, credentials_tag,
	external_site_id, is_active, sync_enabled, last_sync_at, last_sync_status,
	last_sync_error, last_sync_count, consecutive_failures, next_sync_after`

// SaveIntegration stores a new active integration and deactivates the
// one it replaces in the same transaction.
func (d *Database) SaveIntegration(ctx context.Context, in types.InverterIntegration) error {
	d.logger.Debug("saving inverter integration", "plant", in.PlantID, "provider", in.Provider)

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction for integration: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE inverter_integration SET is_active = 0
		WHERE plant_id = ? AND is_active = 1`, in.PlantID)
	if err != nil {
		return fmt.Errorf("deactivating previous integration: %w", err)
	}

	status := in.LastSyncStatus
	if status == "" {
		status = types.SyncIdle
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inverter_integration (
			id, plant_id, provider, credentials_ciphertext, credentials_iv, credentials_tag,
			external_site_id, is_active, sync_enabled, last_sync_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		in.ID, in.PlantID, in.Provider,
		in.Credentials.Ciphertext, in.Credentials.IV, in.Credentials.Tag,
		in.ExternalSiteID, boolToInt(in.SyncEnabled), string(status), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving integration: %w", mapConstraintError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit integration: %w", err)
	}
	return nil
}

func (d *Database) GetActiveIntegration(ctx context.Context, plantID string) (types.InverterIntegration, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT `+integrationColumns+`
		FROM inverter_integration
		WHERE plant_id = ? AND is_active = 1`, plantID)

	in, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.InverterIntegration{}, fmt.Errorf("integration for plant %s: %w", plantID, types.ErrNotFound)
	}
	if err != nil {
		return types.InverterIntegration{}, fmt.Errorf("fetching integration for plant %s: %w", plantID, err)
	}
	return in, nil
}

// DeactivateIntegration is a soft delete, sync history stays.
func (d *Database) DeactivateIntegration(ctx context.Context, plantID string) error {
	res, err := d.write.ExecContext(ctx, `
		UPDATE inverter_integration SET is_active = 0
		WHERE plant_id = ? AND is_active = 1`, plantID)
	if err != nil {
		return fmt.Errorf("deactivating integration for plant %s: %w", plantID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("integration for plant %s: %w", plantID, types.ErrNotFound)
	}
	return nil
}

// GetDueIntegrations returns active, sync enabled integrations whose backoff gate has passed.
func (d *Database) GetDueIntegrations(ctx context.Context, now time.Time) ([]types.InverterIntegration, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT `+integrationColumns+`
		FROM inverter_integration
		WHERE is_active = 1
			AND sync_enabled = 1
			AND (next_sync_after IS NULL OR next_sync_after <= ?)
		ORDER BY created_at`,
		formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("fetching due integrations: %w", err)
	}
	defer rows.Close()

	var list []types.InverterIntegration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning integration: %w", err)
		}
		list = append(list, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading integration rows: %w", err)
	}

	return list, nil
}

// SetSyncStatus only touches the status, used while a sync is in progress.
func (d *Database) SetSyncStatus(ctx context.Context, id string, status types.SyncStatus) error {
	_, err := d.write.ExecContext(ctx, `
		UPDATE inverter_integration SET last_sync_status = ? WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("setting sync status for integration %s: %w", id, err)
	}
	return nil
}

func (d *Database) SaveSyncResult(ctx context.Context, id string, r types.SyncResult) error {
	var (
		syncErr   sql.NullString
		nextAfter sql.NullString
	)
	if r.Error != "" {
		syncErr = sql.NullString{String: r.Error, Valid: true}
	}
	if r.NextSyncAfter.IsValid() {
		nextAfter = sql.NullString{String: formatTime(r.NextSyncAfter.Value()), Valid: true}
	}

	_, err := d.write.ExecContext(ctx, `
		UPDATE inverter_integration SET
			last_sync_at = ?,
			last_sync_status = ?,
			last_sync_error = ?,
			last_sync_count = ?,
			consecutive_failures = ?,
			next_sync_after = ?
		WHERE id = ?`,
		formatTime(r.At), string(r.Status), syncErr, r.Count, r.ConsecutiveFailures, nextAfter, id)
	if err != nil {
		return fmt.Errorf("saving sync result for integration %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row rowScanner) (types.InverterIntegration, error) {
	var in types.InverterIntegration
	var lastSyncAt, syncErr, nextAfter sql.NullString
	err := row.Scan(
		&in.ID, &in.PlantID, &in.Provider,
		&in.Credentials.Ciphertext, &in.Credentials.IV, &in.Credentials.Tag,
		&in.ExternalSiteID, &in.IsActive, &in.SyncEnabled, &lastSyncAt, &in.LastSyncStatus,
		&syncErr, &in.LastSyncCount, &in.ConsecutiveFailures, &nextAfter)
	if err != nil {
		return types.InverterIntegration{}, err
	}

	in.LastSyncError = syncErr.String

	t, ok, err := nullTime(lastSyncAt)
	if err != nil {
		return types.InverterIntegration{}, err
	}
	in.LastSyncAt = maybe.SqlNull(t, ok)

	t, ok, err = nullTime(nextAfter)
	if err != nil {
		return types.InverterIntegration{}, err
	}
	in.NextSyncAfter = maybe.SqlNull(t, ok)

	return in, nil
}
