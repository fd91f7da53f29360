package implementation

import (
	"context"
	"database/sql"
	"fmt"

	clock "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Clock"
	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
)

// SQLDeviceRepository implements the device registry over database/sql.
// The SQL sticks to the subset shared by postgres and sqlite3 so the same
// repository serves both drivers.
type SQLDeviceRepository struct {
	db    *sql.DB
	clock clock.Clock
}

func NewSQLDeviceRepository(db *sql.DB, clk clock.Clock) *SQLDeviceRepository {
	return &SQLDeviceRepository{db: db, clock: clk}
}

const deviceColumns = `device_id, name, location, description, is_active, created_at, updated_at`

// GetOrCreate inserts the device if absent and returns the stored row.
// The insert-if-absent relies on the device_id primary key, so concurrent
// first contact from the same device creates exactly one row.
func (r *SQLDeviceRepository) GetOrCreate(ctx context.Context, deviceID, defaultName string) (*shmodels.Device, error) {
	if defaultName == "" {
		defaultName = fmt.Sprintf("Device %s", deviceID)
	}
	now := r.clock.Now()

	insert := `
		INSERT INTO devices (device_id, name, location, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (device_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, deviceID, defaultName, "unspecified", "", true, now, now); err != nil {
		return nil, storageErr("insert device", err)
	}

	device, err := r.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (r *SQLDeviceRepository) GetDevice(ctx context.Context, deviceID string) (*shmodels.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`

	var device shmodels.Device
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.DeviceID, &device.Name, &device.Location, &device.Description,
		&device.IsActive, &device.CreatedAt, &device.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shmodels.ErrNotFound
		}
		return nil, storageErr("get device", err)
	}

	return &device, nil
}

func (r *SQLDeviceRepository) ListDevices(ctx context.Context, activeOnly bool) ([]shmodels.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY created_at, device_id`
	if activeOnly {
		query = `SELECT ` + deviceColumns + ` FROM devices WHERE is_active = $1 ORDER BY created_at, device_id`
	}

	var rows *sql.Rows
	var err error
	if activeOnly {
		rows, err = r.db.QueryContext(ctx, query, true)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, storageErr("list devices", err)
	}
	defer rows.Close()

	var devices []shmodels.Device
	for rows.Next() {
		var device shmodels.Device
		if err := rows.Scan(
			&device.DeviceID, &device.Name, &device.Location, &device.Description,
			&device.IsActive, &device.CreatedAt, &device.UpdatedAt,
		); err != nil {
			return nil, storageErr("scan device", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list devices", err)
	}

	return devices, nil
}

// UpdateDevice merges the partial field set into the existing row and bumps
// updated_at.
func (r *SQLDeviceRepository) UpdateDevice(ctx context.Context, deviceID string, update shmodels.DeviceUpdate) (*shmodels.Device, error) {
	device, err := r.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		device.Name = *update.Name
	}
	if update.Location != nil {
		device.Location = *update.Location
	}
	if update.Description != nil {
		device.Description = *update.Description
	}
	if update.IsActive != nil {
		device.IsActive = *update.IsActive
	}
	device.UpdatedAt = r.clock.Now()

	query := `
		UPDATE devices
		SET name = $1, location = $2, description = $3, is_active = $4, updated_at = $5
		WHERE device_id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		device.Name, device.Location, device.Description, device.IsActive, device.UpdatedAt, deviceID)
	if err != nil {
		return nil, storageErr("update device", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, storageErr("update device", err)
	}
	if rowsAffected == 0 {
		return nil, shmodels.ErrNotFound
	}

	return device, nil
}

// DeleteDevice removes the device and its readings in a single transaction,
// so no orphaned readings are ever visible.
func (r *SQLDeviceRepository) DeleteDevice(ctx context.Context, deviceID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin delete device", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM readings WHERE device_id = $1`, deviceID); err != nil {
		return storageErr("delete readings", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE device_id = $1`, deviceID)
	if err != nil {
		return storageErr("delete device", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("delete device", err)
	}
	if rowsAffected == 0 {
		return shmodels.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit delete device", err)
	}
	return nil
}
