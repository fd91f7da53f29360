package interfaces

import (
	"context"

	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
)

type DeviceRepository interface {
	// GetOrCreate returns the device with the given id, creating it with
	// defaults on first contact. Safe under concurrent calls for the same
	// id: at most one row is ever created.
	GetOrCreate(ctx context.Context, deviceID, defaultName string) (*shmodels.Device, error)

	// Read devices
	GetDevice(ctx context.Context, deviceID string) (*shmodels.Device, error)
	ListDevices(ctx context.Context, activeOnly bool) ([]shmodels.Device, error)

	// UpdateDevice applies a partial field set and bumps updated_at.
	// Returns ErrNotFound for unknown ids.
	UpdateDevice(ctx context.Context, deviceID string, update shmodels.DeviceUpdate) (*shmodels.Device, error)

	// DeleteDevice removes the device and all its readings in one
	// transaction.
	DeleteDevice(ctx context.Context, deviceID string) error
}
