package interfaces

import (
	"context"
	"time"

	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
)

// ReadingQueryParams represents parameters for reading queries.
// An empty DeviceID means across all devices.
type ReadingQueryParams struct {
	DeviceID string
	Limit    int
}

type ReadingRepository interface {
	// InsertReading validates and stores a reading, returning the assigned
	// identifier. Identifiers are monotonically increasing in insertion
	// order across the whole store.
	InsertReading(ctx context.Context, reading shmodels.Reading) (int64, error)

	// GetReadings returns at most Limit readings, most recent first.
	GetReadings(ctx context.Context, params ReadingQueryParams) ([]shmodels.Reading, error)

	// GetLatestPerDevice returns one reading per distinct device_id: the
	// one with the maximum identifier within each group.
	GetLatestPerDevice(ctx context.Context) ([]shmodels.Reading, error)

	// GetReadingsSince returns all readings for the device with
	// timestamp >= since, in timestamp order.
	GetReadingsSince(ctx context.Context, deviceID string, since time.Time) ([]shmodels.Reading, error)

	// GetAllReadingsSince is GetReadingsSince across the whole fleet.
	GetAllReadingsSince(ctx context.Context, since time.Time) ([]shmodels.Reading, error)
}
