package aggregation

import (
	"context"
	"time"

	clock "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Clock"
	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
	interfaces "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Repository/Interfaces"
)

// DefaultWindowHours is the trailing window used when callers don't ask
// for a specific one.
const DefaultWindowHours = 24

// Engine computes windowed aggregates over the telemetry store.
type Engine struct {
	readings interfaces.ReadingRepository
	clock    clock.Clock
}

func NewEngine(readings interfaces.ReadingRepository, clk clock.Clock) *Engine {
	return &Engine{readings: readings, clock: clk}
}

// DeviceWindowStats aggregates the device's readings over the trailing
// window [now-hours, now]. Returns nil when no readings fall inside the
// window, so callers can render explicit "no data" messaging.
func (e *Engine) DeviceWindowStats(ctx context.Context, device *shmodels.Device, hours int) (*DeviceStats, error) {
	if hours <= 0 {
		hours = DefaultWindowHours
	}
	since := e.clock.Now().Add(-time.Duration(hours) * time.Hour)

	readings, err := e.readings.GetReadingsSince(ctx, device.DeviceID, since)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}

	stats := Compute(readings)
	return &DeviceStats{
		DeviceID:      device.DeviceID,
		DeviceName:    device.Name,
		PeriodHours:   hours,
		TotalReadings: stats.Count,
		Temperature:   stats.Temperature,
		Humidity:      stats.Humidity,
		LastUpdate:    lastTimestamp(readings),
	}, nil
}

// FleetWindowStats aggregates all devices' readings over the trailing
// window. Always returns a stats object, zeroed when the window is empty.
func (e *Engine) FleetWindowStats(ctx context.Context, hours int) (*FleetStats, error) {
	if hours <= 0 {
		hours = DefaultWindowHours
	}
	since := e.clock.Now().Add(-time.Duration(hours) * time.Hour)

	readings, err := e.readings.GetAllReadingsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := Compute(readings)
	return &FleetStats{
		Temperature: FleetChannelStats{
			Average: stats.Temperature.Avg,
			Maximum: stats.Temperature.Max,
			Minimum: stats.Temperature.Min,
		},
		Humidity: FleetChannelStats{
			Average: stats.Humidity.Avg,
			Maximum: stats.Humidity.Max,
			Minimum: stats.Humidity.Min,
		},
		TotalReadings: stats.Count,
	}, nil
}

func lastTimestamp(readings []shmodels.Reading) time.Time {
	last := readings[0].Timestamp
	for _, r := range readings[1:] {
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	return last
}
