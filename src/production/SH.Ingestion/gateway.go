package ingestion

import (
	"context"
	"fmt"
	"math"
	"time"

	clock "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Clock"
	logger "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Logger"
	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
	interfaces "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Repository/Interfaces"
)

// Payload is an incoming reading as sent by a field device. Pointer fields
// distinguish absent from zero.
type Payload struct {
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	DeviceID    string     `json:"device_id"`
	Timestamp   *time.Time `json:"timestamp"`
}

// ParsedReading is a payload that has passed validation. Only parsed
// readings reach the registry and the store.
type ParsedReading struct {
	Temperature float64
	Humidity    float64
	DeviceID    string
	Timestamp   time.Time
}

// Gateway validates payloads, resolves (or lazily creates) the device and
// appends the reading to the telemetry store.
type Gateway struct {
	devices          interfaces.DeviceRepository
	readings         interfaces.ReadingRepository
	clock            clock.Clock
	logger           *logger.Logger
	fallbackDeviceID string
}

func NewGateway(devices interfaces.DeviceRepository, readings interfaces.ReadingRepository, clk clock.Clock, log *logger.Logger, fallbackDeviceID string) *Gateway {
	return &Gateway{
		devices:          devices,
		readings:         readings,
		clock:            clk,
		logger:           log.WithComponent("ingestion"),
		fallbackDeviceID: fallbackDeviceID,
	}
}

// Parse validates the payload into a typed reading. Validation happens
// before any device resolution, so an invalid payload never creates a
// device.
func (g *Gateway) Parse(p Payload) (*ParsedReading, error) {
	if p.Temperature == nil || p.Humidity == nil {
		return nil, fmt.Errorf("%w: temperature and humidity are required", shmodels.ErrInvalidPayload)
	}
	if !isFinite(*p.Temperature) || !isFinite(*p.Humidity) {
		return nil, fmt.Errorf("%w: temperature and humidity must be finite numbers", shmodels.ErrInvalidPayload)
	}

	deviceID := p.DeviceID
	if deviceID == "" {
		deviceID = g.fallbackDeviceID
	}

	ts := g.clock.Now()
	if p.Timestamp != nil {
		ts = p.Timestamp.UTC()
	}

	return &ParsedReading{
		Temperature: *p.Temperature,
		Humidity:    *p.Humidity,
		DeviceID:    deviceID,
		Timestamp:   ts,
	}, nil
}

// Ingest runs the full ingestion path: validate, resolve/create device,
// append. Device creation is independently valid even when the append
// fails; readings are exactly-once per successful append.
func (g *Gateway) Ingest(ctx context.Context, p Payload) (int64, error) {
	parsed, err := g.Parse(p)
	if err != nil {
		return 0, err
	}

	device, err := g.devices.GetOrCreate(ctx, parsed.DeviceID, "")
	if err != nil {
		return 0, err
	}

	id, err := g.readings.InsertReading(ctx, shmodels.Reading{
		Temperature: parsed.Temperature,
		Humidity:    parsed.Humidity,
		DeviceID:    device.DeviceID,
		Timestamp:   parsed.Timestamp,
	})
	if err != nil {
		return 0, err
	}

	g.logger.Logger.Debug().
		Str("device_id", device.DeviceID).
		Float64("temperature", parsed.Temperature).
		Float64("humidity", parsed.Humidity).
		Int64("id", id).
		Msg("Reading ingested")

	return id, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
