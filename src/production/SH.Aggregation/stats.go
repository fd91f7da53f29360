package aggregation

import (
	"math"
	"time"

	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
)

// ChannelStats summarizes one numeric channel over a set of readings.
// Values are rounded to 2 decimal places, half away from zero.
type ChannelStats struct {
	Avg float64 `json:"avg"`
	Max float64 `json:"max"`
	Min float64 `json:"min"`
}

// Stats summarizes both channels. All values are zero, not null, when the
// input is empty; Count carries the distinction.
type Stats struct {
	Temperature ChannelStats `json:"temperature"`
	Humidity    ChannelStats `json:"humidity"`
	Count       int          `json:"count"`
}

// DeviceStats is the device-scoped windowed aggregate served by the API.
type DeviceStats struct {
	DeviceID      string       `json:"device_id"`
	DeviceName    string       `json:"device_name"`
	PeriodHours   int          `json:"period_hours"`
	TotalReadings int          `json:"total_readings"`
	Temperature   ChannelStats `json:"temperature"`
	Humidity      ChannelStats `json:"humidity"`
	LastUpdate    time.Time    `json:"last_update"`
}

// FleetChannelStats is ChannelStats under the fleet endpoint's key names.
type FleetChannelStats struct {
	Average float64 `json:"average"`
	Maximum float64 `json:"maximum"`
	Minimum float64 `json:"minimum"`
}

// FleetStats is the fleet-wide windowed aggregate. Unlike DeviceStats it is
// never absent: an empty window yields zeroes so dashboards always get a
// well-formed panel.
type FleetStats struct {
	Temperature   FleetChannelStats `json:"temperature"`
	Humidity      FleetChannelStats `json:"humidity"`
	TotalReadings int               `json:"total_readings"`
}

// Compute calculates min/max/mean per channel over the given readings.
func Compute(readings []shmodels.Reading) Stats {
	if len(readings) == 0 {
		return Stats{}
	}

	tempSum, humSum := 0.0, 0.0
	tempMin, tempMax := readings[0].Temperature, readings[0].Temperature
	humMin, humMax := readings[0].Humidity, readings[0].Humidity

	for _, r := range readings {
		tempSum += r.Temperature
		humSum += r.Humidity
		tempMin = math.Min(tempMin, r.Temperature)
		tempMax = math.Max(tempMax, r.Temperature)
		humMin = math.Min(humMin, r.Humidity)
		humMax = math.Max(humMax, r.Humidity)
	}

	n := float64(len(readings))
	return Stats{
		Temperature: ChannelStats{
			Avg: round2(tempSum / n),
			Max: round2(tempMax),
			Min: round2(tempMin),
		},
		Humidity: ChannelStats{
			Avg: round2(humSum / n),
			Max: round2(humMax),
			Min: round2(humMin),
		},
		Count: len(readings),
	}
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
