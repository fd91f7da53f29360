package shmodels

import "time"

// Reading is one temperature/humidity observation from a device.
// Readings are immutable once stored; IDs are assigned by the store in
// insertion order and are the tie-breaker for "latest" selection.
type Reading struct {
	ID          int64     `json:"id" db:"id"`
	Temperature float64   `json:"temperature" db:"temperature"`
	Humidity    float64   `json:"humidity" db:"humidity"`
	DeviceID    string    `json:"device_id" db:"device_id"`
	DeviceName  string    `json:"device_name,omitempty" db:"device_name"`
	Timestamp   time.Time `json:"timestamp" db:"ts"`
}
