package shmodels

import "time"

// Device is a registered telemetry source, identified by an externally
// supplied device_id. Devices are created lazily on first contact.
type Device struct {
	DeviceID    string    `json:"device_id" db:"device_id"`
	Name        string    `json:"name" db:"name"`
	Location    string    `json:"location" db:"location"`
	Description string    `json:"description" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DeviceUpdate is a partial field set applied to an existing device.
// Nil fields are left untouched.
type DeviceUpdate struct {
	Name        *string `json:"name,omitempty"`
	Location    *string `json:"location,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}
