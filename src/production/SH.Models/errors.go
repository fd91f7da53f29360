package shmodels

import "errors"

// Error taxonomy shared by the repositories, the ingestion gateway and the
// API controllers. Controllers translate these to response envelopes:
// ErrInvalidPayload/ErrInvalidReading map to client errors, ErrNotFound to
// not-found, ErrStorage to server errors.
var (
	// ErrNotFound is returned when a device_id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPayload is returned by the ingestion gateway for payloads
	// missing a required numeric channel.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidReading is returned by the telemetry store for readings
	// carrying non-finite channel values.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrStorage wraps persistence layer failures.
	ErrStorage = errors.New("storage error")
)
