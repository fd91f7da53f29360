package implementation

import (
	"context"
	"database/sql"
	"math"
	"time"

	clock "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Clock"
	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
	interfaces "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Repository/Interfaces"
)

// SQLReadingRepository implements the append-only telemetry store over
// database/sql.
type SQLReadingRepository struct {
	db    *sql.DB
	clock clock.Clock
}

func NewSQLReadingRepository(db *sql.DB, clk clock.Clock) *SQLReadingRepository {
	return &SQLReadingRepository{db: db, clock: clk}
}

const readingColumns = `r.id, r.temperature, r.humidity, r.device_id, COALESCE(d.name, ''), r.ts`
const readingJoin = `FROM readings r LEFT JOIN devices d ON d.device_id = r.device_id`

// InsertReading stores one reading and returns the assigned identifier.
// Non-finite channel values are rejected with ErrInvalidReading; a zero
// timestamp is replaced with the ingestion time.
func (r *SQLReadingRepository) InsertReading(ctx context.Context, reading shmodels.Reading) (int64, error) {
	if !isFinite(reading.Temperature) || !isFinite(reading.Humidity) {
		return 0, shmodels.ErrInvalidReading
	}

	ts := reading.Timestamp
	if ts.IsZero() {
		ts = r.clock.Now()
	}

	query := `
		INSERT INTO readings (device_id, temperature, humidity, ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, reading.DeviceID, reading.Temperature, reading.Humidity, ts.UTC()).Scan(&id)
	if err != nil {
		return 0, storageErr("insert reading", err)
	}

	return id, nil
}

func (r *SQLReadingRepository) GetReadings(ctx context.Context, params interfaces.ReadingQueryParams) ([]shmodels.Reading, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if params.DeviceID != "" {
		query := `SELECT ` + readingColumns + ` ` + readingJoin + `
			WHERE r.device_id = $1
			ORDER BY r.ts DESC, r.id DESC
			LIMIT $2`
		rows, err = r.db.QueryContext(ctx, query, params.DeviceID, limit)
	} else {
		query := `SELECT ` + readingColumns + ` ` + readingJoin + `
			ORDER BY r.ts DESC, r.id DESC
			LIMIT $1`
		rows, err = r.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, storageErr("query readings", err)
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

// GetLatestPerDevice picks the reading with the maximum identifier per
// device. Identifier, not timestamp: client-supplied timestamps are
// untrusted and may arrive out of order.
func (r *SQLReadingRepository) GetLatestPerDevice(ctx context.Context) ([]shmodels.Reading, error) {
	query := `SELECT ` + readingColumns + ` ` + readingJoin + `
		WHERE r.id IN (SELECT MAX(id) FROM readings GROUP BY device_id)
		ORDER BY r.device_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("query latest readings", err)
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

func (r *SQLReadingRepository) GetReadingsSince(ctx context.Context, deviceID string, since time.Time) ([]shmodels.Reading, error) {
	query := `SELECT ` + readingColumns + ` ` + readingJoin + `
		WHERE r.device_id = $1 AND r.ts >= $2
		ORDER BY r.ts, r.id`

	rows, err := r.db.QueryContext(ctx, query, deviceID, since.UTC())
	if err != nil {
		return nil, storageErr("query readings since", err)
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

func (r *SQLReadingRepository) GetAllReadingsSince(ctx context.Context, since time.Time) ([]shmodels.Reading, error) {
	query := `SELECT ` + readingColumns + ` ` + readingJoin + `
		WHERE r.ts >= $1
		ORDER BY r.ts, r.id`

	rows, err := r.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, storageErr("query fleet readings since", err)
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

func (r *SQLReadingRepository) scanReadings(rows *sql.Rows) ([]shmodels.Reading, error) {
	var readings []shmodels.Reading

	for rows.Next() {
		var reading shmodels.Reading
		if err := rows.Scan(
			&reading.ID, &reading.Temperature, &reading.Humidity,
			&reading.DeviceID, &reading.DeviceName, &reading.Timestamp,
		); err != nil {
			return nil, storageErr("scan reading", err)
		}
		reading.Timestamp = reading.Timestamp.UTC()
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan readings", err)
	}

	return readings, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
