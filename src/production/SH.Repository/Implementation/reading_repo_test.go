package implementation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clock "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Clock"
	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
	interfaces "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Repository/Interfaces"
)

func newReadingFixture(t *testing.T) (*SQLDeviceRepository, *SQLReadingRepository) {
	t.Helper()
	db := newTestDB(t)
	devices := NewSQLDeviceRepository(db, clock.Fixed{T: repoNow})
	readings := NewSQLReadingRepository(db, clock.Fixed{T: repoNow})

	_, err := devices.GetOrCreate(context.Background(), "ESP8266_001", "Greenhouse")
	require.NoError(t, err)

	return devices, readings
}

func TestInsertReadingAssignsIncreasingIDs(t *testing.T) {
	_, repo := newReadingFixture(t)
	ctx := context.Background()

	first, err := repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 21.0, Humidity: 50.0})
	require.NoError(t, err)
	second, err := repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 22.0, Humidity: 51.0})
	require.NoError(t, err)

	assert.Greater(t, second, first)
}

func TestInsertReadingRejectsNonFiniteValues(t *testing.T) {
	_, repo := newReadingFixture(t)
	ctx := context.Background()

	_, err := repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: math.NaN(), Humidity: 50.0})
	assert.ErrorIs(t, err, shmodels.ErrInvalidReading)

	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 21.0, Humidity: math.Inf(1)})
	assert.ErrorIs(t, err, shmodels.ErrInvalidReading)
}

func TestInsertReadingDefaultsTimestamp(t *testing.T) {
	_, repo := newReadingFixture(t)
	ctx := context.Background()

	id, err := repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 21.0, Humidity: 50.0})
	require.NoError(t, err)

	stored, err := repo.GetReadings(ctx, interfaces.ReadingQueryParams{DeviceID: "ESP8266_001"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, id, stored[0].ID)
	assert.True(t, stored[0].Timestamp.Equal(repoNow))
}

func TestGetReadingsOrderAndLimit(t *testing.T) {
	_, repo := newReadingFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.InsertReading(ctx, shmodels.Reading{
			DeviceID:    "ESP8266_001",
			Temperature: 20.0 + float64(i),
			Humidity:    50.0,
			Timestamp:   repoNow.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	readings, err := repo.GetReadings(ctx, interfaces.ReadingQueryParams{Limit: 3})
	require.NoError(t, err)
	require.Len(t, readings, 3)

	// Most recent first.
	assert.Equal(t, 24.0, readings[0].Temperature)
	assert.Equal(t, 23.0, readings[1].Temperature)
	assert.Equal(t, 22.0, readings[2].Temperature)
	assert.Equal(t, "Greenhouse", readings[0].DeviceName)
}

func TestGetReadingsFiltersByDevice(t *testing.T) {
	devices, repo := newReadingFixture(t)
	ctx := context.Background()

	_, err := devices.GetOrCreate(ctx, "ESP8266_002", "")
	require.NoError(t, err)

	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 21.0, Humidity: 50.0})
	require.NoError(t, err)
	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_002", Temperature: 22.0, Humidity: 51.0})
	require.NoError(t, err)

	readings, err := repo.GetReadings(ctx, interfaces.ReadingQueryParams{DeviceID: "ESP8266_002"})
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "ESP8266_002", readings[0].DeviceID)
}

func TestGetLatestPerDevicePicksMaxID(t *testing.T) {
	devices, repo := newReadingFixture(t)
	ctx := context.Background()

	_, err := devices.GetOrCreate(ctx, "ESP8266_002", "")
	require.NoError(t, err)

	// The later insert carries an earlier timestamp: the store must still
	// pick it, since insertion order wins over client-supplied time.
	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 20.0, Humidity: 50.0, Timestamp: repoNow})
	require.NoError(t, err)
	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 21.0, Humidity: 51.0, Timestamp: repoNow.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_002", Temperature: 30.0, Humidity: 60.0, Timestamp: repoNow})
	require.NoError(t, err)

	latest, err := repo.GetLatestPerDevice(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	assert.Equal(t, "ESP8266_001", latest[0].DeviceID)
	assert.Equal(t, 21.0, latest[0].Temperature)
	assert.Equal(t, "ESP8266_002", latest[1].DeviceID)
	assert.Equal(t, 30.0, latest[1].Temperature)
}

func TestGetReadingsSinceBoundaryIsInclusive(t *testing.T) {
	_, repo := newReadingFixture(t)
	ctx := context.Background()

	_, err := repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 19.0, Humidity: 49.0, Timestamp: repoNow.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 20.0, Humidity: 50.0, Timestamp: repoNow})
	require.NoError(t, err)
	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 21.0, Humidity: 51.0, Timestamp: repoNow.Add(time.Hour)})
	require.NoError(t, err)

	readings, err := repo.GetReadingsSince(ctx, "ESP8266_001", repoNow)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	// Ascending timestamp order, boundary included.
	assert.Equal(t, 20.0, readings[0].Temperature)
	assert.Equal(t, 21.0, readings[1].Temperature)
}

func TestGetAllReadingsSinceSpansDevices(t *testing.T) {
	devices, repo := newReadingFixture(t)
	ctx := context.Background()

	_, err := devices.GetOrCreate(ctx, "ESP8266_002", "")
	require.NoError(t, err)

	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 20.0, Humidity: 50.0, Timestamp: repoNow})
	require.NoError(t, err)
	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_002", Temperature: 30.0, Humidity: 60.0, Timestamp: repoNow.Add(time.Minute)})
	require.NoError(t, err)
	_, err = repo.InsertReading(ctx, shmodels.Reading{DeviceID: "ESP8266_001", Temperature: 10.0, Humidity: 40.0, Timestamp: repoNow.Add(-time.Hour)})
	require.NoError(t, err)

	readings, err := repo.GetAllReadingsSince(ctx, repoNow)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "ESP8266_001", readings[0].DeviceID)
	assert.Equal(t, "ESP8266_002", readings[1].DeviceID)
}
