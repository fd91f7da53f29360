package controllers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.ApiService/health"
	aggregation "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Aggregation"
	clock "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Clock"
	config "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Config"
	ingestion "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Ingestion"
	logger "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Logger"
	implementation "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Repository/Implementation"
)

var apiNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type apiFixture struct {
	router *gin.Engine
	db     *sql.DB
}

func newAPIFixture(t *testing.T, ingestAPIKey string) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	dm := health.NewDatabaseManager(db, "sqlite3")
	require.NoError(t, dm.CreateTables(context.Background()))

	clk := clock.Fixed{T: apiNow}
	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"})

	deviceRepo := implementation.NewSQLDeviceRepository(db, clk)
	readingRepo := implementation.NewSQLReadingRepository(db, clk)
	engine := aggregation.NewEngine(readingRepo, clk)
	gateway := ingestion.NewGateway(deviceRepo, readingRepo, clk, log, "ESP8266_001")

	router := gin.New()
	NewReadingController(gateway, readingRepo, engine, log, ingestAPIKey).RegisterRoutes(router)
	NewDeviceController(deviceRepo, engine, log).RegisterRoutes(router)
	NewHealthController(health.NewHealthChecker(db), log).RegisterRoutes(router)

	return &apiFixture{router: router, db: db}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func ingestBody(deviceID string, temp, hum float64) map[string]interface{} {
	body := map[string]interface{}{"temperature": temp, "humidity": hum}
	if deviceID != "" {
		body["device_id"] = deviceID
	}
	return body
}

func TestIngestReadingSuccess(t *testing.T) {
	f := newAPIFixture(t, "")

	w, resp := f.do(t, http.MethodPost, "/api/sensor-data", ingestBody("ESP8266_007", 21.5, 48.0), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "Reading stored successfully", resp["message"])
	assert.Equal(t, float64(1), resp["id"])
}

func TestIngestReadingMissingChannel(t *testing.T) {
	f := newAPIFixture(t, "")

	w, resp := f.do(t, http.MethodPost, "/api/sensor-data", map[string]interface{}{"temperature": 21.5}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["message"], "temperature and humidity are required")
}

func TestIngestReadingMalformedJSON(t *testing.T) {
	f := newAPIFixture(t, "")
	gin.SetMode(gin.TestMode)

	req := httptest.NewRequest(http.MethodPost, "/api/sensor-data", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestReadingAPIKey(t *testing.T) {
	f := newAPIFixture(t, "secret")

	w, resp := f.do(t, http.MethodPost, "/api/sensor-data", ingestBody("", 21.5, 48.0), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", resp["status"])

	w, resp = f.do(t, http.MethodPost, "/api/sensor-data", ingestBody("", 21.5, 48.0),
		map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp["status"])
}

func TestGetReadingsEmptyStore(t *testing.T) {
	f := newAPIFixture(t, "")

	w, resp := f.do(t, http.MethodGet, "/api/sensor-data", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, float64(0), resp["count"])
	assert.Equal(t, []interface{}{}, resp["data"])
}

func TestGetReadingsReturnsMostRecentFirst(t *testing.T) {
	f := newAPIFixture(t, "")

	for _, temp := range []float64{20.0, 21.0, 22.0} {
		w, _ := f.do(t, http.MethodPost, "/api/sensor-data", ingestBody("ESP8266_001", temp, 50.0), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := f.do(t, http.MethodGet, "/api/sensor-data?limit=2", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["count"])

	data := resp["data"].([]interface{})
	require.Len(t, data, 2)
	first := data[0].(map[string]interface{})
	// Same fixed timestamp for all three: id breaks the tie.
	assert.Equal(t, 22.0, first["temperature"])
	assert.Equal(t, "ESP8266_001", first["device_id"])
	assert.Equal(t, "Device ESP8266_001", first["device_name"])
}

func TestGetLatestPerDevice(t *testing.T) {
	f := newAPIFixture(t, "")

	for _, body := range []map[string]interface{}{
		ingestBody("ESP8266_001", 20.0, 50.0),
		ingestBody("ESP8266_001", 21.0, 51.0),
		ingestBody("ESP8266_002", 30.0, 60.0),
	} {
		w, _ := f.do(t, http.MethodPost, "/api/sensor-data", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := f.do(t, http.MethodGet, "/api/sensor-data/latest", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].([]interface{})
	require.Len(t, data, 2)

	first := data[0].(map[string]interface{})
	assert.Equal(t, "ESP8266_001", first["device_id"])
	assert.Equal(t, 21.0, first["temperature"])
}

func TestGetFleetStatsEmptyStoreReturnsZeroes(t *testing.T) {
	f := newAPIFixture(t, "")

	w, resp := f.do(t, http.MethodGet, "/api/sensor-data/stats", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	stats := resp["stats"].(map[string]interface{})
	assert.Equal(t, float64(0), stats["total_readings"])

	temp := stats["temperature"].(map[string]interface{})
	assert.Equal(t, float64(0), temp["average"])
	assert.Equal(t, float64(0), temp["maximum"])
	assert.Equal(t, float64(0), temp["minimum"])
}

func TestGetFleetStats(t *testing.T) {
	f := newAPIFixture(t, "")

	for _, body := range []map[string]interface{}{
		ingestBody("ESP8266_001", 20.0, 40.0),
		ingestBody("ESP8266_002", 30.0, 60.0),
	} {
		w, _ := f.do(t, http.MethodPost, "/api/sensor-data", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := f.do(t, http.MethodGet, "/api/sensor-data/stats", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	stats := resp["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["total_readings"])

	temp := stats["temperature"].(map[string]interface{})
	assert.Equal(t, 25.0, temp["average"])
	assert.Equal(t, 30.0, temp["maximum"])
	assert.Equal(t, 20.0, temp["minimum"])
}

func TestListAndGetDevices(t *testing.T) {
	f := newAPIFixture(t, "")

	w, _ := f.do(t, http.MethodPost, "/api/sensor-data", ingestBody("ESP8266_007", 21.5, 48.0), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := f.do(t, http.MethodGet, "/api/devices", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].([]interface{})
	require.Len(t, data, 1)

	w, resp = f.do(t, http.MethodGet, "/api/devices/ESP8266_007", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	device := resp["data"].(map[string]interface{})
	assert.Equal(t, "ESP8266_007", device["device_id"])
	assert.Equal(t, true, device["is_active"])
}

func TestGetDeviceNotFound(t *testing.T) {
	f := newAPIFixture(t, "")

	w, resp := f.do(t, http.MethodGet, "/api/devices/missing", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "Device not found", resp["message"])
}

func TestUpdateDevice(t *testing.T) {
	f := newAPIFixture(t, "")

	w, _ := f.do(t, http.MethodPost, "/api/sensor-data", ingestBody("ESP8266_007", 21.5, 48.0), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := f.do(t, http.MethodPut, "/api/devices/ESP8266_007",
		map[string]interface{}{"name": "Greenhouse north", "is_active": false}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Device updated successfully", resp["message"])
	device := resp["data"].(map[string]interface{})
	assert.Equal(t, "Greenhouse north", device["name"])
	assert.Equal(t, false, device["is_active"])

	// Deactivated devices drop out of active listings.
	w, resp = f.do(t, http.MethodGet, "/api/devices?active=true", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["data"])
}

func TestDeleteDeviceRemovesReadings(t *testing.T) {
	f := newAPIFixture(t, "")

	w, _ := f.do(t, http.MethodPost, "/api/sensor-data", ingestBody("ESP8266_007", 21.5, 48.0), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := f.do(t, http.MethodDelete, "/api/devices/ESP8266_007", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Device and its readings deleted", resp["message"])

	w, resp = f.do(t, http.MethodGet, "/api/sensor-data", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["count"])

	w, _ = f.do(t, http.MethodDelete, "/api/devices/ESP8266_007", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDeviceStats(t *testing.T) {
	f := newAPIFixture(t, "")

	for _, body := range []map[string]interface{}{
		ingestBody("ESP8266_007", 20.0, 40.0),
		ingestBody("ESP8266_007", 25.0, 50.0),
	} {
		w, _ := f.do(t, http.MethodPost, "/api/sensor-data", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := f.do(t, http.MethodGet, "/api/devices/ESP8266_007/stats", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	stats := resp["data"].(map[string]interface{})
	assert.Equal(t, "ESP8266_007", stats["device_id"])
	assert.Equal(t, float64(24), stats["period_hours"])
	assert.Equal(t, float64(2), stats["total_readings"])

	temp := stats["temperature"].(map[string]interface{})
	assert.Equal(t, 22.5, temp["avg"])
	assert.Equal(t, 25.0, temp["max"])
	assert.Equal(t, 20.0, temp["min"])
}

func TestGetDeviceStatsNoData(t *testing.T) {
	f := newAPIFixture(t, "")

	// Register the device without any readings inside the window.
	w, _ := f.do(t, http.MethodPost, "/api/sensor-data",
		map[string]interface{}{"temperature": 20.0, "humidity": 40.0, "device_id": "ESP8266_007",
			"timestamp": apiNow.Add(-48 * time.Hour).Format(time.RFC3339)}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := f.do(t, http.MethodGet, "/api/devices/ESP8266_007/stats", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp["status"])
	assert.Nil(t, resp["data"])
	assert.Equal(t, "No data found for the specified period", resp["message"])
}

func TestGetDeviceStatsUnknownDevice(t *testing.T) {
	f := newAPIFixture(t, "")

	w, resp := f.do(t, http.MethodGet, "/api/devices/missing/stats", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Device not found", resp["message"])
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t, "")

	w, resp := f.do(t, http.MethodGet, "/api/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "connected", resp["database"])
}

func TestHealthCheckUnhealthyDatabase(t *testing.T) {
	f := newAPIFixture(t, "")
	require.NoError(t, f.db.Close())

	w, resp := f.do(t, http.MethodGet, "/api/health", nil, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "unhealthy", resp["status"])
}
