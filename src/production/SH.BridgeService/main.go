package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.BridgeService/bridge"
	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.BridgeService/client"
	container "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Container"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewBridgeContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting MQTT Bridge Service")

	// Get configuration
	cfg := ctr.GetConfig()

	// Create API client
	apiClient := client.NewAPIClient(cfg.ApiServiceURL, cfg.IngestAPIKey)

	// Create and start the MQTT bridge
	br := bridge.New(cfg, apiClient, logger)
	if err := br.Start(context.Background()); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT bridge")
	}
	defer br.Stop()

	// Start health check server
	go startHealthServer(ctr, br, apiClient)

	logger.Info("MQTT bridge running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer(ctr *container.BridgeContainer, br *bridge.Bridge, apiClient *client.APIClient) {
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		// Check MQTT connection
		mqttStatus := "disconnected"
		if br.IsConnected() {
			mqttStatus = "connected"
		}

		// Check API service connection
		apiStatus := "disconnected"
		if err := apiClient.Health(ctx); err == nil {
			apiStatus = "connected"
		}

		status := "healthy"
		if mqttStatus != "connected" || apiStatus != "connected" {
			status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if status == "healthy" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		// Get circuit breaker status
		circuitBreakerStatus := apiClient.GetCircuitBreakerStatus()

		fmt.Fprintf(w, `{
			"status": "%s",
			"timestamp": "%s",
			"services": {
				"mqtt": "%s",
				"api_service": "%s"
			},
			"circuit_breaker": {
				"state": "%s",
				"failure_count": %d
			}
		}`, status, time.Now().UTC().Format(time.RFC3339), mqttStatus, apiStatus,
			circuitBreakerStatus["state"], circuitBreakerStatus["failure_count"])
	})

	port := ctr.GetConfig().Server.Port
	logger := ctr.GetLogger()
	logger.Info("Health server starting on port " + port)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.FatalWithError(err, "Failed to start health server")
	}
}
