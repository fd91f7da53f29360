package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.ApiService/controllers"
	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.ApiService/middleware"
	aggregation "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Aggregation"
	clock "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Clock"
	container "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Container"
	ingestion "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Ingestion"
	implementation "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Repository/Implementation"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting Telemetry API Service")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}

	db, err := ctr.GetDatabase()
	if err != nil {
		logger.FatalWithError(err, "Failed to get database connection")
	}

	healthChecker, err := ctr.GetHealthChecker()
	if err != nil {
		logger.FatalWithError(err, "Failed to get health checker")
	}

	config := ctr.GetConfig()

	// Wire the core: registry, store, aggregation engine, ingestion gateway
	clk := clock.System{}
	deviceRepo := implementation.NewSQLDeviceRepository(db, clk)
	readingRepo := implementation.NewSQLReadingRepository(db, clk)
	engine := aggregation.NewEngine(readingRepo, clk)
	gateway := ingestion.NewGateway(deviceRepo, readingRepo, clk, logger, config.Ingest.DefaultDeviceID)

	// Initialize Gin router
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	readingController := controllers.NewReadingController(gateway, readingRepo, engine, logger, config.Ingest.APIKey)
	deviceController := controllers.NewDeviceController(deviceRepo, engine, logger)
	healthController := controllers.NewHealthController(healthChecker, logger)

	readingController.RegisterRoutes(router)
	deviceController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
