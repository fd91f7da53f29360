package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.ApiService/middleware"
	aggregation "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Aggregation"
	ingestion "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Ingestion"
	logger "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Logger"
	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
	interfaces "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Repository/Interfaces"
)

// ReadingController handles sensor-data ingestion and query requests
type ReadingController struct {
	gateway      *ingestion.Gateway
	readingRepo  interfaces.ReadingRepository
	engine       *aggregation.Engine
	logger       *logger.Logger
	ingestAPIKey string
}

// NewReadingController creates a new reading controller
func NewReadingController(gateway *ingestion.Gateway, readingRepo interfaces.ReadingRepository, engine *aggregation.Engine, log *logger.Logger, ingestAPIKey string) *ReadingController {
	return &ReadingController{
		gateway:      gateway,
		readingRepo:  readingRepo,
		engine:       engine,
		logger:       log,
		ingestAPIKey: ingestAPIKey,
	}
}

// RegisterRoutes registers the sensor-data routes with Gin
func (c *ReadingController) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/sensor-data", middleware.IngestAuthMiddleware(c.ingestAPIKey), c.IngestReading)
		api.GET("/sensor-data", c.GetReadings)
		api.GET("/sensor-data/latest", c.GetLatestPerDevice)
		api.GET("/sensor-data/stats", c.GetFleetStats)
	}
}

func (c *ReadingController) IngestReading(ctx *gin.Context) {
	var payload ingestion.Payload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid payload"})
		return
	}

	id, err := c.gateway.Ingest(ctx, payload)
	if err != nil {
		if errors.Is(err, shmodels.ErrInvalidPayload) || errors.Is(err, shmodels.ErrInvalidReading) {
			ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.logger.ErrorWithError(err, "Failed to ingest reading")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Reading stored successfully",
		"id":      id,
	})
}

func (c *ReadingController) GetReadings(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	params := interfaces.ReadingQueryParams{
		DeviceID: ctx.Query("device_id"),
		Limit:    limit,
	}

	readings, err := c.readingRepo.GetReadings(ctx, params)
	if err != nil {
		c.logger.ErrorWithError(err, "Failed to query readings")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}
	if readings == nil {
		readings = []shmodels.Reading{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   readings,
		"count":  len(readings),
	})
}

func (c *ReadingController) GetLatestPerDevice(ctx *gin.Context) {
	readings, err := c.readingRepo.GetLatestPerDevice(ctx)
	if err != nil {
		c.logger.ErrorWithError(err, "Failed to query latest readings")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}
	if readings == nil {
		readings = []shmodels.Reading{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   readings,
	})
}

// GetFleetStats serves the fleet-wide aggregate over a fixed 24h window.
// Always a well-formed stats object, zeroed when there is no data.
func (c *ReadingController) GetFleetStats(ctx *gin.Context) {
	stats, err := c.engine.FleetWindowStats(ctx, aggregation.DefaultWindowHours)
	if err != nil {
		c.logger.ErrorWithError(err, "Failed to compute fleet stats")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"stats":  stats,
	})
}
