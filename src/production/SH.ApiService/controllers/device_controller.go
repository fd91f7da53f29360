package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	aggregation "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Aggregation"
	logger "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Logger"
	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
	interfaces "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Repository/Interfaces"
)

// DeviceController handles device registry requests
type DeviceController struct {
	deviceRepo interfaces.DeviceRepository
	engine     *aggregation.Engine
	logger     *logger.Logger
}

// NewDeviceController creates a new device controller
func NewDeviceController(deviceRepo interfaces.DeviceRepository, engine *aggregation.Engine, log *logger.Logger) *DeviceController {
	return &DeviceController{
		deviceRepo: deviceRepo,
		engine:     engine,
		logger:     log,
	}
}

// RegisterRoutes registers the device routes with Gin
func (c *DeviceController) RegisterRoutes(router *gin.Engine) {
	devices := router.Group("/api/devices")
	{
		devices.GET("", c.ListDevices)
		devices.GET("/:device_id", c.GetDevice)
		devices.PUT("/:device_id", c.UpdateDevice)
		devices.DELETE("/:device_id", c.DeleteDevice)
		devices.GET("/:device_id/stats", c.GetDeviceStats)
	}
}

func (c *DeviceController) ListDevices(ctx *gin.Context) {
	activeOnly := ctx.Query("active") == "true"

	devices, err := c.deviceRepo.ListDevices(ctx, activeOnly)
	if err != nil {
		c.logger.ErrorWithError(err, "Failed to list devices")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}
	if devices == nil {
		devices = []shmodels.Device{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   devices,
	})
}

func (c *DeviceController) GetDevice(ctx *gin.Context) {
	device, err := c.deviceRepo.GetDevice(ctx, ctx.Param("device_id"))
	if err != nil {
		if errors.Is(err, shmodels.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Device not found"})
			return
		}
		c.logger.ErrorWithError(err, "Failed to get device")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   device,
	})
}

func (c *DeviceController) UpdateDevice(ctx *gin.Context) {
	var update shmodels.DeviceUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid payload"})
		return
	}

	device, err := c.deviceRepo.UpdateDevice(ctx, ctx.Param("device_id"), update)
	if err != nil {
		if errors.Is(err, shmodels.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Device not found"})
			return
		}
		c.logger.ErrorWithError(err, "Failed to update device")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Device updated successfully",
		"data":    device,
	})
}

func (c *DeviceController) DeleteDevice(ctx *gin.Context) {
	deviceID := ctx.Param("device_id")

	if err := c.deviceRepo.DeleteDevice(ctx, deviceID); err != nil {
		if errors.Is(err, shmodels.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Device not found"})
			return
		}
		c.logger.ErrorWithError(err, "Failed to delete device")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Device and its readings deleted",
	})
}

// GetDeviceStats serves the device-scoped windowed aggregate. Data is null
// with an explanatory message when no readings fall within the window.
func (c *DeviceController) GetDeviceStats(ctx *gin.Context) {
	device, err := c.deviceRepo.GetDevice(ctx, ctx.Param("device_id"))
	if err != nil {
		if errors.Is(err, shmodels.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Device not found"})
			return
		}
		c.logger.ErrorWithError(err, "Failed to get device")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	hours, err := strconv.Atoi(ctx.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = aggregation.DefaultWindowHours
	}

	stats, err := c.engine.DeviceWindowStats(ctx, device, hours)
	if err != nil {
		c.logger.ErrorWithError(err, "Failed to compute device stats")
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	if stats == nil {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"data":    nil,
			"message": "No data found for the specified period",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   stats,
	})
}
