package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.ApiService/health"
	logger "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Logger"
)

// HealthController handles health check requests
type HealthController struct {
	healthChecker *health.HealthChecker
	logger        *logger.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(healthChecker *health.HealthChecker, log *logger.Logger) *HealthController {
	return &HealthController{
		healthChecker: healthChecker,
		logger:        log,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/health", c.HealthCheck)
}

// HealthCheck verifies persistence reachability.
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	status, healthy := c.healthChecker.GetHealthStatus(ctx)
	if !healthy {
		ctx.JSON(http.StatusInternalServerError, status)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
