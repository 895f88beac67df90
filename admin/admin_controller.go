package admin

import (
	"net/http"

	"stock_api_backend/scheduler"
	"stock_api_backend/services"

	"github.com/gin-gonic/gin"
)

// AdminController exposes the pipeline trigger and status surface
type AdminController struct {
	updates *scheduler.DataUpdateService
}

// NewAdminController creates a new admin controller
func NewAdminController(updates *scheduler.DataUpdateService) *AdminController {
	return &AdminController{updates: updates}
}

// Status returns the pipeline and storage status
// GET /api/v1/admin/status
func (ac *AdminController) Status(c *gin.Context) {
	status := gin.H{
		"pipeline": ac.updates.Status(),
	}

	if services.GlobalMongoClient != nil {
		cacheStatus := services.GlobalMongoClient.GetConnectionStatus()
		if count, err := services.GlobalMongoClient.GetCacheDocumentCount(); err == nil {
			cacheStatus["documents"] = count
		}
		status["durable_cache"] = cacheStatus
	}

	c.JSON(http.StatusOK, status)
}

// Reconnect reattempts the durable cache connection, for recovery after a
// failed boot or a dropped Atlas session.
// POST /api/v1/admin/reconnect
func (ac *AdminController) Reconnect(c *gin.Context) {
	client := services.GlobalMongoClient
	if client == nil || !client.IsURISet() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "unavailable",
			"message": "Durable cache is not configured",
		})
		return
	}

	if err := client.Reconnect(); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "bad_gateway",
			"message": "Reconnect failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Durable cache reconnected",
		"status":  client.GetConnectionStatus(),
	})
}

// Refresh triggers an update pass. ?full=true includes price history.
// POST /api/v1/admin/refresh
func (ac *AdminController) Refresh(c *gin.Context) {
	full := c.Query("full") == "true"

	if !ac.updates.TryRun(full) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": "An update pass is already running",
		})
		return
	}

	pass := "light"
	if full {
		pass = "full"
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Update pass started",
		"pass":    pass,
	})
}
