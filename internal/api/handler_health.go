package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yard-occupancy-backend/internal/logging"
)

// Health reports whether the service can reach its database.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		logging.Errorf(c.Request.Context(), "health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
}
