package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/posbridge/pricing-service/internal/rulestore"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers"`
}

// HealthCheck handles the public health check endpoint. Any environment with
// an open breaker reports degraded but still answers 200 since stale pricing
// keeps serving.
func (h *Handler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:   "ok",
		Breakers: breakerStates(h.store),
	}
	for _, state := range h.store.BreakerStates() {
		if state != rulestore.CircuitClosed {
			response.Status = "degraded"
			break
		}
	}
	c.JSON(http.StatusOK, response)
}
