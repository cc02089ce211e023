package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/posbridge/pricing-service/internal/rulestore"
)

// RefreshResponse reports the entry held after a forced refresh
type RefreshResponse struct {
	Environment string    `json:"environment" jsonschema:"required"`
	Refreshed   bool      `json:"refreshed" jsonschema:"required"`
	Stale       bool      `json:"stale"`
	LastFetch   time.Time `json:"lastFetch"`
	Assignments int       `json:"assignments"`
	Rules       int       `json:"rules"`
	Error       string    `json:"error,omitempty"`
}

// InvalidateRequest names the environment to drop. Without one, every
// environment is dropped.
type InvalidateRequest struct {
	Environment string `json:"environment,omitempty"`
}

// InvalidateResponse lists the dropped environments
type InvalidateResponse struct {
	Invalidated []string `json:"invalidated" jsonschema:"required"`
}

// EnvironmentHealth is the freshness of one cached environment
type EnvironmentHealth struct {
	LastFetch   time.Time `json:"lastFetch"`
	AgeSeconds  float64   `json:"ageSeconds"`
	IsStale     bool      `json:"isStale"`
	Assignments int       `json:"assignments"`
	Rules       int       `json:"rules"`
	Breaker     string    `json:"breaker"`
}

// CacheHealthResponse reports the rule store
type CacheHealthResponse struct {
	CacheVersion string                       `json:"cacheVersion" jsonschema:"required"`
	Breakers     map[string]string            `json:"breakers" jsonschema:"required"`
	Environments map[string]EnvironmentHealth `json:"environments" jsonschema:"required"`
}

// RefreshCache forces a backend refresh of one environment
// @Summary Refresh cache
// @Description Refetches one environment. On failure the previous entry keeps serving and 502 is returned; 503 while the circuit breaker is open.
// @Tags cache
// @Produce json
// @Param environment path string true "Backend environment"
// @Success 200 {object} RefreshResponse
// @Failure 400 {object} map[string]string "Unknown environment"
// @Failure 502 {object} RefreshResponse "Backend refresh failed"
// @Failure 503 {object} RefreshResponse "Circuit breaker open"
// @Router /internal/cache/refresh/{environment} [post]
func (h *Handler) RefreshCache(c *gin.Context) {
	env := c.Param("environment")
	if !h.environments.Has(env) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown environment: " + env})
		return
	}

	entry, err := h.store.Refresh(c.Request.Context(), env)
	resp := RefreshResponse{
		Environment: env,
		Refreshed:   err == nil,
		Stale:       entry.Stale,
		LastFetch:   entry.LastFetch,
		Assignments: len(entry.Assignments),
		Rules:       len(entry.Rules),
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, rulestore.ErrCircuitOpen):
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
	default:
		h.logger.Warn().Err(err).Str("environment", env).Msg("Forced refresh failed")
		resp.Error = err.Error()
		c.JSON(http.StatusBadGateway, resp)
	}
}

// InvalidateCache drops one or every cached environment
// @Summary Invalidate cache
// @Tags cache
// @Accept json
// @Produce json
// @Param request body InvalidateRequest false "Environment to drop"
// @Success 200 {object} InvalidateResponse
// @Failure 400 {object} map[string]string "Unknown environment"
// @Router /internal/cache/invalidate [post]
func (h *Handler) InvalidateCache(c *gin.Context) {
	var req InvalidateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	env := strings.TrimSpace(req.Environment)
	if env == "" {
		env = strings.TrimSpace(c.GetHeader(EnvironmentHeader))
	}
	if env == "" {
		h.store.InvalidateAll()
		c.JSON(http.StatusOK, InvalidateResponse{Invalidated: h.environments.Environments()})
		return
	}

	if !h.environments.Has(env) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown environment: " + env})
		return
	}
	h.store.Invalidate(env)
	c.JSON(http.StatusOK, InvalidateResponse{Invalidated: []string{env}})
}

// CacheHealth reports the freshness of every cached environment
// @Summary Cache health
// @Tags cache
// @Produce json
// @Success 200 {object} CacheHealthResponse
// @Router /internal/cache/health [get]
func (h *Handler) CacheHealth(c *gin.Context) {
	freshness := h.store.Freshness()
	envs := make(map[string]EnvironmentHealth, len(freshness))
	for env, f := range freshness {
		envs[env] = EnvironmentHealth{
			LastFetch:   f.LastFetch,
			AgeSeconds:  f.Age.Seconds(),
			IsStale:     f.IsStale,
			Assignments: f.Assignments,
			Rules:       f.Rules,
			Breaker:     f.Breaker,
		}
	}

	c.JSON(http.StatusOK, CacheHealthResponse{
		CacheVersion: rulestore.CacheVersion,
		Breakers:     breakerStates(h.store),
		Environments: envs,
	})
}

func breakerStates(store *rulestore.Store) map[string]string {
	states := store.BreakerStates()
	out := make(map[string]string, len(states))
	for env, state := range states {
		out[env] = state.String()
	}
	return out
}
