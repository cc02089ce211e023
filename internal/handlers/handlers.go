// Package handlers exposes the pricing engine and rule store over HTTP.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/posbridge/pricing-service/internal/engine"
	"github.com/posbridge/pricing-service/internal/rulestore"
)

// EnvironmentHeader selects the backend environment when the request body does
// not name one
const EnvironmentHeader = "X-Pricing-Environment"

// Environments reports which backend environments are configured.
type Environments interface {
	Has(env string) bool
	Environments() []string
}

// Handler serves the /internal pricing, cart and cache routes.
type Handler struct {
	engine       *engine.Engine
	store        *rulestore.Store
	environments Environments
	defaultEnv   string
	logger       *zerolog.Logger
}

// New creates a handler. defaultEnv is used when a request names no
// environment.
func New(eng *engine.Engine, store *rulestore.Store, envs Environments, defaultEnv string, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "http_handlers").Logger()
	return &Handler{
		engine:       eng,
		store:        store,
		environments: envs,
		defaultEnv:   defaultEnv,
		logger:       &l,
	}
}

// Register mounts the routes on group, normally /internal.
func (h *Handler) Register(group *gin.RouterGroup) {
	pricing := group.Group("/pricing")
	{
		pricing.POST("/batch", h.BatchResolvePricing)
		pricing.GET("/blueprints/:blueprintId/tiers", h.GetBlueprintTiers)
		pricing.POST("/match", h.MatchTier)
	}

	cartGroup := group.Group("/cart")
	{
		cartGroup.POST("/items", h.BuildCartItem)
	}

	cache := group.Group("/cache")
	{
		cache.POST("/refresh/:environment", h.RefreshCache)
		cache.POST("/invalidate", h.InvalidateCache)
		cache.GET("/health", h.CacheHealth)
	}
}

// environment picks the requested environment, then the header, then the
// default. It writes a 400 and returns false for unknown environments.
func (h *Handler) environment(c *gin.Context, requested string) (string, bool) {
	env := strings.TrimSpace(requested)
	if env == "" {
		env = strings.TrimSpace(c.GetHeader(EnvironmentHeader))
	}
	if env == "" {
		env = h.defaultEnv
	}
	if !h.environments.Has(env) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":        "unknown environment: " + env,
			"environments": h.environments.Environments(),
		})
		return "", false
	}
	return env, true
}
