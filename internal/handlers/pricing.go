package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/posbridge/pricing-service/internal/engine"
	"github.com/posbridge/pricing-service/internal/pricing"
)

// BatchPricingRequest lists the products to resolve
type BatchPricingRequest struct {
	Environment string              `json:"environment,omitempty"`
	Products    []engine.ProductRef `json:"products" binding:"required,min=1,max=500" jsonschema:"required"`
}

// BatchPricingResponse maps product ids to their pricing. Products without
// tiers map to null.
type BatchPricingResponse struct {
	Environment string                          `json:"environment" jsonschema:"required"`
	Pricing     map[int]*engine.ResolvedPricing `json:"pricing" jsonschema:"required"`
	Resolved    int                             `json:"resolved"`
}

// TiersResponse holds the rule groups of one blueprint
type TiersResponse struct {
	Environment string              `json:"environment" jsonschema:"required"`
	BlueprintID int                 `json:"blueprintId" jsonschema:"required"`
	RuleGroups  []pricing.RuleGroup `json:"ruleGroups" jsonschema:"required"`
}

// MatchTierRequest is a reverse lookup from a selection to its tier. When
// RuleGroups is empty the groups of BlueprintID are used.
type MatchTierRequest struct {
	Environment  string              `json:"environment,omitempty"`
	BlueprintID  int                 `json:"blueprintId,omitempty"`
	RuleGroups   []pricing.RuleGroup `json:"ruleGroups,omitempty"`
	Quantity     float64             `json:"quantity" binding:"required,gt=0" jsonschema:"required"`
	PerUnitPrice float64             `json:"perUnitPrice" binding:"gte=0"`
	Category     string              `json:"category,omitempty"`
}

// MatchTierResponse carries the matched tier and, for tiers with a
// conversion ratio, the inventory multiplier.
type MatchTierResponse struct {
	Matched    bool          `json:"matched" jsonschema:"required"`
	Tier       *pricing.Tier `json:"tier,omitempty"`
	Multiplier *float64      `json:"multiplier,omitempty"`
}

// BatchResolvePricing resolves blueprint pricing for a list of products
// @Summary Batch resolve pricing
// @Description Resolves the blueprint and tier groups of every product. Products without tiers map to null.
// @Tags pricing
// @Accept json
// @Produce json
// @Param X-Pricing-Environment header string false "Backend environment"
// @Param request body BatchPricingRequest true "Products to resolve"
// @Success 200 {object} BatchPricingResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Router /internal/pricing/batch [post]
func (h *Handler) BatchResolvePricing(c *gin.Context) {
	var req BatchPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	env, ok := h.environment(c, req.Environment)
	if !ok {
		return
	}

	results := h.engine.BatchResolvePricing(c.Request.Context(), env, req.Products)
	resolved := 0
	for _, rp := range results {
		if rp != nil {
			resolved++
		}
	}

	c.JSON(http.StatusOK, BatchPricingResponse{
		Environment: env,
		Pricing:     results,
		Resolved:    resolved,
	})
}

// GetBlueprintTiers returns the tier groups of a blueprint
// @Summary Get blueprint tiers
// @Tags pricing
// @Produce json
// @Param blueprintId path int true "Blueprint id"
// @Param environment query string false "Backend environment"
// @Success 200 {object} TiersResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Router /internal/pricing/blueprints/{blueprintId}/tiers [get]
func (h *Handler) GetBlueprintTiers(c *gin.Context) {
	blueprintID, err := strconv.Atoi(c.Param("blueprintId"))
	if err != nil || blueprintID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "blueprintId must be a positive integer"})
		return
	}
	env, ok := h.environment(c, c.Query("environment"))
	if !ok {
		return
	}

	groups := h.engine.TiersForBlueprint(c.Request.Context(), env, blueprintID)
	if groups == nil {
		groups = []pricing.RuleGroup{}
	}
	c.JSON(http.StatusOK, TiersResponse{
		Environment: env,
		BlueprintID: blueprintID,
		RuleGroups:  groups,
	})
}

// MatchTier finds the tier behind a selected quantity and per-unit price
// @Summary Match tier
// @Description Reverse lookup of the tier a selection was made from. An unmatched selection is not an error.
// @Tags pricing
// @Accept json
// @Produce json
// @Param request body MatchTierRequest true "Selection"
// @Success 200 {object} MatchTierResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Router /internal/pricing/match [post]
func (h *Handler) MatchTier(c *gin.Context) {
	var req MatchTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groups := req.RuleGroups
	if len(groups) == 0 {
		if req.BlueprintID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ruleGroups or blueprintId is required"})
			return
		}
		env, ok := h.environment(c, req.Environment)
		if !ok {
			return
		}
		groups = h.engine.TiersForBlueprint(c.Request.Context(), env, req.BlueprintID)
	}

	tier := h.engine.MatchTier(groups, req.Quantity, req.PerUnitPrice, req.Category)
	resp := MatchTierResponse{Matched: tier != nil, Tier: tier}
	if tier != nil && tier.ConversionRatio != nil {
		m := tier.ConversionRatio.Multiplier()
		resp.Multiplier = &m
	}
	c.JSON(http.StatusOK, resp)
}
