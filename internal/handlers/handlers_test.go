package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posbridge/pricing-service/internal/engine"
	"github.com/posbridge/pricing-service/internal/pricing"
	"github.com/posbridge/pricing-service/internal/rulestore"
)

type stubBackend struct {
	mu    sync.Mutex
	err   error
	calls map[string]int
}

func (b *stubBackend) CategoryFields(_ context.Context, env string) ([]pricing.CategoryFieldSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = map[string]int{}
	}
	b.calls[env]++
	if b.err != nil {
		return nil, b.err
	}
	return []pricing.CategoryFieldSet{
		{CategoryID: 18, Fields: []pricing.Field{{ID: 100, GroupLabel: "Flower Pricing"}}},
		{CategoryID: 25, Fields: []pricing.Field{{ID: 7, GroupLabel: "Pre-Roll Pricing"}}},
	}, nil
}

func (b *stubBackend) PricingRules(context.Context, string) ([]pricing.PricingRule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return []pricing.PricingRule{
		{ID: 1, RuleName: "Flower", RuleType: pricing.RuleTypeQuantityBreak, Status: "active",
			Conditions: json.RawMessage(`{"blueprint_id":100,"tiers":[{"min_quantity":1,"price":15},{"min_quantity":4,"price":50}]}`)},
		{ID: 2, RuleName: "Pre-Rolls", RuleType: pricing.RuleTypeQuantityBreak, Status: "active",
			Conditions: json.RawMessage(`{"blueprint_id":7,"use_conversion_ratio":true,
				"conversion_ratio":{"input_amount":0.7,"input_unit":"g","output_amount":1,"output_unit":"preroll"},
				"tiers":[{"name":"Single","min_quantity":1,"price":8},{"name":"3 Pack","min_quantity":3,"price":21}]}`)},
	}, nil
}

func (b *stubBackend) fetches(env string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[env]
}

type stubEnvironments []string

func (s stubEnvironments) Has(env string) bool    { return slices.Contains(s, env) }
func (s stubEnvironments) Environments() []string { return s }

func setupRouter(t *testing.T, backend *stubBackend) (*gin.Engine, *rulestore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := rulestore.New(backend, rulestore.Options{}, nil)
	eng := engine.New(store, nil, engine.Config{}, nil)
	h := New(eng, store, stubEnvironments{"production", "staging"}, "production", nil)

	router := gin.New()
	router.GET("/health", h.HealthCheck)
	h.Register(router.Group("/internal"))
	return router, store
}

func doJSON(router *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestBatchResolvePricingHandler(t *testing.T) {
	router, _ := setupRouter(t, &stubBackend{})

	w := doJSON(router, http.MethodPost, "/internal/pricing/batch", BatchPricingRequest{
		Products: []engine.ProductRef{{ID: 1, CategoryIDs: []int{18}}, {ID: 2, CategoryIDs: []int{99}}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[BatchPricingResponse](t, w)
	assert.Equal(t, "production", resp.Environment)
	assert.Equal(t, 1, resp.Resolved)
	require.NotNil(t, resp.Pricing[1])
	assert.Equal(t, 100, resp.Pricing[1].BlueprintID)
	assert.Contains(t, resp.Pricing, 2)
	assert.Nil(t, resp.Pricing[2])
}

func TestBatchResolvePricingValidation(t *testing.T) {
	router, _ := setupRouter(t, &stubBackend{})

	w := doJSON(router, http.MethodPost, "/internal/pricing/batch", BatchPricingRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/internal/pricing/batch", BatchPricingRequest{
		Environment: "qa",
		Products:    []engine.ProductRef{{ID: 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown environment")
}

func TestEnvironmentSelection(t *testing.T) {
	backend := &stubBackend{}
	router, _ := setupRouter(t, backend)
	products := []engine.ProductRef{{ID: 1, CategoryIDs: []int{18}}}

	w := doJSON(router, http.MethodPost, "/internal/pricing/batch",
		BatchPricingRequest{Products: products}, EnvironmentHeader, "staging")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "staging", decode[BatchPricingResponse](t, w).Environment)

	// the body wins over the header
	w = doJSON(router, http.MethodPost, "/internal/pricing/batch",
		BatchPricingRequest{Environment: "production", Products: products}, EnvironmentHeader, "staging")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "production", decode[BatchPricingResponse](t, w).Environment)

	assert.Equal(t, 1, backend.fetches("staging"))
	assert.Equal(t, 1, backend.fetches("production"))
}

func TestGetBlueprintTiers(t *testing.T) {
	router, _ := setupRouter(t, &stubBackend{})

	w := doJSON(router, http.MethodGet, "/internal/pricing/blueprints/100/tiers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[TiersResponse](t, w)
	require.Len(t, resp.RuleGroups, 1)
	assert.Len(t, resp.RuleGroups[0].Tiers, 2)

	w = doJSON(router, http.MethodGet, "/internal/pricing/blueprints/999/tiers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, w, "ruleGroups")))

	w = doJSON(router, http.MethodGet, "/internal/pricing/blueprints/abc/tiers", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func mustField(t *testing.T, w *httptest.ResponseRecorder, key string) json.RawMessage {
	t.Helper()
	fields := decode[map[string]json.RawMessage](t, w)
	v, ok := fields[key]
	require.True(t, ok, "missing %s", key)
	return v
}

func TestMatchTierHandler(t *testing.T) {
	router, _ := setupRouter(t, &stubBackend{})

	w := doJSON(router, http.MethodPost, "/internal/pricing/match", MatchTierRequest{
		BlueprintID:  7,
		Quantity:     3,
		PerUnitPrice: 7,
		Category:     "Pre-Rolls",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[MatchTierResponse](t, w)
	require.True(t, resp.Matched)
	assert.Equal(t, "3 Pack", resp.Tier.Label)
	require.NotNil(t, resp.Multiplier)
	assert.InDelta(t, 0.7, *resp.Multiplier, 1e-9)

	w = doJSON(router, http.MethodPost, "/internal/pricing/match", MatchTierRequest{
		RuleGroups: []pricing.RuleGroup{{RuleName: "Inline", Tiers: []pricing.Tier{{Min: 1, Price: 10, Label: "1"}}}},
		Quantity:   2,
		// matches nothing
		PerUnitPrice: 99,
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[MatchTierResponse](t, w)
	assert.False(t, resp.Matched)
	assert.Nil(t, resp.Multiplier)

	w = doJSON(router, http.MethodPost, "/internal/pricing/match", MatchTierRequest{Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuildCartItemHandler(t *testing.T) {
	router, _ := setupRouter(t, &stubBackend{})

	body := map[string]any{
		"product": map[string]any{
			"id":   5,
			"name": "Pre-Roll",
			"pricing": map[string]any{
				"blueprintId":   7,
				"blueprintName": "Pre-Roll Pricing",
				"ruleGroups": []map[string]any{{
					"ruleName": "Pre-Rolls",
					"ruleId":   2,
					"tiers": []map[string]any{{
						"min": 3, "price": 21, "label": "3 Pack", "ruleName": "Pre-Rolls",
						"conversionRatio": map[string]any{"inputAmount": 0.7, "inputUnit": "g", "outputAmount": 1, "outputUnit": "preroll"},
					}},
				}},
			},
		},
		"selection": map[string]any{"quantity": 3, "selectedPrice": 7, "category": "Pre-Rolls"},
	}
	w := doJSON(router, http.MethodPost, "/internal/cart/items", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[CartItemResponse](t, w)
	assert.Equal(t, 21.0, resp.Item.LineTotal)
	require.NotNil(t, resp.Item.PricingTier)
	assert.Equal(t, "3 Pack", resp.Item.PricingTier.TierLabel)
	require.NotNil(t, resp.Deduction)
	assert.InDelta(t, 2.1, resp.Deduction.Amount, 1e-9)
	assert.Equal(t, "g", resp.Deduction.Unit)
}

func TestBuildCartItemInvalidPrice(t *testing.T) {
	router, _ := setupRouter(t, &stubBackend{})

	w := doJSON(router, http.MethodPost, "/internal/cart/items", map[string]any{
		"product":   map[string]any{"id": 9, "name": "Free Sample"},
		"selection": map[string]any{"quantity": 1},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	product := decode[map[string]json.RawMessage](t, w)["product"]
	assert.Contains(t, string(product), "Free Sample")

	w = doJSON(router, http.MethodPost, "/internal/cart/items", map[string]any{"product": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshCache(t *testing.T) {
	backend := &stubBackend{}
	router, _ := setupRouter(t, backend)

	w := doJSON(router, http.MethodPost, "/internal/cache/refresh/staging", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RefreshResponse](t, w)
	assert.True(t, resp.Refreshed)
	assert.Equal(t, 2, resp.Rules)

	backend.mu.Lock()
	backend.err = errors.New("upstream 500")
	backend.mu.Unlock()

	w = doJSON(router, http.MethodPost, "/internal/cache/refresh/staging", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	resp = decode[RefreshResponse](t, w)
	assert.False(t, resp.Refreshed)
	assert.True(t, resp.Stale)
	assert.Equal(t, 2, resp.Rules, "previous entry keeps serving")
	assert.NotEmpty(t, resp.Error)

	w = doJSON(router, http.MethodPost, "/internal/cache/refresh/qa", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidateAndHealth(t *testing.T) {
	backend := &stubBackend{}
	router, store := setupRouter(t, backend)
	store.Get(context.Background(), "production")
	store.Get(context.Background(), "staging")

	w := doJSON(router, http.MethodGet, "/internal/cache/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[CacheHealthResponse](t, w)
	assert.Equal(t, rulestore.CacheVersion, health.CacheVersion)
	assert.Equal(t, map[string]string{"production": "closed", "staging": "closed"}, health.Breakers)
	assert.Equal(t, "closed", health.Environments["production"].Breaker)
	require.Len(t, health.Environments, 2)
	assert.Equal(t, 2, health.Environments["staging"].Rules)

	w = doJSON(router, http.MethodPost, "/internal/cache/invalidate", InvalidateRequest{Environment: "staging"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"staging"}, decode[InvalidateResponse](t, w).Invalidated)
	assert.NotContains(t, store.Freshness(), "staging")
	assert.Contains(t, store.Freshness(), "production")

	w = doJSON(router, http.MethodPost, "/internal/cache/invalidate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.Freshness())

	w = doJSON(router, http.MethodPost, "/internal/cache/invalidate", InvalidateRequest{Environment: "qa"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupRouter(t, &stubBackend{})

	w := doJSON(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, w).Status)
}

func TestHealthCheckReportsBreakersPerEnvironment(t *testing.T) {
	backend := &stubBackend{err: errors.New("staging down")}
	router, store := setupRouter(t, backend)
	ctx := context.Background()

	for i := 0; i < rulestore.DefaultCircuitBreakerConfig().MaxFailures; i++ {
		store.Get(ctx, "staging")
	}
	backend.mu.Lock()
	backend.err = nil
	backend.mu.Unlock()

	entry := store.Get(ctx, "production")
	assert.Len(t, entry.Rules, 2)

	w := doJSON(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, map[string]string{"production": "closed", "staging": "open"}, health.Breakers)
}
