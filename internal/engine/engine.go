// Package engine resolves blueprint pricing for products on top of the rule
// store and builds cart lines from it.
package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/posbridge/pricing-service/internal/cart"
	"github.com/posbridge/pricing-service/internal/pricing"
	"github.com/posbridge/pricing-service/internal/rulestore"
)

// ProductSource looks up product display names.
type ProductSource interface {
	ProductName(ctx context.Context, env string, productID int) (string, error)
}

// Config controls pricing resolution.
type Config struct {
	// ProductSpecificBlueprints are blueprints shared by many products whose
	// rules are narrowed by product name.
	ProductSpecificBlueprints []int
	// Concurrency bounds the products resolved in parallel by a batch.
	Concurrency int
}

// DefaultConcurrency is used when Config.Concurrency is not positive.
const DefaultConcurrency = 8

// ProductRef identifies a product to resolve.
type ProductRef struct {
	ID          int   `json:"id"`
	CategoryIDs []int `json:"categoryIds"`
}

// ResolvedPricing is the pricing of one product.
type ResolvedPricing struct {
	BlueprintID   int                 `json:"blueprintId"`
	BlueprintName string              `json:"blueprintName"`
	RuleGroups    []pricing.RuleGroup `json:"ruleGroups"`
}

// ProductPricing converts r for attaching to a cart product.
func (r *ResolvedPricing) ProductPricing() *cart.ProductPricing {
	if r == nil {
		return nil
	}
	return &cart.ProductPricing{
		BlueprintID:   r.BlueprintID,
		BlueprintName: r.BlueprintName,
		RuleGroups:    r.RuleGroups,
	}
}

// Engine is the pricing entry point used by the API and the CLI.
type Engine struct {
	store    *rulestore.Store
	products ProductSource
	cfg      Config
	tracer   trace.Tracer
	logger   *zerolog.Logger
}

// New creates an engine. products may be nil, in which case product-specific
// blueprints are never narrowed.
func New(store *rulestore.Store, products ProductSource, cfg Config, logger *zerolog.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "pricing_engine").Logger()

	return &Engine{
		store:    store,
		products: products,
		cfg:      cfg,
		tracer:   otel.Tracer("github.com/posbridge/pricing-service/internal/engine"),
		logger:   &l,
	}
}

// BatchResolvePricing resolves pricing for every product. It never fails:
// products without resolvable tiers map to nil and callers fall back to the
// base price.
func (e *Engine) BatchResolvePricing(ctx context.Context, env string, products []ProductRef) map[int]*ResolvedPricing {
	ctx, span := e.tracer.Start(ctx, "engine.BatchResolvePricing", trace.WithAttributes(
		attribute.String("pricing.environment", env),
		attribute.Int("pricing.products", len(products)),
	))
	defer span.End()

	entry := e.store.Get(ctx, env)
	span.SetAttributes(attribute.Bool("pricing.stale", entry.Stale))

	var mu sync.Mutex
	results := make(map[int]*ResolvedPricing, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, ref := range products {
		g.Go(func() error {
			rp := e.resolve(gctx, env, entry, ref)
			mu.Lock()
			results[ref.ID] = rp
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resolved := 0
	for _, rp := range results {
		if rp != nil {
			resolved++
		}
	}
	span.SetAttributes(attribute.Int("pricing.resolved", resolved))
	return results
}

func (e *Engine) resolve(ctx context.Context, env string, entry *rulestore.Entry, ref ProductRef) *ResolvedPricing {
	assignment := pricing.ResolveBlueprint(entry.Assignments, ref.ID, ref.CategoryIDs)
	if assignment == nil {
		return nil
	}

	rules := pricing.RulesForBlueprint(entry.Rules, assignment.BlueprintID)
	if pricing.IsProductSpecific(assignment.BlueprintID, e.cfg.ProductSpecificBlueprints) {
		rules = e.filterByProduct(ctx, env, ref.ID, rules)
	}

	groups, skipped := pricing.ConvertRules(rules)
	e.logSkipped(env, assignment.BlueprintID, skipped)
	if len(groups) == 0 {
		return nil
	}

	return &ResolvedPricing{
		BlueprintID:   assignment.BlueprintID,
		BlueprintName: assignment.BlueprintName,
		RuleGroups:    groups,
	}
}

// filterByProduct narrows rules by product name. A failed lookup keeps every
// rule.
func (e *Engine) filterByProduct(ctx context.Context, env string, productID int, rules []pricing.PricingRule) []pricing.PricingRule {
	if e.products == nil {
		return rules
	}
	name, err := e.products.ProductName(ctx, env, productID)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("environment", env).
			Int("product_id", productID).
			Msg("Product name lookup failed, using unfiltered rules")
		return rules
	}
	return pricing.FilterRulesForProduct(rules, name)
}

// TiersForBlueprint returns the rule groups of a blueprint in env.
func (e *Engine) TiersForBlueprint(ctx context.Context, env string, blueprintID int) []pricing.RuleGroup {
	ctx, span := e.tracer.Start(ctx, "engine.TiersForBlueprint", trace.WithAttributes(
		attribute.String("pricing.environment", env),
		attribute.Int("pricing.blueprint_id", blueprintID),
	))
	defer span.End()

	entry := e.store.Get(ctx, env)
	groups, skipped := pricing.TiersForBlueprint(entry.Rules, blueprintID)
	e.logSkipped(env, blueprintID, skipped)
	return groups
}

// MatchTier finds the tier behind a selected quantity and per-unit price.
func (e *Engine) MatchTier(groups []pricing.RuleGroup, quantity, perUnitPrice float64, category string) *pricing.Tier {
	return pricing.MatchTier(groups, quantity, perUnitPrice, category)
}

// BuildCartItem builds a cart line. The only error is *cart.InvalidPriceError.
func (e *Engine) BuildCartItem(product cart.Product, selection cart.Selection) (cart.CartItem, error) {
	item, err := cart.Build(product, selection)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Int("product_id", product.ID).
			Msg("Rejected cart item")
		return cart.CartItem{}, err
	}
	return item, nil
}

func (e *Engine) logSkipped(env string, blueprintID int, skipped []pricing.SkippedRule) {
	for _, s := range skipped {
		e.logger.Warn().
			Str("environment", env).
			Int("blueprint_id", blueprintID).
			Int("rule_id", s.RuleID).
			Str("rule_name", s.RuleName).
			Str("reason", s.Reason).
			Msg("Skipped pricing rule")
	}
}
