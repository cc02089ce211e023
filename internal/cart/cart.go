// Package cart builds cart lines from products and a customer's
// quantity/price selection.
package cart

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/posbridge/pricing-service/internal/pricing"
)

// Product is the subset of a catalog product needed to build a cart line.
// Price and RegularPrice are the backend's decimal strings.
type Product struct {
	ID               int             `json:"id"`
	ParentID         int             `json:"parentId,omitempty"`
	VariantID        int             `json:"variantId,omitempty"`
	Name             string          `json:"name"`
	SKU              string          `json:"sku,omitempty"`
	Price            string          `json:"price,omitempty"`
	RegularPrice     string          `json:"regularPrice,omitempty"`
	CategoryIDs      []int           `json:"categoryIds,omitempty"`
	SelectedCategory string          `json:"selectedCategory,omitempty"`
	Pricing          *ProductPricing `json:"pricing,omitempty"`
}

// ProductPricing is the resolved blueprint pricing attached to a product.
type ProductPricing struct {
	BlueprintID   int                 `json:"blueprintId"`
	BlueprintName string              `json:"blueprintName"`
	RuleGroups    []pricing.RuleGroup `json:"ruleGroups"`
}

// Selection is what the customer picked. Category overrides the product's
// selected category when set.
type Selection struct {
	Quantity      float64  `json:"quantity"`
	SelectedPrice *float64 `json:"selectedPrice,omitempty"`
	Category      string   `json:"category,omitempty"`
}

// PricingTier records the tier a cart line was priced from.
type PricingTier struct {
	TierLabel       string                   `json:"tierLabel"`
	TierRuleName    string                   `json:"tierRuleName"`
	TierPrice       float64                  `json:"tierPrice"`
	TierQuantity    float64                  `json:"tierQuantity"`
	TierCategory    string                   `json:"tierCategory"`
	ConversionRatio *pricing.ConversionRatio `json:"conversionRatio,omitempty"`
}

// CartItem is an immutable cart line.
type CartItem struct {
	ID          string       `json:"id"`
	ProductID   int          `json:"productId"`
	VariantID   int          `json:"variantId,omitempty"`
	ParentID    int          `json:"parentId,omitempty"`
	Name        string       `json:"name"`
	SKU         string       `json:"sku,omitempty"`
	Quantity    float64      `json:"quantity"`
	UnitPrice   float64      `json:"unitPrice"`
	LineTotal   float64      `json:"lineTotal"`
	PricingTier *PricingTier `json:"pricingTier,omitempty"`
}

// Build creates the cart line for product and selection.
//
// The per-unit price is the selected price, else the first tier of the first
// rule group, else the product's base price. No positive candidate yields an
// *InvalidPriceError. When a category is selected and the product carries
// blueprint pricing, the matching tier is recorded on the line.
func Build(product Product, selection Selection) (CartItem, error) {
	quantity := selection.Quantity
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		quantity = 1
	}

	category := strings.TrimSpace(selection.Category)
	if category == "" {
		category = strings.TrimSpace(product.SelectedCategory)
	}

	unitPrice, ok := resolveUnitPrice(product, selection)
	if !ok {
		return CartItem{}, &InvalidPriceError{ProductID: product.ID, ProductName: product.Name}
	}

	item := CartItem{
		ID:        itemID(product, category),
		ProductID: product.ID,
		VariantID: variantID(product),
		ParentID:  product.ParentID,
		Name:      product.Name,
		SKU:       product.SKU,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: decimal.NewFromFloat(unitPrice).
			Mul(decimal.NewFromFloat(quantity)).
			Round(2).
			InexactFloat64(),
	}

	if category != "" && product.Pricing != nil {
		if tier := pricing.MatchTier(product.Pricing.RuleGroups, quantity, unitPrice, category); tier != nil {
			item.PricingTier = newPricingTier(*tier, category)
		}
	}
	return item, nil
}

func newPricingTier(tier pricing.Tier, category string) *PricingTier {
	pt := &PricingTier{
		TierLabel:    tier.Label,
		TierRuleName: tier.RuleName,
		TierPrice:    tier.Price,
		TierQuantity: tier.Min,
		TierCategory: category,
	}
	if ratio, ok := pricing.Revalidate(tier.ConversionRatio); ok {
		pt.ConversionRatio = ratio
	}
	return pt
}

func resolveUnitPrice(product Product, selection Selection) (float64, bool) {
	if p := selection.SelectedPrice; p != nil && positive(*p) {
		return *p, true
	}

	if product.Pricing != nil && len(product.Pricing.RuleGroups) > 0 {
		if tiers := product.Pricing.RuleGroups[0].Tiers; len(tiers) > 0 {
			first := tiers[0]
			price := first.Price
			if first.Min > 0 {
				price = first.Price / first.Min
			}
			if positive(price) {
				return price, true
			}
		}
	}

	for _, s := range []string{product.Price, product.RegularPrice} {
		if price, ok := parsePrice(s); ok {
			return price, true
		}
	}
	return 0, false
}

func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// itemID keys variants on parent and variant, simple products on the product
// id plus an optional category slug.
func itemID(product Product, category string) string {
	if product.ParentID > 0 {
		return strconv.Itoa(product.ParentID) + "-" + strconv.Itoa(variantID(product))
	}
	id := strconv.Itoa(product.ID)
	if slug := slugify(category); slug != "" {
		id += "-" + slug
	}
	return id
}

// variantID is the product's own id when a variant arrives without one.
func variantID(product Product) int {
	if product.ParentID > 0 && product.VariantID == 0 {
		return product.ID
	}
	return product.VariantID
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range pricing.NormalizeName(s) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
