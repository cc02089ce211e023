package cart

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posbridge/pricing-service/internal/pricing"
)

func floatPtr(v float64) *float64 { return &v }

func preRollRatio() *pricing.ConversionRatio {
	return &pricing.ConversionRatio{InputAmount: 0.7, InputUnit: "g", OutputAmount: 1, OutputUnit: "preroll"}
}

func flowerPricing() *ProductPricing {
	return &ProductPricing{
		BlueprintID:   18,
		BlueprintName: "Flower Pricing",
		RuleGroups: []pricing.RuleGroup{{
			RuleName: "Flower",
			RuleID:   10,
			Tiers: []pricing.Tier{
				{Min: 1, Price: 15, Label: "1g", RuleName: "Flower"},
				{Min: 3.5, Price: 45, Label: "Eighth", RuleName: "Flower"},
			},
		}},
	}
}

func TestBuildUnitPriceFallback(t *testing.T) {
	tests := []struct {
		name      string
		product   Product
		selection Selection
		unit      float64
		total     float64
	}{
		{
			name:      "selected price wins",
			product:   Product{ID: 1, Name: "OG Kush", Price: "9.99", Pricing: flowerPricing()},
			selection: Selection{Quantity: 2, SelectedPrice: floatPtr(12.5)},
			unit:      12.5,
			total:     25,
		},
		{
			name:      "first tier per-unit price",
			product:   Product{ID: 1, Name: "OG Kush", Price: "9.99", Pricing: flowerPricing()},
			selection: Selection{Quantity: 3},
			unit:      15,
			total:     45,
		},
		{
			name: "tier with zero min uses the tier price",
			product: Product{ID: 1, Pricing: &ProductPricing{RuleGroups: []pricing.RuleGroup{
				{Tiers: []pricing.Tier{{Min: 0, Price: 4}}},
			}}},
			selection: Selection{Quantity: 1},
			unit:      4,
			total:     4,
		},
		{
			name:      "base price",
			product:   Product{ID: 1, Price: " 12.50 ", RegularPrice: "20"},
			selection: Selection{Quantity: 3},
			unit:      12.5,
			total:     37.5,
		},
		{
			name:      "regular price when sale price is empty",
			product:   Product{ID: 1, Price: "", RegularPrice: "18"},
			selection: Selection{Quantity: 1},
			unit:      18,
			total:     18,
		},
		{
			name:      "non-positive selected price ignored",
			product:   Product{ID: 1, Price: "7"},
			selection: Selection{Quantity: 1, SelectedPrice: floatPtr(0)},
			unit:      7,
			total:     7,
		},
		{
			name:      "line total rounded to cents",
			product:   Product{ID: 1, Price: "3.333"},
			selection: Selection{Quantity: 3},
			unit:      3.333,
			total:     10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := Build(tt.product, tt.selection)
			require.NoError(t, err)
			assert.InDelta(t, tt.unit, item.UnitPrice, 1e-9)
			assert.Equal(t, tt.total, item.LineTotal)
		})
	}
}

func TestBuildInvalidPrice(t *testing.T) {
	products := []Product{
		{ID: 7, Name: "Mystery Box", Price: "", RegularPrice: "0"},
		{ID: 7, Name: "Mystery Box", Price: "free", RegularPrice: "-1"},
		{ID: 7, Name: "Mystery Box", Pricing: &ProductPricing{RuleGroups: []pricing.RuleGroup{
			{Tiers: []pricing.Tier{{Min: 1, Price: 0}}},
		}}},
	}

	for i, p := range products {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := Build(p, Selection{Quantity: 1})
			require.Error(t, err)
			assert.True(t, IsInvalidPrice(err))

			var priceErr *InvalidPriceError
			require.True(t, errors.As(err, &priceErr))
			assert.Equal(t, 7, priceErr.ProductID)
			assert.Contains(t, err.Error(), "Mystery Box")
		})
	}
}

func TestIsInvalidPriceWrapped(t *testing.T) {
	err := fmt.Errorf("add line: %w", &InvalidPriceError{ProductID: 1})
	assert.True(t, IsInvalidPrice(err))
	assert.False(t, IsInvalidPrice(errors.New("other")))
	assert.False(t, IsInvalidPrice(nil))
}

func TestBuildDefaultsQuantity(t *testing.T) {
	for _, q := range []float64{0, -2, math.NaN()} {
		item, err := Build(Product{ID: 1, Price: "5"}, Selection{Quantity: q})
		require.NoError(t, err)
		assert.Equal(t, 1.0, item.Quantity)
		assert.Equal(t, 5.0, item.LineTotal)
	}
}

func TestBuildItemIdentity(t *testing.T) {
	tests := []struct {
		name      string
		product   Product
		selection Selection
		want      string
	}{
		{"simple product", Product{ID: 42, Price: "1"}, Selection{}, "42"},
		{"simple product with category", Product{ID: 42, Price: "1"}, Selection{Category: "Indoor Flower"}, "42-indoor-flower"},
		{"product selected category", Product{ID: 42, Price: "1", SelectedCategory: "Pre-Rolls"}, Selection{}, "42-pre-rolls"},
		{"selection category overrides", Product{ID: 42, Price: "1", SelectedCategory: "Pre-Rolls"}, Selection{Category: "Shake"}, "42-shake"},
		{"variant", Product{ID: 901, ParentID: 42, VariantID: 901, Price: "1"}, Selection{Category: "Shake"}, "42-901"},
		{"variant without variant id", Product{ID: 901, ParentID: 42, Price: "1"}, Selection{}, "42-901"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := Build(tt.product, tt.selection)
			require.NoError(t, err)
			assert.Equal(t, tt.want, item.ID)
		})
	}
}

func TestBuildVariantWithoutVariantID(t *testing.T) {
	item, err := Build(Product{ID: 901, ParentID: 42, Price: "1"}, Selection{})
	require.NoError(t, err)
	assert.Equal(t, "42-901", item.ID)
	assert.Equal(t, 901, item.VariantID)
	assert.Equal(t, 42, item.ParentID)
}

func TestBuildEmbedsMatchedTier(t *testing.T) {
	product := Product{ID: 5, Name: "Blue Dream", Pricing: flowerPricing()}

	item, err := Build(product, Selection{Quantity: 3.5, SelectedPrice: floatPtr(45.0 / 3.5), Category: "Flower"})
	require.NoError(t, err)
	require.NotNil(t, item.PricingTier)
	assert.Equal(t, PricingTier{
		TierLabel:    "Eighth",
		TierRuleName: "Flower",
		TierPrice:    45,
		TierQuantity: 3.5,
		TierCategory: "Flower",
	}, *item.PricingTier)
	assert.Equal(t, 45.0, item.LineTotal)
}

func TestBuildWithoutTierMetadata(t *testing.T) {
	product := Product{ID: 5, Name: "Blue Dream", Pricing: flowerPricing()}

	// no category selected
	item, err := Build(product, Selection{Quantity: 1, SelectedPrice: floatPtr(15)})
	require.NoError(t, err)
	assert.Nil(t, item.PricingTier)

	// category selected but the price matches no tier
	item, err = Build(product, Selection{Quantity: 1, SelectedPrice: floatPtr(11), Category: "Flower"})
	require.NoError(t, err)
	assert.Nil(t, item.PricingTier)
	assert.Equal(t, 11.0, item.LineTotal)
}

func TestBuildRevalidatesConversionRatio(t *testing.T) {
	groups := []pricing.RuleGroup{{
		RuleName: "Pre-Rolls",
		Tiers: []pricing.Tier{
			{Min: 1, Price: 8, Label: "Single", RuleName: "Pre-Rolls", ConversionRatio: preRollRatio()},
			{Min: 3, Price: 21, Label: "3 Pack", RuleName: "Pre-Rolls", ConversionRatio: &pricing.ConversionRatio{
				InputAmount: 2.1, InputUnit: "g", OutputAmount: 0, OutputUnit: "pack",
			}},
		},
	}}
	product := Product{ID: 8, Name: "Pre-Roll", Pricing: &ProductPricing{RuleGroups: groups}}

	item, err := Build(product, Selection{Quantity: 1, Category: "Pre-Rolls"})
	require.NoError(t, err)
	require.NotNil(t, item.PricingTier)
	require.NotNil(t, item.PricingTier.ConversionRatio)
	assert.Equal(t, 0.7, item.PricingTier.ConversionRatio.Multiplier())

	item, err = Build(product, Selection{Quantity: 3, SelectedPrice: floatPtr(7), Category: "Pre-Rolls"})
	require.NoError(t, err)
	require.NotNil(t, item.PricingTier)
	assert.Equal(t, "3 Pack", item.PricingTier.TierLabel)
	assert.Nil(t, item.PricingTier.ConversionRatio)
}

func TestDeduction(t *testing.T) {
	product := Product{ID: 8, Name: "Pre-Roll", Pricing: &ProductPricing{RuleGroups: []pricing.RuleGroup{{
		RuleName: "Pre-Rolls",
		Tiers:    []pricing.Tier{{Min: 3, Price: 24, Label: "3 Pack", RuleName: "Pre-Rolls", ConversionRatio: preRollRatio()}},
	}}}}

	item, err := Build(product, Selection{Quantity: 3, Category: "Pre-Rolls"})
	require.NoError(t, err)

	d, ok := Deduction(item)
	require.True(t, ok)
	assert.Equal(t, InventoryDeduction{ProductID: 8, Amount: 2.1, Unit: "g", Multiplier: 0.7}, d)

	_, ok = Deduction(CartItem{Quantity: 1})
	assert.False(t, ok)

	_, ok = Deduction(CartItem{Quantity: 1, PricingTier: &PricingTier{TierLabel: "x"}})
	assert.False(t, ok)
}
