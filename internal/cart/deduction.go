package cart

import (
	"github.com/shopspring/decimal"

	"github.com/posbridge/pricing-service/internal/pricing"
)

// InventoryDeduction is the stock a cart line consumes in the conversion
// ratio's input unit, e.g. 2.1 g of flower for three pre-rolls.
type InventoryDeduction struct {
	ProductID  int     `json:"productId"`
	Amount     float64 `json:"amount"`
	Unit       string  `json:"unit"`
	Multiplier float64 `json:"multiplier"`
}

// Deduction returns the inventory deduction for item, or false when the line
// carries no valid conversion ratio.
func Deduction(item CartItem) (InventoryDeduction, bool) {
	if item.PricingTier == nil {
		return InventoryDeduction{}, false
	}
	ratio, ok := pricing.Revalidate(item.PricingTier.ConversionRatio)
	if !ok {
		return InventoryDeduction{}, false
	}

	multiplier := ratio.Multiplier()
	amount := decimal.NewFromFloat(item.Quantity).
		Mul(decimal.NewFromFloat(multiplier)).
		Round(4)

	return InventoryDeduction{
		ProductID:  item.ProductID,
		Amount:     amount.InexactFloat64(),
		Unit:       ratio.InputUnit,
		Multiplier: multiplier,
	}, true
}
