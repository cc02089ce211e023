package cart

import (
	"errors"
	"fmt"
)

// InvalidPriceError is returned when no positive per-unit price can be found
// for a product. Such a product must not be added to a cart.
type InvalidPriceError struct {
	ProductID   int
	ProductName string
}

func (e *InvalidPriceError) Error() string {
	if e.ProductName == "" {
		return fmt.Sprintf("cart: product %d has no valid price", e.ProductID)
	}
	return fmt.Sprintf("cart: product %d (%s) has no valid price", e.ProductID, e.ProductName)
}

// IsInvalidPrice reports whether err is or wraps an *InvalidPriceError.
func IsInvalidPrice(err error) bool {
	var target *InvalidPriceError
	return errors.As(err, &target)
}
