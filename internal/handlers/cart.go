package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/posbridge/pricing-service/internal/cart"
)

// CartItemRequest is a product with the customer's selection
type CartItemRequest struct {
	Product   cart.Product   `json:"product" jsonschema:"required"`
	Selection cart.Selection `json:"selection"`
}

// CartItemResponse is the built cart line and, for tiers with a conversion
// ratio, the inventory to deduct
type CartItemResponse struct {
	Item      cart.CartItem            `json:"item" jsonschema:"required"`
	Deduction *cart.InventoryDeduction `json:"deduction,omitempty"`
}

// BuildCartItem converts a product and selection into a cart line
// @Summary Build cart item
// @Description Builds a cart line. A product without a usable price is rejected with 422.
// @Tags cart
// @Accept json
// @Produce json
// @Param request body CartItemRequest true "Product and selection"
// @Success 200 {object} CartItemResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 422 {object} map[string]interface{} "Invalid price"
// @Router /internal/cart/items [post]
func (h *Handler) BuildCartItem(c *gin.Context) {
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Product.ID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product.id is required"})
		return
	}

	item, err := h.engine.BuildCartItem(req.Product, req.Selection)
	if err != nil {
		if cart.IsInvalidPrice(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   err.Error(),
				"product": req.Product,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build cart item"})
		return
	}

	resp := CartItemResponse{Item: item}
	if d, ok := cart.Deduction(item); ok {
		resp.Deduction = &d
	}
	c.JSON(http.StatusOK, resp)
}
