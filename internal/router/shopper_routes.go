package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/handler"
	"github.com/iliyamo/storefront-identity/internal/middleware"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

// RegisterShopper registers the cart and wishlist endpoints.  They serve
// guests and customers alike, so identity is optional and the owner is
// resolved per request.
func RegisterShopper(e *echo.Echo, h *handler.CartHandler, issuer *utils.TokenIssuer) {
	g := e.Group("/v1", middleware.OptionalAuth(issuer))

	g.GET("/cart", h.GetCart)
	g.POST("/cart/items", h.AddItem)

	g.GET("/wishlist", h.GetWishlist)
	g.POST("/wishlist/:productId", h.AddToWishlist)
	g.DELETE("/wishlist/:productId", h.RemoveFromWishlist)
}
