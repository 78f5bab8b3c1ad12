package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/middleware"
	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/service"
)

// CartEditor is implemented by service.CartService.
type CartEditor interface {
	Cart(ctx context.Context, owner model.OwnerKey) (*model.Cart, error)
	AddItem(ctx context.Context, owner model.OwnerKey, in service.AddItemInput) (*model.Cart, error)
	Wishlist(ctx context.Context, owner model.OwnerKey) (*model.Wishlist, error)
	AddToWishlist(ctx context.Context, owner model.OwnerKey, productID string) (*model.Wishlist, error)
	RemoveFromWishlist(ctx context.Context, owner model.OwnerKey, productID string) (*model.Wishlist, error)
}

// CartHandler serves the cart and wishlist of whoever owns the request:
// the logged-in user or, failing that, the guest session.
type CartHandler struct {
	Carts CartEditor
}

func NewCartHandler(carts CartEditor) *CartHandler { return &CartHandler{Carts: carts} }

type addItemReq struct {
	ProductID         string `json:"productId" validate:"required,max=64"`
	Quantity          int    `json:"quantity" validate:"required,min=1,max=99"`
	SelectedColor     string `json:"selectedColor" validate:"max=64"`
	SelectedFragrance string `json:"selectedFragrance" validate:"max=64"`
}

type cartResp struct {
	Owner     string           `json:"owner"`
	Items     []model.CartItem `json:"items"`
	UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
}

type wishlistResp struct {
	Owner      string     `json:"owner"`
	ProductIDs []string   `json:"productIds"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

func toCartResp(c *model.Cart) cartResp {
	out := cartResp{Owner: string(c.Owner.Kind()), Items: c.Items}
	if out.Items == nil {
		out.Items = []model.CartItem{}
	}
	if !c.UpdatedAt.IsZero() {
		out.UpdatedAt = &c.UpdatedAt
	}
	return out
}

func toWishlistResp(w *model.Wishlist) wishlistResp {
	out := wishlistResp{Owner: string(w.Owner.Kind()), ProductIDs: w.ProductIDs}
	if out.ProductIDs == nil {
		out.ProductIDs = []string{}
	}
	if !w.UpdatedAt.IsZero() {
		out.UpdatedAt = &w.UpdatedAt
	}
	return out
}

func (h *CartHandler) owner(c echo.Context) (model.OwnerKey, bool) {
	o := middleware.OwnerKey(c)
	return o, !o.IsZero()
}

func (h *CartHandler) GetCart(c echo.Context) error {
	owner, ok := h.owner(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	cart, err := h.Carts.Cart(ctx, owner)
	if err != nil {
		return h.cartError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResp(cart))
}

func (h *CartHandler) AddItem(c echo.Context) error {
	owner, ok := h.owner(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req addItemReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	cart, err := h.Carts.AddItem(ctx, owner, service.AddItemInput{
		ProductID:         req.ProductID,
		Quantity:          req.Quantity,
		SelectedColor:     req.SelectedColor,
		SelectedFragrance: req.SelectedFragrance,
	})
	if err != nil {
		return h.cartError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResp(cart))
}

func (h *CartHandler) GetWishlist(c echo.Context) error {
	owner, ok := h.owner(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	w, err := h.Carts.Wishlist(ctx, owner)
	if err != nil {
		return h.cartError(c, err)
	}
	return c.JSON(http.StatusOK, toWishlistResp(w))
}

func (h *CartHandler) AddToWishlist(c echo.Context) error {
	return h.editWishlist(c, h.Carts.AddToWishlist)
}

func (h *CartHandler) RemoveFromWishlist(c echo.Context) error {
	return h.editWishlist(c, h.Carts.RemoveFromWishlist)
}

func (h *CartHandler) editWishlist(c echo.Context, edit func(context.Context, model.OwnerKey, string) (*model.Wishlist, error)) error {
	owner, ok := h.owner(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	productID := c.Param("productId")
	if productID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "productId required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	w, err := edit(ctx, owner, productID)
	if err != nil {
		return h.cartError(c, err)
	}
	return c.JSON(http.StatusOK, toWishlistResp(w))
}

func (h *CartHandler) cartError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrProductUnavailable):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "product unavailable"})
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	middleware.GetLogger(c).Error().Err(err).Msg("cart request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
