package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/repository"
)

// CartService edits the cart and wishlist of whoever owns the request,
// guest or user.
type CartService struct {
	Carts     CartStore
	Wishlists WishlistStore
	Products  ProductLookup
	now       func() time.Time
}

func NewCartService(carts CartStore, wishlists WishlistStore, products ProductLookup) *CartService {
	return &CartService{Carts: carts, Wishlists: wishlists, Products: products, now: func() time.Time { return time.Now().UTC() }}
}

// AddItemInput is one "add to cart" action.
type AddItemInput struct {
	ProductID         string
	Quantity          int
	SelectedColor     string
	SelectedFragrance string
}

// Cart returns the owner's cart, empty when none exists.
func (s *CartService) Cart(ctx context.Context, owner model.OwnerKey) (*model.Cart, error) {
	c, err := s.Carts.Get(ctx, owner)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.Cart{Owner: owner, Items: []model.CartItem{}}, nil
	}
	return c, err
}

// AddItem adds quantity of a product, combining with an existing line of
// the same product, color and fragrance.  The line is clamped to stock and
// priced from the catalog.
func (s *CartService) AddItem(ctx context.Context, owner model.OwnerKey, in AddItemInput) (*model.Cart, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.Products.GetProduct(ctx, in.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if !p.IsActive || p.Stock <= 0 {
		return nil, ErrProductUnavailable
	}

	cart, err := s.Cart(ctx, owner)
	if err != nil {
		return nil, err
	}
	now := s.now()
	item := model.CartItem{
		ProductID:         p.ID,
		Quantity:          in.Quantity,
		SelectedColor:     in.SelectedColor,
		SelectedFragrance: in.SelectedFragrance,
	}
	if idx := cart.FindLine(item.Key()); idx >= 0 {
		line := &cart.Items[idx]
		line.Quantity = min(line.Quantity+in.Quantity, p.Stock)
		line.Price = p.PriceCents
	} else {
		item.Quantity = min(item.Quantity, p.Stock)
		item.Price = p.PriceCents
		item.AddedAt = now
		cart.Items = append(cart.Items, item)
	}
	cart.UpdatedAt = now
	if err := s.Carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// Wishlist returns the owner's wishlist, empty when none exists.
func (s *CartService) Wishlist(ctx context.Context, owner model.OwnerKey) (*model.Wishlist, error) {
	w, err := s.Wishlists.Get(ctx, owner)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.Wishlist{Owner: owner, ProductIDs: []string{}}, nil
	}
	return w, err
}

// AddToWishlist adds a product that exists in the catalog.
func (s *CartService) AddToWishlist(ctx context.Context, owner model.OwnerKey, productID string) (*model.Wishlist, error) {
	if _, err := s.Products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, fmt.Errorf("load product: %w", err)
	}
	w, err := s.Wishlist(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !w.Add(productID) {
		return w, nil
	}
	w.UpdatedAt = s.now()
	if err := s.Wishlists.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wishlist: %w", err)
	}
	return w, nil
}

// RemoveFromWishlist drops a product; removing an absent one is a no-op.
func (s *CartService) RemoveFromWishlist(ctx context.Context, owner model.OwnerKey, productID string) (*model.Wishlist, error) {
	w, err := s.Wishlist(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !w.Remove(productID) {
		return w, nil
	}
	w.UpdatedAt = s.now()
	if err := s.Wishlists.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wishlist: %w", err)
	}
	return w, nil
}
