package service

import (
	"context"
	"time"

	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/repository"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, email, name, passwordHash, role string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// RefreshTokenStore is implemented by repository.TokenRepo.
type RefreshTokenStore interface {
	Store(ctx context.Context, userID, raw string, expiresAt time.Time, meta model.ClientMeta) error
	VerifyAndRotate(ctx context.Context, raw string, next repository.NextRefresh) (string, error)
	Revoke(ctx context.Context, raw string) (bool, error)
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

// ProductLookup is implemented by repository.ProductRepo.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (model.Product, error)
}

// CartStore is implemented by repository.CartRepo.
type CartStore interface {
	Get(ctx context.Context, owner model.OwnerKey) (*model.Cart, error)
	Save(ctx context.Context, cart *model.Cart) error
	Rekey(ctx context.Context, from, to model.OwnerKey) error
	SaveAndDiscard(ctx context.Context, cart *model.Cart, discard model.OwnerKey) error
	Delete(ctx context.Context, owner model.OwnerKey) error
}

// WishlistStore is implemented by repository.WishlistRepo.
type WishlistStore interface {
	Get(ctx context.Context, owner model.OwnerKey) (*model.Wishlist, error)
	Save(ctx context.Context, w *model.Wishlist) error
	Rekey(ctx context.Context, from, to model.OwnerKey) error
	SaveAndDiscard(ctx context.Context, w *model.Wishlist, discard model.OwnerKey) error
	Delete(ctx context.Context, owner model.OwnerKey) error
}

// OrderLinker is implemented by repository.OrderRepo.
type OrderLinker interface {
	AssociateGuestOrders(ctx context.Context, email, userID string) (int64, error)
}
