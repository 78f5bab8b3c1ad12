package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/storefront-identity/internal/database"
	"github.com/iliyamo/storefront-identity/internal/model"
)

// WishlistRepo stores one wishlist document per owner.
type WishlistRepo struct{ DB *sql.DB }

func NewWishlistRepo(db *sql.DB) *WishlistRepo { return &WishlistRepo{DB: db} }

// Get returns the owner's wishlist or ErrNotFound.
func (r *WishlistRepo) Get(ctx context.Context, owner model.OwnerKey) (*model.Wishlist, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT product_ids, updated_at FROM wishlists WHERE owner_kind=? AND owner_id=? LIMIT 1",
		string(owner.Kind()), owner.ID()).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w := &model.Wishlist{Owner: owner, UpdatedAt: updatedAt}
	if err := json.Unmarshal(raw, &w.ProductIDs); err != nil {
		return nil, fmt.Errorf("decode wishlist: %w", err)
	}
	return w, nil
}

func (r *WishlistRepo) Save(ctx context.Context, w *model.Wishlist) error {
	return upsertWishlist(ctx, r.DB, w)
}

func (r *WishlistRepo) Rekey(ctx context.Context, from, to model.OwnerKey) error {
	return rekey(ctx, r.DB, "wishlists", from, to)
}

func (r *WishlistRepo) SaveAndDiscard(ctx context.Context, w *model.Wishlist, discard model.OwnerKey) error {
	return database.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx database.DBTX) error {
		if err := upsertWishlist(ctx, tx, w); err != nil {
			return err
		}
		return deleteOwned(ctx, tx, "wishlists", discard)
	})
}

func (r *WishlistRepo) Delete(ctx context.Context, owner model.OwnerKey) error {
	return deleteOwned(ctx, r.DB, "wishlists", owner)
}

func upsertWishlist(ctx context.Context, db database.DBTX, w *model.Wishlist) error {
	ids := w.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode wishlist: %w", err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO wishlists (owner_kind, owner_id, product_ids, updated_at) VALUES (?,?,?,?) ON DUPLICATE KEY UPDATE product_ids=VALUES(product_ids), updated_at=VALUES(updated_at)",
		string(w.Owner.Kind()), w.Owner.ID(), raw, w.UpdatedAt)
	return err
}
