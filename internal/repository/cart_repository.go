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

// CartRepo stores one cart document per owner in the `carts` table.
type CartRepo struct{ DB *sql.DB }

func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{DB: db} }

// Get returns the owner's cart or ErrNotFound.
func (r *CartRepo) Get(ctx context.Context, owner model.OwnerKey) (*model.Cart, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT items, updated_at FROM carts WHERE owner_kind=? AND owner_id=? LIMIT 1",
		string(owner.Kind()), owner.ID()).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cart := &model.Cart{Owner: owner, UpdatedAt: updatedAt}
	if err := json.Unmarshal(raw, &cart.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return cart, nil
}

// Save upserts the cart document.
func (r *CartRepo) Save(ctx context.Context, cart *model.Cart) error {
	return upsertCart(ctx, r.DB, cart)
}

// Rekey moves a cart to a new owner in one statement.  It returns
// ErrNotFound when from has no cart and ErrConflict when to already has one.
func (r *CartRepo) Rekey(ctx context.Context, from, to model.OwnerKey) error {
	return rekey(ctx, r.DB, "carts", from, to)
}

// SaveAndDiscard writes cart and deletes the document of discard in a
// single transaction, so a merged cart never coexists with its source.
func (r *CartRepo) SaveAndDiscard(ctx context.Context, cart *model.Cart, discard model.OwnerKey) error {
	return database.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx database.DBTX) error {
		if err := upsertCart(ctx, tx, cart); err != nil {
			return err
		}
		return deleteOwned(ctx, tx, "carts", discard)
	})
}

// Delete removes the owner's cart; deleting a missing cart is not an error.
func (r *CartRepo) Delete(ctx context.Context, owner model.OwnerKey) error {
	return deleteOwned(ctx, r.DB, "carts", owner)
}

func upsertCart(ctx context.Context, db database.DBTX, cart *model.Cart) error {
	items := cart.Items
	if items == nil {
		items = []model.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO carts (owner_kind, owner_id, items, updated_at) VALUES (?,?,?,?) ON DUPLICATE KEY UPDATE items=VALUES(items), updated_at=VALUES(updated_at)",
		string(cart.Owner.Kind()), cart.Owner.ID(), raw, cart.UpdatedAt)
	return err
}

// rekey and deleteOwned are shared by the cart and wishlist tables, which
// have the same owner primary key.
func rekey(ctx context.Context, db database.DBTX, table string, from, to model.OwnerKey) error {
	res, err := db.ExecContext(ctx,
		"UPDATE "+table+" SET owner_kind=?, owner_id=?, updated_at=? WHERE owner_kind=? AND owner_id=?",
		string(to.Kind()), to.ID(), time.Now().UTC(), string(from.Kind()), from.ID())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteOwned(ctx context.Context, db database.DBTX, table string, owner model.OwnerKey) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE owner_kind=? AND owner_id=?",
		string(owner.Kind()), owner.ID())
	return err
}
