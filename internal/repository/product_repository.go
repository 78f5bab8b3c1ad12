package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/storefront-identity/internal/model"
)

// ProductRepo reads the catalog's products table.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

// GetProduct fetches a product by id.  Deleted products yield ErrNotFound;
// inactive ones are returned with IsActive=false.
func (r *ProductRepo) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, price_cents, stock, is_active FROM products WHERE id=? LIMIT 1", id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrNotFound
	}
	return p, err
}
