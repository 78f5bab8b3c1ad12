package model

// Product is the subset of a catalog row this service reads.  The catalog
// itself is managed elsewhere; only active products with stock may enter
// a cart.
type Product struct {
    ID         string // products.id
    Name       string // products.name
    PriceCents int64  // products.price_cents
    Stock      int    // products.stock
    IsActive   bool   // products.is_active
}
