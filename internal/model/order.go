package model

import "time"

// Order is the ownership view of a row in the `orders` table.  An order
// belongs either to a customer (CustomerID set) or to a guest checkout
// (GuestEmail set); association moves it from the second state to the
// first and clears every guest column.
type Order struct {
    ID         uint64     // orders.id
    CustomerID *string    // orders.customer_id (nullable)
    GuestEmail *string    // orders.guest_email (nullable)
    GuestName  *string    // orders.guest_name (nullable)
    GuestPhone *string    // orders.guest_phone (nullable)
    TotalCents int64      // orders.total_cents
    CreatedAt  time.Time  // orders.created_at
}
