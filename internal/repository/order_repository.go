package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/storefront-identity/internal/model"
)

// OrderRepo exposes the ownership operations this service performs on
// orders.  Order creation and fulfilment live in the checkout service.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

// AssociateGuestOrders attaches every guest order placed with email to the
// user and clears its guest columns.  Orders already owned by a customer
// are left alone, so repeating the call changes nothing.
func (r *OrderRepo) AssociateGuestOrders(ctx context.Context, email, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE orders SET customer_id=?, guest_email=NULL, guest_name=NULL, guest_phone=NULL WHERE guest_email=? AND customer_id IS NULL",
		userID, model.NormalizeEmail(email))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
