package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers unknown email, wrong password and
	// disabled accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned by Register for an existing address.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidRefresh is returned for any refresh token that cannot be
	// exchanged, whatever the reason.
	ErrInvalidRefresh = errors.New("invalid refresh token")
	// ErrNothingToRevoke is returned by Logout without a token or identity.
	ErrNothingToRevoke = errors.New("no refresh token or identity supplied")
	// ErrProductUnavailable is returned when a product is unknown, inactive
	// or out of stock.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrInvalidQuantity is returned for a non-positive cart quantity.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Reconciliation operations.
const (
	OpCartMerge      = "cart_merge"
	OpWishlistMerge  = "wishlist_merge"
	OpOrderAssociate = "order_association"
)

// ReconciliationError records a failed reconciliation step.  It is logged
// and published, never returned to an HTTP client.
type ReconciliationError struct {
	Op        string
	UserID    string
	SessionID string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s (user=%s session=%s): %v", e.Op, e.UserID, e.SessionID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
