package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/queue"
	"github.com/iliyamo/storefront-identity/internal/repository"
)

// Reconciler folds the state a visitor built up as a guest into their
// account once they log in or register.
type Reconciler struct {
	Carts     CartStore
	Wishlists WishlistStore
	Orders    OrderLinker
	Products  ProductLookup
	Events    queue.Sink
	now       func() time.Time
}

func NewReconciler(carts CartStore, wishlists WishlistStore, orders OrderLinker, products ProductLookup, events queue.Sink) *Reconciler {
	if events == nil {
		events = queue.Nop{}
	}
	return &Reconciler{
		Carts:     carts,
		Wishlists: wishlists,
		Orders:    orders,
		Products:  products,
		Events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileResult summarizes one Reconcile call.
type ReconcileResult struct {
	CartMerged       bool
	WishlistMerged   bool
	OrdersAssociated int64
	Failures         []*ReconciliationError
}

// Reconcile runs the cart merge, the wishlist merge and guest order
// association.  Each step is isolated: a failure is logged, published for
// offline repair and recorded in the result, and the remaining steps still
// run.  Reconcile itself never fails.
func (r *Reconciler) Reconcile(ctx context.Context, userID, guestSessionID, email string) ReconcileResult {
	var res ReconcileResult
	if guestSessionID != "" {
		r.step(ctx, &res, OpCartMerge, userID, guestSessionID, func() error {
			merged, err := r.MergeCart(ctx, userID, guestSessionID)
			res.CartMerged = merged
			return err
		})
		r.step(ctx, &res, OpWishlistMerge, userID, guestSessionID, func() error {
			merged, err := r.MergeWishlist(ctx, userID, guestSessionID)
			res.WishlistMerged = merged
			return err
		})
	}
	if email != "" {
		r.step(ctx, &res, OpOrderAssociate, userID, guestSessionID, func() error {
			n, err := r.AssociateGuestOrders(ctx, userID, email)
			res.OrdersAssociated = n
			return err
		})
	}
	return res
}

func (r *Reconciler) step(ctx context.Context, res *ReconcileResult, op, userID, sessionID string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}
	rerr := &ReconciliationError{Op: op, UserID: userID, SessionID: sessionID, Err: err}
	res.Failures = append(res.Failures, rerr)

	zerolog.Ctx(ctx).Error().Err(err).
		Str("operation", op).
		Str("user_id", userID).
		Str("session_id", sessionID).
		Msg("reconciliation step failed")

	_ = r.Events.Publish(ctx, queue.SecurityEvent{
		Type:       queue.EventReconciliationFailed,
		UserID:     userID,
		SessionID:  sessionID,
		Operation:  op,
		Error:      err.Error(),
		OccurredAt: r.now().Format(time.RFC3339),
	})
}

// MergeCart moves the guest cart into the user's cart.  It reports whether
// anything was merged.
//
// Without a user cart the guest document is simply re-keyed.  Otherwise
// every guest line is checked against the catalog: deleted, inactive and
// out-of-stock products are dropped, lines matching a user line by
// (product, color, fragrance) add their quantity, and the result is
// clamped to stock.  Prices always come from the catalog.  The merged cart
// is written and the guest cart deleted in one transaction.
func (r *Reconciler) MergeCart(ctx context.Context, userID, sessionID string) (bool, error) {
	guestKey, userKey := model.GuestOwner(sessionID), model.UserOwner(userID)

	guest, err := r.Carts.Get(ctx, guestKey)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load guest cart: %w", err)
	}
	if guest.IsEmpty() {
		return false, r.Carts.Delete(ctx, guestKey)
	}

	user, err := r.Carts.Get(ctx, userKey)
	if errors.Is(err, repository.ErrNotFound) {
		err = r.Carts.Rekey(ctx, guestKey, userKey)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repository.ErrNotFound):
			// guest cart consumed by a concurrent login
			return false, nil
		case !errors.Is(err, repository.ErrConflict):
			return false, fmt.Errorf("rekey cart: %w", err)
		}
		// a user cart appeared since the lookup; merge into it
		user, err = r.Carts.Get(ctx, userKey)
	}
	if err != nil {
		return false, fmt.Errorf("load user cart: %w", err)
	}

	now := r.now()
	merged := &model.Cart{
		Owner:     userKey,
		Items:     append([]model.CartItem(nil), user.Items...),
		UpdatedAt: now,
	}
	for _, item := range guest.Items {
		p, err := r.Products.GetProduct(ctx, item.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}
		if !p.IsActive || p.Stock <= 0 {
			continue
		}
		if idx := merged.FindLine(item.Key()); idx >= 0 {
			line := &merged.Items[idx]
			line.Quantity = min(line.Quantity+item.Quantity, p.Stock)
			line.Price = p.PriceCents
			continue
		}
		item.Quantity = min(item.Quantity, p.Stock)
		if item.Quantity < 1 {
			continue
		}
		item.Price = p.PriceCents
		if item.AddedAt.IsZero() {
			item.AddedAt = now
		}
		merged.Items = append(merged.Items, item)
	}

	if err := r.Carts.SaveAndDiscard(ctx, merged, guestKey); err != nil {
		return false, fmt.Errorf("save merged cart: %w", err)
	}
	return true, nil
}

// MergeWishlist unions the guest wishlist into the user's, keeping the
// user's order and appending new guest entries, then deletes the guest
// wishlist.
func (r *Reconciler) MergeWishlist(ctx context.Context, userID, sessionID string) (bool, error) {
	guestKey, userKey := model.GuestOwner(sessionID), model.UserOwner(userID)

	guest, err := r.Wishlists.Get(ctx, guestKey)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load guest wishlist: %w", err)
	}
	if guest.IsEmpty() {
		return false, r.Wishlists.Delete(ctx, guestKey)
	}

	user, err := r.Wishlists.Get(ctx, userKey)
	if errors.Is(err, repository.ErrNotFound) {
		err = r.Wishlists.Rekey(ctx, guestKey, userKey)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repository.ErrNotFound):
			return false, nil
		case !errors.Is(err, repository.ErrConflict):
			return false, fmt.Errorf("rekey wishlist: %w", err)
		}
		user, err = r.Wishlists.Get(ctx, userKey)
	}
	if err != nil {
		return false, fmt.Errorf("load user wishlist: %w", err)
	}

	merged := &model.Wishlist{
		Owner:      userKey,
		ProductIDs: append([]string(nil), user.ProductIDs...),
		UpdatedAt:  r.now(),
	}
	for _, id := range guest.ProductIDs {
		merged.Add(id)
	}
	if err := r.Wishlists.SaveAndDiscard(ctx, merged, guestKey); err != nil {
		return false, fmt.Errorf("save merged wishlist: %w", err)
	}
	return true, nil
}

// AssociateGuestOrders hands every unowned guest order placed with email
// over to the user and returns how many moved.
func (r *Reconciler) AssociateGuestOrders(ctx context.Context, userID, email string) (int64, error) {
	n, err := r.Orders.AssociateGuestOrders(ctx, model.NormalizeEmail(email), userID)
	if err != nil {
		return 0, fmt.Errorf("associate guest orders: %w", err)
	}
	if n > 0 {
		zerolog.Ctx(ctx).Info().Str("user_id", userID).Int64("orders", n).Msg("guest orders associated")
	}
	return n, nil
}
