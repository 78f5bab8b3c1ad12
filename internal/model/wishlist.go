package model

import "time"

// Wishlist mirrors a row in the `wishlists` table.  ProductIDs behaves as
// an ordered set: no duplicates, insertion order preserved.
type Wishlist struct {
    Owner      OwnerKey
    ProductIDs []string
    UpdatedAt  time.Time
}

func (w *Wishlist) IsEmpty() bool { return w == nil || len(w.ProductIDs) == 0 }

// Contains reports whether productID is already on the list.
func (w *Wishlist) Contains(productID string) bool {
    for _, id := range w.ProductIDs {
        if id == productID {
            return true
        }
    }
    return false
}

// Add appends productID unless present and reports whether it changed.
func (w *Wishlist) Add(productID string) bool {
    if w.Contains(productID) {
        return false
    }
    w.ProductIDs = append(w.ProductIDs, productID)
    return true
}

// Remove drops productID and reports whether it was present.
func (w *Wishlist) Remove(productID string) bool {
    for i, id := range w.ProductIDs {
        if id == productID {
            w.ProductIDs = append(w.ProductIDs[:i], w.ProductIDs[i+1:]...)
            return true
        }
    }
    return false
}
