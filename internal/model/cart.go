package model

import "time"

// CartItem is one line of a cart.  Price is in cents and is always the
// product's current price at the moment the line was last written.
type CartItem struct {
    ProductID         string    `json:"productId"`
    Quantity          int       `json:"quantity"`
    Price             int64     `json:"price"`
    SelectedColor     string    `json:"selectedColor,omitempty"`
    SelectedFragrance string    `json:"selectedFragrance,omitempty"`
    AddedAt           time.Time `json:"addedAt"`
}

// LineKey is the identity of a cart line.  Two items with equal keys are
// the same line and have their quantities combined.
type LineKey struct {
    ProductID string
    Color     string
    Fragrance string
}

func (i CartItem) Key() LineKey {
    return LineKey{ProductID: i.ProductID, Color: i.SelectedColor, Fragrance: i.SelectedFragrance}
}

// Cart mirrors a row in the `carts` table; Items is stored as JSON.
type Cart struct {
    Owner     OwnerKey
    Items     []CartItem
    UpdatedAt time.Time
}

// IsEmpty reports whether there is nothing to merge or check out.
func (c *Cart) IsEmpty() bool { return c == nil || len(c.Items) == 0 }

// FindLine returns the index of the line with key k, or -1.
func (c *Cart) FindLine(k LineKey) int {
    for i := range c.Items {
        if c.Items[i].Key() == k {
            return i
        }
    }
    return -1
}
