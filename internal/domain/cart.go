package domain

import (
	"fmt"
	"sync/atomic"
)

var cartSeq uint64

// NextTempID produces a client-local identifier for a cart line that has
// no server id yet.
func NextTempID() string {
	return fmt.Sprintf("tmp-%d", atomic.AddUint64(&cartSeq, 1))
}

// CartItem is a client-local order line: either a brand new line awaiting
// submission (ItemID zero) or the staged edit of a confirmed,
// still-pending item (ItemID set).
type CartItem struct {
	TempID    string     `json:"temp_id"`
	ItemID    uint64     `json:"item_id,omitempty"`
	OrderID   uint64     `json:"order_id,omitempty"`
	ProductID uint64     `json:"product_id"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	UnitPrice int64      `json:"unit_price"`
	Notes     string     `json:"notes"`
	Status    ItemStatus `json:"status"`
}

// PreviewSubtotal is the client-side estimate shown before the server
// confirms; it never overrides server-computed totals.
func PreviewSubtotal(items []CartItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum
}
