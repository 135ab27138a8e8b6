package reconcile

import (
	"dinesync/internal/domain"
)

// Pure merge functions shared by every producer feeding the store: server
// fetches, submission responses and push events all converge here, so
// arrival order never changes the outcome. Inputs are never mutated;
// callers receive fresh slices.

func cloneOrders(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	copy(out, orders)
	for i := range out {
		items := make([]domain.OrderItem, len(out[i].Items))
		copy(items, out[i].Items)
		out[i].Items = items
	}
	return out
}

func findOrder(orders []domain.Order, id uint64) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}

// MergeFetch reconciles a fresh server snapshot against the locally
// observed orders. Server fields are authoritative except statuses, which
// only move forward: a fetch that started before a push event landed must
// not visually regress what the user already saw. Orders known locally but
// absent from the snapshot (created by a push racing the fetch) are kept.
func MergeFetch(current, incoming []domain.Order) []domain.Order {
	merged := cloneOrders(incoming)

	for i := range merged {
		j := findOrder(current, merged[i].ID)
		if j < 0 {
			continue
		}
		prev := current[j]
		merged[i].Status, _ = domain.MergeOrderStatus(merged[i].Status, prev.Status)
		for k := range merged[i].Items {
			if p := findItem(prev.Items, merged[i].Items[k].ID); p >= 0 {
				merged[i].Items[k].Status, _ = domain.MergeItemStatus(merged[i].Items[k].Status, prev.Items[p].Status)
			}
		}
	}

	for i := range current {
		if findOrder(merged, current[i].ID) < 0 {
			merged = append(merged, current[i])
		}
	}
	return merged
}

func findItem(items []domain.OrderItem, id uint64) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// PromotePending drops every pending-local cart line the confirmed order
// accounts for and returns the lines still awaiting confirmation.
//
// New lines (no server item id) match by product id plus notes text,
// positionally within each product+notes group: the server assigns ids in
// submission order, so two identical Burger lines promote to two distinct
// server items instead of both collapsing onto the first. Staged edits of
// already-confirmed items never match positionally; they settle through
// their own amendment confirmation. Callers must pass only items not seen
// in an earlier merge, or a line added after its twin was confirmed would
// be consumed by that stale twin on the next fetch.
func PromotePending(pending []domain.CartItem, confirmed domain.Order) []domain.CartItem {
	taken := make([]bool, len(pending))

	for _, item := range confirmed.Items {
		for i, p := range pending {
			if taken[i] || p.ItemID != 0 {
				continue
			}
			if p.ProductID == item.ProductID && p.Notes == item.Notes {
				taken[i] = true
				break
			}
		}
	}

	var rest []domain.CartItem
	for i, p := range pending {
		if !taken[i] {
			rest = append(rest, p)
		}
	}
	return rest
}

// ApplyOrderStatus applies one order.status.updated event. Duplicates and
// regressions report applied=false and leave the input's content intact.
func ApplyOrderStatus(orders []domain.Order, orderID uint64, status domain.OrderStatus) ([]domain.Order, bool) {
	i := findOrder(orders, orderID)
	if i < 0 {
		return orders, false
	}
	next, applied := domain.MergeOrderStatus(orders[i].Status, status)
	if !applied {
		return orders, false
	}
	out := cloneOrders(orders)
	out[i].Status = next
	return out, true
}

// ApplyItemStatus applies one order.item.status.updated event under the
// same monotonic rules.
func ApplyItemStatus(orders []domain.Order, orderID, itemID uint64, status domain.ItemStatus) ([]domain.Order, bool) {
	i := findOrder(orders, orderID)
	if i < 0 {
		return orders, false
	}
	j := findItem(orders[i].Items, itemID)
	if j < 0 {
		return orders, false
	}
	next, applied := domain.MergeItemStatus(orders[i].Items[j].Status, status)
	if !applied {
		return orders, false
	}
	out := cloneOrders(orders)
	out[i].Items[j].Status = next
	return out, true
}

// UpsertOrder inserts an order announced by order.created. Re-delivery of
// the same event merges instead of duplicating.
func UpsertOrder(orders []domain.Order, incoming domain.Order) ([]domain.Order, bool) {
	i := findOrder(orders, incoming.ID)
	if i < 0 {
		out := cloneOrders(orders)
		return append(out, incoming), true
	}
	merged := MergeFetch(orders[i:i+1], []domain.Order{incoming})
	out := cloneOrders(orders)
	out[i] = merged[0]
	return out, false
}
