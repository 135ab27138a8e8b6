package domain

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemCooking   ItemStatus = "cooking"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
	ItemCancelled ItemStatus = "cancelled"
)

// Rank positions a status on the canonical ordering. Cancelled sits outside
// the ordering and is handled by the merge rules, not by rank comparison.
var orderRank = map[OrderStatus]int{
	OrderPending:   0,
	OrderPreparing: 1,
	OrderReady:     2,
	OrderServed:    3,
	OrderCompleted: 4,
}

var itemRank = map[ItemStatus]int{
	ItemPending: 0,
	ItemCooking: 1,
	ItemReady:   2,
	ItemServed:  3,
}

func (s OrderStatus) Valid() bool {
	if s == OrderCancelled {
		return true
	}
	_, ok := orderRank[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// CanTransition reports whether a direct transition s -> to is legal:
// forward along the canonical ordering, or to cancelled from any
// non-terminal state. It is the single source of truth consulted by the
// gateway before persisting a status change.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	if to == OrderCancelled {
		return true
	}
	return orderRank[to] > orderRank[s]
}

// MergeOrderStatus resolves an incoming status against the currently
// observed one. It returns the status to keep and whether the incoming
// value was applied. Duplicates and regressions are not applied; cancelled
// absorbs any non-terminal state.
func MergeOrderStatus(current, incoming OrderStatus) (OrderStatus, bool) {
	if !incoming.Valid() || incoming == current {
		return current, false
	}
	if current == OrderCancelled {
		return current, false
	}
	if incoming == OrderCancelled {
		if current.Terminal() {
			return current, false
		}
		return incoming, true
	}
	if orderRank[incoming] > orderRank[current] {
		return incoming, true
	}
	return current, false
}

func (s ItemStatus) Valid() bool {
	if s == ItemCancelled {
		return true
	}
	_, ok := itemRank[s]
	return ok
}

func (s ItemStatus) Terminal() bool {
	return s == ItemServed || s == ItemCancelled
}

// Locked reports whether local cart edits against an item in this state
// must be rejected. Only a still-pending item is editable.
func (s ItemStatus) Locked() bool {
	return s != ItemPending
}

func (s ItemStatus) CanTransition(to ItemStatus) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	if to == ItemCancelled {
		return true
	}
	return itemRank[to] > itemRank[s]
}

// MergeItemStatus follows the same rules as MergeOrderStatus on the item
// machine.
func MergeItemStatus(current, incoming ItemStatus) (ItemStatus, bool) {
	if !incoming.Valid() || incoming == current {
		return current, false
	}
	if current == ItemCancelled {
		return current, false
	}
	if incoming == ItemCancelled {
		if current.Terminal() {
			return current, false
		}
		return incoming, true
	}
	if itemRank[incoming] > itemRank[current] {
		return incoming, true
	}
	return current, false
}

// ItemFitsOrder enforces the invariant that an item's status never runs
// ahead of its parent order on the canonical ordering. Cancelled items are
// exempt.
func ItemFitsOrder(item ItemStatus, order OrderStatus) bool {
	if item == ItemCancelled {
		return true
	}
	if order == OrderCancelled {
		return false
	}
	return itemRank[item] <= orderRank[order]
}
