package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dinesync/internal/domain"
)

func order(id uint64, status domain.OrderStatus, items ...domain.OrderItem) domain.Order {
	return domain.Order{ID: id, Status: status, Items: items}
}

func item(id, productID uint64, status domain.ItemStatus, notes string) domain.OrderItem {
	return domain.OrderItem{ID: id, ProductID: productID, Status: status, Notes: notes}
}

func TestMergeFetchKeepsAdvancedStatuses(t *testing.T) {
	// Fetch started before a push landed: the snapshot still says
	// pending, but we already observed ready. Ready must survive.
	current := []domain.Order{order(501, domain.OrderReady, item(9001, 1, domain.ItemReady, ""))}
	incoming := []domain.Order{order(501, domain.OrderPending, item(9001, 1, domain.ItemPending, ""))}

	merged := MergeFetch(current, incoming)

	assert.Len(t, merged, 1)
	assert.Equal(t, domain.OrderReady, merged[0].Status)
	assert.Equal(t, domain.ItemReady, merged[0].Items[0].Status)
}

func TestMergeFetchTakesServerFields(t *testing.T) {
	current := []domain.Order{{ID: 501, Status: domain.OrderPending, Total: 0}}
	incoming := []domain.Order{{ID: 501, Status: domain.OrderPreparing, Total: 4400}}

	merged := MergeFetch(current, incoming)

	assert.Equal(t, domain.OrderPreparing, merged[0].Status)
	assert.Equal(t, int64(4400), merged[0].Total)
}

func TestMergeFetchKeepsPushCreatedOrders(t *testing.T) {
	// An order announced by push but missing from a racing fetch stays.
	current := []domain.Order{order(501, domain.OrderPending), order(502, domain.OrderPending)}
	incoming := []domain.Order{order(501, domain.OrderPending)}

	merged := MergeFetch(current, incoming)
	assert.Len(t, merged, 2)
}

func TestMergeFetchDoesNotMutateInputs(t *testing.T) {
	current := []domain.Order{order(501, domain.OrderReady, item(9001, 1, domain.ItemReady, ""))}
	incoming := []domain.Order{order(501, domain.OrderPending, item(9001, 1, domain.ItemPending, ""))}

	_ = MergeFetch(current, incoming)

	assert.Equal(t, domain.OrderPending, incoming[0].Status)
	assert.Equal(t, domain.ItemPending, incoming[0].Items[0].Status)
}

func TestPromotePendingMatchesProductAndNotes(t *testing.T) {
	pending := []domain.CartItem{
		{TempID: "tmp-1", ProductID: 1, Notes: "no onion", Quantity: 2},
		{TempID: "tmp-2", ProductID: 2, Notes: "", Quantity: 1},
	}
	confirmed := order(501, domain.OrderPending,
		item(9001, 1, domain.ItemPending, "no onion"),
	)

	rest := PromotePending(pending, confirmed)

	assert.Len(t, rest, 1)
	assert.Equal(t, "tmp-2", rest[0].TempID)
}

func TestPromotePendingIdenticalLinesPositional(t *testing.T) {
	// Two identical Burger lines: each server item consumes exactly one
	// pending line, in order.
	pending := []domain.CartItem{
		{TempID: "tmp-1", ProductID: 1, Notes: "", Quantity: 1},
		{TempID: "tmp-2", ProductID: 1, Notes: "", Quantity: 1},
	}

	// First response confirms only one of them.
	partial := order(501, domain.OrderPending, item(9001, 1, domain.ItemPending, ""))
	rest := PromotePending(pending, partial)
	assert.Len(t, rest, 1)
	assert.Equal(t, "tmp-2", rest[0].TempID)

	// The full response confirms both.
	full := order(501, domain.OrderPending,
		item(9001, 1, domain.ItemPending, ""),
		item(9002, 1, domain.ItemPending, ""),
	)
	rest = PromotePending(pending, full)
	assert.Empty(t, rest)
}

func TestPromotePendingIgnoresStagedEdits(t *testing.T) {
	// A staged edit references an item that is confirmed by definition;
	// it settles through its own amendment confirmation, never through
	// positional matching.
	pending := []domain.CartItem{
		{TempID: "tmp-1", ItemID: 9001, ProductID: 1, Quantity: 3},
	}
	confirmed := order(501, domain.OrderPending, item(9001, 1, domain.ItemPending, ""))

	rest := PromotePending(pending, confirmed)
	assert.Len(t, rest, 1)
	assert.Equal(t, "tmp-1", rest[0].TempID)
}

func TestPromotePendingNoMatchLeavesCart(t *testing.T) {
	pending := []domain.CartItem{{TempID: "tmp-1", ProductID: 99, Quantity: 1}}
	confirmed := order(501, domain.OrderPending, item(9001, 1, domain.ItemPending, ""))

	rest := PromotePending(pending, confirmed)
	assert.Len(t, rest, 1)
}

func TestApplyOrderStatus(t *testing.T) {
	orders := []domain.Order{order(501, domain.OrderPending)}

	orders, applied := ApplyOrderStatus(orders, 501, domain.OrderReady)
	assert.True(t, applied)
	assert.Equal(t, domain.OrderReady, orders[0].Status)

	// Duplicate delivery.
	orders, applied = ApplyOrderStatus(orders, 501, domain.OrderReady)
	assert.False(t, applied)
	assert.Equal(t, domain.OrderReady, orders[0].Status)

	// Stale regression.
	orders, applied = ApplyOrderStatus(orders, 501, domain.OrderPending)
	assert.False(t, applied)
	assert.Equal(t, domain.OrderReady, orders[0].Status)

	// Unknown order.
	_, applied = ApplyOrderStatus(orders, 999, domain.OrderReady)
	assert.False(t, applied)
}

func TestApplyItemStatusIdempotent(t *testing.T) {
	orders := []domain.Order{order(501, domain.OrderReady, item(9001, 1, domain.ItemPending, ""))}

	orders, applied := ApplyItemStatus(orders, 501, 9001, domain.ItemReady)
	assert.True(t, applied)
	orders, applied = ApplyItemStatus(orders, 501, 9001, domain.ItemReady)
	assert.False(t, applied)

	assert.Equal(t, domain.ItemReady, orders[0].Items[0].Status)
	assert.Len(t, orders[0].Items, 1)
}

func TestUpsertOrderIdempotent(t *testing.T) {
	incoming := order(501, domain.OrderPending, item(9001, 1, domain.ItemPending, ""))

	orders, created := UpsertOrder(nil, incoming)
	assert.True(t, created)
	assert.Len(t, orders, 1)

	orders, created = UpsertOrder(orders, incoming)
	assert.False(t, created)
	assert.Len(t, orders, 1)
}
