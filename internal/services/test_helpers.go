package services

import (
	"encoding/json"
	"time"

	"dinesync/internal/domain"
)

func buildOrder(id uint64, status domain.OrderStatus, items ...domain.OrderItem) *domain.Order {
	o := &domain.Order{
		ID:       id,
		Status:   status,
		Items:    items,
		OpenedAt: time.Now().UTC(),
	}
	for _, it := range items {
		o.Subtotal += it.UnitPrice * int64(it.Quantity)
	}
	o.Total = o.Subtotal
	return o
}

func buildItem(id, productID uint64, name string, qty int, price int64, status domain.ItemStatus) domain.OrderItem {
	return domain.OrderItem{
		ID:        id,
		ProductID: productID,
		Name:      name,
		Quantity:  qty,
		UnitPrice: price,
		Status:    status,
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

const (
	testDeviceID  = "tablet-7"
	testSessionID = uint64(5)
)
