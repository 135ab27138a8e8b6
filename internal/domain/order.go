package domain

import "time"

// Order is one kitchen/service ticket. Money fields are minor units
// (cents); the server computes them, clients only preview.
type Order struct {
	ID            uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID     *uint64     `json:"session_id,omitempty" gorm:"index"`
	TableID       *uint64     `json:"table_id,omitempty" gorm:"index"`
	WaiterID      *uint64     `json:"waiter_id,omitempty"`
	ClientID      *uint64     `json:"client_id,omitempty"`
	Status        OrderStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentStatus string      `json:"payment_status" gorm:"type:varchar(20);default:'unpaid'"`
	Subtotal      int64       `json:"subtotal" gorm:"not null"`
	Discount      int64       `json:"discount" gorm:"not null;default:0"`
	Tax           int64       `json:"tax" gorm:"not null;default:0"`
	Total         int64       `json:"total" gorm:"not null"`
	Items         []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	OpenedAt      time.Time   `json:"opened_at" gorm:"autoCreateTime"`
	ClosedAt      *time.Time  `json:"closed_at,omitempty"`
}

type OrderItem struct {
	ID        uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID   uint64     `json:"order_id" gorm:"not null;index"`
	ProductID uint64     `json:"product_id" gorm:"not null"`
	Name      string     `json:"name" gorm:"type:varchar(120)"`
	Quantity  int        `json:"quantity" gorm:"not null"`
	UnitPrice int64      `json:"unit_price" gorm:"not null"`
	Notes     string     `json:"notes" gorm:"type:text"`
	Status    ItemStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
}

const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// Session groups the orders of one table visit for consolidated billing.
// DeviceID is the identity of the single device allowed to mutate it.
type Session struct {
	ID       uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TableID  *uint64    `json:"table_id,omitempty" gorm:"index"`
	Status   string     `json:"status" gorm:"type:varchar(20);default:'active'"`
	DeviceID string     `json:"device_id" gorm:"type:varchar(64)"`
	TotalDue int64      `json:"total_due"`
	OpenedAt time.Time  `json:"opened_at" gorm:"autoCreateTime"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func (s *Session) Active() bool {
	return s != nil && s.Status == SessionActive
}

const (
	TableFree          = "free"
	TableReserved      = "reserved"
	TableOccupied      = "occupied"
	TableNeedsCleaning = "needs_cleaning"
	// TableMismatch is the derived state of a table manually marked
	// occupied while holding zero active orders. Staff resolve it
	// explicitly; the server never auto-corrects it.
	TableMismatch = "mismatch"
)

type Table struct {
	ID     uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	Number string `json:"number" gorm:"type:varchar(16);uniqueIndex"`
	// Manual override set by staff (cleaning workflow); occupancy shown
	// to clients is derived from active orders plus this override.
	ManualStatus string `json:"manual_status" gorm:"type:varchar(20);default:'free'"`
	Seats        int    `json:"seats"`
}

// Occupancy derives the table state from its active-order count and the
// manual override. A manual "occupied" with no active orders is the
// mismatch state staff must resolve by hand.
func (t Table) Occupancy(activeOrders int) string {
	switch {
	case t.ManualStatus == TableNeedsCleaning:
		return TableNeedsCleaning
	case t.ManualStatus == TableReserved && activeOrders == 0:
		return TableReserved
	case activeOrders > 0:
		return TableOccupied
	case t.ManualStatus == TableOccupied:
		return TableMismatch
	default:
		return TableFree
	}
}

// SessionTotalDue sums order totals for the session, skipping cancelled
// orders. Always recomputed from scratch, never patched incrementally.
func SessionTotalDue(orders []Order) int64 {
	var due int64
	for _, o := range orders {
		if o.Status == OrderCancelled {
			continue
		}
		due += o.Total
	}
	return due
}
