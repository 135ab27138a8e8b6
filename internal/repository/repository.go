package repository

import (
	"dinesync/internal/domain"
)

type OrderRepository interface {
	Save(order *domain.Order) error
	FindByID(id uint64) (*domain.Order, error)
	FindBySession(sessionID uint64) ([]domain.Order, error)
	FindActive() ([]domain.Order, error)
	UpdateStatus(id uint64, status domain.OrderStatus) error
	UpdateItemStatus(itemID uint64, status domain.ItemStatus) error
	UpdateItemDetails(itemID uint64, quantity int, notes string) error
	UpdateTotals(id uint64, subtotal, tax, total int64) error
	CountActiveByTable() (map[uint64]int, error)
}

type SessionRepository interface {
	Create(session *domain.Session) error
	FindByID(id uint64) (*domain.Session, error)
	Save(session *domain.Session) error
}

type TableRepository interface {
	List() ([]domain.Table, error)
	FindByID(id uint64) (*domain.Table, error)
	Save(table *domain.Table) error
}
