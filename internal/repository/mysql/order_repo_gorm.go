package mysql

import (
	"errors"

	"gorm.io/gorm"

	"dinesync/internal/domain"
	"dinesync/internal/repository"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Save(order *domain.Order) error {
	result := r.db.Create(order)
	if result.Error != nil {
		return result.Error
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (r *orderRepo) FindByID(id uint64) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.Preload("Items").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) FindBySession(sessionID uint64) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.Preload("Items").
		Where("session_id = ?", sessionID).
		Order("opened_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) FindActive() ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.Preload("Items").
		Where("status NOT IN ?", []domain.OrderStatus{domain.OrderCompleted, domain.OrderCancelled}).
		Order("opened_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) UpdateStatus(id uint64, status domain.OrderStatus) error {
	return r.db.Model(&domain.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *orderRepo) UpdateItemStatus(itemID uint64, status domain.ItemStatus) error {
	return r.db.Model(&domain.OrderItem{}).
		Where("id = ?", itemID).
		Update("status", status).Error
}

func (r *orderRepo) UpdateItemDetails(itemID uint64, quantity int, notes string) error {
	return r.db.Model(&domain.OrderItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"quantity": quantity, "notes": notes}).Error
}

func (r *orderRepo) UpdateTotals(id uint64, subtotal, tax, total int64) error {
	return r.db.Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"subtotal": subtotal, "tax": tax, "total": total}).Error
}

func (r *orderRepo) CountActiveByTable() (map[uint64]int, error) {
	type row struct {
		TableID uint64
		N       int
	}
	var rows []row
	err := r.db.Model(&domain.Order{}).
		Select("table_id, count(*) as n").
		Where("table_id IS NOT NULL").
		Where("status NOT IN ?", []domain.OrderStatus{domain.OrderCompleted, domain.OrderCancelled}).
		Group("table_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]int, len(rows))
	for _, r := range rows {
		out[r.TableID] = r.N
	}
	return out, nil
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(s *domain.Session) error {
	return r.db.Create(s).Error
}

func (r *sessionRepo) FindByID(id uint64) (*domain.Session, error) {
	var s domain.Session
	if err := r.db.First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Save(s *domain.Session) error {
	return r.db.Save(s).Error
}

type tableRepo struct {
	db *gorm.DB
}

func NewTableRepository(db *gorm.DB) repository.TableRepository {
	return &tableRepo{db: db}
}

func (r *tableRepo) List() ([]domain.Table, error) {
	var out []domain.Table
	if err := r.db.Order("number ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *tableRepo) FindByID(id uint64) (*domain.Table, error) {
	var t domain.Table
	if err := r.db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *tableRepo) Save(t *domain.Table) error {
	return r.db.Save(t).Error
}
