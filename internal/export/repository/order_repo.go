package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"gorm.io/gorm"
)

// OrderRepository 订单仓储
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByID 根据ID查找订单
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	var o entity.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// LinkPackingList 回写订单关联的装箱单
func (r *OrderRepository) LinkPackingList(ctx context.Context, orderID, packingListID string) error {
	res := r.db.WithContext(ctx).
		Model(&entity.Order{}).
		Where("id = ? AND deleted_at IS NULL", orderID).
		Updates(map[string]interface{}{
			"packing_list_id": packingListID,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 订单列表
func (r *OrderRepository) List(ctx context.Context, params ListParams) ([]entity.Order, int64, error) {
	params.normalize()
	query := r.db.WithContext(ctx).Model(&entity.Order{}).Where("deleted_at IS NULL")
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("order_code LIKE ? OR buyer LIKE ?", kw, kw)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []entity.Order
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&orders).Error
	return orders, total, err
}
