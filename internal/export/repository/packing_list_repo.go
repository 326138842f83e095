package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PackingListRepository 装箱单仓储
type PackingListRepository struct {
	db *gorm.DB
}

// NewPackingListRepository 创建装箱单仓储
func NewPackingListRepository(db *gorm.DB) *PackingListRepository {
	return &PackingListRepository{db: db}
}

// FindByID 根据ID查找装箱单
func (r *PackingListRepository) FindByID(ctx context.Context, id string) (*entity.PackingList, error) {
	var pl entity.PackingList
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pl).Error; err != nil {
		return nil, notFound(err)
	}
	return &pl, nil
}

// FindByInvoiceID 根据发票查找装箱单
func (r *PackingListRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*entity.PackingList, error) {
	var pl entity.PackingList
	if err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&pl).Error; err != nil {
		return nil, notFound(err)
	}
	return &pl, nil
}

// Create 创建装箱单
// 发票已有装箱单时返回 *ConflictError，携带已有记录的ID
func (r *PackingListRepository) Create(ctx context.Context, pl *entity.PackingList) error {
	if pl.ID == "" {
		pl.ID = NewID()
	}
	err := r.db.WithContext(ctx).Create(pl).Error
	if err == nil {
		return nil
	}
	if !isDuplicateKey(err) {
		return err
	}
	existing, findErr := r.FindByInvoiceID(ctx, pl.InvoiceID)
	if findErr != nil {
		return fmt.Errorf("create packing list: %w (existing row lookup: %v)", err, findErr)
	}
	return &ConflictError{ExistingID: existing.ID, InvoiceID: pl.InvoiceID}
}

// Update 按ID覆盖装箱单内容
func (r *PackingListRepository) Update(ctx context.Context, pl *entity.PackingList) error {
	pl.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).
		Model(&entity.PackingList{}).
		Where("id = ?", pl.ID).
		Select(entity.PackingListUpsertColumns).
		Updates(pl)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertByInvoice 按发票写入装箱单，已存在则覆盖，返回库中的记录
func (r *PackingListRepository) UpsertByInvoice(ctx context.Context, pl *entity.PackingList) (*entity.PackingList, error) {
	if pl.ID == "" {
		pl.ID = NewID()
	}
	pl.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "invoice_id"}},
		DoUpdates: clause.AssignmentColumns(entity.PackingListUpsertColumns),
	}).Create(pl).Error
	if err != nil {
		return nil, err
	}
	return r.FindByInvoiceID(ctx, pl.InvoiceID)
}
