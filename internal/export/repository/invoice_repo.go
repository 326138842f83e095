package repository

import (
	"context"
	"strings"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"gorm.io/gorm"
)

// InvoiceRepository 形式发票仓储
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository 创建形式发票仓储
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindByID 查找发票及明细，明细带商品目录数据
// 未关联商品ID的明细按商品名称匹配目录
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*entity.ProformaInvoice, error) {
	var pi entity.ProformaInvoice
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("Items.Product").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&pi).Error
	if err != nil {
		return nil, notFound(err)
	}

	var names []string
	for _, item := range pi.Items {
		if item.Product == nil {
			names = append(names, normName(item.ProductName))
		}
	}
	if len(names) == 0 {
		return &pi, nil
	}
	byName, err := r.productsByName(ctx, names)
	if err != nil {
		return nil, err
	}
	for i := range pi.Items {
		if pi.Items[i].Product != nil {
			continue
		}
		if p, ok := byName[normName(pi.Items[i].ProductName)]; ok {
			pi.Items[i].Product = p
		}
	}
	return &pi, nil
}

func (r *InvoiceRepository) productsByName(ctx context.Context, names []string) (map[string]*entity.Product, error) {
	var products []entity.Product
	err := r.db.WithContext(ctx).
		Where("LOWER(name) IN ? AND deleted_at IS NULL", names).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]*entity.Product, len(products))
	for i := range products {
		out[normName(products[i].Name)] = &products[i]
	}
	return out, nil
}

// List 发票列表
func (r *InvoiceRepository) List(ctx context.Context, params ListParams) ([]entity.ProformaInvoice, int64, error) {
	params.normalize()
	query := r.db.WithContext(ctx).Model(&entity.ProformaInvoice{}).Where("deleted_at IS NULL")
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("pi_code LIKE ? OR buyer LIKE ?", kw, kw)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var invoices []entity.ProformaInvoice
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&invoices).Error
	return invoices, total, err
}

func normName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
