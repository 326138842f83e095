package entity

import "time"

// Product 商品目录
// 包装字段为空时按默认包装规格计算
type Product struct {
	ID                   string     `json:"id" gorm:"primaryKey;size:32"`
	Code                 string     `json:"code" gorm:"size:64;uniqueIndex"`
	Name                 string     `json:"name" gorm:"size:200;not null;index"`
	HSNCode              string     `json:"hsn_code" gorm:"size:20"`
	Unit                 string     `json:"unit" gorm:"size:20"`
	UnitWeightGrams      *float64   `json:"unit_weight_g" gorm:"column:unit_weight_g;type:decimal(12,4)"`
	PiecesPerPack        *float64   `json:"pieces_per_pack" gorm:"type:decimal(12,4)"`
	PacksPerBox          *float64   `json:"packs_per_box" gorm:"type:decimal(12,4)"`
	PackagingWeightGrams *float64   `json:"packaging_weight_g" gorm:"column:packaging_weight_g;type:decimal(12,4)"`
	PackagingVolumeM3    *float64   `json:"packaging_volume_m3" gorm:"column:packaging_volume_m3;type:decimal(12,6)"`
	Status               string     `json:"status" gorm:"size:20;not null;default:active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	DeletedAt            *time.Time `json:"deleted_at" gorm:"index"`
}

func (Product) TableName() string {
	return "erp_products"
}
