package entity

import "time"

// ProformaInvoice 形式发票
type ProformaInvoice struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	PICode         string     `json:"pi_code" gorm:"size:50;not null;uniqueIndex"`
	Buyer          string     `json:"buyer" gorm:"type:text"`
	Seller         string     `json:"seller" gorm:"type:text"`
	ContainerCount *int       `json:"container_count"`
	Currency       string     `json:"currency" gorm:"size:10;not null;default:USD"`
	TotalAmount    float64    `json:"total_amount" gorm:"type:decimal(14,2);default:0"`
	Notes          string     `json:"notes" gorm:"type:text"`
	IssueDate      *time.Time `json:"issue_date"`
	CreatedBy      string     `json:"created_by" gorm:"size:64"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at" gorm:"index"`

	Items []PIItem `json:"items,omitempty" gorm:"foreignKey:PIID"`
}

func (ProformaInvoice) TableName() string {
	return "erp_proforma_invoices"
}

// PIItem 形式发票明细
type PIItem struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	PIID          string    `json:"pi_id" gorm:"size:32;not null;index"`
	ProductID     string    `json:"product_id" gorm:"size:32"`
	ProductName   string    `json:"product_name" gorm:"size:200;not null"`
	HSNCode       string    `json:"hsn_code" gorm:"size:20"`
	Unit          string    `json:"unit" gorm:"size:20;not null;default:Box"`
	Quantity      float64   `json:"quantity" gorm:"type:decimal(14,4);not null"`
	UnitPrice     float64   `json:"unit_price" gorm:"type:decimal(14,4);default:0"`
	Amount        float64   `json:"amount" gorm:"type:decimal(14,2);default:0"`
	TotalWeightKg float64   `json:"total_weight_kg" gorm:"type:decimal(14,2);default:0"`
	SortOrder     int       `json:"sort_order" gorm:"default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (PIItem) TableName() string {
	return "erp_pi_items"
}
