package entity

import "time"

// OrderStatus 订单状态
const (
	OrderStatusDraft     = "DRAFT"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusPacking   = "PACKING"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusCancelled = "CANCELLED"
)

// Order 出口订单
type Order struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	OrderCode     string     `json:"order_code" gorm:"size:50;not null;uniqueIndex"`
	PIInvoiceID   string     `json:"pi_invoice_id" gorm:"size:32;index"`
	PackingListID *string    `json:"packing_list_id" gorm:"size:32"`
	Buyer         string     `json:"buyer" gorm:"size:200"`
	Status        string     `json:"status" gorm:"size:20;not null;default:DRAFT"`
	CreatedBy     string     `json:"created_by" gorm:"size:64"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at" gorm:"index"`

	Invoice *ProformaInvoice `json:"invoice,omitempty" gorm:"foreignKey:PIInvoiceID"`
}

func (Order) TableName() string {
	return "erp_orders"
}
