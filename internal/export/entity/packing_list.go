package entity

import (
	"time"

	"gorm.io/datatypes"
)

// PackingList 装箱单
// Containers 为结构化的集装箱明细；旧系统写入的数据只存在 InvoiceHistory 中，
// 形如 {"notes":"<json 字符串>"}
type PackingList struct {
	ID               string         `json:"id" gorm:"primaryKey;size:32"`
	InvoiceID        string         `json:"invoice_id" gorm:"size:32;not null;uniqueIndex"`
	OrderID          string         `json:"order_id" gorm:"size:32;index"`
	ExportRefNo      string         `json:"export_ref_no" gorm:"size:100"`
	ExportRefDate    *time.Time     `json:"export_ref_date"`
	Buyer            string         `json:"buyer" gorm:"type:text"`
	Seller           string         `json:"seller" gorm:"type:text"`
	Notes            string         `json:"notes" gorm:"type:text"`
	IssueDate        *time.Time     `json:"issue_date"`
	Containers       datatypes.JSON `json:"containers"`
	InvoiceHistory   datatypes.JSON `json:"invoice_history"`
	TotalBoxes       float64        `json:"total_boxes" gorm:"type:decimal(14,4);default:0"`
	TotalNetWeight   float64        `json:"total_net_weight" gorm:"type:decimal(14,2);default:0"`
	TotalGrossWeight float64        `json:"total_gross_weight" gorm:"type:decimal(14,2);default:0"`
	TotalVolume      float64        `json:"total_volume" gorm:"type:decimal(14,4);default:0"`
	ContainerCount   int            `json:"container_count" gorm:"default:0"`
	CreatedBy        string         `json:"created_by" gorm:"size:64"`
	UpdatedBy        string         `json:"updated_by" gorm:"size:64"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (PackingList) TableName() string {
	return "erp_packing_lists"
}

// PackingListUpsertColumns 保存时覆盖写入的列，旧系统的 invoice_history 保持不动
var PackingListUpsertColumns = []string{
	"order_id", "export_ref_no", "export_ref_date", "buyer", "seller", "notes", "issue_date",
	"containers", "total_boxes", "total_net_weight", "total_gross_weight", "total_volume",
	"container_count", "updated_by", "updated_at",
}
