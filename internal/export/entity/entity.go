package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有外贸单据表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 基础数据
		&Product{},

		// 订单与形式发票
		&Order{},
		&ProformaInvoice{},
		&PIItem{},

		// 装箱单
		&PackingList{},
	)
}
