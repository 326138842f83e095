package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// ConflictError 创建装箱单时发票已存在装箱单
type ConflictError struct {
	ExistingID string
	InvoiceID  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("packing list for invoice %s already exists: %s", e.InvoiceID, e.ExistingID)
}

// Repositories 仓库集合
type Repositories struct {
	Order       *OrderRepository
	Invoice     *InvoiceRepository
	PackingList *PackingListRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:       NewOrderRepository(db),
		Invoice:     NewInvoiceRepository(db),
		PackingList: NewPackingListRepository(db),
	}
}

// NewID 生成32位主键
func NewID() string {
	return uuid.New().String()[:32]
}

// ListParams 分页查询参数
type ListParams struct {
	Status  string
	Keyword string
	Page    int
	Size    int
}

func (p *ListParams) normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Size <= 0 || p.Size > 200 {
		p.Size = 20
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isDuplicateKey 唯一索引冲突；TranslateError 未开启或驱动不支持时按错误文本判断
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
