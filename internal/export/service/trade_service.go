package service

import (
	"context"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
)

// TradeService 订单与发票的只读查询，维护由外部系统完成
type TradeService struct {
	orders   *repository.OrderRepository
	invoices *repository.InvoiceRepository
}

func NewTradeService(orders *repository.OrderRepository, invoices *repository.InvoiceRepository) *TradeService {
	return &TradeService{orders: orders, invoices: invoices}
}

func (s *TradeService) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *TradeService) ListOrders(ctx context.Context, params repository.ListParams) ([]entity.Order, int64, error) {
	return s.orders.List(ctx, params)
}

func (s *TradeService) GetInvoice(ctx context.Context, id string) (*entity.ProformaInvoice, error) {
	return s.invoices.FindByID(ctx, id)
}

func (s *TradeService) ListInvoices(ctx context.Context, params repository.ListParams) ([]entity.ProformaInvoice, int64, error) {
	return s.invoices.List(ctx, params)
}
