package handler

import (
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
	"github.com/bitfantasy/nimo-trade/internal/export/service"
	"github.com/gin-gonic/gin"
)

// TradeHandler 订单与发票只读接口
type TradeHandler struct {
	svc *service.TradeService
}

func NewTradeHandler(svc *service.TradeService) *TradeHandler {
	return &TradeHandler{svc: svc}
}

// ListOrders GET /orders
func (h *TradeHandler) ListOrders(c *gin.Context) {
	page, size := GetPagination(c)
	orders, total, err := h.svc.ListOrders(c.Request.Context(), repository.ListParams{
		Status:  c.Query("status"),
		Keyword: c.Query("keyword"),
		Page:    page,
		Size:    size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, listResponse(orders, page, size, total))
}

// GetOrder GET /orders/:id
func (h *TradeHandler) GetOrder(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, order)
}

// ListInvoices GET /invoices
func (h *TradeHandler) ListInvoices(c *gin.Context) {
	page, size := GetPagination(c)
	invoices, total, err := h.svc.ListInvoices(c.Request.Context(), repository.ListParams{
		Keyword: c.Query("keyword"),
		Page:    page,
		Size:    size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, listResponse(invoices, page, size, total))
}

// GetInvoice GET /invoices/:id
// 返回发票及计算引擎使用的快照（含商品目录的包装数据）
func (h *TradeHandler) GetInvoice(c *gin.Context) {
	pi, err := h.svc.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{
		"invoice":  pi,
		"snapshot": service.InvoiceSnapshot(pi),
	})
}
