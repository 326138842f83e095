package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
	"github.com/bitfantasy/nimo-trade/internal/export/service"
	"github.com/bitfantasy/nimo-trade/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers 外贸HTTP处理器集合
type Handlers struct {
	Trade   *TradeHandler
	Packing *PackingHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Trade:   NewTradeHandler(services.Trade),
		Packing: NewPackingHandler(services.Editor, services.PackingList, services.Export),
	}
}

// RegisterRoutes 注册外贸路由，rg 需已挂载 JWT 认证
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	read := middleware.RequirePermission(middleware.PermPackingRead)
	write := middleware.RequirePermission(middleware.PermPackingWrite)

	orders := rg.Group("/orders", read)
	{
		orders.GET("", h.Trade.ListOrders)
		orders.GET("/:id", h.Trade.GetOrder)
	}

	invoices := rg.Group("/invoices", read)
	{
		invoices.GET("", h.Trade.ListInvoices)
		invoices.GET("/:id", h.Trade.GetInvoice)
	}

	lists := rg.Group("/packing-lists", read)
	{
		lists.GET("/:id", h.Packing.GetPackingList)
		lists.GET("/:id/export", h.Packing.ExportPackingList)
		lists.POST("/:id/archive", middleware.RequireRole(middleware.AdminRole), h.Packing.ArchivePackingList)
	}

	sessions := rg.Group("/packing-sessions", write)
	{
		sessions.POST("", h.Packing.OpenSession)
		sessions.GET("/:sid", h.Packing.GetSession)
		sessions.DELETE("/:sid", h.Packing.CloseSession)
		sessions.PUT("/:sid/header", h.Packing.UpdateHeader)
		sessions.POST("/:sid/containers", h.Packing.AddContainer)
		sessions.PUT("/:sid/containers/:ci", h.Packing.UpdateContainer)
		sessions.DELETE("/:sid/containers/:ci", h.Packing.RemoveContainer)
		sessions.POST("/:sid/containers/:ci/lines", h.Packing.AddProductLine)
		sessions.PATCH("/:sid/containers/:ci/lines/:li", h.Packing.EditProductLine)
		sessions.DELETE("/:sid/containers/:ci/lines/:li", h.Packing.RemoveProductLine)
		sessions.POST("/:sid/undo", h.Packing.Undo)
		sessions.POST("/:sid/redo", h.Packing.Redo)
		sessions.POST("/:sid/save", h.Packing.Save)
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应，HTTP状态码为业务码的前三位
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// respondError 按错误类型选择响应码
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, packing.ErrLastContainer):
		Conflict(c, err.Error())
	case errors.Is(err, service.ErrInvoiceRequired),
		errors.Is(err, packing.ErrIndexOutOfRange),
		errors.Is(err, packing.ErrUnknownField),
		errors.Is(err, packing.ErrUnknownProduct),
		errors.Is(err, packing.ErrNegativeQuantity),
		errors.Is(err, packing.ErrInvalidValue):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrArchiveDisabled):
		Error(c, 50300, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func listResponse(items interface{}, page, pageSize int, total int64) ListResponse {
	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}
	return ListResponse{
		Items:      items,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages},
	}
}
