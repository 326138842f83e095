package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/bitfantasy/nimo-trade/internal/export/service"
	"github.com/gin-gonic/gin"
)

// PackingHandler 装箱单编辑与导出
type PackingHandler struct {
	editor       *service.EditorService
	packingLists *service.PackingListService
	export       *service.ExportService
}

func NewPackingHandler(editor *service.EditorService, pls *service.PackingListService, export *service.ExportService) *PackingHandler {
	return &PackingHandler{editor: editor, packingLists: pls, export: export}
}

// OpenSessionRequest 打开编辑会话，三个ID至少提供一个
type OpenSessionRequest struct {
	OrderID       string `json:"order_id"`
	InvoiceID     string `json:"invoice_id"`
	PackingListID string `json:"packing_list_id"`
}

// AddLineRequest 添加商品行
type AddLineRequest struct {
	ProductName string `json:"product_name" binding:"required"`
}

// EditLineRequest 修改商品行的一个字段
type EditLineRequest struct {
	Field string      `json:"field" binding:"required"`
	Value interface{} `json:"value"`
}

// OpenSession POST /packing-sessions
func (h *PackingHandler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	view, err := h.editor.Open(c.Request.Context(), service.LoadKey{
		PackingListID: req.PackingListID,
		OrderID:       req.OrderID,
		InvoiceID:     req.InvoiceID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, view)
}

// GetSession GET /packing-sessions/:sid
func (h *PackingHandler) GetSession(c *gin.Context) {
	view, err := h.editor.Get(c.Request.Context(), c.Param("sid"))
	respond(c, view, err)
}

// CloseSession DELETE /packing-sessions/:sid
func (h *PackingHandler) CloseSession(c *gin.Context) {
	if err := h.editor.Close(c.Request.Context(), c.Param("sid")); err != nil {
		respondError(c, err)
		return
	}
	Success(c, nil)
}

// UpdateHeader PUT /packing-sessions/:sid/header
func (h *PackingHandler) UpdateHeader(c *gin.Context) {
	var patch packing.HeaderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}
	view, err := h.editor.UpdateHeader(c.Request.Context(), c.Param("sid"), patch)
	respond(c, view, err)
}

// AddContainer POST /packing-sessions/:sid/containers
func (h *PackingHandler) AddContainer(c *gin.Context) {
	view, err := h.editor.AddContainer(c.Request.Context(), c.Param("sid"))
	respond(c, view, err)
}

// UpdateContainer PUT /packing-sessions/:sid/containers/:ci
func (h *PackingHandler) UpdateContainer(c *gin.Context) {
	ci, ok := indexParam(c, "ci")
	if !ok {
		return
	}
	var patch packing.ContainerPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}
	view, err := h.editor.UpdateContainer(c.Request.Context(), c.Param("sid"), ci, patch)
	respond(c, view, err)
}

// RemoveContainer DELETE /packing-sessions/:sid/containers/:ci
func (h *PackingHandler) RemoveContainer(c *gin.Context) {
	ci, ok := indexParam(c, "ci")
	if !ok {
		return
	}
	view, err := h.editor.RemoveContainer(c.Request.Context(), c.Param("sid"), ci)
	respond(c, view, err)
}

// AddProductLine POST /packing-sessions/:sid/containers/:ci/lines
func (h *PackingHandler) AddProductLine(c *gin.Context) {
	ci, ok := indexParam(c, "ci")
	if !ok {
		return
	}
	var req AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	view, err := h.editor.AddProductLine(c.Request.Context(), c.Param("sid"), ci, req.ProductName)
	respond(c, view, err)
}

// EditProductLine PATCH /packing-sessions/:sid/containers/:ci/lines/:li
func (h *PackingHandler) EditProductLine(c *gin.Context) {
	ci, ok := indexParam(c, "ci")
	if !ok {
		return
	}
	li, ok := indexParam(c, "li")
	if !ok {
		return
	}
	var req EditLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	view, err := h.editor.EditProductLine(c.Request.Context(), c.Param("sid"), ci, li, packing.LineField(req.Field), req.Value)
	respond(c, view, err)
}

// RemoveProductLine DELETE /packing-sessions/:sid/containers/:ci/lines/:li
func (h *PackingHandler) RemoveProductLine(c *gin.Context) {
	ci, ok := indexParam(c, "ci")
	if !ok {
		return
	}
	li, ok := indexParam(c, "li")
	if !ok {
		return
	}
	view, err := h.editor.RemoveProductLine(c.Request.Context(), c.Param("sid"), ci, li)
	respond(c, view, err)
}

// Undo POST /packing-sessions/:sid/undo
func (h *PackingHandler) Undo(c *gin.Context) {
	view, err := h.editor.Undo(c.Request.Context(), c.Param("sid"))
	respond(c, view, err)
}

// Redo POST /packing-sessions/:sid/redo
func (h *PackingHandler) Redo(c *gin.Context) {
	view, err := h.editor.Redo(c.Request.Context(), c.Param("sid"))
	respond(c, view, err)
}

// Save POST /packing-sessions/:sid/save
// 保存失败时会话保持不变，可直接重试
func (h *PackingHandler) Save(c *gin.Context) {
	view, err := h.editor.Save(c.Request.Context(), c.Param("sid"), GetUserID(c))
	respond(c, view, err)
}

// GetPackingList GET /packing-lists/:id
func (h *PackingHandler) GetPackingList(c *gin.Context) {
	loaded, err := h.packingLists.LoadFor(c.Request.Context(), service.LoadKey{PackingListID: c.Param("id")})
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{
		"manifest":       loaded.Manifest,
		"invoice":        loaded.Invoice,
		"reconciliation": h.editor.Reconcile(loaded.Manifest, loaded.Invoice),
		"payload_source": loaded.Payload,
	})
}

// ExportPackingList GET /packing-lists/:id/export
func (h *PackingHandler) ExportPackingList(c *gin.Context) {
	f, filename, err := h.export.ExportPackingList(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

// ArchivePackingList POST /packing-lists/:id/archive
func (h *PackingHandler) ArchivePackingList(c *gin.Context) {
	object, err := h.export.ArchivePackingList(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"object": object})
}

func respond(c *gin.Context, view *service.SessionView, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, view)
}

func indexParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v < 0 {
		BadRequest(c, "invalid "+name+": "+c.Param(name))
		return 0, false
	}
	return v, true
}
