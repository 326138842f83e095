package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
	"github.com/bitfantasy/nimo-trade/internal/metrics"
	"go.uber.org/zap"
)

// ErrInvoiceRequired 加载装箱单时无法确定来源发票
var ErrInvoiceRequired = errors.New("an order, invoice or packing list id is required")

// OrderStore 订单服务
type OrderStore interface {
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	LinkPackingList(ctx context.Context, orderID, packingListID string) error
}

// InvoiceStore 形式发票服务
type InvoiceStore interface {
	FindByID(ctx context.Context, id string) (*entity.ProformaInvoice, error)
}

// ManifestStore 装箱单持久化
// Create 在发票已有装箱单时返回 *repository.ConflictError
type ManifestStore interface {
	FindByID(ctx context.Context, id string) (*entity.PackingList, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*entity.PackingList, error)
	Create(ctx context.Context, pl *entity.PackingList) error
	Update(ctx context.Context, pl *entity.PackingList) error
	UpsertByInvoice(ctx context.Context, pl *entity.PackingList) (*entity.PackingList, error)
}

// LoadKey 打开装箱单的入口，至少提供一个
type LoadKey struct {
	PackingListID string `json:"packing_list_id"`
	OrderID       string `json:"order_id"`
	InvoiceID     string `json:"invoice_id"`
}

// 装箱单的加载来源
const (
	LoadedByID        = "id"
	LoadedByOrderLink = "order_link"
	LoadedByInvoice   = "invoice"
	LoadedNew         = "new"
)

// LoadedManifest 加载结果
type LoadedManifest struct {
	Invoice  packing.InvoiceSnapshot
	Manifest packing.Manifest
	// LoadedBy 命中的查找键
	LoadedBy string
	Payload  PayloadSource
}

// SaveRequest 保存请求
// Baseline 为加载时的集装箱数据，用于识别旧系统写入但没有ID的装箱单
type SaveRequest struct {
	Manifest packing.Manifest
	Baseline []packing.Container
	UserID   string
}

// SaveResult 保存结果
type SaveResult struct {
	Manifest packing.Manifest `json:"manifest"`
	Action   string           `json:"action"`
}

// PackingListService 装箱单加载与保存
type PackingListService struct {
	orders    OrderStore
	invoices  InvoiceStore
	manifests ManifestStore
	logger    *zap.Logger
}

// NewPackingListService 创建装箱单服务
func NewPackingListService(orders OrderStore, invoices InvoiceStore, manifests ManifestStore, logger *zap.Logger) *PackingListService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PackingListService{orders: orders, invoices: invoices, manifests: manifests, logger: logger}
}

// LoadFor 加载发票及已有装箱单
// 已有装箱单按 装箱单ID → 订单关联 → 发票ID 的顺序查找，都没有时返回只含一个空集装箱的新装箱单。
// 发票或订单读取失败直接返回错误，不返回部分数据。
func (s *PackingListService) LoadFor(ctx context.Context, key LoadKey) (*LoadedManifest, error) {
	start := time.Now()

	var order *entity.Order
	if key.OrderID != "" {
		o, err := s.orders.FindByID(ctx, key.OrderID)
		if err != nil {
			return nil, fmt.Errorf("load order %s: %w", key.OrderID, err)
		}
		order = o
	}

	var byID *entity.PackingList
	if key.PackingListID != "" {
		pl, err := s.manifests.FindByID(ctx, key.PackingListID)
		switch {
		case err == nil:
			byID = pl
		case errors.Is(err, repository.ErrNotFound):
			if key.OrderID == "" && key.InvoiceID == "" {
				return nil, fmt.Errorf("load packing list %s: %w", key.PackingListID, err)
			}
		default:
			return nil, fmt.Errorf("load packing list %s: %w", key.PackingListID, err)
		}
	}

	invoiceID := key.InvoiceID
	if invoiceID == "" && order != nil {
		invoiceID = order.PIInvoiceID
	}
	if invoiceID == "" && byID != nil {
		invoiceID = byID.InvoiceID
	}
	if invoiceID == "" {
		return nil, ErrInvoiceRequired
	}

	pi, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}
	inv := InvoiceSnapshot(pi)

	orderID := key.OrderID
	row, loadedBy := byID, LoadedByID
	if row == nil && order != nil && order.PackingListID != nil && *order.PackingListID != "" {
		row, err = s.find(ctx, s.manifests.FindByID, *order.PackingListID)
		if err != nil {
			return nil, err
		}
		loadedBy = LoadedByOrderLink
	}
	if row == nil {
		row, err = s.find(ctx, s.manifests.FindByInvoiceID, invoiceID)
		if err != nil {
			return nil, err
		}
		loadedBy = LoadedByInvoice
	}

	out := &LoadedManifest{Invoice: inv}
	if row == nil {
		out.Manifest = packing.NewManifest(inv, orderID)
		out.LoadedBy = LoadedNew
		out.Payload = PayloadEmpty
	} else {
		if orderID == "" {
			orderID = row.OrderID
		}
		out.Manifest, out.Payload = s.manifestFromRow(row, inv, orderID)
		out.LoadedBy = loadedBy
	}

	metrics.RecordLoad(out.LoadedBy, time.Since(start))
	s.logger.Debug("packing list loaded",
		zap.String("invoice_id", invoiceID),
		zap.String("packing_list_id", out.Manifest.ID),
		zap.String("loaded_by", out.LoadedBy),
		zap.String("payload", string(out.Payload)),
	)
	return out, nil
}

// find 查找装箱单，不存在时返回 nil
func (s *PackingListService) find(ctx context.Context, fn func(context.Context, string) (*entity.PackingList, error), key string) (*entity.PackingList, error) {
	pl, err := fn(ctx, key)
	if err == nil {
		return pl, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("load packing list %s: %w", key, err)
}

func (s *PackingListService) manifestFromRow(row *entity.PackingList, inv packing.InvoiceSnapshot, orderID string) (packing.Manifest, PayloadSource) {
	payload, err := DecodeContainers(row.Containers, row.InvoiceHistory)
	if err != nil {
		s.logger.Warn("discarding malformed container data",
			zap.String("packing_list_id", row.ID),
			zap.String("invoice_id", row.InvoiceID),
			zap.Error(err),
		)
	}

	m := packing.NewManifest(inv, orderID)
	m.ID = row.ID
	m.IsExisting = true
	m.Header = packing.Header{
		ExportRefNo:   row.ExportRefNo,
		ExportRefDate: row.ExportRefDate,
		Buyer:         firstNonEmpty(row.Buyer, inv.Buyer),
		Seller:        firstNonEmpty(row.Seller, inv.Seller),
		Notes:         row.Notes,
		IssueDate:     row.IssueDate,
	}
	if len(payload.Containers) > 0 {
		m.Containers = attachInvoiceData(payload.Containers, inv)
	}
	return packing.RecomputeTotals(m), payload.Source
}

// attachInvoiceData 按商品名称为已保存的行重新关联发票数据与目录快照，已保存的计算值保持不变
func attachInvoiceData(cs []packing.Container, inv packing.InvoiceSnapshot) []packing.Container {
	for ci := range cs {
		for li := range cs[ci].Lines {
			l := &cs[ci].Lines[li]
			il, ok := inv.Line(l.ProductName)
			if !ok {
				continue
			}
			l.Source = packing.InvoiceLineData{InvoicedQty: il.InvoicedQty, TotalWeightKg: il.TotalWeightKg}
			l.Meta = il.Meta
			if l.ProductID == "" {
				l.ProductID = il.ProductID
			}
			if l.InvoicedQty == 0 {
				l.InvoicedQty = il.InvoicedQty
			}
			if l.HSNCode == "" {
				l.HSNCode = il.HSNCode
			}
		}
	}
	return cs
}

// Save 保存装箱单，决定新建还是更新
//
//   - 已存在、已有ID、或加载时的集装箱数据非空：更新。有ID按ID更新，否则按发票覆盖写入。
//   - 否则新建。成功后回写订单关联；发票已有装箱单时转为按该ID更新。
//   - 其他错误原样返回，传入的装箱单状态不变。
func (s *PackingListService) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	m := packing.RecomputeTotals(req.Manifest)
	if m.InvoiceID == "" {
		return nil, ErrInvoiceRequired
	}
	row, err := toPackingListRow(m, req.UserID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("invoice_id", m.InvoiceID), zap.String("order_id", m.OrderID))

	// 扫描加载时的集装箱而非当前编辑结果：用户新录入的数据不能让新装箱单走更新
	existing := m.IsExisting || m.ID != "" || packing.HasRecordedData(req.Baseline)
	if existing {
		action := metrics.ActionUpdate
		if m.ID != "" {
			row.ID = m.ID
			err = s.manifests.Update(ctx, row)
		} else {
			action = metrics.ActionUpsert
			var saved *entity.PackingList
			saved, err = s.manifests.UpsertByInvoice(ctx, row)
			if err == nil {
				row.ID = saved.ID
			}
		}
		if err != nil {
			metrics.RecordSave(metrics.ActionFailed)
			return nil, fmt.Errorf("update packing list: %w", err)
		}
		if action == metrics.ActionUpsert {
			s.linkOrder(ctx, log, m.OrderID, row.ID)
		}
		return s.saved(log, m, row.ID, action), nil
	}

	err = s.manifests.Create(ctx, row)
	if err == nil {
		s.linkOrder(ctx, log, m.OrderID, row.ID)
		return s.saved(log, m, row.ID, metrics.ActionCreate), nil
	}

	var conflict *repository.ConflictError
	if !errors.As(err, &conflict) {
		metrics.RecordSave(metrics.ActionFailed)
		return nil, fmt.Errorf("create packing list: %w", err)
	}

	log.Info("packing list created concurrently, updating existing", zap.String("existing_id", conflict.ExistingID))
	row.ID = conflict.ExistingID
	if err := s.manifests.Update(ctx, row); err != nil {
		metrics.RecordSave(metrics.ActionFailed)
		return nil, fmt.Errorf("update packing list %s after conflict: %w", conflict.ExistingID, err)
	}
	s.linkOrder(ctx, log, m.OrderID, row.ID)
	return s.saved(log, m, row.ID, metrics.ActionConflictUpdate), nil
}

func (s *PackingListService) saved(log *zap.Logger, m packing.Manifest, id, action string) *SaveResult {
	m.ID = id
	m.IsExisting = true
	metrics.RecordSave(action)
	log.Info("packing list saved", zap.String("packing_list_id", id), zap.String("action", action))
	return &SaveResult{Manifest: m, Action: action}
}

// linkOrder 回写订单上的装箱单ID，失败只记录日志
func (s *PackingListService) linkOrder(ctx context.Context, log *zap.Logger, orderID, packingListID string) {
	if orderID == "" {
		return
	}
	if err := s.orders.LinkPackingList(ctx, orderID, packingListID); err != nil {
		log.Warn("failed to link packing list to order",
			zap.String("packing_list_id", packingListID),
			zap.Error(err),
		)
	}
}

func toPackingListRow(m packing.Manifest, userID string) (*entity.PackingList, error) {
	containers, err := EncodeContainers(m.Containers)
	if err != nil {
		return nil, fmt.Errorf("encode containers: %w", err)
	}
	return &entity.PackingList{
		InvoiceID:        m.InvoiceID,
		OrderID:          m.OrderID,
		ExportRefNo:      m.Header.ExportRefNo,
		ExportRefDate:    m.Header.ExportRefDate,
		Buyer:            m.Header.Buyer,
		Seller:           m.Header.Seller,
		Notes:            m.Header.Notes,
		IssueDate:        m.Header.IssueDate,
		Containers:       containers,
		TotalBoxes:       m.Totals.Boxes,
		TotalNetWeight:   m.Totals.NetWeight,
		TotalGrossWeight: m.Totals.GrossWeight,
		TotalVolume:      m.Totals.Volume,
		ContainerCount:   m.Totals.ContainerCount,
		CreatedBy:        userID,
		UpdatedBy:        userID,
	}, nil
}

// InvoiceSnapshot 把发票实体转换为计算引擎使用的快照
func InvoiceSnapshot(pi *entity.ProformaInvoice) packing.InvoiceSnapshot {
	snap := packing.InvoiceSnapshot{
		ID:             pi.ID,
		Code:           pi.PICode,
		Buyer:          pi.Buyer,
		Seller:         pi.Seller,
		ContainerCount: pi.ContainerCount,
		Lines:          make([]packing.InvoiceLine, 0, len(pi.Items)),
	}
	for _, item := range pi.Items {
		unit, err := packing.ParseUnit(item.Unit)
		if err != nil {
			unit = packing.UnitBox
		}
		line := packing.InvoiceLine{
			ProductID:     item.ProductID,
			ProductName:   strings.TrimSpace(item.ProductName),
			HSNCode:       item.HSNCode,
			Unit:          unit,
			InvoicedQty:   item.Quantity,
			TotalWeightKg: item.TotalWeightKg,
		}
		if p := item.Product; p != nil {
			if line.ProductID == "" {
				line.ProductID = p.ID
			}
			if line.HSNCode == "" {
				line.HSNCode = p.HSNCode
			}
			line.Meta = packing.CatalogMeta{
				UnitWeightGrams:      p.UnitWeightGrams,
				PiecesPerPack:        p.PiecesPerPack,
				PacksPerBox:          p.PacksPerBox,
				PackagingWeightGrams: p.PackagingWeightGrams,
				PackagingVolumeM3:    p.PackagingVolumeM3,
			}
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
