package service

import (
	"context"
	"strings"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/bitfantasy/nimo-trade/internal/metrics"
)

// LegacyRecord 旧系统导出的一条装箱单
type LegacyRecord struct {
	InvoiceID   string
	OrderID     string
	ExportRefNo string
	Buyer       string
	Seller      string
	Notes       string
	Containers  []packing.Container
}

// ImportLegacy 按发票导入旧系统装箱单，走与编辑器相同的保存流程，重复导入只会更新。
// dryRun 时只返回将要执行的动作，不写库。
func (s *PackingListService) ImportLegacy(ctx context.Context, rec LegacyRecord, userID string, dryRun bool) (*SaveResult, error) {
	loaded, err := s.LoadFor(ctx, LoadKey{InvoiceID: rec.InvoiceID})
	if err != nil {
		return nil, err
	}

	m := loaded.Manifest
	if m.OrderID == "" {
		m.OrderID = rec.OrderID
	}
	if len(rec.Containers) > 0 {
		m.Containers = attachInvoiceData(rec.Containers, loaded.Invoice)
	}
	if v := strings.TrimSpace(rec.ExportRefNo); v != "" {
		m.Header.ExportRefNo = v
	}
	if v := strings.TrimSpace(rec.Buyer); v != "" {
		m.Header.Buyer = v
	}
	if v := strings.TrimSpace(rec.Seller); v != "" {
		m.Header.Seller = v
	}
	if v := strings.TrimSpace(rec.Notes); v != "" {
		m.Header.Notes = v
	}
	m = packing.RecomputeTotals(m)

	if dryRun {
		action := metrics.ActionCreate
		if m.IsExisting || m.ID != "" {
			action = metrics.ActionUpdate
		}
		return &SaveResult{Manifest: m, Action: action}, nil
	}
	return s.Save(ctx, SaveRequest{Manifest: m, Baseline: loaded.Manifest.Containers, UserID: userID})
}
