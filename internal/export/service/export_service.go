package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ObjectStore 对象存储，*minio.Client 满足该接口
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ErrArchiveDisabled 未配置对象存储
var ErrArchiveDisabled = errors.New("packing list archive is not configured")

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportService 装箱单导出
type ExportService struct {
	packingLists *PackingListService
	objects      ObjectStore
	bucket       string
	logger       *zap.Logger
}

// NewExportService 创建导出服务，objects 为 nil 时不归档
func NewExportService(pls *PackingListService, objects ObjectStore, bucket string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{packingLists: pls, objects: objects, bucket: bucket, logger: logger}
}

var packingExportHeaders = []string{
	"Container No.", "Seal Type", "Seal No.", "Description of Goods", "HSN Code",
	"Unit", "Quantity", "No. of Boxes", "Net Wt (kg)", "Gross Wt (kg)", "Measurement (m³)",
}

// ExportPackingList 导出装箱单为xlsx，配置了对象存储时同时归档一份
func (s *ExportService) ExportPackingList(ctx context.Context, packingListID string) (*excelize.File, string, error) {
	f, code, filename, err := s.build(ctx, packingListID)
	if err != nil {
		return nil, "", err
	}
	if s.objects != nil {
		if _, err := s.archive(ctx, f, code, filename); err != nil {
			s.logger.Warn("packing list archive failed",
				zap.String("packing_list_id", packingListID),
				zap.Error(err),
			)
		}
	}
	return f, filename, nil
}

// ArchivePackingList 生成并归档装箱单，返回对象名
func (s *ExportService) ArchivePackingList(ctx context.Context, packingListID string) (string, error) {
	if s.objects == nil {
		return "", ErrArchiveDisabled
	}
	f, code, filename, err := s.build(ctx, packingListID)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.archive(ctx, f, code, filename)
}

func (s *ExportService) build(ctx context.Context, packingListID string) (*excelize.File, string, string, error) {
	loaded, err := s.packingLists.LoadFor(ctx, LoadKey{PackingListID: packingListID})
	if err != nil {
		return nil, "", "", err
	}
	f, err := BuildWorkbook(loaded.Invoice, loaded.Manifest)
	if err != nil {
		return nil, "", "", err
	}
	code := loaded.Invoice.Code
	if code == "" {
		code = loaded.Invoice.ID
	}
	code = strings.ReplaceAll(code, "/", "-")
	return f, code, fmt.Sprintf("PackingList_%s.xlsx", code), nil
}

func (s *ExportService) archive(ctx context.Context, f *excelize.File, code, filename string) (string, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}
	objectName := fmt.Sprintf("packing-lists/%s/%s_%s", code, time.Now().Format("20060102150405"), filename)
	_, err = s.objects.PutObject(ctx, s.bucket, objectName, buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: xlsxContentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}
	s.logger.Info("packing list archived", zap.String("object", objectName))
	return objectName, nil
}

// BuildWorkbook 生成装箱单工作簿：抬头、每个集装箱的商品行与小计、合计
func BuildWorkbook(inv packing.InvoiceSnapshot, m packing.Manifest) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Packing List"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	subtotalStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})

	f.MergeCell(sheet, "A1", "K1")
	f.SetCellValue(sheet, "A1", "PACKING LIST")
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	// 抬头
	header := [][2]string{
		{"Invoice No.", inv.Code},
		{"Export Ref.", m.Header.ExportRefNo},
		{"Export Ref. Date", formatDate(m.Header.ExportRefDate)},
		{"Issue Date", formatDate(m.Header.IssueDate)},
		{"Seller", m.Header.Seller},
		{"Buyer", m.Header.Buyer},
	}
	row := 3
	for _, h := range header {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), h[0])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), h[1])
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), subtotalStyle)
		row++
	}
	row++

	// 表头
	for i, h := range packingExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, row)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}
	row++

	for _, c := range m.Containers {
		for _, l := range c.Lines {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), c.Number)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), string(c.SealType))
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), c.SealNumber)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), l.ProductName)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), l.HSNCode)
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), string(l.Unit))
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), l.PackedQty)
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), l.Boxes)
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), l.NetWeight)
			f.SetCellValue(sheet, fmt.Sprintf("J%d", row), l.GrossWeight)
			f.SetCellValue(sheet, fmt.Sprintf("K%d", row), l.Volume)
			row++
		}
		// 集装箱小计
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("Subtotal %s", c.Number))
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), c.Totals.Boxes)
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), c.Totals.NetWeight)
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), c.Totals.GrossWeight)
		f.SetCellValue(sheet, fmt.Sprintf("K%d", row), c.Totals.Volume)
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("K%d", row), subtotalStyle)
		row++
	}

	// 合计
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "TOTAL")
	f.SetCellValue(sheet, fmt.Sprintf("H%d", row), m.Totals.Boxes)
	f.SetCellValue(sheet, fmt.Sprintf("I%d", row), m.Totals.NetWeight)
	f.SetCellValue(sheet, fmt.Sprintf("J%d", row), m.Totals.GrossWeight)
	f.SetCellValue(sheet, fmt.Sprintf("K%d", row), m.Totals.Volume)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("K%d", row), boldStyle)
	row += 2

	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), TotalsSummary(m.Totals))

	colWidths := []float64{16, 10, 12, 28, 12, 8, 10, 12, 12, 12, 16}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
	return f, nil
}

// TotalsSummary 合计的文字说明，数字带千位分隔
func TotalsSummary(t packing.Totals) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%d container(s), %.0f boxes, net weight %.2f kg, gross weight %.2f kg, measurement %.4f m³",
		t.ContainerCount, t.Boxes, t.NetWeight, t.GrossWeight, t.Volume)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02.01.2006")
}
