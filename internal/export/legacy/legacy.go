// Package legacy reads packing lists from the SQLite export of the previous
// trade system and imports them through the regular save path.
package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-trade/internal/export/service"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Row is one row of the old packing_lists table. Containers holds the
// string-encoded JSON the old editor wrote.
type Row struct {
	ID          string         `db:"id"`
	InvoiceID   string         `db:"invoice_id"`
	OrderID     sql.NullString `db:"order_id"`
	ExportRefNo sql.NullString `db:"export_ref_no"`
	Buyer       sql.NullString `db:"buyer"`
	Seller      sql.NullString `db:"seller"`
	Notes       sql.NullString `db:"notes"`
	Containers  sql.NullString `db:"containers"`
}

// Record decodes the container data into a service.LegacyRecord.
func (r Row) Record() (service.LegacyRecord, error) {
	rec := service.LegacyRecord{
		InvoiceID:   r.InvoiceID,
		OrderID:     r.OrderID.String,
		ExportRefNo: r.ExportRefNo.String,
		Buyer:       r.Buyer.String,
		Seller:      r.Seller.String,
		Notes:       r.Notes.String,
	}
	raw := strings.TrimSpace(r.Containers.String)
	// some rows were encoded twice
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return rec, fmt.Errorf("row %s: %w", r.ID, err)
		}
		raw = inner
	}
	cs, err := service.DecodeLegacyNotes([]byte(raw))
	if err != nil {
		return rec, fmt.Errorf("row %s: %w", r.ID, err)
	}
	rec.Containers = cs
	return rec, nil
}

// Reader reads the old export.
type Reader struct {
	db *sqlx.DB
}

// Open opens the export read-only.
func Open(path string) (*Reader, error) {
	db, err := sqlx.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db}
}

func (r *Reader) Close() error {
	return r.db.Close()
}

// PackingLists returns every row with an invoice, oldest first.
func (r *Reader) PackingLists(ctx context.Context) ([]Row, error) {
	const q = `SELECT id, invoice_id, order_id, export_ref_no, buyer, seller, notes, containers
		FROM packing_lists
		WHERE invoice_id IS NOT NULL AND invoice_id <> ''
		ORDER BY updated_at, id`
	var rows []Row
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("select packing_lists: %w", err)
	}
	return rows, nil
}

// Importer is the save side of an import.
type Importer interface {
	ImportLegacy(ctx context.Context, rec service.LegacyRecord, userID string, dryRun bool) (*service.SaveResult, error)
}

// Summary counts the outcome per action; Failed holds the ids of rows that
// could not be imported.
type Summary struct {
	Actions map[string]int
	Failed  []string
}

// Run imports every row. A bad row is logged and skipped.
func Run(ctx context.Context, r *Reader, imp Importer, userID string, dryRun bool, log *zap.Logger) (Summary, error) {
	rows, err := r.PackingLists(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Actions: map[string]int{}}
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			log.Warn("skipping row with malformed containers", zap.String("row_id", row.ID), zap.Error(err))
			sum.Failed = append(sum.Failed, row.ID)
			continue
		}
		res, err := imp.ImportLegacy(ctx, rec, userID, dryRun)
		if err != nil {
			log.Warn("import failed", zap.String("row_id", row.ID), zap.String("invoice_id", row.InvoiceID), zap.Error(err))
			sum.Failed = append(sum.Failed, row.ID)
			continue
		}
		sum.Actions[res.Action]++
		log.Info("imported",
			zap.String("row_id", row.ID),
			zap.String("invoice_id", row.InvoiceID),
			zap.String("packing_list_id", res.Manifest.ID),
			zap.String("action", res.Action),
			zap.Bool("dry_run", dryRun),
		)
	}
	return sum, nil
}
