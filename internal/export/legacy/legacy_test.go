package legacy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
	"github.com/bitfantasy/nimo-trade/internal/export/service"
	"github.com/bitfantasy/nimo-trade/internal/testutil"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const hingeNotes = `[{"containerNumber":"msku1234567","sealType":"self seal","products":[` +
	`{"productName":"Brass Hinge","unit":"Box","packedQuantity":"40","noOfBoxes":"40","netWeight":"200","grossWeight":"228","measurement":"0.22"}]}]`

// writeExport creates an old-system export with four rows: two good, one for an
// unknown invoice and one with broken container JSON.
func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	db.MustExec(`CREATE TABLE packing_lists (
		id TEXT PRIMARY KEY,
		invoice_id TEXT,
		order_id TEXT,
		export_ref_no TEXT,
		buyer TEXT,
		seller TEXT,
		notes TEXT,
		containers TEXT,
		updated_at TEXT
	)`)
	insert := `INSERT INTO packing_lists (id, invoice_id, order_id, export_ref_no, buyer, seller, notes, containers, updated_at)
		VALUES (?, ?, ?, ?, NULL, NULL, ?, ?, ?)`
	db.MustExec(insert, "old-1", "pi-001", "order-001", "EXP/24/0007", "first shipment", hingeNotes, "2024-01-05")
	db.MustExec(insert, "old-2", "pi-404", nil, nil, nil, "[]", "2024-01-06")
	db.MustExec(insert, "old-3", "pi-002", "order-002", nil, nil, "[{", "2024-01-07")
	db.MustExec(insert, "old-4", "pi-002", "order-002", "EXP/24/0009", nil, `"{\"containers\":[{\"containerNumber\":\"tghu7654321\",\"products\":[]}]}"`, "2024-01-08")
	db.MustExec(insert, "old-5", "", nil, nil, nil, nil, "2024-01-09")
	return path
}

func TestRow_Record(t *testing.T) {
	r, err := Open(writeExport(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	rows, err := r.PackingLists(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected rows without an invoice to be ignored, got %d", len(rows))
	}

	rec, err := rows[0].Record()
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.InvoiceID != "pi-001" || rec.OrderID != "order-001" || rec.ExportRefNo != "EXP/24/0007" {
		t.Fatalf("unexpected record %+v", rec)
	}
	l := rec.Containers[0].Lines[0]
	if rec.Containers[0].Number != "MSKU1234567" || l.PackedQty != 40 || l.GrossWeight != 228 {
		t.Fatalf("unexpected containers %+v", rec.Containers)
	}

	if _, err := rows[2].Record(); err == nil {
		t.Fatal("expected broken container JSON to be reported")
	}

	twice, err := rows[3].Record()
	if err != nil {
		t.Fatalf("double encoded record: %v", err)
	}
	if twice.Containers[0].Number != "TGHU7654321" || twice.Containers[0].SealType != packing.SealSelf {
		t.Fatalf("unexpected container %+v", twice.Containers[0])
	}
}

func TestRun_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	testutil.SeedInvoice(t, db, "pi-001", "order-001")
	testutil.SeedInvoice(t, db, "pi-002", "order-002")
	repos := repository.NewRepositories(db)
	pls := service.NewPackingListService(repos.Order, repos.Invoice, repos.PackingList, zap.NewNop())

	r, err := Open(writeExport(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	dry, err := Run(ctx, r, pls, "importer", true, zap.NewNop())
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	var count int64
	db.Model(&entity.PackingList{}).Count(&count)
	if count != 0 || dry.Actions["create"] != 2 {
		t.Fatalf("dry run must not write: %d rows, actions %v", count, dry.Actions)
	}

	first, err := Run(ctx, r, pls, "importer", false, zap.NewNop())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Actions["create"] != 2 || first.Actions["update"] != 0 {
		t.Fatalf("expected both invoices created, got %v", first.Actions)
	}
	if len(first.Failed) != 2 || first.Failed[0] != "old-2" || first.Failed[1] != "old-3" {
		t.Fatalf("expected old-2 and old-3 to fail, got %v", first.Failed)
	}

	second, err := Run(ctx, r, pls, "importer", false, zap.NewNop())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Actions["update"] != 2 || second.Actions["create"] != 0 {
		t.Fatalf("a repeated import must only update, got %v", second.Actions)
	}

	db.Model(&entity.PackingList{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected one packing list per invoice, got %d", count)
	}

	pl, err := repos.PackingList.FindByInvoiceID(ctx, "pi-001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if pl.TotalBoxes != 40 || pl.TotalGrossWeight != 228 || pl.ExportRefNo != "EXP/24/0007" || pl.Notes != "first shipment" {
		t.Fatalf("unexpected imported row %+v", pl)
	}
	order, _ := repos.Order.FindByID(ctx, "order-001")
	if order.PackingListID == nil || *order.PackingListID != pl.ID {
		t.Fatal("expected the order to be linked to the imported packing list")
	}
}
