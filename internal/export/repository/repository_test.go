package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"github.com/bitfantasy/nimo-trade/internal/testutil"
	"gorm.io/datatypes"
)

func newPackingList(invoiceID, orderID string) *entity.PackingList {
	return &entity.PackingList{
		InvoiceID:      invoiceID,
		OrderID:        orderID,
		Buyer:          "Acme Imports LLC",
		Containers:     datatypes.JSON(`[{"container_number":"MSKU1234567","seal_type":"self-seal","lines":[]}]`),
		TotalBoxes:     40,
		TotalNetWeight: 200,
		ContainerCount: 1,
	}
}

func TestPackingListCreateAndFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewPackingListRepository(db)
	ctx := context.Background()

	pl := newPackingList("inv-001", "ord-001")
	if err := repo.Create(ctx, pl); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(pl.ID) != 32 {
		t.Fatalf("expected a 32 character id, got %q", pl.ID)
	}

	byID, err := repo.FindByID(ctx, pl.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	byInvoice, err := repo.FindByInvoiceID(ctx, "inv-001")
	if err != nil {
		t.Fatalf("find by invoice: %v", err)
	}
	if byID.ID != byInvoice.ID || byInvoice.TotalNetWeight != 200 {
		t.Fatalf("unexpected rows %+v / %+v", byID, byInvoice)
	}

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPackingListCreateConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewPackingListRepository(db)
	ctx := context.Background()

	first := newPackingList("inv-002", "ord-002")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.Create(ctx, newPackingList("inv-002", "ord-002"))

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ExistingID != first.ID || conflict.InvoiceID != "inv-002" {
		t.Fatalf("unexpected conflict %+v", conflict)
	}

	var count int64
	db.Model(&entity.PackingList{}).Where("invoice_id = ?", "inv-002").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}
}

func TestPackingListUpdate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewPackingListRepository(db)
	ctx := context.Background()

	pl := newPackingList("inv-003", "ord-003")
	if err := repo.Create(ctx, pl); err != nil {
		t.Fatalf("create: %v", err)
	}

	pl.TotalNetWeight = 0
	pl.ExportRefNo = "EXP/26/0007"
	if err := repo.Update(ctx, pl); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.FindByID(ctx, pl.ID)
	if got.TotalNetWeight != 0 || got.ExportRefNo != "EXP/26/0007" {
		t.Fatalf("update did not write zero values: %+v", got)
	}

	ghost := newPackingList("inv-404", "")
	ghost.ID = "does-not-exist"
	if err := repo.Update(ctx, ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPackingListUpsertByInvoice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewPackingListRepository(db)
	ctx := context.Background()

	legacy := newPackingList("inv-004", "ord-004")
	legacy.InvoiceHistory = datatypes.JSON(`{"notes":"[]"}`)
	if err := repo.Create(ctx, legacy); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := newPackingList("inv-004", "ord-004")
	next.TotalBoxes = 99
	saved, err := repo.UpsertByInvoice(ctx, next)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if saved.ID != legacy.ID {
		t.Fatalf("upsert must keep the existing row id %s, got %s", legacy.ID, saved.ID)
	}
	if saved.TotalBoxes != 99 {
		t.Fatalf("expected boxes 99, got %v", saved.TotalBoxes)
	}
	if string(saved.InvoiceHistory) != `{"notes":"[]"}` {
		t.Fatalf("legacy history must be preserved, got %s", saved.InvoiceHistory)
	}

	fresh, err := repo.UpsertByInvoice(ctx, newPackingList("inv-005", ""))
	if err != nil {
		t.Fatalf("upsert new: %v", err)
	}
	if fresh.ID == "" || fresh.InvoiceID != "inv-005" {
		t.Fatalf("unexpected inserted row %+v", fresh)
	}
}

func TestOrderLinkPackingList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInvoice(t, db, "inv-010", "ord-010")
	repo := NewOrderRepository(db)
	ctx := context.Background()

	if err := repo.LinkPackingList(ctx, "ord-010", "pl-010"); err != nil {
		t.Fatalf("link: %v", err)
	}
	o, err := repo.FindByID(ctx, "ord-010")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if o.PackingListID == nil || *o.PackingListID != "pl-010" {
		t.Fatalf("order not linked: %+v", o)
	}

	if err := repo.LinkPackingList(ctx, "ord-missing", "pl-010"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	orders, total, err := repo.List(ctx, ListParams{Keyword: "ord-010"})
	if err != nil || total != 1 || len(orders) != 1 {
		t.Fatalf("expected one order, got %d (%v)", total, err)
	}
}

func TestInvoiceFindByIDJoinsCatalog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInvoice(t, db, "inv-020", "ord-020")
	repo := NewInvoiceRepository(db)

	pi, err := repo.FindByID(context.Background(), "inv-020")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(pi.Items) != 2 || pi.Items[0].ProductName != "Brass Hinge" {
		t.Fatalf("unexpected items %+v", pi.Items)
	}
	if pi.Items[0].Product != nil {
		t.Fatal("hinge has no catalog entry")
	}
	screw := pi.Items[1].Product
	if screw == nil || screw.UnitWeightGrams == nil || *screw.UnitWeightGrams != 8 {
		t.Fatalf("screw catalog data not joined: %+v", screw)
	}
	if pi.ContainerCount == nil || *pi.ContainerCount != 2 {
		t.Fatalf("expected container count 2, got %v", pi.ContainerCount)
	}

	if _, err := repo.FindByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvoiceFindByIDMatchesCatalogByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInvoice(t, db, "inv-030", "ord-030")
	db.Model(&entity.PIItem{}).Where("id = ?", "it2-inv-030").Update("product_id", "")
	db.Model(&entity.PIItem{}).Where("id = ?", "it2-inv-030").Update("product_name", " steel screw ")

	pi, err := NewInvoiceRepository(db).FindByID(context.Background(), "inv-030")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if pi.Items[1].Product == nil || pi.Items[1].Product.Name != "Steel Screw" {
		t.Fatalf("expected catalog matched by name, got %+v", pi.Items[1].Product)
	}
}
