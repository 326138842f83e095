package service

import (
	"context"
	"sync"

	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
)

func fp(v float64) *float64 { return &v }

type fakeOrders struct {
	mu      sync.Mutex
	orders  map[string]*entity.Order
	linkErr error
}

func (f *fakeOrders) FindByID(_ context.Context, id string) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) LinkPackingList(_ context.Context, orderID, packingListID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return f.linkErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	id := packingListID
	o.PackingListID = &id
	return nil
}

func (f *fakeOrders) linked(orderID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o := f.orders[orderID]; o != nil && o.PackingListID != nil {
		return *o.PackingListID
	}
	return ""
}

type fakeInvoices struct {
	invoices map[string]*entity.ProformaInvoice
	err      error
}

func (f *fakeInvoices) FindByID(_ context.Context, id string) (*entity.ProformaInvoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	pi, ok := f.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return pi, nil
}

// fakeManifests enforces the unique invoice_id the way the database does.
type fakeManifests struct {
	mu        sync.Mutex
	rows      map[string]*entity.PackingList
	nextIDs   []string
	createErr error
	updateErr error
	creates   int
	updates   int
	upserts   int
}

func newFakeManifests(ids ...string) *fakeManifests {
	return &fakeManifests{rows: map[string]*entity.PackingList{}, nextIDs: ids}
}

func (f *fakeManifests) FindByID(_ context.Context, id string) (*entity.PackingList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pl, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *pl
	return &cp, nil
}

func (f *fakeManifests) FindByInvoiceID(_ context.Context, invoiceID string) (*entity.PackingList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pl := f.byInvoice(invoiceID); pl != nil {
		cp := *pl
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeManifests) byInvoice(invoiceID string) *entity.PackingList {
	for _, pl := range f.rows {
		if pl.InvoiceID == invoiceID {
			return pl
		}
	}
	return nil
}

func (f *fakeManifests) nextID() string {
	if len(f.nextIDs) == 0 {
		return repository.NewID()
	}
	id := f.nextIDs[0]
	f.nextIDs = f.nextIDs[1:]
	return id
}

func (f *fakeManifests) Create(_ context.Context, pl *entity.PackingList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if existing := f.byInvoice(pl.InvoiceID); existing != nil {
		return &repository.ConflictError{ExistingID: existing.ID, InvoiceID: pl.InvoiceID}
	}
	if pl.ID == "" {
		pl.ID = f.nextID()
	}
	cp := *pl
	f.rows[pl.ID] = &cp
	f.creates++
	return nil
}

func (f *fakeManifests) Update(_ context.Context, pl *entity.PackingList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	old, ok := f.rows[pl.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *pl
	cp.InvoiceHistory = old.InvoiceHistory
	cp.CreatedBy = old.CreatedBy
	f.rows[pl.ID] = &cp
	f.updates++
	return nil
}

func (f *fakeManifests) UpsertByInvoice(_ context.Context, pl *entity.PackingList) (*entity.PackingList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	cp := *pl
	if old := f.byInvoice(pl.InvoiceID); old != nil {
		cp.ID = old.ID
		cp.InvoiceHistory = old.InvoiceHistory
	} else {
		cp.ID = f.nextID()
	}
	f.rows[cp.ID] = &cp
	f.upserts++
	out := cp
	return &out, nil
}

func (f *fakeManifests) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// testInvoice mirrors the packing package fixture: 100 boxes of hinges, 5000 screws.
func testInvoice(id string) *entity.ProformaInvoice {
	two := 2
	return &entity.ProformaInvoice{
		ID:             id,
		PICode:         "PI-" + id,
		Buyer:          "Acme Imports LLC",
		Seller:         "Nimo Exports Pvt Ltd",
		ContainerCount: &two,
		Items: []entity.PIItem{
			{ID: "it-1", PIID: id, ProductName: "Brass Hinge", HSNCode: "83021010", Unit: "Box", Quantity: 100, TotalWeightKg: 500},
			{
				ID: "it-2", PIID: id, ProductID: "prd-1", ProductName: "Steel Screw", HSNCode: "73181500", Unit: "Pcs", Quantity: 5000,
				Product: &entity.Product{ID: "prd-1", Name: "Steel Screw", UnitWeightGrams: fp(8), PiecesPerPack: fp(50), PacksPerBox: fp(40)},
			},
		},
	}
}

type testEnv struct {
	orders    *fakeOrders
	invoices  *fakeInvoices
	manifests *fakeManifests
	svc       *PackingListService
}

// newTestEnv seeds invoice "9" and order "o-1" pointing at it.
func newTestEnv(ids ...string) *testEnv {
	env := &testEnv{
		orders: &fakeOrders{orders: map[string]*entity.Order{
			"o-1": {ID: "o-1", OrderCode: "SO-1", PIInvoiceID: "9", Status: entity.OrderStatusConfirmed},
		}},
		invoices:  &fakeInvoices{invoices: map[string]*entity.ProformaInvoice{"9": testInvoice("9")}},
		manifests: newFakeManifests(ids...),
	}
	env.svc = NewPackingListService(env.orders, env.invoices, env.manifests, nil)
	return env
}
