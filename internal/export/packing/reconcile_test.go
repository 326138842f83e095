package packing

import "testing"

func TestClassify_Boundaries(t *testing.T) {
	const invoiced, eps = 100.0, 0.5

	if c := Classify(invoiced, invoiced, DefaultTolerance); c.Status != StatusComplete {
		t.Fatalf("expected COMPLETE, got %s", c.Status)
	}

	over := Classify(invoiced+eps, invoiced, DefaultTolerance)
	if over.Status != StatusOver || over.Excess != eps || over.Remaining != 0 {
		t.Fatalf("expected OVER by %v, got %+v", eps, over)
	}

	under := Classify(invoiced-eps, invoiced, DefaultTolerance)
	if under.Status != StatusUnder || under.Remaining != eps || under.Excess != 0 {
		t.Fatalf("expected UNDER by %v, got %+v", eps, under)
	}
}

func TestClassify_Tolerance(t *testing.T) {
	if c := Classify(100.0000001, 100, DefaultTolerance); c.Status != StatusComplete {
		t.Fatalf("expected difference below tolerance to be COMPLETE, got %+v", c)
	}
	if c := Classify(100.1, 100, DefaultTolerance); c.Status != StatusOver || c.Excess != 0.1 {
		t.Fatalf("expected clean excess 0.1, got %+v", c)
	}
}

func TestReconcile_ProductsSummedAcrossContainers(t *testing.T) {
	m := packedManifest(t)

	r := Reconcile(m, testInvoice(), 0)

	if len(r.Lines) != 3 {
		t.Fatalf("expected 3 line checks, got %d", len(r.Lines))
	}
	if r.Lines[0].Status != StatusUnder || r.Lines[0].Remaining != 60 {
		t.Fatalf("first hinge line should be 60 short, got %+v", r.Lines[0])
	}
	if r.Lines[2].Container != 1 || r.Lines[2].Line != 0 {
		t.Fatalf("line check not located: %+v", r.Lines[2])
	}

	if len(r.Products) != 2 {
		t.Fatalf("expected 2 product checks, got %d", len(r.Products))
	}
	hinge, screw := r.Products[0], r.Products[1]
	if hinge.ProductName != "Brass Hinge" || hinge.Status != StatusComplete || hinge.Packed != 100 {
		t.Fatalf("hinges are fully packed over two containers: %+v", hinge)
	}
	if screw.Status != StatusUnder || screw.Remaining != 2500 {
		t.Fatalf("screws are half packed: %+v", screw)
	}
	if r.Complete {
		t.Fatal("report must not be complete while screws are missing")
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("two containers match the invoice, got warnings %+v", r.Warnings)
	}
}

func TestReconcile_UnpackedInvoiceLineIsReported(t *testing.T) {
	m := NewManifest(testInvoice(), "")

	r := Reconcile(m, testInvoice(), DefaultTolerance)

	if len(r.Products) != 2 {
		t.Fatalf("expected both invoice lines reported, got %+v", r.Products)
	}
	for _, p := range r.Products {
		if p.Status != StatusUnder || p.Remaining != p.Invoiced {
			t.Errorf("expected %s fully remaining, got %+v", p.ProductName, p)
		}
	}
}

func TestReconcile_ContainerCountWarning(t *testing.T) {
	m := NewManifest(testInvoice(), "")

	r := Reconcile(m, testInvoice(), DefaultTolerance)

	if len(r.Warnings) != 1 || r.Warnings[0].Code != WarnContainerCount {
		t.Fatalf("expected a container count warning, got %+v", r.Warnings)
	}

	inv := testInvoice()
	inv.ContainerCount = nil
	if r := Reconcile(m, inv, DefaultTolerance); len(r.Warnings) != 0 {
		t.Fatalf("no declared count means no warning, got %+v", r.Warnings)
	}
}

func TestReconcile_OverPack(t *testing.T) {
	m, err := packedManifest(t).EditProductLine(1, 0, FieldPackedQty, 75, DefaultPackagingProfile)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	r := Reconcile(m, testInvoice(), DefaultTolerance)

	if r.Products[0].Status != StatusOver || r.Products[0].Excess != 15 {
		t.Fatalf("expected hinges over by 15, got %+v", r.Products[0])
	}
}

func TestReconcile_DuplicateInvoiceLinesAreSummed(t *testing.T) {
	inv := testInvoice()
	inv.Lines = append(inv.Lines, InvoiceLine{ProductName: "brass hinge", HSNCode: "83021010", Unit: UnitBox, InvoicedQty: 50, TotalWeightKg: 250})
	m, err := packedManifest(t).EditProductLine(1, 0, FieldPackedQty, 110, DefaultPackagingProfile)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	r := Reconcile(m, inv, DefaultTolerance)

	if len(r.Products) != 2 {
		t.Fatalf("expected one check per product name, got %+v", r.Products)
	}
	hinge := r.Products[0]
	if hinge.Invoiced != 150 || hinge.Packed != 150 || hinge.Status != StatusComplete {
		t.Fatalf("expected 150 invoiced over two lines and complete, got %+v", hinge)
	}
}
