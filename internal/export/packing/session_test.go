package packing

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestSession_UndoRedo(t *testing.T) {
	inv := testInvoice()
	p := DefaultPackagingProfile
	s := NewSession("s-1", inv, NewManifest(inv, "order-1"))

	if s.Undo() {
		t.Fatal("nothing to undo on a fresh session")
	}
	if err := s.Apply(func(m Manifest) (Manifest, error) { return m.AddProductLine(0, inv, "Brass Hinge", p) }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Apply(func(m Manifest) (Manifest, error) { return m.EditProductLine(0, 0, FieldPackedQty, 40, p) }); err != nil {
		t.Fatalf("edit: %v", err)
	}
	packed := s.Current

	if !s.Undo() {
		t.Fatal("expected undo to succeed")
	}
	if s.Current.Totals.Boxes != 0 || len(s.Current.Containers[0].Lines) != 1 {
		t.Fatalf("undo should restore the unpacked line, got %+v", s.Current.Totals)
	}
	if !s.Redo() {
		t.Fatal("expected redo to succeed")
	}
	if !reflect.DeepEqual(s.Current, packed) {
		t.Fatal("redo should restore the packed manifest")
	}
	if s.Redo() {
		t.Fatal("nothing left to redo")
	}
}

func TestSession_FailedEditLeavesStateAlone(t *testing.T) {
	inv := testInvoice()
	s := NewSession("s-1", inv, NewManifest(inv, ""))
	before := s.Current

	err := s.Apply(func(m Manifest) (Manifest, error) { return m.RemoveContainer(0) })

	if !errors.Is(err, ErrLastContainer) {
		t.Fatalf("expected ErrLastContainer, got %v", err)
	}
	if !reflect.DeepEqual(before, s.Current) || len(s.History) != 0 {
		t.Fatal("a rejected edit must not change the session")
	}
}

func TestSession_NewEditDropsRedo(t *testing.T) {
	inv := testInvoice()
	s := NewSession("s-1", inv, NewManifest(inv, ""))
	_ = s.Apply(func(m Manifest) (Manifest, error) { return m.AddContainer(), nil })
	s.Undo()

	_ = s.Apply(func(m Manifest) (Manifest, error) { return m.AddContainer(), nil })

	if len(s.Future) != 0 {
		t.Fatal("a new edit must clear the redo stack")
	}
}

func TestSession_HistoryIsBounded(t *testing.T) {
	inv := testInvoice()
	s := NewSession("s-1", inv, NewManifest(inv, ""))
	for i := 0; i < maxHistory+10; i++ {
		_ = s.Apply(func(m Manifest) (Manifest, error) { return m.AddContainer(), nil })
	}
	if len(s.History) != maxHistory {
		t.Fatalf("expected history capped at %d, got %d", maxHistory, len(s.History))
	}
}

func TestSession_MarkSavedStampsHistory(t *testing.T) {
	inv := testInvoice()
	s := NewSession("s-1", inv, NewManifest(inv, ""))
	_ = s.Apply(func(m Manifest) (Manifest, error) { return m.AddContainer(), nil })

	saved := s.Current
	saved.ID = "55"
	saved.IsExisting = true
	s.MarkSaved(saved)
	s.Undo()

	if s.Current.ID != "55" || !s.Current.IsExisting {
		t.Fatalf("undo after save lost the persisted identity: %+v", s.Current)
	}
	if len(s.Baseline) != 2 {
		t.Fatalf("baseline should follow the saved containers, got %d", len(s.Baseline))
	}
}

func TestSession_JSONRoundTripKeepsProvenance(t *testing.T) {
	m := packedManifest(t)
	m, _ = m.EditProductLine(0, 0, FieldNetWeight, 201, DefaultPackagingProfile)
	s := NewSession("s-1", testInvoice(), m)

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Session
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Current.Containers[0].Lines[0].Overrides.NetWeight {
		t.Fatal("override flag lost in serialisation")
	}
	if *back.Invoice.Lines[1].Meta.UnitWeightGrams != 8 {
		t.Fatal("catalog snapshot lost in serialisation")
	}
}
