package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/bitfantasy/nimo-trade/internal/metrics"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func newEditor(env *testEnv) *EditorService {
	return NewEditorService(env.svc, NewMemorySessionStore(time.Hour), packing.DefaultPackagingProfile, 0, nil)
}

func TestEditorService_EditAndSave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("55")
	ed := newEditor(env)

	v, err := ed.Open(ctx, LoadKey{OrderID: "o-1"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if v.LoadedBy != LoadedNew || v.CanUndo || len(v.ID) != 32 {
		t.Fatalf("unexpected fresh session %+v", v)
	}
	if len(v.Report.Warnings) != 1 {
		t.Fatalf("expected a container count warning, got %+v", v.Report.Warnings)
	}

	sid := v.ID
	if _, err = ed.AddProductLine(ctx, sid, 0, "Brass Hinge"); err != nil {
		t.Fatalf("add line: %v", err)
	}
	v, err = ed.EditProductLine(ctx, sid, 0, 0, packing.FieldPackedQty, 40)
	if err != nil {
		t.Fatalf("edit line: %v", err)
	}
	if v.Manifest.Totals.Boxes != 40 || v.Manifest.Totals.GrossWeight != 228 || !v.CanUndo {
		t.Fatalf("unexpected view after edit %+v", v.Manifest.Totals)
	}
	if hinge := v.Report.Products[0]; hinge.Status != packing.StatusUnder || hinge.Remaining != 60 {
		t.Fatalf("expected 60 hinges remaining, got %+v", hinge)
	}

	v, err = ed.Save(ctx, sid, "u-1")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v.Action != metrics.ActionCreate || v.Manifest.ID != "55" || !v.Manifest.IsExisting {
		t.Fatalf("unexpected save view %+v", v)
	}

	v, err = ed.Undo(ctx, sid)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if v.Manifest.ID != "55" || v.Manifest.Totals.Boxes != 0 || !v.CanRedo {
		t.Fatalf("undo after save must keep the saved identity, got %+v", v.Manifest)
	}

	// 再次保存走更新
	v, err = ed.Save(ctx, sid, "u-1")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if v.Action != metrics.ActionUpdate || env.manifests.count() != 1 {
		t.Fatalf("expected an update of the same row, got %s", v.Action)
	}
}

func TestEditorService_FailedSaveKeepsSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	ed := newEditor(env)
	v, err := ed.Open(ctx, LoadKey{InvoiceID: "9"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v, err = ed.AddContainer(ctx, v.ID)
	if err != nil {
		t.Fatalf("add container: %v", err)
	}

	env.manifests.createErr = errors.New("i/o timeout")
	if _, err := ed.Save(ctx, v.ID, "u-1"); !errors.Is(err, env.manifests.createErr) {
		t.Fatalf("expected the store error, got %v", err)
	}

	after, err := ed.Get(ctx, v.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Manifest.IsExisting || after.Manifest.ID != "" || len(after.Manifest.Containers) != 2 || !after.CanUndo {
		t.Fatalf("session changed by a failed save: %+v", after.Manifest)
	}

	env.manifests.createErr = nil
	retried, err := ed.Save(ctx, v.ID, "u-1")
	if err != nil || !retried.Manifest.IsExisting {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
}

func TestEditorService_RejectedEdit(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(newTestEnv())
	v, err := ed.Open(ctx, LoadKey{InvoiceID: "9"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := ed.RemoveContainer(ctx, v.ID, 0); !errors.Is(err, packing.ErrLastContainer) {
		t.Fatalf("expected ErrLastContainer, got %v", err)
	}
	if _, err := ed.AddProductLine(ctx, v.ID, 0, "Copper Wire"); !errors.Is(err, packing.ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
	after, _ := ed.Get(ctx, v.ID)
	if after.CanUndo {
		t.Fatal("rejected edits must not enter the history")
	}
}

func TestEditorService_HeaderAndContainers(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(newTestEnv())
	v, _ := ed.Open(ctx, LoadKey{InvoiceID: "9"})
	ref, num, seal := "EXP/26/0042", "msku7654321", "line-seal"

	if _, err := ed.UpdateHeader(ctx, v.ID, packing.HeaderPatch{ExportRefNo: &ref}); err != nil {
		t.Fatalf("header: %v", err)
	}
	out, err := ed.UpdateContainer(ctx, v.ID, 0, packing.ContainerPatch{Number: &num, SealType: &seal})
	if err != nil {
		t.Fatalf("container: %v", err)
	}
	if out.Manifest.Header.ExportRefNo != ref || out.Manifest.Containers[0].Number != "MSKU7654321" {
		t.Fatalf("unexpected manifest %+v", out.Manifest)
	}
	if _, err := ed.UpdateContainer(ctx, v.ID, 3, packing.ContainerPatch{Number: &num}); !errors.Is(err, packing.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	out, err = ed.Redo(ctx, v.ID)
	if err != nil || out.CanRedo {
		t.Fatalf("redo with nothing to redo must be a no-op, got %v", err)
	}
}

func TestEditorService_UnknownAndClosedSession(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(newTestEnv())

	if _, err := ed.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	v, _ := ed.Open(ctx, LoadKey{InvoiceID: "9"})
	if err := ed.Close(ctx, v.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := ed.AddContainer(ctx, v.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected a closed session to be gone, got %v", err)
	}
}

func TestEditorService_RemoveLine(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(newTestEnv())
	v, _ := ed.Open(ctx, LoadKey{InvoiceID: "9"})
	if _, err := ed.AddProductLine(ctx, v.ID, 0, "steel screw"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := ed.RemoveProductLine(ctx, v.ID, 0, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(out.Manifest.Containers[0].Lines) != 0 {
		t.Fatalf("line not removed: %+v", out.Manifest.Containers[0])
	}
}

// stallingStore holds the next Put until release is closed.
type stallingStore struct {
	SessionStore
	once    sync.Once
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (st *stallingStore) Put(ctx context.Context, sess *packing.Session) error {
	if st.armed {
		st.once.Do(func() {
			close(st.entered)
			<-st.release
		})
	}
	return st.SessionStore.Put(ctx, sess)
}

func TestEditorService_CloseWaitsForInFlightEdit(t *testing.T) {
	ctx := context.Background()
	store := &stallingStore{
		SessionStore: NewMemorySessionStore(time.Hour),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	ed := NewEditorService(newTestEnv().svc, store, packing.DefaultPackagingProfile, 0, nil)
	v, err := ed.Open(ctx, LoadKey{InvoiceID: "9"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sid := v.ID
	store.armed = true

	editDone := make(chan error, 1)
	go func() {
		_, err := ed.AddContainer(ctx, sid)
		editDone <- err
	}()
	<-store.entered

	closeDone := make(chan error, 1)
	go func() { closeDone <- ed.Close(ctx, sid) }()

	select {
	case err := <-closeDone:
		t.Fatalf("close returned while an edit was still writing: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(store.release)

	if err := <-editDone; err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := <-closeDone; err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := ed.Get(ctx, sid); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("closed session must stay closed, got %v", err)
	}
	if _, err := ed.AddContainer(ctx, sid); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("edit after close: expected ErrSessionNotFound, got %v", err)
	}
}

func TestEditorService_UnknownFieldsShareOneMetricLabel(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(newTestEnv())
	v, err := ed.Open(ctx, LoadKey{InvoiceID: "9"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := ed.AddProductLine(ctx, v.ID, 0, "Brass Hinge"); err != nil {
		t.Fatalf("add line: %v", err)
	}
	// make sure the shared label exists before counting series
	_, _ = ed.EditProductLine(ctx, v.ID, 0, 0, "colour", "red")

	series := promtest.CollectAndCount(metrics.SessionEdits)
	rejected := promtest.ToFloat64(metrics.SessionEdits.WithLabelValues("edit_unknown", "rejected"))

	for i := 0; i < 50; i++ {
		_, err := ed.EditProductLine(ctx, v.ID, 0, 0, packing.LineField(fmt.Sprintf("junk%d", i)), 1)
		if !errors.Is(err, packing.ErrUnknownField) {
			t.Fatalf("expected ErrUnknownField, got %v", err)
		}
	}

	if got := promtest.CollectAndCount(metrics.SessionEdits); got != series {
		t.Fatalf("unknown fields created new series: %d -> %d", series, got)
	}
	if got := promtest.ToFloat64(metrics.SessionEdits.WithLabelValues("edit_unknown", "rejected")); got != rejected+50 {
		t.Fatalf("expected 50 more rejected unknown edits, got %v -> %v", rejected, got)
	}
}
