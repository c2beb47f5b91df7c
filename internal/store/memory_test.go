package store_test

import (
	"context"
	"testing"

	"requisition-api-server/internal/store"
)

type record struct {
	Name  string  `json:"name"`
	Qty   float64 `json:"qty"`
	Owner string  `json:"owner,omitempty"`
}

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	if err := m.Set(ctx, "items", "REQ/1", record{Name: "Resin", Qty: 10}, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got record
	ok, err := m.Get(ctx, "items", "REQ/1", &got)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Name != "Resin" || got.Qty != 10 {
		t.Errorf("got %+v", got)
	}

	ok, err = m.Get(ctx, "items", "missing", &got)
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if ok {
		t.Error("Get reported a missing document as present")
	}
}

func TestMemoryMergePreservesFields(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	if err := m.Set(ctx, "items", "a", record{Name: "Resin", Qty: 10, Owner: "store"}, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set(ctx, "items", "a", map[string]any{"qty": 4}, true); err != nil {
		t.Fatalf("merge Set: %v", err)
	}
	var got record
	if _, err := m.Get(ctx, "items", "a", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Qty != 4 {
		t.Errorf("qty = %v, want 4", got.Qty)
	}
	if got.Name != "Resin" || got.Owner != "store" {
		t.Errorf("merge dropped sibling fields: %+v", got)
	}
}

func TestMemoryUpdateMissing(t *testing.T) {
	m := store.NewMemory()
	err := m.Update(context.Background(), "items", "nope", map[string]any{"qty": 1})
	if err == nil {
		t.Fatal("Update on a missing document should fail")
	}
}

func TestMemoryQueryEqual(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := []record{
		{Name: "Resin", Qty: 1, Owner: "a"},
		{Name: "Cap", Qty: 2, Owner: "b"},
		{Name: "Resin", Qty: 3, Owner: "c"},
	}
	for i, d := range docs {
		if err := m.Set(ctx, "items", string(rune('x'+i)), d, false); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	var got []record
	if err := m.QueryEqual(ctx, "items", "name", "Resin", &got); err != nil {
		t.Fatalf("QueryEqual: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	for _, r := range got {
		if r.Name != "Resin" {
			t.Errorf("unexpected match %+v", r)
		}
	}

	var all []record
	if err := m.ScanAll(ctx, "items", &all); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ScanAll returned %d docs, want 3", len(all))
	}
}

func TestMemoryAddAssignsID(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	id, err := m.Add(ctx, "items", record{Name: "Cap"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("Add returned an empty id")
	}
	var got record
	ok, err := m.Get(ctx, "items", id, &got)
	if err != nil || !ok {
		t.Fatalf("Get added doc: ok=%v err=%v", ok, err)
	}
}
