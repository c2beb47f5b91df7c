package reservation_test

import (
	"context"
	"testing"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/reservation"
	"requisition-api-server/internal/store"
)

func TestBuildItems(t *testing.T) {
	req := &models.Requisition{
		Ingredients: []models.LineItem{
			{ItemID: "RM-1", Name: "Resin", Quantity: 10},
		},
		Packing: []models.LineItem{
			{ItemID: "PM-1", Name: "Bottle 1L", Quantity: 20},
		},
		Labels: []models.LineItem{
			{Name: "Label A", Quantity: 5},
		},
		AdditionalItems: []models.LineItem{
			{Name: "Extra Scoop", Quantity: 3},
		},
	}

	items := reservation.BuildItems(req)
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3 (additional items must not reserve)", len(items))
	}
	want := []models.ReservationItem{
		{ItemID: "RM-1", ItemName: "Resin", Quantity: 10, Category: models.CategoryRawMaterials},
		{ItemID: "PM-1", ItemName: "Bottle 1L", Quantity: 20, Category: models.CategoryPackingMaterials},
		{ItemName: "Label A", Quantity: 5, Category: models.CategoryLabels},
	}
	for i, w := range want {
		if items[i] != w {
			t.Errorf("item %d = %+v, want %+v", i, items[i], w)
		}
	}
}

func TestUpsertReplacesHold(t *testing.T) {
	ctx := context.Background()
	m := reservation.NewManager(store.NewMemory())

	first := []models.ReservationItem{{ItemName: "Resin", Quantity: 10, Category: models.CategoryRawMaterials}}
	if err := m.Upsert(ctx, "REQ-1", first, models.ReservationReserved); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second := []models.ReservationItem{{ItemName: "Resin", Quantity: 4, Category: models.CategoryRawMaterials}}
	if err := m.Upsert(ctx, "REQ-1", second, models.ReservationReserved); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	res, ok, err := m.Get(ctx, "REQ-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(res.Items) != 1 || res.Items[0].Quantity != 4 {
		t.Errorf("reservation accumulated instead of replacing: %+v", res.Items)
	}
}

func TestSetStatusMissingIsIgnored(t *testing.T) {
	m := reservation.NewManager(store.NewMemory())
	if err := m.SetStatus(context.Background(), "REQ-missing", models.ReservationReleased); err != nil {
		t.Fatalf("SetStatus on missing reservation: %v", err)
	}
}

func TestReservedTotals(t *testing.T) {
	ctx := context.Background()
	m := reservation.NewManager(store.NewMemory())

	seed := func(id string, status string, items ...models.ReservationItem) {
		t.Helper()
		if err := m.Upsert(ctx, id, items, status); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("REQ-1", models.ReservationReserved,
		models.ReservationItem{ItemID: "RM-1", ItemName: "Resin", Quantity: 10, Category: models.CategoryRawMaterials},
		models.ReservationItem{ItemName: "Label A", Quantity: 5, Category: models.CategoryLabels})
	seed("REQ-2", models.ReservationReserved,
		models.ReservationItem{ItemID: "RM-1", ItemName: "Resin", Quantity: 7, Category: models.CategoryRawMaterials})
	seed("REQ-3", models.ReservationConsumed,
		models.ReservationItem{ItemID: "RM-1", ItemName: "Resin", Quantity: 99, Category: models.CategoryRawMaterials})
	seed("REQ-4", models.ReservationReleased,
		models.ReservationItem{ItemID: "PM-1", ItemName: "Bottle 1L", Quantity: 50, Category: models.CategoryPackingMaterials})

	totals, err := m.ReservedTotals(ctx)
	if err != nil {
		t.Fatalf("ReservedTotals: %v", err)
	}
	if len(totals.RawMaterials) != 1 || totals.RawMaterials[0].Quantity != 17 {
		t.Errorf("rawMaterials = %+v, want single RM-1 total 17", totals.RawMaterials)
	}
	if totals.RawMaterials[0].ItemID != "RM-1" {
		t.Errorf("rawMaterials keyed by %q, want id RM-1", totals.RawMaterials[0].ItemID)
	}
	if len(totals.Labels) != 1 || totals.Labels[0].Quantity != 5 {
		t.Errorf("labels = %+v, want Label A total 5", totals.Labels)
	}
	// Consumed and released records never count.
	if len(totals.PackingMaterials) != 0 {
		t.Errorf("packingMaterials = %+v, want empty", totals.PackingMaterials)
	}
}

func TestExpiredReserved(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := reservation.NewManager(s)

	seed := func(id, status string, age time.Duration) {
		t.Helper()
		if err := m.Upsert(ctx, id, nil, status); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
		err := s.Update(ctx, store.ColReservations, id, map[string]any{
			"updatedAt": time.Now().UTC().Add(-age),
		})
		if err != nil {
			t.Fatalf("age %s: %v", id, err)
		}
	}
	seed("REQ-old", models.ReservationReserved, 49*time.Hour)
	seed("REQ-fresh", models.ReservationReserved, 47*time.Hour)
	seed("REQ-consumed", models.ReservationConsumed, 100*time.Hour)

	cutoff := time.Now().UTC().Add(-48 * time.Hour)
	expired, err := m.ExpiredReserved(ctx, cutoff)
	if err != nil {
		t.Fatalf("ExpiredReserved: %v", err)
	}
	if len(expired) != 1 || expired[0].RequestID != "REQ-old" {
		t.Errorf("expired = %+v, want only REQ-old", expired)
	}
}
