package reservation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

// BuildItems flattens a requisition's formula, packing and label line items
// into reservation entries: ingredients as rawMaterials, packing items as
// packingMaterials, labels as labels. Additional items are not reserved.
func BuildItems(req *models.Requisition) []models.ReservationItem {
	out := make([]models.ReservationItem, 0, len(req.Ingredients)+len(req.Packing)+len(req.Labels))
	appendCategory := func(items []models.LineItem, category string) {
		for _, item := range items {
			out = append(out, models.ReservationItem{
				ItemID:   item.ItemID,
				ItemName: item.Name,
				Quantity: item.Quantity,
				Category: category,
			})
		}
	}
	appendCategory(req.Ingredients, models.CategoryRawMaterials)
	appendCategory(req.Packing, models.CategoryPackingMaterials)
	appendCategory(req.Labels, models.CategoryLabels)
	return out
}

// Totals groups aggregated reserved quantities per inventory category.
type Totals struct {
	RawMaterials     []models.ReservationItem `json:"rawMaterials"`
	PackingMaterials []models.ReservationItem `json:"packingMaterials"`
	Labels           []models.ReservationItem `json:"labels"`
}

// Manager maintains the per-requisition reservation records.
type Manager struct {
	Store store.Store
}

func NewManager(s store.Store) *Manager {
	return &Manager{Store: s}
}

// Upsert replaces the reservation document for a requisition. Replacement, not
// append: one requisition never accumulates multiple holds.
func (m *Manager) Upsert(ctx context.Context, requestID string, items []models.ReservationItem, status string) error {
	res := models.Reservation{
		RequestID: requestID,
		Status:    status,
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	}
	if err := m.Store.Set(ctx, store.ColReservations, requestID, res, false); err != nil {
		return fmt.Errorf("upsert reservation %s: %w", requestID, err)
	}
	return nil
}

// Get fetches the reservation for a requisition, if any.
func (m *Manager) Get(ctx context.Context, requestID string) (*models.Reservation, bool, error) {
	var res models.Reservation
	ok, err := m.Store.Get(ctx, store.ColReservations, requestID, &res)
	if err != nil || !ok {
		return nil, false, err
	}
	return &res, true, nil
}

// SetStatus moves an existing reservation to status and refreshes updatedAt.
// Missing reservations are ignored.
func (m *Manager) SetStatus(ctx context.Context, requestID, status string) error {
	_, ok, err := m.Get(ctx, requestID)
	if err != nil || !ok {
		return err
	}
	return m.Store.Update(ctx, store.ColReservations, requestID, map[string]any{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	})
}

// ReservedTotals scans every record still in the reserved state and sums
// quantities keyed by category and item id (falling back to name), for the
// availability display.
func (m *Manager) ReservedTotals(ctx context.Context) (*Totals, error) {
	var all []models.Reservation
	if err := m.Store.ScanAll(ctx, store.ColReservations, &all); err != nil {
		return nil, fmt.Errorf("scan reservations: %w", err)
	}
	type key struct {
		category string
		item     string
	}
	sums := make(map[key]float64)
	for _, res := range all {
		if res.Status != models.ReservationReserved {
			continue
		}
		for _, item := range res.Items {
			category := item.Category
			if category == "" {
				category = models.CategoryRawMaterials
			}
			name := item.ItemID
			if name == "" {
				name = item.ItemName
			}
			if name == "" {
				continue
			}
			sums[key{category, name}] += item.Quantity
		}
	}
	totals := &Totals{
		RawMaterials:     []models.ReservationItem{},
		PackingMaterials: []models.ReservationItem{},
		Labels:           []models.ReservationItem{},
	}
	keys := make([]key, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		return keys[i].item < keys[j].item
	})
	for _, k := range keys {
		entry := models.ReservationItem{
			ItemID:   k.item,
			ItemName: k.item,
			Quantity: sums[k],
			Category: k.category,
		}
		switch k.category {
		case models.CategoryPackingMaterials:
			totals.PackingMaterials = append(totals.PackingMaterials, entry)
		case models.CategoryLabels:
			totals.Labels = append(totals.Labels, entry)
		default:
			totals.RawMaterials = append(totals.RawMaterials, entry)
		}
	}
	return totals, nil
}

// ExpiredReserved returns reservations still reserved whose updatedAt is
// strictly older than cutoff.
func (m *Manager) ExpiredReserved(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	var all []models.Reservation
	if err := m.Store.ScanAll(ctx, store.ColReservations, &all); err != nil {
		return nil, fmt.Errorf("scan reservations: %w", err)
	}
	expired := make([]models.Reservation, 0)
	for _, res := range all {
		if res.Status != models.ReservationReserved {
			continue
		}
		if !res.UpdatedAt.Before(cutoff) {
			continue
		}
		expired = append(expired, res)
	}
	return expired, nil
}
