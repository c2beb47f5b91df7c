package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

// DocID is the key of the single versioned ledger document.
const DocID = "latest"

// ErrNoInventory is returned when the ledger document is missing, so callers
// can refuse a deduction without touching the requisition.
var ErrNoInventory = errors.New("no inventory data, add stock in main inventory first")

// ConflictError rejects a save whose base version is stale. The caller must
// re-fetch at ServerVersion and retry.
type ConflictError struct {
	ServerVersion string
}

func (e *ConflictError) Error() string {
	return "inventory was changed by someone else, refresh to get the latest and try again"
}

// Shortfall records a line item the deduction could not fully satisfy.
type Shortfall struct {
	ItemID   string
	ItemName string
	Missing  float64
}

// DeductResult reports a completed deduction.
type DeductResult struct {
	Version    string
	Shortfalls []Shortfall
	Deducted   int
}

// Ledger owns the single inventory document and its optimistic-concurrency
// save. It never caches: every operation round-trips the store.
type Ledger struct {
	Store store.Store
}

func NewLedger(s store.Store) *Ledger {
	return &Ledger{Store: s}
}

// Load fetches the current ledger document. The bool reports existence.
func (l *Ledger) Load(ctx context.Context) (*models.InventoryDocument, bool, error) {
	var doc models.InventoryDocument
	ok, err := l.Store.Get(ctx, store.ColInventory, DocID, &doc)
	if err != nil {
		return nil, false, fmt.Errorf("load inventory: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &doc, true, nil
}

// Save persists data as the new ledger state. When baseVersion is non-empty it
// must match the stored version or the save fails with *ConflictError; an
// empty baseVersion writes unconditionally (last writer wins, used only for
// non-contended imports). Returns the new version token.
func (l *Ledger) Save(ctx context.Context, data models.InventoryData, baseVersion string) (string, error) {
	current, exists, err := l.Load(ctx)
	if err != nil {
		return "", err
	}
	prev := ""
	if exists {
		prev = current.LatestID
	}
	if baseVersion != "" && exists && prev != "" && prev != baseVersion {
		return "", &ConflictError{ServerVersion: prev}
	}
	version := nextVersion(prev)
	doc := models.InventoryDocument{
		Data:       data,
		LatestID:   version,
		ExportedAt: time.Now().UTC(),
	}
	if err := l.Store.Set(ctx, store.ColInventory, DocID, doc, false); err != nil {
		return "", fmt.Errorf("save inventory: %w", err)
	}
	return version, nil
}

// nextVersion derives a strictly monotonic version token. Wall-clock
// milliseconds are the base, but the token always advances past the previous
// one so writes within the same millisecond cannot collide.
func nextVersion(prev string) string {
	next := time.Now().UnixMilli()
	if p, err := strconv.ParseInt(prev, 10, 64); err == nil && p >= next {
		next = p + 1
	}
	return strconv.FormatInt(next, 10)
}

// DeductForRequisition subtracts the reserved quantities of a requisition from
// the ledger. Items match by id first, then by name, within their category;
// each deduction floors the stored quantity at 0 and any unmet remainder is
// reported as a shortfall without blocking the rest. One transaction record is
// appended per deducted item. The mutated copy is saved against the version
// read at the start; a concurrent writer surfaces as *ConflictError and the
// stored document is left untouched.
func (l *Ledger) DeductForRequisition(ctx context.Context, requestID string, items []models.ReservationItem) (*DeductResult, error) {
	doc, exists, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoInventory
	}
	baseVersion := doc.LatestID
	data := doc.Data

	now := time.Now().UTC()
	txDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	result := &DeductResult{}

	for i, entry := range items {
		category := entry.Category
		if category == "" {
			category = models.CategoryRawMaterials
		}
		arr := data.Category(category)
		remaining := deductFromCategory(*arr, entry.ItemID, entry.ItemName, entry.Quantity)
		if remaining > 0 {
			name := entry.ItemName
			if name == "" {
				name = entry.ItemID
			}
			result.Shortfalls = append(result.Shortfalls, Shortfall{
				ItemID:   entry.ItemID,
				ItemName: name,
				Missing:  remaining,
			})
		}
		deducted := entry.Quantity - remaining
		if deducted > 0 {
			result.Deducted++
			data.Transactions = append(data.Transactions, models.InventoryTransaction{
				ID:        fmt.Sprintf("%d-%d", now.UnixMilli(), i),
				ItemID:    firstNonEmpty(entry.ItemID, entry.ItemName),
				ItemName:  firstNonEmpty(entry.ItemName, entry.ItemID),
				Category:  category,
				Type:      models.TxTypeRequisitionIssue,
				Quantity:  -deducted,
				Date:      txDate,
				RequestID: requestID,
			})
		}
	}

	version, err := l.Save(ctx, data, baseVersion)
	if err != nil {
		return nil, err
	}
	result.Version = version
	return result, nil
}

// deductFromCategory walks the category entries, subtracting from every match
// until the requested quantity is satisfied, and returns what is still unmet.
func deductFromCategory(items []models.InventoryItem, itemID, itemName string, qty float64) float64 {
	remaining := qty
	for i := range items {
		if remaining <= 0 {
			break
		}
		item := &items[i]
		match := (itemID != "" && item.ID == itemID) ||
			(itemName != "" && item.Name == itemName)
		if !match {
			continue
		}
		deduct := remaining
		if item.Quantity < deduct {
			deduct = item.Quantity
		}
		item.Quantity -= deduct
		if item.Quantity < 0 {
			item.Quantity = 0
		}
		remaining -= deduct
	}
	return remaining
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
