package store

import (
	"context"
	"strings"
)

// Collection names used across the backend.
const (
	ColUsers             = "users"
	ColRequisitions      = "requisitions"
	ColReservations      = "requisition_reservations"
	ColInventory         = "inventory"
	ColWIPBatches        = "wip_batches"
	ColDispatches        = "requisition_dispatches"
	ColFormulaRequests   = "formula_requests"
	ColRequestThreads    = "request_threads"
	ColStockAdjustments  = "stock_adjustment_requests"
	ColAuditLog          = "audit_log"
	ColNotificationQueue = "notification_queue"
	ColConsumedSlips     = "consumed_slips"
	ColMaterialQueue     = "material_requisition_queue"
)

// Store is a uniform interface over a document collection store. Both the Mongo
// implementation and the in-memory one used by tests satisfy it, so every
// component above this package is storage-agnostic.
//
// Document keys must not contain the path separator; FoldKey is applied by the
// implementations before use. The original human-readable identifier is kept
// inside the document body by the callers that need to recover it.
type Store interface {
	// Get decodes the document into out and reports whether it exists.
	Get(ctx context.Context, collection, id string, out any) (bool, error)
	// Set writes the document, replacing it, or merging top-level fields when merge is true.
	Set(ctx context.Context, collection, id string, value any, merge bool) error
	// Update sets the given top-level fields on an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// Add writes the document under a generated key and returns that key.
	Add(ctx context.Context, collection string, value any) (string, error)
	// QueryEqual decodes all documents whose field equals value into out (a pointer to a slice).
	QueryEqual(ctx context.Context, collection, field string, value any, out any) error
	// ScanAll decodes every document in the collection into out (a pointer to a slice).
	ScanAll(ctx context.Context, collection string, out any) error
}

// FoldKey substitutes path separators so an identifier is usable as a document
// key. The substitution is one-way.
func FoldKey(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}
