package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Requisition statuses. Status is a closed enum and is the only field control
// flow may branch on; StageLabel is a display hint.
const (
	StatusSubmitted             = "SUBMITTED"
	StatusOnHold                = "ON_HOLD"
	StatusCorrectionRequired    = "CORRECTION_REQUIRED"
	StatusApproved              = "APPROVED"
	StatusIssuedPendingApproval = "ISSUED_PENDING_APPROVAL"
	StatusPartiallyIssued       = "PARTIALLY_ISSUED"
	StatusIssued                = "ISSUED"
	StatusPaused                = "PAUSED"
	StatusProduced              = "PRODUCED"
	StatusRejected              = "REJECTED"
	StatusCancelled             = "CANCELLED"
	StatusCompleted             = "COMPLETED"
)

var knownStatuses = map[string]bool{
	StatusSubmitted:             true,
	StatusOnHold:                true,
	StatusCorrectionRequired:    true,
	StatusApproved:              true,
	StatusIssuedPendingApproval: true,
	StatusPartiallyIssued:       true,
	StatusIssued:                true,
	StatusPaused:                true,
	StatusProduced:              true,
	StatusRejected:              true,
	StatusCancelled:             true,
	StatusCompleted:             true,
}

// KnownStatus reports whether s belongs to the status enum. Documents carrying
// legacy labels outside the enum are listed as-is but refuse transitions.
func KnownStatus(s string) bool {
	return knownStatuses[s]
}

// Terminal reports whether no further transition is allowed from s.
func Terminal(s string) bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// StageLabel texts shown to users. Never branched on.
const (
	StagePendingManagerApproval = "Pending Manager Approval"
	StagePendingStoreAndManager = "Pending Store & Manager"
	StageAwaitingMaterialIssue  = "Awaiting Material Issue"
	StageStoreIssued            = "Awaiting Manager Approval (Store Issued)"
	StageMaterialIssuedWIP      = "Material Issued / WIP"
	StageManufacturingWIP       = "Manufacturing / WIP"
	StagePartiallyIssued        = "Partially Issued – remaining to issue"
	StageAwaitingReapproval     = "Awaiting Manager Re-approval"
	StageReservationExpired     = "Awaiting Material Issue (reservation expired – re-issue required)"
	StagePaused                 = "Paused"
	StageAwaitingDispatch       = "Awaiting Dispatch"
	StageProductionCompleted    = "Production Completed"
	StageRejected               = "Rejected"
	StageOnHold                 = "On Hold"
	StageCancelled              = "Cancelled"
	StageRefundRequested        = "Refund requested"
)

// LineItem is one requested material line (formula ingredient, packing item,
// label or additional item).
type LineItem struct {
	ItemID   string  `bson:"itemId,omitempty" json:"itemId,omitempty"`
	Name     string  `bson:"name" json:"name"`
	Quantity float64 `bson:"quantity" json:"quantity"`
	Unit     string  `bson:"unit,omitempty" json:"unit,omitempty"`
	Category string  `bson:"category,omitempty" json:"category,omitempty"`
}

// Requisition is the stored document. Client-facing rows use different field
// names (id, currentStage, quantity); the backend maps them explicitly.
type Requisition struct {
	RequestID        string           `bson:"requestId" json:"requestId"`
	Type             string           `bson:"type" json:"type"` // Production | Research | ...
	Status           string           `bson:"status" json:"status"`
	StageLabel       string           `bson:"stageLabel" json:"stageLabel"`
	RequesterEmail   string           `bson:"requesterEmail" json:"requesterEmail"`
	RequesterName    string           `bson:"requesterName" json:"requesterName"`
	ProductName      string           `bson:"productName" json:"productName"`
	RequestedQty     float64          `bson:"requestedQty" json:"requestedQty"`
	Unit             string           `bson:"unit" json:"unit"`
	Ingredients      []LineItem       `bson:"ingredients" json:"ingredients"`
	Packing          []LineItem       `bson:"packing" json:"packing"`
	Labels           []LineItem       `bson:"labels" json:"labels"`
	AdditionalItems  []LineItem       `bson:"additionalItems" json:"additionalItems"`
	Corrections      []map[string]any `bson:"corrections" json:"corrections"`
	ManagerEmail     string           `bson:"managerEmail" json:"managerEmail"`
	Notes            string           `bson:"notes" json:"notes"`
	BatchID          string           `bson:"batchId" json:"batchId"`
	PartialIssuedQty float64          `bson:"partialIssuedQty" json:"partialIssuedQty"`
	CreatedAt        time.Time        `bson:"createdAt" json:"createdAt"`
	IssuedAt         *time.Time       `bson:"issuedAt,omitempty" json:"issuedAt,omitempty"`
	ProducedAt       *time.Time       `bson:"producedAt,omitempty" json:"producedAt,omitempty"`
}

// ParseLineItems accepts the shapes clients send for a line-item list: a JSON
// string, a decoded array, or nothing. Unparseable input yields an empty list;
// quantities default to 0 on parse failure.
func ParseLineItems(v any) []LineItem {
	var entries []any
	switch items := v.(type) {
	case nil:
		return []LineItem{}
	case string:
		if items == "" {
			return []LineItem{}
		}
		if err := json.Unmarshal([]byte(items), &entries); err != nil {
			return []LineItem{}
		}
	case []any:
		entries = items
	case []LineItem:
		out := make([]LineItem, len(items))
		copy(out, items)
		return out
	default:
		return []LineItem{}
	}
	out := make([]LineItem, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		item := LineItem{
			ItemID:   firstString(m, "itemId", "id"),
			Name:     firstString(m, "name", "itemName"),
			Unit:     firstString(m, "unit"),
			Category: firstString(m, "category"),
			Quantity: firstFloat(m, "quantity", "qty"),
		}
		out = append(out, item)
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}
