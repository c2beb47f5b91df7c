package models

import "time"

// FormulaRequest is a standalone request for a new product formula.
type FormulaRequest struct {
	ID             string     `bson:"id" json:"id"`
	Email          string     `bson:"email" json:"email"`
	Name           string     `bson:"name" json:"name"`
	FormulaBasis   string     `bson:"formulaBasis" json:"formulaBasis"`
	FormulaDetails string     `bson:"formulaDetails" json:"formulaDetails"`
	Status         string     `bson:"status" json:"status"` // Pending | Added | Rejected
	ResolvedBy     string     `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	Notes          string     `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	ResolvedAt     *time.Time `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// ThreadNote is one entry in a requisition's discussion thread.
type ThreadNote struct {
	RequestID string    `bson:"requestId" json:"requestId"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Actor     string    `bson:"actor" json:"actor"`
	Action    string    `bson:"action" json:"action"`
	User      string    `bson:"user" json:"user"`
	Remarks   string    `bson:"remarks" json:"remarks"`
}

// StockAdjustment asks the store to correct a counted quantity.
type StockAdjustment struct {
	RequestID     string     `bson:"requestId" json:"requestId"`
	RequisitionID string     `bson:"requisitionId,omitempty" json:"requisitionId,omitempty"`
	ItemID        string     `bson:"itemId,omitempty" json:"itemId,omitempty"`
	ItemName      string     `bson:"itemName" json:"itemName"`
	Quantity      float64    `bson:"quantity" json:"quantity"`
	Unit          string     `bson:"unit,omitempty" json:"unit,omitempty"`
	Status        string     `bson:"status" json:"status"` // Pending | Done
	RequestedBy   string     `bson:"requestedBy" json:"requestedBy"`
	RequestedAt   time.Time  `bson:"requestedAt" json:"requestedAt"`
	DoneBy        string     `bson:"doneBy,omitempty" json:"doneBy,omitempty"`
	DoneAt        *time.Time `bson:"doneAt,omitempty" json:"doneAt,omitempty"`
}

// AuditEntry is one append-only audit trail record.
type AuditEntry struct {
	Action    string         `bson:"action" json:"action"`
	User      string         `bson:"user" json:"user"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Details   map[string]any `bson:"details" json:"details"`
}

// QueuedNotification is one pending entry in the notification queue; an
// external consumer marks it sent.
type QueuedNotification struct {
	Type      string         `bson:"type" json:"type"`
	CreatedAt time.Time      `bson:"createdAt" json:"createdAt"`
	Sent      bool           `bson:"sent" json:"sent"`
	Data      map[string]any `bson:"data" json:"data"`
}

// ConsumedSlip records materials marked used on the floor.
type ConsumedSlip struct {
	ID         string     `bson:"id" json:"id"`
	Items      []LineItem `bson:"items" json:"items"`
	Context    string     `bson:"context,omitempty" json:"context,omitempty"`
	ConsumedAt time.Time  `bson:"consumedAt" json:"consumedAt"`
}
