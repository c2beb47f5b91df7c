package models

import "time"

// Reservation statuses.
const (
	ReservationReserved = "reserved"
	ReservationConsumed = "consumed"
	ReservationReleased = "released"
)

// ReservationItem is one soft-held quantity derived from a requisition line item.
type ReservationItem struct {
	ItemID   string  `bson:"itemId,omitempty" json:"itemId,omitempty"`
	ItemName string  `bson:"itemName" json:"itemName"`
	Quantity float64 `bson:"quantity" json:"quantity"`
	Category string  `bson:"category" json:"category"`
}

// Reservation is the per-requisition hold record, keyed 1:1 by requisition id.
// Upserts replace the document, so at most one reservation ever claims an id.
type Reservation struct {
	RequestID string            `bson:"requestId" json:"requestId"`
	Status    string            `bson:"status" json:"status"`
	Items     []ReservationItem `bson:"items" json:"items"`
	UpdatedAt time.Time         `bson:"updatedAt" json:"updatedAt"`
}
