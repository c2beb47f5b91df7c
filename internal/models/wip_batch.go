package models

import "time"

// WIP batch statuses.
const (
	BatchStarted   = "started"
	BatchPaused    = "paused"
	BatchCompleted = "completed"
	BatchCancelled = "cancelled"
)

// WIPBatch tracks production for a requisition during manufacturing. Its
// status mirrors, and is mirrored by, the linked requisition's production
// actions.
type WIPBatch struct {
	BatchID     string    `bson:"batchId" json:"batchId"`
	LinkedReqID string    `bson:"linkedReqId,omitempty" json:"linkedReqId,omitempty"`
	Status      string    `bson:"status" json:"status"`
	ProductName string    `bson:"productName" json:"productName"`
	TargetQty   float64   `bson:"targetQty" json:"targetQty"`
	Unit        string    `bson:"unit,omitempty" json:"unit,omitempty"`
	Reason      string    `bson:"reason,omitempty" json:"reason,omitempty"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
