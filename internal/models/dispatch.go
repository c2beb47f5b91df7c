package models

import "time"

// Dispatch statuses.
const (
	DispatchPendingApproval = "PENDING_APPROVAL"
	DispatchApproved        = "APPROVED"
)

// Dispatch is a request to release produced goods, created only for PRODUCED
// requisitions and requiring a separate manager approval.
type Dispatch struct {
	DispatchID    string     `bson:"dispatchId" json:"dispatchId"`
	RequestID     string     `bson:"requestId" json:"requestId"`
	BatchID       string     `bson:"batchId,omitempty" json:"batchId,omitempty"`
	ProductName   string     `bson:"productName" json:"productName"`
	Quantity      float64    `bson:"quantity" json:"quantity"`
	Unit          string     `bson:"unit" json:"unit"`
	Status        string     `bson:"status" json:"status"`
	RequestedBy   string     `bson:"requestedBy" json:"requestedBy"`
	RequestedAt   time.Time  `bson:"requestedAt" json:"requestedAt"`
	ApprovedBy    string     `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	MainInvSynced bool       `bson:"mainInvSynced" json:"mainInvSynced"`
	Remarks       string     `bson:"remarks,omitempty" json:"remarks,omitempty"`
}
