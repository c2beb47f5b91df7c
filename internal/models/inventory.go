package models

import "time"

// Inventory categories. Requisition line items map onto the first three.
const (
	CategoryRawMaterials     = "rawMaterials"
	CategoryPackingMaterials = "packingMaterials"
	CategoryLabels           = "labels"
	CategoryFinishedGoods    = "finishedGoods"
)

// InventoryItem is one stocked entry inside a category array.
type InventoryItem struct {
	ID       string  `bson:"id,omitempty" json:"id,omitempty"`
	Name     string  `bson:"name" json:"name"`
	Quantity float64 `bson:"quantity" json:"quantity"`
	Unit     string  `bson:"unit,omitempty" json:"unit,omitempty"`
}

// InventoryTransaction is one append-only ledger log entry. Deductions carry a
// negative quantity.
type InventoryTransaction struct {
	ID        string    `bson:"id" json:"id"`
	ItemID    string    `bson:"itemId" json:"itemId"`
	ItemName  string    `bson:"itemName" json:"itemName"`
	Category  string    `bson:"category" json:"category"`
	Type      string    `bson:"type" json:"type"`
	Quantity  float64   `bson:"quantity" json:"quantity"`
	Date      time.Time `bson:"date" json:"date"`
	RequestID string    `bson:"requestId,omitempty" json:"requestId,omitempty"`
}

// TxTypeRequisitionIssue marks ledger entries written by the issue deduction.
const TxTypeRequisitionIssue = "requisition-issue"

// InventoryData is the nested payload of the single ledger document.
type InventoryData struct {
	RawMaterials     []InventoryItem        `bson:"rawMaterials" json:"rawMaterials"`
	PackingMaterials []InventoryItem        `bson:"packingMaterials" json:"packingMaterials"`
	Labels           []InventoryItem        `bson:"labels" json:"labels"`
	FinishedGoods    []InventoryItem        `bson:"finishedGoods" json:"finishedGoods"`
	Transactions     []InventoryTransaction `bson:"transactions" json:"transactions"`
}

// Category returns the item slice for a category name, defaulting to raw
// materials for unknown names.
func (d *InventoryData) Category(name string) *[]InventoryItem {
	switch name {
	case CategoryPackingMaterials:
		return &d.PackingMaterials
	case CategoryLabels:
		return &d.Labels
	case CategoryFinishedGoods:
		return &d.FinishedGoods
	default:
		return &d.RawMaterials
	}
}

// InventoryDocument is the single versioned ledger row. Every conditional
// write presents LatestID as its base version.
type InventoryDocument struct {
	Data       InventoryData `bson:"data" json:"data"`
	LatestID   string        `bson:"latestId" json:"latestId"`
	ExportedAt time.Time     `bson:"exportedAt" json:"exportedAt"`
}
