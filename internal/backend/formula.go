package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

// submitFormulaRequest files a request for a product formula that is not in
// the catalog yet.
func (b *Backend) submitFormulaRequest(ctx context.Context, p Params) (Result, error) {
	fr := models.FormulaRequest{
		ID:             fmt.Sprintf("FR-%d", time.Now().UnixMilli()),
		Email:          strings.ToLower(p.str("email")),
		Name:           p.str("name"),
		FormulaBasis:   p.str("formulaBasis"),
		FormulaDetails: p.str("formulaDetails"),
		Status:         "Pending",
		CreatedAt:      time.Now().UTC(),
	}
	if err := b.Store.Set(ctx, store.ColFormulaRequests, fr.ID, fr, false); err != nil {
		return nil, err
	}
	b.publish(ctx, "formula_request_submitted", map[string]any{
		"formulaRequestId": fr.ID,
		"requestedBy":      fr.Email,
		"requestedByName":  fr.Name,
		"formulaBasis":     fr.FormulaBasis,
	})
	return Result{"id": fr.ID}, nil
}

func (b *Backend) getFormulaRequests(ctx context.Context, p Params) (Result, error) {
	var all []models.FormulaRequest
	if err := b.Store.ScanAll(ctx, store.ColFormulaRequests, &all); err != nil {
		return nil, err
	}
	status := p.str("status")
	list := []models.FormulaRequest{}
	for _, fr := range all {
		if status != "" && !strings.EqualFold(fr.Status, status) {
			continue
		}
		list = append(list, fr)
	}
	return Result{"requests": list}, nil
}

func (b *Backend) updateFormulaRequestStatus(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	if id == "" {
		return nil, validationf("formula request id required")
	}
	var fr models.FormulaRequest
	exists, err := b.Store.Get(ctx, store.ColFormulaRequests, id, &fr)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFoundf("request not found")
	}
	status := p.str("status")
	if status == "" {
		status = "Added"
	}
	resolvedBy := p.str("user")
	fields := map[string]any{
		"status":     status,
		"resolvedBy": resolvedBy,
		"notes":      p.str("notes"),
		"resolvedAt": time.Now().UTC(),
	}
	if err := b.Store.Update(ctx, store.ColFormulaRequests, id, fields); err != nil {
		return nil, err
	}
	b.publish(ctx, "formula_request_resolved", map[string]any{
		"formulaRequestId": id,
		"status":           status,
		"resolvedBy":       resolvedBy,
		"requestedBy":      fr.Email,
	})
	return Result{}, nil
}

func (b *Backend) submitStockAdjustment(ctx context.Context, p Params) (Result, error) {
	adj := models.StockAdjustment{
		RequestID:     fmt.Sprintf("SAR-%d", time.Now().UnixMilli()),
		RequisitionID: p.str("requisitionId"),
		ItemID:        p.str("itemId"),
		ItemName:      p.str("itemName"),
		Quantity:      p.numOr(0, "quantity"),
		Unit:          p.str("unit"),
		Status:        "Pending",
		RequestedBy:   p.str("user"),
		RequestedAt:   time.Now().UTC(),
	}
	if err := b.Store.Set(ctx, store.ColStockAdjustments, adj.RequestID, adj, false); err != nil {
		return nil, err
	}
	return Result{"message": "Request submitted"}, nil
}

func (b *Backend) getStockAdjustments(ctx context.Context, p Params) (Result, error) {
	var all []models.StockAdjustment
	if err := b.Store.ScanAll(ctx, store.ColStockAdjustments, &all); err != nil {
		return nil, err
	}
	status := p.str("status")
	list := []models.StockAdjustment{}
	for _, adj := range all {
		if status != "" && !strings.EqualFold(adj.Status, status) {
			continue
		}
		list = append(list, adj)
	}
	return Result{"requests": list}, nil
}

func (b *Backend) markStockAdjustmentDone(ctx context.Context, p Params) (Result, error) {
	id := p.str("requestId")
	if id == "" {
		return nil, validationf("requestId required")
	}
	var adj models.StockAdjustment
	exists, err := b.Store.Get(ctx, store.ColStockAdjustments, id, &adj)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFoundf("adjustment request not found")
	}
	fields := map[string]any{
		"status": "Done",
		"doneBy": p.str("doneBy"),
		"doneAt": time.Now().UTC(),
	}
	if err := b.Store.Update(ctx, store.ColStockAdjustments, id, fields); err != nil {
		return nil, err
	}
	return Result{}, nil
}

// Legacy endpoints kept for older clients. They acknowledge without touching
// the ledger.
func (b *Backend) notifyStockArrival(ctx context.Context, p Params) (Result, error) {
	return Result{"requestCount": 0}, nil
}

func (b *Backend) consumeRequisitionMaterial(ctx context.Context, p Params) (Result, error) {
	if p.str("reqId") == "" || p.str("itemName") == "" {
		return nil, validationf("reqId and itemName required")
	}
	return Result{"message": "Recorded", "remaining": 0}, nil
}

// markUsed stores the consumed slip for traceability. A missing id is accepted
// silently.
func (b *Backend) markUsed(ctx context.Context, p Params) (Result, error) {
	id := p.str("id", "slipId")
	if id == "" {
		return Result{}, nil
	}
	slip := models.ConsumedSlip{
		ID:         id,
		Items:      models.ParseLineItems(p["items"]),
		Context:    p.str("context"),
		ConsumedAt: time.Now().UTC(),
	}
	if err := b.Store.Set(ctx, store.ColConsumedSlips, id, slip, false); err != nil {
		return nil, err
	}
	return Result{}, nil
}
