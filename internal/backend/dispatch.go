package backend

import (
	"context"
	"fmt"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

// requestDispatch opens a dispatch approval for a produced batch. Only
// requisitions in PRODUCED status qualify.
func (b *Backend) requestDispatch(ctx context.Context, p Params) (Result, error) {
	requestID := p.str("requestId", "id")
	productName := p.str("productName")
	qty := p.numOr(0, "quantity", "qty")
	if requestID == "" || productName == "" || qty <= 0 {
		return nil, validationf("request id, product name and quantity required")
	}
	req, err := b.getRequisition(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusProduced {
		return nil, validationf("only produced batches can be dispatched")
	}
	unit := firstOf(p.str("unit"), req.Unit)
	requestedBy := firstOf(p.str("user"), "Store")
	dispatch := models.Dispatch{
		DispatchID:  fmt.Sprintf("DSP-%d", time.Now().UnixMilli()),
		RequestID:   requestID,
		BatchID:     req.BatchID,
		ProductName: productName,
		Quantity:    qty,
		Unit:        unit,
		Status:      models.DispatchPendingApproval,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
		Remarks:     p.str("remarks"),
	}
	if err := b.Store.Set(ctx, store.ColDispatches, dispatch.DispatchID, dispatch, false); err != nil {
		return nil, err
	}
	b.publish(ctx, "dispatch_approval_required", map[string]any{
		"dispatchId":  dispatch.DispatchID,
		"requestId":   requestID,
		"productName": productName,
		"quantity":    qty,
		"unit":        unit,
		"requestedBy": requestedBy,
	})
	return Result{
		"dispatchId": dispatch.DispatchID,
		"message":    "Dispatch request submitted for manager approval",
	}, nil
}

// approveDispatch finalizes a pending dispatch. Re-approving is refused so the
// stock sync cannot run twice.
func (b *Backend) approveDispatch(ctx context.Context, p Params) (Result, error) {
	dispatchID := p.str("dispatchId", "id")
	if dispatchID == "" {
		return nil, validationf("dispatch id required")
	}
	approver := adminIdentifier(p)
	if !b.hasRole(ctx, approver, "manager", "admin") {
		return nil, permissionf("only manager or admin can approve dispatch")
	}
	var dispatch models.Dispatch
	exists, err := b.Store.Get(ctx, store.ColDispatches, dispatchID, &dispatch)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFoundf("dispatch not found")
	}
	if dispatch.Status == models.DispatchApproved {
		return nil, validationf("dispatch already approved")
	}
	approvedBy := firstOf(p.str("user"), "Manager")
	now := time.Now().UTC()
	fields := map[string]any{
		"status":        models.DispatchApproved,
		"approvedBy":    approvedBy,
		"approvedAt":    now,
		"mainInvSynced": true,
	}
	if err := b.Store.Update(ctx, store.ColDispatches, dispatchID, fields); err != nil {
		return nil, err
	}

	requesterEmail := ""
	if dispatch.RequestID != "" {
		var req models.Requisition
		reqExists, err := b.Store.Get(ctx, store.ColRequisitions, dispatch.RequestID, &req)
		if err == nil && reqExists {
			requesterEmail = req.RequesterEmail
		}
	}
	b.publish(ctx, "dispatch_approved", map[string]any{
		"requestId":      dispatch.RequestID,
		"requesterEmail": requesterEmail,
		"productName":    dispatch.ProductName,
		"quantity":       dispatch.Quantity,
		"unit":           dispatch.Unit,
		"approvedBy":     approvedBy,
	})
	b.audit(ctx, "dispatch_approved", approver, map[string]any{
		"dispatchId": dispatchID,
		"requestId":  dispatch.RequestID,
	})
	return Result{"message": "Dispatch approved"}, nil
}

func (b *Backend) getPendingDispatchApprovals(ctx context.Context, p Params) (Result, error) {
	var all []models.Dispatch
	if err := b.Store.ScanAll(ctx, store.ColDispatches, &all); err != nil {
		return nil, err
	}
	pending := []models.Dispatch{}
	for _, d := range all {
		if d.Status == models.DispatchPendingApproval {
			pending = append(pending, d)
		}
	}
	return Result{"data": pending}, nil
}

func (b *Backend) getDispatchesForRequest(ctx context.Context, p Params) (Result, error) {
	requestID := p.str("requestId")
	var list []models.Dispatch
	if err := b.Store.QueryEqual(ctx, store.ColDispatches, "requestId", requestID, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Dispatch{}
	}
	return Result{"dispatches": list}, nil
}
