package backend

import (
	"context"
	"strings"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

// saveWIPBatch upserts a production batch and links it onto its requisition.
func (b *Backend) saveWIPBatch(ctx context.Context, p Params) (Result, error) {
	batchID := p.str("batchId", "batchNo", "id")
	if batchID == "" {
		return nil, validationf("batchId or batchNo required")
	}
	linkedReqID := p.str("linkedReqId", "requestId", "reqId")
	status := strings.ToLower(p.str("status"))
	if status == "" {
		status = models.BatchStarted
	}
	batch := models.WIPBatch{
		BatchID:     batchID,
		LinkedReqID: linkedReqID,
		Status:      status,
		ProductName: p.str("productName", "itemName"),
		TargetQty:   p.numOr(0, "targetQty"),
		Unit:        p.str("unit"),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := b.Store.Set(ctx, store.ColWIPBatches, batchID, batch, true); err != nil {
		return nil, err
	}
	if linkedReqID != "" {
		var req models.Requisition
		exists, err := b.Store.Get(ctx, store.ColRequisitions, linkedReqID, &req)
		if err != nil {
			return nil, err
		}
		if exists {
			fields := map[string]any{
				"batchId":    batchID,
				"stageLabel": models.StageManufacturingWIP,
			}
			if err := b.Store.Update(ctx, store.ColRequisitions, linkedReqID, fields); err != nil {
				return nil, err
			}
		}
	}
	return Result{"message": "WIP batch saved", "batchId": batchID}, nil
}

// syncWIPToReq propagates a batch status change onto the linked requisition.
// Completing a batch marks the requisition PRODUCED and ready for dispatch.
func (b *Backend) syncWIPToReq(ctx context.Context, p Params) (Result, error) {
	batchID := p.str("batchId", "batchNo")
	if batchID == "" {
		return nil, validationf("batchId required")
	}
	status := strings.ToLower(p.str("status"))
	if status == "" {
		status = models.BatchPaused
	}
	reason := p.str("reason")

	var batch models.WIPBatch
	exists, err := b.Store.Get(ctx, store.ColWIPBatches, batchID, &batch)
	if err != nil {
		return nil, err
	}
	if !exists {
		return Result{"message": "Batch not found or already synced"}, nil
	}
	fields := map[string]any{"status": status, "updatedAt": time.Now().UTC()}
	if reason != "" {
		fields["reason"] = reason
	}
	if err := b.Store.Update(ctx, store.ColWIPBatches, batchID, fields); err != nil {
		return nil, err
	}

	if batch.LinkedReqID == "" {
		return Result{"message": "Synced"}, nil
	}
	unlock := b.locks.Lock(batch.LinkedReqID)
	defer unlock()
	var req models.Requisition
	exists, err = b.Store.Get(ctx, store.ColRequisitions, batch.LinkedReqID, &req)
	if err != nil {
		return nil, err
	}
	if !exists {
		return Result{"message": "Synced"}, nil
	}
	actor := firstOf(p.str("userEmail", "email"), "WIP sync")
	payload := map[string]any{
		"requestId":      batch.LinkedReqID,
		"requesterEmail": strings.TrimSpace(req.RequesterEmail),
		"requesterName":  strings.TrimSpace(req.RequesterName),
		"productName":    req.ProductName,
		"quantity":       req.RequestedQty,
		"unit":           req.Unit,
	}
	switch status {
	case models.BatchCompleted:
		reqFields := map[string]any{
			"status":     models.StatusProduced,
			"stageLabel": models.StageAwaitingDispatch,
			"producedAt": time.Now().UTC(),
		}
		if err := b.Store.Update(ctx, store.ColRequisitions, batch.LinkedReqID, reqFields); err != nil {
			return nil, err
		}
		payload["completedBy"] = actor
		b.publish(ctx, "production_completed", payload)
	case models.BatchPaused:
		payload["pausedBy"] = actor
		payload["reason"] = reason
		b.publish(ctx, "production_paused", payload)
	}
	return Result{"message": "Synced"}, nil
}

func (b *Backend) getWIPBatches(ctx context.Context, p Params) (Result, error) {
	var batches []models.WIPBatch
	if err := b.Store.ScanAll(ctx, store.ColWIPBatches, &batches); err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []models.WIPBatch{}
	}
	return Result{"batches": batches}, nil
}

func (b *Backend) getPendingProduction(ctx context.Context, p Params) (Result, error) {
	var batches []models.WIPBatch
	if err := b.Store.ScanAll(ctx, store.ColWIPBatches, &batches); err != nil {
		return nil, err
	}
	pending := []models.WIPBatch{}
	for _, batch := range batches {
		if batch.Status != models.BatchCompleted {
			pending = append(pending, batch)
		}
	}
	return Result{"pending": pending}, nil
}

// wipActionRequisition pauses, completes or cancels production directly on the
// requisition and mirrors the change onto the linked batch.
func (b *Backend) wipActionRequisition(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	action := strings.ToUpper(p.str("wipAction"))
	reason := p.str("reason")
	userEmail := strings.ToLower(p.str("email"))
	if id == "" {
		return nil, validationf("request id required")
	}
	unlock := b.locks.Lock(id)
	defer unlock()

	req, err := b.getRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if models.Terminal(req.Status) {
		return nil, validationf("request is already finalized")
	}
	payload := map[string]any{
		"requestId":      id,
		"requesterEmail": strings.TrimSpace(req.RequesterEmail),
		"requesterName":  strings.TrimSpace(req.RequesterName),
		"productName":    req.ProductName,
		"quantity":       req.RequestedQty,
		"unit":           req.Unit,
	}
	fields := map[string]any{}
	var batchStatus string
	switch action {
	case "PAUSE":
		fields["status"] = models.StatusPaused
		fields["stageLabel"] = models.StagePaused
		batchStatus = models.BatchPaused
		payload["pausedBy"] = userEmail
		payload["reason"] = reason
		b.publish(ctx, "production_paused", payload)
	case "COMPLETE":
		fields["status"] = models.StatusCompleted
		fields["stageLabel"] = models.StageProductionCompleted
		batchStatus = models.BatchCompleted
		payload["completedBy"] = userEmail
		b.publish(ctx, "production_completed", payload)
	case "CANCEL":
		fields["status"] = models.StatusCancelled
		fields["stageLabel"] = models.StageCancelled
		batchStatus = models.BatchCancelled
		payload["cancelledBy"] = userEmail
		payload["reason"] = reason
		b.publish(ctx, "production_cancelled", payload)
	default:
		return nil, validationf("invalid wipAction: use PAUSE, COMPLETE, or CANCEL")
	}
	if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
		return nil, err
	}
	if req.BatchID != "" {
		var batch models.WIPBatch
		exists, err := b.Store.Get(ctx, store.ColWIPBatches, req.BatchID, &batch)
		if err != nil {
			return nil, err
		}
		if exists {
			batchFields := map[string]any{"status": batchStatus, "updatedAt": time.Now().UTC()}
			if err := b.Store.Update(ctx, store.ColWIPBatches, req.BatchID, batchFields); err != nil {
				return nil, err
			}
		}
	}
	return Result{}, nil
}
