package backend

import (
	"context"
	"strings"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/reservation"
	"requisition-api-server/internal/store"
)

// updateRequestStage drives the issue flow. ISSUE supports both orderings:
// store issues before manager approval (materials go to a reservation until
// the manager decides) or after it (materials are deducted immediately).
func (b *Backend) updateRequestStage(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	if id == "" {
		return nil, validationf("request id required")
	}
	unlock := b.locks.Lock(id)
	defer unlock()

	req, err := b.getRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	stageAction := strings.ToUpper(p.str("stageAction"))
	if stageAction != "" && models.Terminal(req.Status) {
		return nil, validationf("request is already finalized")
	}

	fields := map[string]any{}
	newStatus := ""
	switch stageAction {
	case "ISSUE":
		if req.Status == models.StatusSubmitted {
			// Store issued first: hold materials until the manager approves.
			newStatus = models.StatusIssuedPendingApproval
			fields["status"] = newStatus
			fields["stageLabel"] = models.StageStoreIssued
			items := reservation.BuildItems(req)
			if err := b.Reservations.Upsert(ctx, id, items, models.ReservationReserved); err != nil {
				return nil, err
			}
		} else {
			// Manager already approved: deduct stock and move to WIP.
			if err := b.deductForRequisition(ctx, req); err != nil {
				return nil, err
			}
			newStatus = models.StatusIssued
			fields["status"] = newStatus
			fields["stageLabel"] = models.StageMaterialIssuedWIP
			fields["issuedAt"] = time.Now().UTC()
			if err := b.Reservations.SetStatus(ctx, id, models.ReservationConsumed); err != nil {
				return nil, err
			}
		}
	case "RECORD":
		newStatus = models.StatusIssued
		fields["status"] = newStatus
		fields["stageLabel"] = models.StageManufacturingWIP
	case "PARTIAL_ISSUE":
		partialQty, ok := p.num("partialQty")
		if !ok {
			return nil, validationf("partialQty required")
		}
		newStatus = models.StatusPartiallyIssued
		fields["partialIssuedQty"] = partialQty
		fields["status"] = newStatus
		fields["stageLabel"] = models.StagePartiallyIssued
	case "":
	default:
		return nil, validationf("invalid stageAction: %s", stageAction)
	}

	if stage := p.str("stage"); stage != "" {
		fields["stageLabel"] = stage
	}
	if status := strings.ToUpper(p.str("status")); status != "" {
		if !models.KnownStatus(status) {
			return nil, validationf("unknown status: %s", status)
		}
		fields["status"] = status
		newStatus = status
	}
	if len(fields) == 0 {
		return Result{"newStatus": ""}, nil
	}
	if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
		return nil, err
	}
	user := firstOf(p.str("user", "email"), "user")
	b.audit(ctx, "requisition_stage", user, map[string]any{
		"requestId":   id,
		"stageAction": firstOf(stageAction, p.str("stage")),
		"newStatus":   newStatus,
	})

	switch newStatus {
	case models.StatusIssued:
		b.publish(ctx, "materials_issued", map[string]any{
			"requestId":      id,
			"requesterEmail": strings.TrimSpace(req.RequesterEmail),
			"productName":    req.ProductName,
			"quantity":       req.RequestedQty,
			"unit":           req.Unit,
			"issuedBy":       firstOf(p.str("user", "email"), "Store"),
		})
	case models.StatusPartiallyIssued:
		b.publish(ctx, "partial_issued", map[string]any{
			"requestId":      id,
			"requesterEmail": strings.TrimSpace(req.RequesterEmail),
			"productName":    req.ProductName,
			"partialQty":     fields["partialIssuedQty"],
			"requestedQty":   req.RequestedQty,
			"unit":           req.Unit,
			"issuedBy":       firstOf(p.str("user", "email"), "Store"),
		})
	}
	return Result{"newStatus": newStatus}, nil
}

// deductForRequisition builds the material list from the requisition and
// applies it to the ledger, logging any shortfall per line.
func (b *Backend) deductForRequisition(ctx context.Context, req *models.Requisition) error {
	items := reservation.BuildItems(req)
	result, err := b.Ledger.DeductForRequisition(ctx, req.RequestID, items)
	if err != nil {
		return err
	}
	for _, s := range result.Shortfalls {
		b.audit(ctx, "requisition_issue_deduction_shortfall", "system", map[string]any{
			"requestId": req.RequestID,
			"itemName":  s.ItemName,
			"shortfall": s.Missing,
		})
	}
	b.audit(ctx, "requisition_issue_deduction", "system", map[string]any{
		"requestId": req.RequestID,
		"note":      "inventory deducted for issue",
	})
	return nil
}

func (b *Backend) approveRequest(ctx context.Context, p Params) (Result, error) {
	return b.actionRequest(ctx, p, "APPROVED")
}

func (b *Backend) rejectRequest(ctx context.Context, p Params) (Result, error) {
	return b.actionRequest(ctx, p, "REJECTED")
}

func (b *Backend) holdRequest(ctx context.Context, p Params) (Result, error) {
	return b.actionRequest(ctx, p, "ON_HOLD")
}

// actionRequest applies a manager decision. Approval of a store-issued request
// consumes the reservation and deducts stock; approval of a plain submission
// reserves stock until the store issues. Reject and hold release any
// outstanding reservation.
func (b *Backend) actionRequest(ctx context.Context, p Params, action string) (Result, error) {
	id := p.str("id")
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
	storeIssued := req.Status == models.StatusIssuedPendingApproval

	var status, stage string
	switch action {
	case "APPROVED":
		if storeIssued {
			status = models.StatusIssued
			stage = models.StageMaterialIssuedWIP
		} else {
			status = models.StatusApproved
			stage = models.StageAwaitingMaterialIssue
		}
	case "REJECTED":
		status = models.StatusRejected
		stage = models.StageRejected
	default:
		status = models.StatusOnHold
		stage = models.StageOnHold
	}

	if storeIssued && action == "APPROVED" {
		if err := b.deductForRequisition(ctx, req); err != nil {
			return nil, err
		}
	}
	fields := map[string]any{"status": status, "stageLabel": stage}
	if status == models.StatusIssued {
		fields["issuedAt"] = time.Now().UTC()
	}
	if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
		return nil, err
	}

	actor := firstOf(p.str("user", "email"), "Manager")
	basePayload := map[string]any{
		"requestId":      id,
		"requesterEmail": strings.TrimSpace(req.RequesterEmail),
		"requesterName":  strings.TrimSpace(req.RequesterName),
		"productName":    req.ProductName,
		"quantity":       req.RequestedQty,
		"unit":           req.Unit,
	}
	if storeIssued {
		resStatus := models.ReservationReleased
		if action == "APPROVED" {
			resStatus = models.ReservationConsumed
		}
		if err := b.Reservations.SetStatus(ctx, id, resStatus); err != nil {
			return nil, err
		}
		if action == "APPROVED" {
			payload := clonePayload(basePayload)
			payload["issuedBy"] = actor
			b.publish(ctx, "materials_issued", payload)
		}
	} else if action == "APPROVED" {
		// Manager approved first: soft-hold the materials for the store.
		items := reservation.BuildItems(req)
		if err := b.Reservations.Upsert(ctx, id, items, models.ReservationReserved); err != nil {
			return nil, err
		}
		payload := clonePayload(basePayload)
		payload["approvedBy"] = actor
		b.publish(ctx, "request_approved", payload)
	} else {
		// Reject or hold of an approved request drops its soft hold. A missing
		// reservation is a no-op.
		if err := b.Reservations.SetStatus(ctx, id, models.ReservationReleased); err != nil {
			return nil, err
		}
	}

	reason := p.str("reason")
	if reason == "" {
		reason = "—"
	}
	switch action {
	case "REJECTED":
		payload := clonePayload(basePayload)
		payload["rejectedBy"] = actor
		payload["reason"] = reason
		b.publish(ctx, "request_rejected", payload)
	case "ON_HOLD":
		payload := clonePayload(basePayload)
		payload["heldBy"] = actor
		payload["reason"] = reason
		b.publish(ctx, "request_on_hold", payload)
	}

	auditName := "requisition_hold"
	switch action {
	case "APPROVED":
		auditName = "requisition_approve"
	case "REJECTED":
		auditName = "requisition_reject"
	}
	b.audit(ctx, auditName, firstOf(p.str("user", "email"), "user"), map[string]any{
		"requestId": id,
		"action":    action,
	})
	return Result{}, nil
}

func clonePayload(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (b *Backend) getReservedTotals(ctx context.Context, p Params) (Result, error) {
	totals, err := b.Reservations.ReservedTotals(ctx)
	if err != nil {
		return nil, err
	}
	return Result{
		"rawMaterials":     totals.RawMaterials,
		"packingMaterials": totals.PackingMaterials,
		"labels":           totals.Labels,
	}, nil
}

// releaseExpiredReservations sweeps reservations still held past the age
// limit, releases them and resets their requisitions so the store can issue
// again.
func (b *Backend) releaseExpiredReservations(ctx context.Context, p Params) (Result, error) {
	hours := p.numOr(48, "hours", "hoursLimit")
	if hours <= 0 {
		hours = 48
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours * float64(time.Hour)))
	expired, err := b.Reservations.ExpiredReserved(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	released := []string{}
	for _, res := range expired {
		id := res.RequestID
		unlock := b.locks.Lock(id)
		if err := b.Reservations.SetStatus(ctx, id, models.ReservationReleased); err != nil {
			unlock()
			return nil, err
		}
		var req models.Requisition
		exists, err := b.Store.Get(ctx, store.ColRequisitions, id, &req)
		if err != nil {
			unlock()
			return nil, err
		}
		if exists && req.Status == models.StatusApproved {
			// Only requisitions still awaiting issue are reset; a terminal or
			// re-decided requisition keeps its state.
			fields := map[string]any{
				"status":     models.StatusApproved,
				"stageLabel": models.StageReservationExpired,
			}
			if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
				unlock()
				return nil, err
			}
		}
		unlock()
		released = append(released, id)
		b.audit(ctx, "reservation_timeout_released", "system", map[string]any{
			"requestId": id,
			"hours":     hours,
		})
		b.publish(ctx, "reservation_released", map[string]any{
			"requestId": id,
			"hours":     hours,
		})
	}
	return Result{"released": released, "count": len(released)}, nil
}
