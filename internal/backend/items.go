package backend

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

func (b *Backend) addThreadNote(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	if id == "" {
		return nil, validationf("request id required")
	}
	actor := p.str("role")
	if actor == "" {
		actor = "User"
	}
	note := models.ThreadNote{
		RequestID: id,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    "NOTE",
		User:      p.str("user"),
		Remarks:   p.str("note"),
	}
	if _, err := b.Store.Add(ctx, store.ColRequestThreads, note); err != nil {
		return nil, err
	}
	return Result{}, nil
}

func (b *Backend) addMaterialRequest(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	req, err := b.getRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	items := req.AdditionalItems
	items = append(items, models.LineItem{
		Category: p.str("category"),
		Name:     p.str("itemName"),
		Quantity: p.numOr(0, "quantity"),
	})
	if err := b.Store.Update(ctx, store.ColRequisitions, id, map[string]any{"additionalItems": items}); err != nil {
		return nil, err
	}
	return Result{}, nil
}

// Items may only change while the request still belongs to the requester:
// before approval, or while a correction is open.
func (b *Backend) editableByRequester(req *models.Requisition, email string) error {
	if strings.ToLower(strings.TrimSpace(req.RequesterEmail)) != email {
		return permissionf("only the requester can modify items")
	}
	if req.Status != models.StatusSubmitted && req.Status != models.StatusCorrectionRequired {
		return validationf("items cannot be modified after approval")
	}
	return nil
}

func (b *Backend) editRequestItem(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	itemName := p.str("itemName")
	qty, qtyOK := p.num("quantity")
	email := strings.ToLower(p.str("email"))
	if id == "" || itemName == "" || !qtyOK {
		return nil, validationf("id, itemName and quantity required")
	}
	req, err := b.getRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.editableByRequester(req, email); err != nil {
		return nil, err
	}
	edit := func(items []models.LineItem) []models.LineItem {
		for i := range items {
			if items[i].Name == itemName {
				items[i].Quantity = qty
			}
		}
		return items
	}
	fields := map[string]any{
		"ingredients":     edit(req.Ingredients),
		"additionalItems": edit(req.AdditionalItems),
	}
	if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
		return nil, err
	}
	return Result{"message": "Item updated"}, nil
}

func (b *Backend) deleteRequestItem(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	itemName := p.str("itemName")
	email := strings.ToLower(p.str("email"))
	if id == "" || itemName == "" {
		return nil, validationf("id and itemName required")
	}
	req, err := b.getRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.editableByRequester(req, email); err != nil {
		return nil, err
	}
	drop := func(items []models.LineItem) []models.LineItem {
		kept := make([]models.LineItem, 0, len(items))
		for _, it := range items {
			if it.Name != itemName {
				kept = append(kept, it)
			}
		}
		return kept
	}
	fields := map[string]any{
		"ingredients":     drop(req.Ingredients),
		"additionalItems": drop(req.AdditionalItems),
	}
	if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
		return nil, err
	}
	return Result{"message": "Item removed"}, nil
}

func (b *Backend) updateRequestPackingLabels(ctx context.Context, p Params) (Result, error) {
	id := p.str("id", "requestId")
	if id == "" {
		return nil, validationf("request id required")
	}
	if _, err := b.getRequisition(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if v, ok := p["packing"]; ok && v != nil {
		fields["packing"] = models.ParseLineItems(v)
	}
	if v, ok := p["labels"]; ok && v != nil {
		fields["labels"] = models.ParseLineItems(v)
	}
	if len(fields) > 0 {
		if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
			return nil, err
		}
	}
	return Result{}, nil
}

// requestCorrection flags a request back to the requester's queue and records
// what needs fixing; the manager must re-approve afterwards.
func (b *Backend) requestCorrection(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	req, err := b.getRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if models.Terminal(req.Status) {
		return nil, validationf("request is already finalized")
	}
	corrections := parseCorrections(firstValue(p["corrections"], p["summary"]))
	fields := map[string]any{
		"status":      models.StatusCorrectionRequired,
		"stageLabel":  models.StageAwaitingReapproval,
		"corrections": corrections,
	}
	if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
		return nil, err
	}
	summary := p.str("summary")
	if summary == "" {
		summary = "Ingredient correction requested"
	}
	b.publish(ctx, "correction_requested", map[string]any{
		"requestId":        id,
		"productName":      req.ProductName,
		"requestedBy":      firstOf(req.RequesterName, p.str("user")),
		"requestedByEmail": req.RequesterEmail,
		"summary":          summary,
	})
	return Result{}, nil
}

func parseCorrections(v any) []map[string]any {
	switch t := v.(type) {
	case nil:
		return []map[string]any{}
	case string:
		if t == "" {
			return []map[string]any{}
		}
		var list []map[string]any
		if err := json.Unmarshal([]byte(t), &list); err == nil {
			return list
		}
		return []map[string]any{{"summary": t}}
	case []any:
		list := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				list = append(list, m)
			}
		}
		return list
	case []map[string]any:
		return t
	default:
		return []map[string]any{}
	}
}

// confirmFormula moves a research request past the formula check so the store
// can issue materials.
func (b *Backend) confirmFormula(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	if _, err := b.getRequisition(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{"stageLabel": models.StageAwaitingMaterialIssue}
	if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
		return nil, err
	}
	return Result{}, nil
}

// adminOverride sets status and label directly. The status must still belong
// to the enum; the label is free text.
func (b *Backend) adminOverride(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	if id == "" {
		return nil, validationf("request id required")
	}
	adminID := adminIdentifier(p)
	if !b.hasRole(ctx, adminID, "manager", "admin") {
		return nil, permissionf("admin privileges required")
	}
	if _, err := b.getRequisition(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if status := strings.ToUpper(p.str("status")); status != "" {
		if !models.KnownStatus(status) {
			return nil, validationf("unknown status: %s", status)
		}
		fields["status"] = status
	}
	if stage := p.str("stage"); stage != "" {
		fields["stageLabel"] = stage
	}
	if len(fields) > 0 {
		if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
			return nil, err
		}
		b.audit(ctx, "admin_override", adminID, map[string]any{"requestId": id, "fields": fields})
	}
	return Result{}, nil
}

func (b *Backend) adminForceAction(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	forceType := strings.ToUpper(p.str("type"))
	if id == "" {
		return nil, validationf("request id required")
	}
	adminID := adminIdentifier(p)
	if !b.hasRole(ctx, adminID, "manager", "admin") {
		return nil, permissionf("admin privileges required")
	}
	unlock := b.locks.Lock(id)
	defer unlock()
	if _, err := b.getRequisition(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	switch forceType {
	case "FORCE_WIP":
		fields["status"] = models.StatusIssued
		fields["stageLabel"] = models.StageMaterialIssuedWIP
	case "FORCE_COMPLETE":
		fields["status"] = models.StatusProduced
		fields["stageLabel"] = models.StageAwaitingDispatch
	case "FORCE_REFUND":
		fields["stageLabel"] = models.StageRefundRequested
	default:
		return nil, validationf("invalid type: use FORCE_WIP, FORCE_COMPLETE, or FORCE_REFUND")
	}
	if err := b.Store.Update(ctx, store.ColRequisitions, id, fields); err != nil {
		return nil, err
	}
	b.audit(ctx, "admin_force_action", adminID, map[string]any{"requestId": id, "type": forceType})
	return Result{}, nil
}
