package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

// submitRequest creates a new requisition in SUBMITTED status and notifies the
// chosen manager. Research requests start at the combined store-and-manager
// stage.
func (b *Backend) submitRequest(ctx context.Context, p Params) (Result, error) {
	reqType := p.str("type")
	if reqType == "" {
		reqType = "Production"
	}
	email := strings.ToLower(p.str("requesterEmail", "employeeEmail"))
	name := p.str("requesterName", "employeeName")
	qty := p.numOr(0, "requestedQty", "quantity")
	if qty < 0 {
		qty = 0
	}
	notes := p.str("notes", "remarks")
	if purpose := p.str("purpose"); purpose != "" {
		if notes != "" {
			notes = purpose + "\n" + notes
		} else {
			notes = purpose
		}
	}
	stage := models.StagePendingManagerApproval
	if strings.EqualFold(reqType, "research") {
		stage = models.StagePendingStoreAndManager
	}

	now := time.Now().UTC()
	req := models.Requisition{
		RequestID:       fmt.Sprintf("REQ-%d", now.UnixMilli()),
		Type:            reqType,
		Status:          models.StatusSubmitted,
		StageLabel:      stage,
		RequesterEmail:  email,
		RequesterName:   name,
		ProductName:     p.str("productName"),
		RequestedQty:    qty,
		Unit:            p.str("unit"),
		Ingredients:     models.ParseLineItems(p["ingredients"]),
		Packing:         models.ParseLineItems(p["packing"]),
		Labels:          models.ParseLineItems(p["labels"]),
		AdditionalItems: models.ParseLineItems(firstValue(p["additionalItems"], p["items"])),
		Corrections:     []map[string]any{},
		ManagerEmail:    strings.ToLower(p.str("managerEmail")),
		Notes:           notes,
		CreatedAt:       now,
	}
	if len(req.Ingredients) == 0 {
		req.Ingredients = models.ParseLineItems(p["formulaItems"])
	}
	if len(req.Packing) == 0 {
		req.Packing = models.ParseLineItems(p["packingItems"])
	}
	if err := b.Store.Set(ctx, store.ColRequisitions, req.RequestID, req, false); err != nil {
		return nil, err
	}
	b.publish(ctx, "approval_needed", map[string]any{
		"requestId":      req.RequestID,
		"managerEmail":   req.ManagerEmail,
		"productName":    req.ProductName,
		"requesterName":  req.RequesterName,
		"requesterEmail": req.RequesterEmail,
		"requestedQty":   req.RequestedQty,
		"unit":           req.Unit,
		"requestedAt":    req.CreatedAt.Format(time.RFC3339),
	})
	b.audit(ctx, "requisition_submitted", firstOf(email, "user"), map[string]any{
		"requestId": req.RequestID, "type": req.Type,
	})
	return Result{"requestId": req.RequestID}, nil
}

func firstValue(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// Stage buckets group requisitions for the dashboard tabs. Buckets are sets of
// statuses, not label substrings, so a renamed label cannot silently move a
// request between tabs.
func matchStage(r *models.Requisition, bucket string) bool {
	switch bucket {
	case "ALL":
		return true
	case "PENDING_APPROVALS":
		return r.Status == models.StatusSubmitted || r.Status == models.StatusIssuedPendingApproval
	case "PENDING_ISSUE":
		return r.Status == models.StatusSubmitted ||
			r.Status == models.StatusApproved ||
			r.Status == models.StatusPartiallyIssued
	case "WIP":
		return r.Status == models.StatusIssued || r.Status == models.StatusPaused
	case "DISPATCH":
		return r.Status == models.StatusProduced
	case "PENDING_RECORD":
		return r.Status == models.StatusIssued
	case "PARTIAL_ISSUE":
		return r.Status == models.StatusPartiallyIssued
	default:
		return false
	}
}

func (b *Backend) listRequisitions(ctx context.Context) ([]models.Requisition, error) {
	var all []models.Requisition
	if err := b.Store.ScanAll(ctx, store.ColRequisitions, &all); err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

func (b *Backend) getRequestsByStage(ctx context.Context, p Params) (Result, error) {
	stage := strings.ToUpper(p.str("stage"))
	limit := p.intOr(20, "limit")
	page := p.intOr(1, "page")
	light := p.flag("light")

	all, err := b.listRequisitions(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []models.Requisition
	for _, r := range all {
		if matchStage(&r, stage) {
			filtered = append(filtered, r)
		}
	}
	total := len(filtered)
	skip := (page - 1) * limit
	if skip > total {
		skip = total
	}
	endIdx := skip + limit
	if endIdx > total {
		endIdx = total
	}
	rows := make([]map[string]any, 0, endIdx-skip)
	for i := skip; i < endIdx; i++ {
		rows = append(rows, requestRow(&filtered[i], light))
	}
	return Result{"requests": rows, "totalMatches": total, "page": page}, nil
}

func (b *Backend) getAllRequests(ctx context.Context, p Params) (Result, error) {
	q := Params{"stage": "ALL", "limit": p.numOr(500, "limit")}
	if v, ok := p["light"]; ok {
		q["light"] = v
	}
	return b.getRequestsByStage(ctx, q)
}

func (b *Backend) getPendingApprovals(ctx context.Context, p Params) (Result, error) {
	return b.getRequestsByStage(ctx, Params{"stage": "PENDING_APPROVALS", "limit": float64(100), "light": true})
}

func (b *Backend) getMyRequests(ctx context.Context, p Params) (Result, error) {
	email := strings.ToLower(p.str("email"))
	light := p.flag("light")
	all, err := b.listRequisitions(ctx)
	if err != nil {
		return nil, err
	}
	rows := []map[string]any{}
	for i := range all {
		if strings.ToLower(strings.TrimSpace(all[i].RequesterEmail)) == email {
			rows = append(rows, requestRow(&all[i], light))
		}
	}
	return Result{"requests": rows}, nil
}

// getRequestDetails returns the full row plus the chronological discussion
// thread.
func (b *Backend) getRequestDetails(ctx context.Context, p Params) (Result, error) {
	id := p.str("id")
	req, err := b.getRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	var thread []models.ThreadNote
	if err := b.Store.QueryEqual(ctx, store.ColRequestThreads, "requestId", id, &thread); err != nil {
		return nil, err
	}
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].Timestamp.Before(thread[j].Timestamp)
	})
	if thread == nil {
		thread = []models.ThreadNote{}
	}
	row := requestRow(req, false)
	row["notes"] = req.Notes
	row["managerEmail"] = req.ManagerEmail
	row["batchId"] = req.BatchID
	row["partialIssuedQty"] = req.PartialIssuedQty
	row["thread"] = thread
	return Result{"request": row}, nil
}

// getStageCounts computes the dashboard badge numbers in one pass. A request
// counts as overdue after three days waiting on approval or issue.
func (b *Backend) getStageCounts(ctx context.Context, p Params) (Result, error) {
	all, err := b.listRequisitions(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{
		"PENDING_ISSUE":              0,
		"WIP":                        0,
		"DISPATCH":                   0,
		"PENDING_RECORD":             0,
		"PENDING_APPROVALS":          0,
		"PARTIAL_ISSUE":              0,
		"PENDING_DISPATCH_APPROVALS": 0,
		"FORMULA_REQUESTS":           0,
		"OVERDUE":                    0,
		"TODAY_ISSUED":               0,
	}
	now := time.Now().UTC()
	overdueThreshold := 3 * 24 * time.Hour
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for i := range all {
		r := &all[i]
		pendingApproval := matchStage(r, "PENDING_APPROVALS")
		pendingIssue := matchStage(r, "PENDING_ISSUE")
		if pendingApproval {
			counts["PENDING_APPROVALS"]++
		}
		if pendingIssue {
			counts["PENDING_ISSUE"]++
		}
		if matchStage(r, "WIP") {
			counts["WIP"]++
		}
		if matchStage(r, "DISPATCH") {
			counts["DISPATCH"]++
		}
		if matchStage(r, "PENDING_RECORD") {
			counts["PENDING_RECORD"]++
		}
		if matchStage(r, "PARTIAL_ISSUE") {
			counts["PARTIAL_ISSUE"]++
		}
		if (pendingApproval || pendingIssue) && !r.CreatedAt.IsZero() && now.Sub(r.CreatedAt) > overdueThreshold {
			counts["OVERDUE"]++
		}
		if r.Status == models.StatusIssued && r.IssuedAt != nil && !r.IssuedAt.Before(todayStart) {
			counts["TODAY_ISSUED"]++
		}
	}

	var dispatches []models.Dispatch
	if err := b.Store.ScanAll(ctx, store.ColDispatches, &dispatches); err != nil {
		return nil, err
	}
	for _, d := range dispatches {
		if d.Status == models.DispatchPendingApproval {
			counts["PENDING_DISPATCH_APPROVALS"]++
		}
	}
	var formulas []models.FormulaRequest
	if err := b.Store.ScanAll(ctx, store.ColFormulaRequests, &formulas); err != nil {
		return nil, err
	}
	for _, f := range formulas {
		if strings.EqualFold(f.Status, "pending") {
			counts["FORMULA_REQUESTS"]++
		}
	}
	return Result{"counts": counts}, nil
}

func (b *Backend) getMaterialQueue(ctx context.Context, p Params) (Result, error) {
	var queue []map[string]any
	if err := b.Store.ScanAll(ctx, store.ColMaterialQueue, &queue); err != nil {
		return nil, err
	}
	if queue == nil {
		queue = []map[string]any{}
	}
	return Result{"queue": queue, "requests": queue}, nil
}
