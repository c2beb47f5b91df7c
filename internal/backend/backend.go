// Package backend implements the requisition action surface: a single
// dispatch entry point routing named actions to handlers that drive the
// requisition state machine, the inventory ledger, reservations, WIP batches,
// dispatches and user management.
package backend

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"requisition-api-server/internal/inventory"
	"requisition-api-server/internal/metrics"
	"requisition-api-server/internal/models"
	"requisition-api-server/internal/notification"
	"requisition-api-server/internal/report"
	"requisition-api-server/internal/reservation"
	"requisition-api-server/internal/store"
)

// Params carries the decoded request parameters of one action call.
type Params map[string]any

// Result is the response envelope. Successful handlers get "result": "success"
// merged in; failures come back as {"result": "error", "error": ...}.
type Result map[string]any

type actionFunc func(ctx context.Context, p Params) (Result, error)

// Backend owns all domain services and the action registry.
type Backend struct {
	Store        store.Store
	Ledger       *inventory.Ledger
	Reservations *reservation.Manager
	Notifier     *notification.Dispatcher
	Reports      *report.Builder

	locks   *keyedLocks
	actions map[string]actionFunc
}

func New(s store.Store, notifier *notification.Dispatcher, reports *report.Builder) *Backend {
	b := &Backend{
		Store:        s,
		Ledger:       inventory.NewLedger(s),
		Reservations: reservation.NewManager(s),
		Notifier:     notifier,
		Reports:      reports,
		locks:        newKeyedLocks(),
	}
	b.registerActions()
	return b
}

// Invoke runs a named action and always returns a response envelope; handler
// errors are converted, never propagated.
func (b *Backend) Invoke(ctx context.Context, action string, params Params) Result {
	if params == nil {
		params = Params{}
	}
	params = Params(store.SanitizeMap(params))
	handler, ok := b.actions[action]
	if !ok {
		metrics.ActionsTotal.WithLabelValues(action, "invalid").Inc()
		return errResult(validationf("invalid action: %s", action))
	}

	started := time.Now()
	out, err := handler(ctx, params)
	metrics.ActionDuration.WithLabelValues(action).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ActionsTotal.WithLabelValues(action, "error").Inc()
		log.Printf("action %s failed: %v", action, err)
		return errResult(err)
	}
	metrics.ActionsTotal.WithLabelValues(action, "success").Inc()

	if out == nil {
		out = Result{}
	}
	if _, exists := out["result"]; !exists {
		out["result"] = "success"
	}
	return out
}

func (b *Backend) registerActions() {
	b.actions = map[string]actionFunc{
		"test_connection": b.testConnection,
		"test":            b.testConnection,

		"login":              b.login,
		"get_my_profile":     b.getMyProfile,
		"change_password":    b.changePassword,
		"add_user":           b.addUser,
		"list_users":         b.listUsers,
		"delete_user":        b.deleteUser,
		"admin_set_password": b.adminSetPassword,

		"get_db":            b.getDB,
		"save_inventory":    b.saveInventory,
		"get_form_data":     b.getFormData,
		"get_form_products": b.getFormProducts,
		"get_lists":         b.getLists,

		"get_requests_by_stage": b.getRequestsByStage,
		"get_all_requests":      b.getAllRequests,
		"get_request_details":   b.getRequestDetails,
		"get_stage_counts":      b.getStageCounts,
		"get_my_requests":       b.getMyRequests,
		"get_pending_approvals": b.getPendingApprovals,

		"get_requisition_reserved_totals": b.getReservedTotals,
		"release_expired_reservations":    b.releaseExpiredReservations,

		"get_material_queue":    b.getMaterialQueue,
		"get_requisition_queue": b.getMaterialQueue,

		"submit_request":          b.submitRequest,
		"create_request":          b.submitRequest,
		"update_request_stage":    b.updateRequestStage,
		"update_req_stage":        b.updateRequestStage,
		"add_thread_note":         b.addThreadNote,
		"add_material_request":    b.addMaterialRequest,
		"approve_request":         b.approveRequest,
		"approve_partial_request": b.approveRequest,
		"hold_request":            b.holdRequest,
		"hold_plan_request":       b.holdRequest,
		"reject_request":          b.rejectRequest,

		"request_correction":            b.requestCorrection,
		"confirm_formula":               b.confirmFormula,
		"edit_request_item":             b.editRequestItem,
		"delete_request_item":           b.deleteRequestItem,
		"update_request_packing_labels": b.updateRequestPackingLabels,
		"admin_override":                b.adminOverride,
		"admin_force_action":            b.adminForceAction,

		"save_wip_batch":         b.saveWIPBatch,
		"sync_wip_to_req":        b.syncWIPToReq,
		"get_wip_batches":        b.getWIPBatches,
		"get_pending_production": b.getPendingProduction,
		"wip_action_req":         b.wipActionRequisition,

		"request_dispatch":               b.requestDispatch,
		"approve_dispatch":               b.approveDispatch,
		"get_pending_dispatch_approvals": b.getPendingDispatchApprovals,
		"get_dispatches_for_request":     b.getDispatchesForRequest,

		"submit_formula_request":        b.submitFormulaRequest,
		"get_formula_requests":          b.getFormulaRequests,
		"update_formula_request_status": b.updateFormulaRequestStatus,

		"submit_stock_adjustment_request": b.submitStockAdjustment,
		"get_stock_adjustment_requests":   b.getStockAdjustments,
		"mark_stock_adjustment_done":      b.markStockAdjustmentDone,

		"generate_report": b.generateReport,

		"notify_stock_arrival":         b.notifyStockArrival,
		"consume_requisition_material": b.consumeRequisitionMaterial,
		"mark_used":                    b.markUsed,
	}
}

func (b *Backend) testConnection(ctx context.Context, p Params) (Result, error) {
	return Result{"status": "Online"}, nil
}

// audit appends one audit trail entry. Audit failures are logged, never fatal.
func (b *Backend) audit(ctx context.Context, action, user string, details map[string]any) {
	if user == "" {
		user = "user"
	}
	entry := models.AuditEntry{
		Action:    action,
		User:      user,
		Timestamp: time.Now().UTC(),
		Details:   store.SanitizeMap(details),
	}
	if _, err := b.Store.Add(ctx, store.ColAuditLog, entry); err != nil {
		log.Printf("audit %s: %v", action, err)
	}
}

// publish fires a notification event. The dispatcher is optional in tests.
func (b *Backend) publish(ctx context.Context, eventType string, payload map[string]any) {
	if b.Notifier == nil {
		return
	}
	b.Notifier.Publish(ctx, eventType, payload)
}

// userRole resolves the stored role for an email or uid; empty when unknown.
func (b *Backend) userRole(ctx context.Context, identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	if strings.Contains(identifier, "@") {
		identifier = strings.ToLower(identifier)
	}
	var u models.User
	ok, err := b.Store.Get(ctx, store.ColUsers, identifier, &u)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(u.Role)
}

// hasRole matches by substring so compound titles like "Inventory Manager"
// satisfy a "manager" gate.
func (b *Backend) hasRole(ctx context.Context, identifier string, allowed ...string) bool {
	role := strings.ToLower(b.userRole(ctx, identifier))
	if role == "" {
		return false
	}
	for _, a := range allowed {
		if strings.Contains(role, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// adminIdentifier picks the acting admin's identifier out of the params.
func adminIdentifier(p Params) string {
	if v := p.str("adminUid", "uid"); v != "" {
		return v
	}
	return strings.ToLower(p.str("adminEmail", "email"))
}

func (b *Backend) getRequisition(ctx context.Context, id string) (*models.Requisition, error) {
	if id == "" {
		return nil, validationf("request id required")
	}
	var r models.Requisition
	ok, err := b.Store.Get(ctx, store.ColRequisitions, id, &r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundf("request not found")
	}
	return &r, nil
}

// requestRow maps a stored requisition onto the client row shape. Light rows
// drop the item arrays except for research requests, which keep their
// additional items for the picker.
func requestRow(r *models.Requisition, light bool) map[string]any {
	row := map[string]any{
		"id":             r.RequestID,
		"type":           r.Type,
		"status":         r.Status,
		"requesterName":  r.RequesterName,
		"requesterEmail": r.RequesterEmail,
		"productName":    r.ProductName,
		"quantity":       r.RequestedQty,
		"unit":           r.Unit,
		"remarks":        r.Notes,
		"date":           r.CreatedAt,
		"stage":          r.StageLabel,
		"currentStage":   r.StageLabel,
	}
	if r.PartialIssuedQty != 0 {
		row["partialIssuedQty"] = r.PartialIssuedQty
	}
	if !light {
		row["ingredients"] = lineItems(r.Ingredients)
		row["packing"] = lineItems(r.Packing)
		row["labels"] = lineItems(r.Labels)
		row["additionalItems"] = lineItems(r.AdditionalItems)
		row["corrections"] = corrections(r.Corrections)
	} else if strings.EqualFold(r.Type, "research") {
		row["additionalItems"] = lineItems(r.AdditionalItems)
	}
	return row
}

func lineItems(items []models.LineItem) []models.LineItem {
	if items == nil {
		return []models.LineItem{}
	}
	return items
}

func corrections(c []map[string]any) []map[string]any {
	if c == nil {
		return []map[string]any{}
	}
	return c
}

// str returns the first non-empty string parameter among keys, trimmed.
// Non-string scalars stringify.
func (p Params) str(keys ...string) string {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// num returns the first parseable numeric parameter among keys.
func (p Params) num(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func (p Params) numOr(def float64, keys ...string) float64 {
	if f, ok := p.num(keys...); ok {
		return f
	}
	return def
}

func (p Params) intOr(def int, keys ...string) int {
	if f, ok := p.num(keys...); ok && f > 0 {
		return int(f)
	}
	return def
}

// flag interprets a boolean-ish parameter: true, "1" or "true".
func (p Params) flag(keys ...string) bool {
	for _, k := range keys {
		switch t := p[k].(type) {
		case bool:
			if t {
				return true
			}
		case string:
			if t == "1" || strings.EqualFold(t, "true") {
				return true
			}
		case float64:
			if t == 1 {
				return true
			}
		}
	}
	return false
}
