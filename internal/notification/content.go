package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

// Event types raised by the workflow.
const (
	EventApprovalNeeded           = "approval_needed"
	EventReservationReleased      = "reservation_released"
	EventDispatchApprovalRequired = "dispatch_approval_required"
	EventDispatchApproved         = "dispatch_approved"
	EventFormulaRequestSubmitted  = "formula_request_submitted"
	EventFormulaRequestResolved   = "formula_request_resolved"
	EventProductionCompleted      = "production_completed"
	EventProductionPaused         = "production_paused"
	EventProductionCancelled      = "production_cancelled"
	EventMaterialsIssued          = "materials_issued"
	EventCorrectionRequested      = "correction_requested"
	EventRequestApproved          = "request_approved"
	EventRequestRejected          = "request_rejected"
	EventRequestOnHold            = "request_on_hold"
	EventPartialIssued            = "partial_issued"
)

// Content is a fully resolved outbound notification. The dispatcher's contract
// ends at producing it; delivery is best-effort.
type Content struct {
	To      string
	CC      string
	Subject string
	HTML    string
}

// Detail is one label/value row rendered into the HTML card.
type Detail struct {
	Label string
	Value string
}

// Card colors per event severity.
const (
	colorInfo    = "#3b82f6"
	colorSuccess = "#10b981"
	colorAlert   = "#ef4444"
	colorWarning = "#f59e0b"
)

// BuildContent resolves the recipient set, subject and HTML body for an event.
// Returns false when no recipient resolves; such events are dropped, not
// retried.
func (d *Dispatcher) BuildContent(ctx context.Context, eventType string, payload map[string]any) (*Content, bool) {
	reqID := pick(payload, "requestId", "formulaRequestId", "dispatchId")
	quantity := pick(payload, "quantity", "requestedQty") + " " + pick(payload, "unit")

	var (
		eventTitle = "Notification"
		title      = "System Update"
		color      = colorInfo
		details    []Detail
		to, cc     string
		subject    string
	)

	requesterOrManagers := func() string {
		if to := pick(payload, "requesterEmail"); to != "" {
			return to
		}
		return strings.Join(d.managerEmails(ctx), ",")
	}
	managers := func() string {
		return strings.Join(d.managerEmails(ctx), ",")
	}
	requester := func(labelled string) string {
		name := pick(payload, labelled)
		if email := pick(payload, labelled+"Email"); email != "" {
			return name + " (" + email + ")"
		}
		return name
	}

	switch eventType {
	case EventApprovalNeeded:
		eventTitle = "New Requisition Submitted"
		title = "New Requisition – Approval Required"
		requestedAt := ""
		if at := pick(payload, "requestedAt"); at != "" {
			if t, err := time.Parse(time.RFC3339, at); err == nil {
				requestedAt = t.Format("02 Jan 2006 15:04")
			} else {
				requestedAt = at
			}
		}
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Requested by", requester("requester")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Request date", requestedAt},
			{"Action", "Please approve or reject in the app."},
		}
		managerList := d.managerEmails(ctx)
		to = pick(payload, "managerEmail")
		if to == "" {
			to = strings.Join(managerList, ",")
		} else {
			var rest []string
			for _, email := range managerList {
				if !strings.Contains(to, email) {
					rest = append(rest, email)
				}
			}
			cc = strings.Join(rest, ",")
		}
		subject = fmt.Sprintf("[MIKLENS REQ-%s] New Requisition – %s – %s – Approval Required",
			pick(payload, "requestId"), pickDefault(payload, "requesterName", "Employee"), pick(payload, "productName"))

	case EventReservationReleased:
		eventTitle = "Reservation Released"
		title = "Reservation Expired"
		color = colorWarning
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Reason", "Reservation timed out after " + pickDefault(payload, "hours", "48") + " hours."},
			{"Action", "Re-issue materials from Pending Issue if still needed."},
		}
		to = managers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Reservation Released – Re-issue if needed", pick(payload, "requestId"))

	case EventDispatchApprovalRequired:
		eventTitle = "Dispatch Approval Required"
		title = "Dispatch Request"
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Dispatch ID", pick(payload, "dispatchId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Requested by", pick(payload, "requestedBy")},
			{"Action", "Approve or reject in the app."},
		}
		to = managers()
		subject = "[MIKLENS] Dispatch Approval Required – " + pick(payload, "productName")

	case EventDispatchApproved:
		eventTitle = "Dispatch Approved"
		title = "Dispatch Approved"
		color = colorSuccess
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Approved by", pick(payload, "approvedBy")},
			{"Action", "You can collect the dispatched items."},
		}
		to = pick(payload, "requesterEmail")
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Dispatch Approved", pick(payload, "requestId"))

	case EventFormulaRequestSubmitted:
		eventTitle = "New Formula Request"
		title = "Formula Request"
		details = []Detail{
			{"Request ID", pick(payload, "formulaRequestId")},
			{"Requested by", pick(payload, "requestedByName") + " (" + pick(payload, "requestedBy") + ")"},
			{"Basis", pick(payload, "formulaBasis")},
		}
		to = managers()
		subject = "[MIKLENS] New Formula Request – " + pick(payload, "formulaRequestId")

	case EventFormulaRequestResolved:
		eventTitle = "Formula Request Updated"
		title = "Formula Request " + pickDefault(payload, "status", "Resolved")
		color = colorSuccess
		details = []Detail{
			{"Request ID", pick(payload, "formulaRequestId")},
			{"Status", pick(payload, "status")},
			{"Resolved by", pick(payload, "resolvedBy")},
			{"Action", "Check the app for details."},
		}
		to = pick(payload, "requestedBy")
		subject = fmt.Sprintf("[MIKLENS] Formula Request %s – %s", pick(payload, "status"), pick(payload, "formulaRequestId"))

	case EventProductionCompleted:
		eventTitle = "Production Completed"
		title = "WIP / Production Completed"
		color = colorSuccess
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Completed by", pick(payload, "completedBy")},
			{"Requested by", requester("requester")},
			{"Action", "Ready for dispatch or next step."},
		}
		to = requesterOrManagers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Production Completed – %s", pick(payload, "requestId"), pick(payload, "productName"))

	case EventProductionPaused:
		eventTitle = "Production Paused"
		title = "WIP Paused"
		color = colorWarning
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Paused by", pick(payload, "pausedBy")},
			{"Reason", pickDefault(payload, "reason", "—")},
			{"Requested by", requester("requester")},
			{"Action", "Resume from WIP when ready."},
		}
		to = requesterOrManagers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Production Paused – %s", pick(payload, "requestId"), pick(payload, "productName"))

	case EventProductionCancelled:
		eventTitle = "Production Cancelled"
		title = "WIP Cancelled"
		color = colorAlert
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Cancelled by", pick(payload, "cancelledBy")},
			{"Reason", pickDefault(payload, "reason", "—")},
			{"Requested by", requester("requester")},
			{"Action", "Request is closed. Create a new request if needed."},
		}
		to = requesterOrManagers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Production Cancelled – %s", pick(payload, "requestId"), pick(payload, "productName"))

	case EventMaterialsIssued:
		eventTitle = "Materials Issued"
		title = "Materials Issued to Floor"
		color = colorSuccess
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Issued by", pickDefault(payload, "issuedBy", "Store")},
			{"Action", "Items issued to production floor. Inventory deducted."},
		}
		to = requesterOrManagers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Materials Issued – Production Started", pick(payload, "requestId"))

	case EventCorrectionRequested:
		eventTitle = "Correction Requested"
		title = "Adjustment Needed"
		color = colorWarning
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Requested by", requester("requestedBy")},
			{"Reason", pickDefault(payload, "summary", "Ingredient correction requested")},
			{"Action", `Check "Pending Manager Approval" and re-approve or reject.`},
		}
		to = managers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Correction Requested", pick(payload, "requestId"))

	case EventRequestApproved:
		eventTitle = "Request Approved"
		title = "Requisition Approved"
		color = colorSuccess
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Approved by", pick(payload, "approvedBy")},
			{"Action", "Awaiting material issue from Store. You will be notified when materials are issued."},
		}
		to = requesterOrManagers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Request Approved – %s", pick(payload, "requestId"), pick(payload, "productName"))

	case EventRequestRejected:
		eventTitle = "Request Rejected"
		title = "Requisition Rejected"
		color = colorAlert
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Rejected by", pick(payload, "rejectedBy")},
			{"Reason", pickDefault(payload, "reason", "—")},
			{"Action", "You may submit a new request if needed."},
		}
		to = requesterOrManagers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Request Rejected – %s", pick(payload, "requestId"), pick(payload, "productName"))

	case EventRequestOnHold:
		eventTitle = "Request On Hold"
		title = "Requisition On Hold"
		color = colorWarning
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Quantity", quantity},
			{"Put on hold by", pick(payload, "heldBy")},
			{"Reason", pickDefault(payload, "reason", "—")},
			{"Action", "Manager will resume or update this request. Check the app for status."},
		}
		to = requesterOrManagers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Request On Hold – %s", pick(payload, "requestId"), pick(payload, "productName"))

	case EventPartialIssued:
		eventTitle = "Partially Issued"
		title = "Materials Partially Issued"
		color = colorWarning
		details = []Detail{
			{"Request ID", pick(payload, "requestId")},
			{"Product", pick(payload, "productName")},
			{"Issued", pick(payload, "partialQty") + " " + pick(payload, "unit")},
			{"Requested", pick(payload, "requestedQty") + " " + pick(payload, "unit")},
			{"Issued by", pickDefault(payload, "issuedBy", "Store")},
			{"Action", "Remaining quantity to be issued later. Check the app for status."},
		}
		to = requesterOrManagers()
		subject = fmt.Sprintf("[MIKLENS REQ-%s] Partially Issued – %s", pick(payload, "requestId"), pick(payload, "productName"))

	default:
		eventTitle = strings.ReplaceAll(eventType, "_", " ")
		details = []Detail{
			{"Type", eventType},
			{"Data", fmt.Sprintf("%v", payload)},
		}
		to = managers()
		subject = "[MIKLENS] " + eventTitle
	}

	if to == "" {
		return nil, false
	}
	html := buildHTML(reqID, eventTitle, title, details, color, d.AppURL)
	return &Content{To: to, CC: cc, Subject: subject, HTML: html}, true
}

// managerEmails lists every user whose role contains "manager" or "admin".
func (d *Dispatcher) managerEmails(ctx context.Context) []string {
	var users []models.User
	if err := d.Store.ScanAll(ctx, store.ColUsers, &users); err != nil {
		return nil
	}
	var emails []string
	for _, u := range users {
		role := strings.ToLower(strings.TrimSpace(u.Role))
		email := strings.TrimSpace(u.Email)
		if email == "" {
			continue
		}
		if strings.Contains(role, "manager") || strings.Contains(role, "admin") {
			emails = append(emails, email)
		}
	}
	return emails
}

// pick returns the first non-empty payload value among keys, stringified.
func pick(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := payload[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func pickDefault(payload map[string]any, key, def string) string {
	if v := pick(payload, key); v != "" {
		return v
	}
	return def
}
