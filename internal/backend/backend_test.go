package backend_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"requisition-api-server/internal/auth"
	"requisition-api-server/internal/backend"
	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

const (
	managerEmail  = "manager@example.com"
	employeeEmail = "worker@example.com"
)

func newTestBackend(t *testing.T) (*backend.Backend, store.Store) {
	t.Helper()
	auth.JwtSecret = []byte("test-secret")
	s := store.NewMemory()
	b := backend.New(s, nil, nil)
	seedUser(t, s, managerEmail, "Plant Manager", "Plant Manager", "managerpass")
	seedUser(t, s, employeeEmail, "Worker", "Employee", "workerpass")
	return b, s
}

func seedUser(t *testing.T, s store.Store, email, name, role, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password, email)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := models.User{Email: email, Name: name, Role: role, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	if err := s.Set(context.Background(), store.ColUsers, email, u, false); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
}

func seedInventory(t *testing.T, b *backend.Backend, resinQty float64) string {
	t.Helper()
	res := b.Invoke(context.Background(), "save_inventory", backend.Params{
		"data": map[string]any{
			"rawMaterials": []any{
				map[string]any{"id": "RM-1", "name": "Resin", "quantity": resinQty, "unit": "kg"},
			},
			"packingMaterials": []any{
				map[string]any{"id": "PM-1", "name": "Bottle 1L", "quantity": 200.0, "unit": "pcs"},
			},
		},
	})
	if res["result"] != "success" {
		t.Fatalf("seed inventory: %v", res)
	}
	return res["version"].(string)
}

func submitRequest(t *testing.T, b *backend.Backend, resinQty float64) string {
	t.Helper()
	res := b.Invoke(context.Background(), "submit_request", backend.Params{
		"requesterEmail": employeeEmail,
		"requesterName":  "Worker",
		"managerEmail":   managerEmail,
		"productName":    "Cleaner 1L",
		"requestedQty":   50.0,
		"unit":           "pcs",
		"ingredients": []any{
			map[string]any{"itemId": "RM-1", "name": "Resin", "quantity": resinQty},
		},
	})
	if res["result"] != "success" {
		t.Fatalf("submit_request: %v", res)
	}
	id, _ := res["requestId"].(string)
	if id == "" {
		t.Fatal("submit_request returned no requestId")
	}
	// Ids derive from wall-clock milliseconds.
	time.Sleep(2 * time.Millisecond)
	return id
}

func getReq(t *testing.T, s store.Store, id string) *models.Requisition {
	t.Helper()
	var r models.Requisition
	ok, err := s.Get(context.Background(), store.ColRequisitions, id, &r)
	if err != nil || !ok {
		t.Fatalf("get requisition %s: ok=%v err=%v", id, ok, err)
	}
	return &r
}

func getReservation(t *testing.T, s store.Store, id string) *models.Reservation {
	t.Helper()
	var res models.Reservation
	ok, err := s.Get(context.Background(), store.ColReservations, id, &res)
	if err != nil || !ok {
		t.Fatalf("get reservation %s: ok=%v err=%v", id, ok, err)
	}
	return &res
}

func resinStock(t *testing.T, b *backend.Backend) float64 {
	t.Helper()
	doc, ok, err := b.Ledger.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load inventory: ok=%v err=%v", ok, err)
	}
	for _, item := range doc.Data.RawMaterials {
		if item.ID == "RM-1" {
			return item.Quantity
		}
	}
	t.Fatal("RM-1 not in inventory")
	return 0
}

func TestApproveThenIssueFlow(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 10)

	if r := getReq(t, s, id); r.Status != models.StatusSubmitted {
		t.Fatalf("status after submit = %s", r.Status)
	}

	res := b.Invoke(ctx, "approve_request", backend.Params{"id": id, "user": managerEmail})
	if res["result"] != "success" {
		t.Fatalf("approve: %v", res)
	}
	if r := getReq(t, s, id); r.Status != models.StatusApproved {
		t.Fatalf("status after approve = %s", r.Status)
	}
	if hold := getReservation(t, s, id); hold.Status != models.ReservationReserved {
		t.Fatalf("reservation after approve = %s", hold.Status)
	}
	if stock := resinStock(t, b); stock != 100 {
		t.Fatalf("stock deducted at approval: %v", stock)
	}

	res = b.Invoke(ctx, "update_request_stage", backend.Params{"id": id, "stageAction": "ISSUE", "user": "store@example.com"})
	if res["result"] != "success" {
		t.Fatalf("issue: %v", res)
	}
	if res["newStatus"] != models.StatusIssued {
		t.Errorf("newStatus = %v", res["newStatus"])
	}
	r := getReq(t, s, id)
	if r.Status != models.StatusIssued || r.IssuedAt == nil {
		t.Errorf("after issue: status=%s issuedAt=%v", r.Status, r.IssuedAt)
	}
	if stock := resinStock(t, b); stock != 90 {
		t.Errorf("stock after issue = %v, want 90", stock)
	}
	if hold := getReservation(t, s, id); hold.Status != models.ReservationConsumed {
		t.Errorf("reservation after issue = %s", hold.Status)
	}
}

func TestStoreIssueBeforeApproval(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 10)

	res := b.Invoke(ctx, "update_request_stage", backend.Params{"id": id, "stageAction": "ISSUE"})
	if res["result"] != "success" {
		t.Fatalf("issue: %v", res)
	}
	r := getReq(t, s, id)
	if r.Status != models.StatusIssuedPendingApproval {
		t.Fatalf("status = %s, want ISSUED_PENDING_APPROVAL", r.Status)
	}
	// Stock stays put until the manager decides; the hold carries the items.
	if stock := resinStock(t, b); stock != 100 {
		t.Fatalf("stock moved before approval: %v", stock)
	}
	hold := getReservation(t, s, id)
	if hold.Status != models.ReservationReserved || len(hold.Items) != 1 {
		t.Fatalf("reservation = %+v", hold)
	}

	res = b.Invoke(ctx, "approve_request", backend.Params{"id": id, "user": managerEmail})
	if res["result"] != "success" {
		t.Fatalf("approve: %v", res)
	}
	r = getReq(t, s, id)
	if r.Status != models.StatusIssued || r.IssuedAt == nil {
		t.Errorf("after approve: status=%s issuedAt=%v", r.Status, r.IssuedAt)
	}
	if stock := resinStock(t, b); stock != 90 {
		t.Errorf("stock after approve = %v, want 90", stock)
	}
	if hold := getReservation(t, s, id); hold.Status != models.ReservationConsumed {
		t.Errorf("reservation = %s, want consumed", hold.Status)
	}
}

func TestRejectLeavesInventoryAndFinalizes(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 10)

	res := b.Invoke(ctx, "reject_request", backend.Params{"id": id, "user": managerEmail, "reason": "wrong formula"})
	if res["result"] != "success" {
		t.Fatalf("reject: %v", res)
	}
	r := getReq(t, s, id)
	if r.Status != models.StatusRejected || r.StageLabel != models.StageRejected {
		t.Errorf("after reject: status=%s stage=%s", r.Status, r.StageLabel)
	}
	if stock := resinStock(t, b); stock != 100 {
		t.Errorf("stock changed on reject: %v", stock)
	}

	res = b.Invoke(ctx, "approve_request", backend.Params{"id": id, "user": managerEmail})
	if res["result"] != "error" || !strings.Contains(res["error"].(string), "finalized") {
		t.Errorf("approve after reject = %v, want finalized refusal", res)
	}
	res = b.Invoke(ctx, "update_request_stage", backend.Params{"id": id, "stageAction": "ISSUE"})
	if res["result"] != "error" {
		t.Errorf("issue after reject = %v, want refusal", res)
	}
}

func TestRejectAfterApproveReleasesHold(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 10)

	if res := b.Invoke(ctx, "approve_request", backend.Params{"id": id, "user": managerEmail}); res["result"] != "success" {
		t.Fatalf("approve: %v", res)
	}
	if hold := getReservation(t, s, id); hold.Status != models.ReservationReserved {
		t.Fatalf("reservation after approve = %s", hold.Status)
	}

	res := b.Invoke(ctx, "reject_request", backend.Params{"id": id, "user": managerEmail, "reason": "plan changed"})
	if res["result"] != "success" {
		t.Fatalf("reject: %v", res)
	}
	if hold := getReservation(t, s, id); hold.Status != models.ReservationReleased {
		t.Errorf("reservation after reject = %s, want released", hold.Status)
	}
	if stock := resinStock(t, b); stock != 100 {
		t.Errorf("stock changed on reject: %v", stock)
	}

	// A hold that somehow outlives its requisition must not revive it: the
	// sweep releases the hold but leaves the rejected requisition alone.
	err := s.Update(ctx, store.ColReservations, id, map[string]any{
		"status":    models.ReservationReserved,
		"updatedAt": time.Now().UTC().Add(-49 * time.Hour),
	})
	if err != nil {
		t.Fatalf("age reservation: %v", err)
	}
	res = b.Invoke(ctx, "release_expired_reservations", backend.Params{})
	if res["result"] != "success" {
		t.Fatalf("sweep: %v", res)
	}
	if hold := getReservation(t, s, id); hold.Status != models.ReservationReleased {
		t.Errorf("reservation after sweep = %s", hold.Status)
	}
	r := getReq(t, s, id)
	if r.Status != models.StatusRejected || r.StageLabel != models.StageRejected {
		t.Errorf("rejected requisition revived by sweep: status=%s stage=%s", r.Status, r.StageLabel)
	}
}

func TestStoreIssueThenRejectReleasesHold(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 30)

	if res := b.Invoke(ctx, "update_request_stage", backend.Params{"id": id, "stageAction": "ISSUE"}); res["result"] != "success" {
		t.Fatalf("issue: %v", res)
	}
	if r := getReq(t, s, id); r.Status != models.StatusIssuedPendingApproval {
		t.Fatalf("status after issue = %s", r.Status)
	}

	res := b.Invoke(ctx, "reject_request", backend.Params{"id": id, "user": managerEmail, "reason": "wrong batch size"})
	if res["result"] != "success" {
		t.Fatalf("reject: %v", res)
	}
	r := getReq(t, s, id)
	if r.Status != models.StatusRejected || r.StageLabel != models.StageRejected {
		t.Errorf("after reject: status=%s stage=%s", r.Status, r.StageLabel)
	}
	if hold := getReservation(t, s, id); hold.Status != models.ReservationReleased {
		t.Errorf("reservation after reject = %s, want released", hold.Status)
	}
	// The hold never touched the ledger, so rejecting leaves no trace there.
	if stock := resinStock(t, b); stock != 100 {
		t.Errorf("stock = %v, want untouched 100", stock)
	}
	doc, ok, err := b.Ledger.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load inventory: ok=%v err=%v", ok, err)
	}
	if n := len(doc.Data.Transactions); n != 0 {
		t.Errorf("transactions = %d, want none", n)
	}
}

func TestSaveInventoryConflict(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	v1 := seedInventory(t, b, 100)

	res := b.Invoke(ctx, "save_inventory", backend.Params{
		"baseVersion": "12345",
		"data": map[string]any{
			"rawMaterials": []any{map[string]any{"id": "RM-1", "name": "Resin", "quantity": 1.0}},
		},
	})
	if res["result"] != "error" {
		t.Fatalf("stale save accepted: %v", res)
	}
	if res["code"] != "CONFLICT" {
		t.Errorf("code = %v, want CONFLICT", res["code"])
	}
	if res["serverVersion"] != v1 {
		t.Errorf("serverVersion = %v, want %v", res["serverVersion"], v1)
	}
	if stock := resinStock(t, b); stock != 100 {
		t.Errorf("stock mutated by refused save: %v", stock)
	}

	// A save against the current version goes through.
	res = b.Invoke(ctx, "save_inventory", backend.Params{
		"baseVersion": v1,
		"data": map[string]any{
			"rawMaterials": []any{map[string]any{"id": "RM-1", "name": "Resin", "quantity": 80.0}},
		},
	})
	if res["result"] != "success" {
		t.Fatalf("conditional save: %v", res)
	}
	if stock := resinStock(t, b); stock != 80 {
		t.Errorf("stock = %v, want 80", stock)
	}
}

func TestIssueWithShortfallFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 4)
	id := submitRequest(t, b, 10)

	if res := b.Invoke(ctx, "approve_request", backend.Params{"id": id, "user": managerEmail}); res["result"] != "success" {
		t.Fatalf("approve: %v", res)
	}
	res := b.Invoke(ctx, "update_request_stage", backend.Params{"id": id, "stageAction": "ISSUE"})
	if res["result"] != "success" {
		t.Fatalf("issue with shortfall refused: %v", res)
	}
	if r := getReq(t, s, id); r.Status != models.StatusIssued {
		t.Errorf("status = %s, want ISSUED despite shortfall", r.Status)
	}
	if stock := resinStock(t, b); stock != 0 {
		t.Errorf("stock = %v, want floored at 0", stock)
	}
}

func TestReleaseExpiredReservations(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)

	stale := submitRequest(t, b, 10)
	fresh := submitRequest(t, b, 5)
	for _, id := range []string{stale, fresh} {
		if res := b.Invoke(ctx, "approve_request", backend.Params{"id": id, "user": managerEmail}); res["result"] != "success" {
			t.Fatalf("approve %s: %v", id, res)
		}
	}
	age := func(id string, h time.Duration) {
		t.Helper()
		err := s.Update(ctx, store.ColReservations, id, map[string]any{
			"updatedAt": time.Now().UTC().Add(-h),
		})
		if err != nil {
			t.Fatalf("age %s: %v", id, err)
		}
	}
	age(stale, 49*time.Hour)
	age(fresh, 47*time.Hour)

	res := b.Invoke(ctx, "release_expired_reservations", backend.Params{})
	if res["result"] != "success" {
		t.Fatalf("sweep: %v", res)
	}
	released, _ := res["released"].([]string)
	if len(released) != 1 || released[0] != stale {
		t.Fatalf("released = %v, want only %s", released, stale)
	}
	if hold := getReservation(t, s, stale); hold.Status != models.ReservationReleased {
		t.Errorf("stale reservation = %s, want released", hold.Status)
	}
	r := getReq(t, s, stale)
	if r.Status != models.StatusApproved || r.StageLabel != models.StageReservationExpired {
		t.Errorf("stale requisition: status=%s stage=%s", r.Status, r.StageLabel)
	}
	if hold := getReservation(t, s, fresh); hold.Status != models.ReservationReserved {
		t.Errorf("fresh reservation swept: %s", hold.Status)
	}
}

func TestLoginHashSchemes(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)

	// Legacy accounts may carry a sha256 digest or plaintext; both must log in.
	digest := sha256.Sum256([]byte("legacypass" + "legacy@example.com"))
	legacy := models.User{Email: "legacy@example.com", Name: "Legacy", Role: "Store",
		PasswordHash: hex.EncodeToString(digest[:])}
	plain := models.User{Email: "plain@example.com", Name: "Plain", Role: "Store", PasswordHash: "letmein"}
	for _, u := range []models.User{legacy, plain} {
		if err := s.Set(ctx, store.ColUsers, u.Email, u, false); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	res := b.Invoke(ctx, "login", backend.Params{"email": managerEmail, "password": "managerpass"})
	if res["result"] != "success" {
		t.Fatalf("bcrypt login: %v", res)
	}
	if tok, _ := res["token"].(string); tok == "" {
		t.Error("login returned no token")
	}
	user, _ := res["user"].(map[string]any)
	if user["role"] != "Plant Manager" {
		t.Errorf("login user = %v", user)
	}

	res = b.Invoke(ctx, "login", backend.Params{"email": "legacy@example.com", "password": "legacypass"})
	if res["result"] != "success" {
		t.Errorf("sha256 login: %v", res)
	}
	res = b.Invoke(ctx, "login", backend.Params{"email": "plain@example.com", "password": "letmein"})
	if res["result"] != "success" {
		t.Errorf("plaintext login: %v", res)
	}
	res = b.Invoke(ctx, "login", backend.Params{"email": managerEmail, "password": "wrong"})
	if res["result"] != "error" {
		t.Errorf("wrong password logged in: %v", res)
	}
	res = b.Invoke(ctx, "login", backend.Params{"email": "nobody@example.com", "password": "x"})
	if res["result"] != "error" {
		t.Errorf("unknown user logged in: %v", res)
	}
}

func TestUserAdminGates(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	res := b.Invoke(ctx, "add_user", backend.Params{
		"adminEmail":      employeeEmail,
		"newUserEmail":    "new@example.com",
		"defaultPassword": "temp1234",
	})
	if res["result"] != "error" || !strings.Contains(res["error"].(string), "manager or admin") {
		t.Errorf("employee added a user: %v", res)
	}

	res = b.Invoke(ctx, "add_user", backend.Params{
		"adminEmail":      managerEmail,
		"newUserEmail":    "new@example.com",
		"name":            "New Person",
		"role":            "Store",
		"defaultPassword": "temp1234",
	})
	if res["result"] != "success" {
		t.Fatalf("manager add_user: %v", res)
	}
	res = b.Invoke(ctx, "login", backend.Params{"email": "new@example.com", "password": "temp1234"})
	if res["result"] != "success" {
		t.Errorf("new user login: %v", res)
	}

	res = b.Invoke(ctx, "delete_user", backend.Params{"adminEmail": managerEmail, "userEmail": managerEmail})
	if res["result"] != "error" || !strings.Contains(res["error"].(string), "own account") {
		t.Errorf("self-delete allowed: %v", res)
	}
	res = b.Invoke(ctx, "delete_user", backend.Params{"adminEmail": managerEmail, "userEmail": "new@example.com"})
	if res["result"] != "success" {
		t.Errorf("delete_user: %v", res)
	}
	res = b.Invoke(ctx, "login", backend.Params{"email": "new@example.com", "password": "temp1234"})
	if res["result"] != "error" {
		t.Errorf("deleted user logged in: %v", res)
	}
}

func TestDispatchLifecycle(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 10)

	res := b.Invoke(ctx, "request_dispatch", backend.Params{
		"requestId": id, "productName": "Cleaner 1L", "quantity": 50.0,
	})
	if res["result"] != "error" || !strings.Contains(res["error"].(string), "produced") {
		t.Fatalf("dispatch of unproduced request: %v", res)
	}

	if err := s.Update(ctx, store.ColRequisitions, id, map[string]any{"status": models.StatusProduced}); err != nil {
		t.Fatalf("mark produced: %v", err)
	}
	res = b.Invoke(ctx, "request_dispatch", backend.Params{
		"requestId": id, "productName": "Cleaner 1L", "quantity": 50.0, "user": "Store",
	})
	if res["result"] != "success" {
		t.Fatalf("request_dispatch: %v", res)
	}
	dispatchID, _ := res["dispatchId"].(string)
	if dispatchID == "" {
		t.Fatal("no dispatchId returned")
	}

	res = b.Invoke(ctx, "approve_dispatch", backend.Params{"dispatchId": dispatchID, "adminEmail": employeeEmail})
	if res["result"] != "error" {
		t.Errorf("employee approved dispatch: %v", res)
	}
	res = b.Invoke(ctx, "approve_dispatch", backend.Params{"dispatchId": dispatchID, "adminEmail": managerEmail})
	if res["result"] != "success" {
		t.Fatalf("approve_dispatch: %v", res)
	}
	res = b.Invoke(ctx, "approve_dispatch", backend.Params{"dispatchId": dispatchID, "adminEmail": managerEmail})
	if res["result"] != "error" || !strings.Contains(res["error"].(string), "already approved") {
		t.Errorf("re-approval allowed: %v", res)
	}

	res = b.Invoke(ctx, "get_dispatches_for_request", backend.Params{"requestId": id})
	list, _ := res["dispatches"].([]models.Dispatch)
	if len(list) != 1 || list[0].Status != models.DispatchApproved || !list[0].MainInvSynced {
		t.Errorf("dispatches = %+v", list)
	}
}

func TestWIPBatchSync(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 10)

	res := b.Invoke(ctx, "save_wip_batch", backend.Params{
		"batchId": "B-1", "linkedReqId": id, "productName": "Cleaner 1L", "targetQty": 50.0,
	})
	if res["result"] != "success" {
		t.Fatalf("save_wip_batch: %v", res)
	}
	if r := getReq(t, s, id); r.BatchID != "B-1" {
		t.Fatalf("batch not linked: %+v", r)
	}

	res = b.Invoke(ctx, "sync_wip_to_req", backend.Params{"batchId": "B-1", "status": "completed"})
	if res["result"] != "success" {
		t.Fatalf("sync_wip_to_req: %v", res)
	}
	r := getReq(t, s, id)
	if r.Status != models.StatusProduced || r.StageLabel != models.StageAwaitingDispatch || r.ProducedAt == nil {
		t.Errorf("after batch completion: status=%s stage=%s producedAt=%v", r.Status, r.StageLabel, r.ProducedAt)
	}

	res = b.Invoke(ctx, "sync_wip_to_req", backend.Params{"batchId": "B-missing", "status": "completed"})
	if res["result"] != "success" || res["message"] != "Batch not found or already synced" {
		t.Errorf("missing batch sync = %v", res)
	}
}

func TestWIPActionMirrorsBatch(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 10)
	if res := b.Invoke(ctx, "save_wip_batch", backend.Params{"batchId": "B-2", "linkedReqId": id}); res["result"] != "success" {
		t.Fatalf("save_wip_batch: %v", res)
	}

	res := b.Invoke(ctx, "wip_action_req", backend.Params{"id": id, "wipAction": "PAUSE", "reason": "mixer down", "email": employeeEmail})
	if res["result"] != "success" {
		t.Fatalf("pause: %v", res)
	}
	if r := getReq(t, s, id); r.Status != models.StatusPaused {
		t.Errorf("status after pause = %s", r.Status)
	}
	var batch models.WIPBatch
	if ok, _ := s.Get(ctx, store.ColWIPBatches, "B-2", &batch); !ok || batch.Status != models.BatchPaused {
		t.Errorf("batch after pause = %+v", batch)
	}

	res = b.Invoke(ctx, "wip_action_req", backend.Params{"id": id, "wipAction": "COMPLETE", "email": employeeEmail})
	if res["result"] != "success" {
		t.Fatalf("complete: %v", res)
	}
	if r := getReq(t, s, id); r.Status != models.StatusCompleted {
		t.Errorf("status after complete = %s", r.Status)
	}
	if ok, _ := s.Get(ctx, store.ColWIPBatches, "B-2", &batch); !ok || batch.Status != models.BatchCompleted {
		t.Errorf("batch after complete = %+v", batch)
	}

	res = b.Invoke(ctx, "wip_action_req", backend.Params{"id": id, "wipAction": "CANCEL", "email": employeeEmail})
	if res["result"] != "error" {
		t.Errorf("action after completion allowed: %v", res)
	}
}

func TestStageBucketsAndCounts(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	seedInventory(t, b, 100)

	submitted := submitRequest(t, b, 5)
	approved := submitRequest(t, b, 5)
	if res := b.Invoke(ctx, "approve_request", backend.Params{"id": approved, "user": managerEmail}); res["result"] != "success" {
		t.Fatalf("approve: %v", res)
	}
	issued := submitRequest(t, b, 5)
	if res := b.Invoke(ctx, "approve_request", backend.Params{"id": issued, "user": managerEmail}); res["result"] != "success" {
		t.Fatalf("approve: %v", res)
	}
	if res := b.Invoke(ctx, "update_request_stage", backend.Params{"id": issued, "stageAction": "ISSUE"}); res["result"] != "success" {
		t.Fatalf("issue: %v", res)
	}

	res := b.Invoke(ctx, "get_requests_by_stage", backend.Params{"stage": "PENDING_APPROVALS"})
	rows, _ := res["requests"].([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != submitted {
		t.Errorf("PENDING_APPROVALS = %v", rows)
	}
	res = b.Invoke(ctx, "get_requests_by_stage", backend.Params{"stage": "PENDING_ISSUE"})
	if total, _ := res["totalMatches"].(int); total != 2 {
		t.Errorf("PENDING_ISSUE totalMatches = %v", res["totalMatches"])
	}
	res = b.Invoke(ctx, "get_requests_by_stage", backend.Params{"stage": "WIP"})
	rows, _ = res["requests"].([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != issued {
		t.Errorf("WIP = %v", rows)
	}

	res = b.Invoke(ctx, "get_stage_counts", backend.Params{})
	counts, _ := res["counts"].(map[string]int)
	if counts["PENDING_APPROVALS"] != 1 || counts["PENDING_ISSUE"] != 2 || counts["WIP"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if counts["TODAY_ISSUED"] != 1 {
		t.Errorf("TODAY_ISSUED = %d, want 1", counts["TODAY_ISSUED"])
	}

	res = b.Invoke(ctx, "get_my_requests", backend.Params{"email": employeeEmail})
	rows, _ = res["requests"].([]map[string]any)
	if len(rows) != 3 {
		t.Errorf("my requests = %d, want 3", len(rows))
	}
}

func TestAdminOverrideValidatesStatus(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	seedInventory(t, b, 100)
	id := submitRequest(t, b, 5)

	res := b.Invoke(ctx, "admin_override", backend.Params{"id": id, "adminEmail": managerEmail, "status": "SHIPPED"})
	if res["result"] != "error" || !strings.Contains(res["error"].(string), "unknown status") {
		t.Errorf("unknown status accepted: %v", res)
	}
	res = b.Invoke(ctx, "admin_override", backend.Params{"id": id, "adminEmail": managerEmail, "status": "paused"})
	if res["result"] != "success" {
		t.Fatalf("admin_override: %v", res)
	}
	if r := getReq(t, s, id); r.Status != models.StatusPaused {
		t.Errorf("status = %s, want PAUSED", r.Status)
	}
	res = b.Invoke(ctx, "admin_override", backend.Params{"id": id, "adminEmail": employeeEmail, "status": "ISSUED"})
	if res["result"] != "error" {
		t.Errorf("employee override allowed: %v", res)
	}
}

func TestInvokeEnvelope(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	res := b.Invoke(ctx, "no_such_action", backend.Params{})
	if res["result"] != "error" || !strings.Contains(res["error"].(string), "invalid action") {
		t.Errorf("unknown action envelope = %v", res)
	}
	res = b.Invoke(ctx, "test_connection", nil)
	if res["result"] != "success" || res["status"] != "Online" {
		t.Errorf("test_connection = %v", res)
	}
}
