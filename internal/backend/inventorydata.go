package backend

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

func (b *Backend) getDB(ctx context.Context, p Params) (Result, error) {
	doc, exists, err := b.Ledger.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return Result{"status": "success", "data": nil}, nil
	}
	return Result{
		"status":  "success",
		"data":    doc.Data,
		"version": doc.LatestID,
	}, nil
}

// saveInventory replaces the ledger snapshot. With a base version the write is
// conditional; without one it is last-writer-wins, reserved for imports.
func (b *Backend) saveInventory(ctx context.Context, p Params) (Result, error) {
	raw, ok := p["data"]
	if !ok || raw == nil {
		return nil, validationf("inventory data required")
	}
	data, payloadVersion, err := decodeInventoryPayload(raw)
	if err != nil {
		return nil, validationf("malformed inventory payload: %v", err)
	}
	baseVersion := p.str("baseVersion")
	if baseVersion == "" {
		baseVersion = payloadVersion
	}
	version, err := b.Ledger.Save(ctx, data, baseVersion)
	if err != nil {
		return nil, err
	}
	user := p.str("user", "userEmail")
	if user == "" {
		user = "inventory_app"
	}
	b.audit(ctx, "inventory_sync", user, map[string]any{"version": version})
	return Result{"status": "success", "version": version}, nil
}

// decodeInventoryPayload accepts the shapes inventory clients send: a JSON
// string or object, optionally wrapped in {"data": ...}, with the category
// arrays either at the top level or nested under "inventory". A baseVersion
// travelling inside the payload is returned alongside.
func decodeInventoryPayload(v any) (models.InventoryData, string, error) {
	var raw []byte
	switch t := v.(type) {
	case string:
		raw = []byte(t)
	default:
		encoded, err := json.Marshal(store.Sanitize(v))
		if err != nil {
			return models.InventoryData{}, "", err
		}
		raw = encoded
	}

	var node map[string]json.RawMessage
	if err := json.Unmarshal(raw, &node); err != nil {
		return models.InventoryData{}, "", err
	}
	version := rawString(node["baseVersion"])
	if inner, ok := node["data"]; ok {
		var innerNode map[string]json.RawMessage
		if err := json.Unmarshal(inner, &innerNode); err == nil {
			if hasInventoryShape(innerNode) {
				node = innerNode
				raw = inner
			}
		}
	}

	var data models.InventoryData
	if invRaw, ok := node["inventory"]; ok {
		if err := json.Unmarshal(invRaw, &data); err != nil {
			return models.InventoryData{}, "", err
		}
		if txRaw, ok := node["transactions"]; ok {
			if err := json.Unmarshal(txRaw, &data.Transactions); err != nil {
				return models.InventoryData{}, "", err
			}
		}
		return data, version, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return models.InventoryData{}, "", err
	}
	return data, version, nil
}

func hasInventoryShape(node map[string]json.RawMessage) bool {
	for _, key := range []string{"inventory", "rawMaterials", "packingMaterials", "labels", "finishedGoods", "transactions"} {
		if _, ok := node[key]; ok {
			return true
		}
	}
	return false
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// formData derives the selection lists the request form needs from the
// inventory snapshot and the user list.
func (b *Backend) formData(ctx context.Context) (map[string]any, error) {
	products := []map[string]any{}
	materials := []map[string]any{}
	rawMaterials := []map[string]any{}
	packingMaterials := []map[string]any{}
	labels := []map[string]any{}

	doc, exists, err := b.Ledger.Load(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		toItem := func(i models.InventoryItem) map[string]any {
			id := i.ID
			if id == "" {
				id = i.Name
			}
			unit := i.Unit
			if unit == "" {
				unit = "Units"
			}
			return map[string]any{"id": id, "name": firstOf(i.Name, i.ID), "unit": unit}
		}
		withCategory := func(item map[string]any, category string) map[string]any {
			out := map[string]any{"category": category}
			for k, v := range item {
				out[k] = v
			}
			return out
		}
		for _, i := range doc.Data.RawMaterials {
			item := toItem(i)
			rawMaterials = append(rawMaterials, item)
			materials = append(materials, withCategory(item, "raw"))
		}
		for _, i := range doc.Data.PackingMaterials {
			item := toItem(i)
			packingMaterials = append(packingMaterials, item)
			materials = append(materials, withCategory(item, "packing"))
		}
		for _, i := range doc.Data.Labels {
			item := toItem(i)
			labels = append(labels, item)
			materials = append(materials, withCategory(item, "labels"))
		}
		for _, i := range doc.Data.FinishedGoods {
			products = append(products, toItem(i))
		}
	}

	managers := []map[string]any{}
	approvers := []string{}
	var users []models.User
	if err := b.Store.ScanAll(ctx, store.ColUsers, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		role := strings.ToLower(u.Role)
		if role == "" {
			continue
		}
		if strings.Contains(role, "manager") || strings.Contains(role, "admin") {
			managers = append(managers, map[string]any{"name": u.Name, "email": u.Email})
			approvers = append(approvers, u.Name)
		}
	}

	return map[string]any{
		"products":         products,
		"materials":        materials,
		"rawMaterials":     rawMaterials,
		"packingMaterials": packingMaterials,
		"labels":           labels,
		"managers":         managers,
		"employees":        []map[string]any{},
		"departments":      []string{},
		"approvers":        approvers,
	}, nil
}

func (b *Backend) getFormData(ctx context.Context, p Params) (Result, error) {
	data, err := b.formData(ctx)
	if err != nil {
		return nil, err
	}
	out := Result{}
	for k, v := range data {
		out[k] = v
	}
	return out, nil
}

func (b *Backend) getFormProducts(ctx context.Context, p Params) (Result, error) {
	data, err := b.formData(ctx)
	if err != nil {
		return nil, err
	}
	return Result{"products": data["products"]}, nil
}

func (b *Backend) getLists(ctx context.Context, p Params) (Result, error) {
	data, err := b.formData(ctx)
	if err != nil {
		return nil, err
	}
	delete(data, "managers")
	return Result{"data": data}, nil
}
