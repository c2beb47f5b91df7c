package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and local development. Documents
// are kept as their JSON encoding so reads decode through the same path as a
// real store round-trip.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage // collection -> key -> doc
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]json.RawMessage)}
}

func (m *Memory) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[collection][FoldKey(id)]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, value any, merge bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := FoldKey(id)
	coll := m.collection(collection)
	if merge {
		if existing, ok := coll[key]; ok {
			merged, err := mergeDocs(existing, raw)
			if err != nil {
				return err
			}
			coll[key] = merged
			return nil
		}
	}
	coll[key] = raw
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := FoldKey(id)
	coll := m.collection(collection)
	existing, ok := coll[key]
	if !ok {
		return fmt.Errorf("update %s/%s: document not found", collection, id)
	}
	merged, err := mergeDocs(existing, raw)
	if err != nil {
		return err
	}
	coll[key] = merged
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collection(collection), FoldKey(id))
	return nil
}

func (m *Memory) Add(ctx context.Context, collection string, value any) (string, error) {
	id := uuid.New().String()
	if err := m.Set(ctx, collection, id, value, false); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) QueryEqual(ctx context.Context, collection, field string, value any, out any) error {
	want := normalize(value)
	return m.collect(collection, out, func(doc map[string]any) bool {
		return reflect.DeepEqual(doc[field], want)
	})
}

func (m *Memory) ScanAll(ctx context.Context, collection string, out any) error {
	return m.collect(collection, out, func(map[string]any) bool { return true })
}

func (m *Memory) collect(collection string, out any, keep func(map[string]any) bool) error {
	m.mu.RLock()
	coll := m.data[collection]
	keys := make([]string, 0, len(coll))
	for k := range coll {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	matched := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		var doc map[string]any
		if err := json.Unmarshal(coll[k], &doc); err != nil {
			m.mu.RUnlock()
			return err
		}
		if keep(doc) {
			matched = append(matched, coll[k])
		}
	}
	m.mu.RUnlock()
	raw, err := json.Marshal(matched)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// collection must be called with the write lock held.
func (m *Memory) collection(name string) map[string]json.RawMessage {
	coll, ok := m.data[name]
	if !ok {
		coll = make(map[string]json.RawMessage)
		m.data[name] = coll
	}
	return coll
}

func mergeDocs(existing, incoming json.RawMessage) (json.RawMessage, error) {
	var base, patch map[string]any
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(incoming, &patch); err != nil {
		return nil, err
	}
	for k, v := range patch {
		base[k] = v
	}
	return json.Marshal(base)
}

// normalize maps a Go value onto its JSON-decoded shape so equality checks
// match what Get and ScanAll return.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
