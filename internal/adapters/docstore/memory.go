package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"tg-challenge-backend/internal/domain"
)

// Memory — документное хранилище в памяти. Используется в тестах как
// замена настоящих драйверов; семантика вызовов та же.
type Memory struct {
	mu    sync.Mutex
	docs  map[string]map[string]map[string]any
	order map[string][]string
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]map[string]map[string]any),
		order: make(map[string][]string),
	}
}

func (m *Memory) collection(name string) map[string]map[string]any {
	coll, ok := m.docs[name]
	if !ok {
		coll = make(map[string]map[string]any)
		m.docs[name] = coll
	}
	return coll
}

func (m *Memory) doc(collection, id string) map[string]any {
	coll := m.collection(collection)
	doc, ok := coll[id]
	if !ok {
		doc = make(map[string]any)
		coll[id] = doc
		m.order[collection] = append(m.order[collection], id)
	}
	return doc
}

func normalize(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get читает документ в out.
func (m *Memory) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collection(collection)[id]
	if !ok {
		return false, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}

// Set пишет документ, с merge или перезаписью.
func (m *Memory) Set(ctx context.Context, collection, id string, doc any, merge bool) error {
	fields, err := normalize(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !merge {
		coll := m.collection(collection)
		if _, ok := coll[id]; !ok {
			m.order[collection] = append(m.order[collection], id)
		}
		coll[id] = fields
		return nil
	}
	stored := m.doc(collection, id)
	for k, v := range fields {
		stored[k] = v
	}
	return nil
}

// Increment атомарно сдвигает числовое поле.
func (m *Memory) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.doc(collection, id)
	current, _ := doc[field].(float64)
	doc[field] = current + float64(delta)
	return nil
}

// Append атомарно дописывает элемент в массив.
func (m *Memory) Append(ctx context.Context, collection, id, field string, element any) error {
	normalized, err := normalizeValue(element)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.doc(collection, id)
	arr, _ := doc[field].([]any)
	doc[field] = append(arr, normalized)
	return nil
}

// List возвращает документы в порядке вставки.
func (m *Memory) List(ctx context.Context, collection string, filter map[string]any, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection)
	result := make([]map[string]any, 0, len(coll))
	for _, id := range m.order[collection] {
		doc, ok := coll[id]
		if !ok {
			continue
		}
		if !matches(doc, filter) {
			continue
		}
		withID := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			withID[k] = v
		}
		if _, ok := withID["id"]; !ok {
			withID["id"] = id
		}
		result = append(result, withID)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(doc map[string]any, filter map[string]any) bool {
	for field, want := range filter {
		got, ok := doc[field]
		if !ok {
			return false
		}
		gotRaw, err := json.Marshal(got)
		if err != nil {
			return false
		}
		wantRaw, err := json.Marshal(want)
		if err != nil {
			return false
		}
		if !bytes.Equal(gotRaw, wantRaw) {
			return false
		}
	}
	return true
}

// Dump возвращает сырой документ, удобно в тестах.
func (m *Memory) Dump(collection, id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collection(collection)[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, true
}

var _ domain.DocStore = (*Memory)(nil)
