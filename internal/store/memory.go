package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryBackend keeps documents in process. Fields are stored as JSON so
// that readers see the same value shapes the SQL backends produce.
type MemoryBackend struct {
	mu   sync.RWMutex
	seq  int64
	docs map[string]map[string]memoryDoc
}

type memoryDoc struct {
	order int64
	seq   int64
	data  []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]map[string]memoryDoc)}
}

// NewMemory is a PushStore over a fresh MemoryBackend.
func NewMemory(opts ...Option) *PushStore {
	return NewPushStore(NewMemoryBackend(), opts...)
}

func (m *MemoryBackend) Get(_ context.Context, path, key string) (Document, bool, error) {
	m.mu.RLock()
	d, ok := m.docs[path][key]
	m.mu.RUnlock()
	if !ok {
		return Document{}, false, nil
	}
	doc, err := d.decode(path, key)
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

func (m *MemoryBackend) Put(_ context.Context, doc Document) error {
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.docs[doc.Path]
	if !ok {
		byKey = make(map[string]memoryDoc)
		m.docs[doc.Path] = byKey
	}
	seq := byKey[doc.Key].seq
	if seq == 0 {
		m.seq++
		seq = m.seq
	}
	byKey[doc.Key] = memoryDoc{order: doc.Order, seq: seq, data: data}
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, path, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[path], key)
	return nil
}

func (m *MemoryBackend) LastN(_ context.Context, path string, n int) ([]Document, error) {
	m.mu.RLock()
	type entry struct {
		key string
		doc memoryDoc
	}
	entries := make([]entry, 0, len(m.docs[path]))
	for k, d := range m.docs[path] {
		entries = append(entries, entry{k, d})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].doc.order != entries[j].doc.order {
			return entries[i].doc.order < entries[j].doc.order
		}
		return entries[i].doc.seq < entries[j].doc.seq
	})
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		doc, err := e.doc.decode(path, e.key)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *MemoryBackend) Close() error { return nil }

func (d memoryDoc) decode(path, key string) (Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(d.data, &fields); err != nil {
		return Document{}, fmt.Errorf("unmarshal %s/%s: %w", path, key, err)
	}
	return Document{Path: path, Key: key, Order: d.order, Seq: d.seq, Fields: fields}, nil
}
