package storage

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultCacheCapacity bounds the in-process cache when no capacity is
// configured.
const DefaultCacheCapacity = 256

// MemoryKV is an in-process least-recently-used KV with per-entry expiry.
// When full, the entry that was accessed least recently is evicted.
type MemoryKV struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	now func() time.Time
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemoryKV creates an in-process KV holding at most capacity entries.
func NewMemoryKV(capacity int) *MemoryKV {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &MemoryKV{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		m.remove(el)
		return nil, false
	}
	m.order.MoveToFront(el)
	return entry.value, true
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = m.now().Add(ttl)
		m.order.MoveToFront(el)
		return
	}

	for m.order.Len() >= m.capacity {
		m.remove(m.order.Back())
	}
	el := m.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: m.now().Add(ttl)})
	m.entries[key] = el
}

func (m *MemoryKV) DeletePrefix(_ context.Context, prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, el := range m.entries {
		if strings.HasPrefix(key, prefix) {
			m.remove(el)
		}
	}
}

// Len reports the number of live entries, expired ones included until they
// are touched or evicted.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *MemoryKV) remove(el *list.Element) {
	if el == nil {
		return
	}
	entry := el.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.order.Remove(el)
}
