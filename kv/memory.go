package kv

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

type memoryEntry struct {
	key   string
	value []byte
}

// Memory is an in-process Store. When a byte capacity is configured the
// least recently used entries are evicted to stay under it, which makes it
// suitable as a small overlay in front of a durable store.
type Memory struct {
	mutex    sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	size     int64
	maxBytes int64
	closed   bool
}

var _ Store = (*Memory)(nil)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMaxBytes bounds the total size of stored values. Zero means unbounded.
func WithMaxBytes(n int64) MemoryOption {
	return func(m *Memory) {
		m.maxBytes = n
	}
}

// NewMemory returns a new in-memory Store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	el, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	m.order.MoveToFront(el)
	entry := el.Value.(*memoryEntry)
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		m.size += int64(len(stored)) - int64(len(entry.value))
		entry.value = stored
		m.order.MoveToFront(el)
	} else {
		el := m.order.PushFront(&memoryEntry{key: key, value: stored})
		m.entries[key] = el
		m.size += int64(len(stored))
	}
	m.evict()
	return nil
}

// evict drops least recently used entries until under capacity. Caller holds the lock.
func (m *Memory) evict() {
	if m.maxBytes <= 0 {
		return
	}
	for m.size > m.maxBytes && m.order.Len() > 1 {
		el := m.order.Back()
		if el == nil {
			return
		}
		entry := el.Value.(*memoryEntry)
		m.order.Remove(el)
		delete(m.entries, entry.key)
		m.size -= int64(len(entry.value))
	}
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		m.order.Remove(el)
		delete(m.entries, key)
		m.size -= int64(len(entry.value))
	}
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *Memory) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	m.entries = make(map[string]*list.Element)
	m.order.Init()
	m.size = 0
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.entries)
}
