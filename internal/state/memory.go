package state

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used when no sqlite path is configured.
type Memory struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.items[key]
	return val, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Scan returns up to limit entries with the prefix, newest key first.
func (m *Memory) Scan(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for key, val := range m.items {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Entry{Key: key, Value: val})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
