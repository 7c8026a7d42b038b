// Package memory provides an in-memory columns.Store for testing.
// Data is not persisted; not suitable for production.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/inboxkit/mailstore/columns"
)

// Store implements columns.Store with in-memory maps.
// Thread-safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	rows      map[string]map[string]map[string][]byte // table -> key -> name -> value
	counters  map[string]map[string]map[string]int64  // table -> key -> name -> value
	connected int32
}

var _ columns.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		rows:     make(map[string]map[string]map[string][]byte),
		counters: make(map[string]map[string]map[string]int64),
	}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 1)
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) row(table, key string) map[string][]byte {
	t, ok := s.rows[table]
	if !ok {
		return nil
	}
	return t[key]
}

func (s *Store) ensureRow(table, key string) map[string][]byte {
	t, ok := s.rows[table]
	if !ok {
		t = make(map[string]map[string][]byte)
		s.rows[table] = t
	}
	r, ok := t[key]
	if !ok {
		r = make(map[string][]byte)
		t[key] = r
	}
	return r
}

// Get returns the named columns of a row.
func (s *Store) Get(_ context.Context, table, key string, names []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(names))
	r := s.row(table, key)
	if r == nil {
		return out, nil
	}
	for _, name := range names {
		if v, ok := r[name]; ok {
			out[name] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// Row returns every column of a row in name order.
func (s *Store) Row(_ context.Context, table, key string) ([]columns.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.row(table, key)
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]columns.Column, 0, len(names))
	for _, name := range names {
		out = append(out, columns.Column{Name: name, Value: append([]byte(nil), r[name]...)})
	}
	return out, nil
}

// Slice returns up to count columns starting after start.
func (s *Store) Slice(ctx context.Context, table, key, start string, count int, reverse bool) ([]columns.Column, error) {
	all, err := s.Row(ctx, table, key)
	if err != nil {
		return nil, err
	}
	if reverse {
		// Descend from the end, or from just below start.
		out := make([]columns.Column, 0, count)
		for i := len(all) - 1; i >= 0 && len(out) < count; i-- {
			if start != "" && all[i].Name >= start {
				continue
			}
			out = append(out, all[i])
		}
		return out, nil
	}
	out := make([]columns.Column, 0, count)
	for _, c := range all {
		if len(out) >= count {
			break
		}
		if c.Name > start {
			out = append(out, c)
		}
	}
	return out, nil
}

// Keys returns up to count row keys sharing prefix, after start.
func (s *Store) Keys(_ context.Context, table, prefix, start string, count int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.rows[table]
	keys := make([]string, 0, len(t))
	for k := range t {
		if strings.HasPrefix(k, prefix) && k > start {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > count {
		keys = keys[:count]
	}
	return keys, nil
}

// Apply applies a batch of mutations.
func (s *Store) Apply(_ context.Context, b *columns.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range b.Mutations() {
		switch m.Op {
		case columns.OpInsert:
			r := s.ensureRow(m.Table, m.Key)
			for _, c := range m.Columns {
				r[c.Name] = append([]byte(nil), c.Value...)
			}
		case columns.OpDeleteColumns:
			if r := s.row(m.Table, m.Key); r != nil {
				for _, name := range m.Names {
					delete(r, name)
				}
				if len(r) == 0 {
					delete(s.rows[m.Table], m.Key)
				}
			}
		case columns.OpDeleteRow:
			if t := s.rows[m.Table]; t != nil {
				delete(t, m.Key)
			}
		case columns.OpAddCounters:
			s.addCounters(m.Table, m.Key, m.Deltas)
		}
	}
	return nil
}

func (s *Store) addCounters(table, key string, deltas map[string]int64) {
	t, ok := s.counters[table]
	if !ok {
		t = make(map[string]map[string]int64)
		s.counters[table] = t
	}
	r, ok := t[key]
	if !ok {
		r = make(map[string]int64)
		t[key] = r
	}
	for name, d := range deltas {
		r[name] += d
	}
}

// AddCounters atomically adds counter deltas.
func (s *Store) AddCounters(_ context.Context, table, key string, deltas map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCounters(table, key, deltas)
	return nil
}

// GetCounters returns the named counter values.
func (s *Store) GetCounters(_ context.Context, table, key string, names []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(names))
	t := s.counters[table]
	if t == nil {
		return out, nil
	}
	r := t[key]
	for _, name := range names {
		if v, ok := r[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

// RowCounters returns every counter column of a row.
func (s *Store) RowCounters(_ context.Context, table, key string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64)
	if t := s.counters[table]; t != nil {
		for name, v := range t[key] {
			out[name] = v
		}
	}
	return out, nil
}

// DeleteCounters removes the named counter columns, or the row when empty.
func (s *Store) DeleteCounters(_ context.Context, table, key string, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.counters[table]
	if t == nil {
		return nil
	}
	if len(names) == 0 {
		delete(t, key)
		return nil
	}
	if r := t[key]; r != nil {
		for _, name := range names {
			delete(r, name)
		}
		if len(r) == 0 {
			delete(t, key)
		}
	}
	return nil
}
