// Package memory implementa kvstore.Client en memoria. Se usa en tests y en
// modo dev (storage.driver: memory). Pagina de verdad para que los tests
// ejerciten el drain de cursores igual que el backend real.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pagopa/interop-token-platform/internal/kvstore"
)

type Store struct {
	mu     sync.RWMutex
	tables map[kvstore.Table]map[string][]byte
}

func New() *Store {
	return &Store{
		tables: map[kvstore.Table]map[string][]byte{
			kvstore.TablePlatformStates: {},
			kvstore.TableTokenGenStates: {},
		},
	}
}

func (s *Store) Get(_ context.Context, table kvstore.Table, pk string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.tables[table][pk]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (s *Store) Put(_ context.Context, table kvstore.Table, pk string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table][pk]; ok {
		return kvstore.ErrConflict
	}
	s.tables[table][pk] = clone(doc)
	return nil
}

func (s *Store) Update(_ context.Context, table kvstore.Table, pk string, doc []byte, cond kvstore.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tables[table][pk]
	if !ok {
		return kvstore.ErrNotFound
	}
	if err := checkCondition(stored, cond); err != nil {
		return err
	}
	s.tables[table][pk] = clone(doc)
	return nil
}

func (s *Store) Delete(_ context.Context, table kvstore.Table, pk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[table], pk)
	return nil
}

func (s *Store) Query(_ context.Context, table kvstore.Table, index kvstore.Index, value, cursor string, limit int) (kvstore.Page, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// scan ordenado por PK para que el cursor sea estable
	pks := make([]string, 0, len(s.tables[table]))
	for pk := range s.tables[table] {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	var page kvstore.Page
	for _, pk := range pks {
		if cursor != "" && pk <= cursor {
			continue
		}
		doc := s.tables[table][pk]
		if attrString(doc, string(index)) != value {
			continue
		}
		page.Items = append(page.Items, clone(doc))
		if len(page.Items) == limit {
			page.Cursor = pk
			break
		}
	}
	return page, nil
}

func checkCondition(stored []byte, cond kvstore.Condition) error {
	if cond.VersionBelow > 0 {
		var v struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(stored, &v); err != nil {
			return err
		}
		if v.Version >= cond.VersionBelow {
			return kvstore.ErrConditionFailed
		}
	}
	if cond.RequireAttr != "" {
		if attrString(stored, cond.RequireAttr) == "" {
			return kvstore.ErrConditionFailed
		}
	}
	return nil
}

func attrString(doc []byte, attr string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return ""
	}
	raw, ok := m[attr]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
