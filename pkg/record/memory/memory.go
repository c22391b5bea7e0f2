// Package memory provides an in-memory record.Store. It enforces the unique and
// not-null constraints declared on each Meta so reconciliation behaves the same
// way it does against a database, which makes it the default backend for tests
// and for the CLI's dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-formset/pkg/record"
)

var _ record.Store = (*Store)(nil)

type table struct {
	nextID int64
	rows   map[int64]map[string]any
}

// Store keeps rows per table behind a mutex. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) tableFor(meta *record.Meta) *table {
	name := meta.TableName()
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: make(map[int64]map[string]any)}
		s.tables[name] = t
	}
	return t
}

// Get returns a copy of the row identified by pk.
func (s *Store) Get(ctx context.Context, meta *record.Meta, pk any) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, ok := record.Int64(pk)
	if !ok {
		return nil, fmt.Errorf("memory: %s: %w", meta.Name, record.ErrNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, record.ErrClosed
	}
	t, ok := s.tables[meta.TableName()]
	if !ok {
		return nil, fmt.Errorf("memory: %s(%d): %w", meta.Name, id, record.ErrNotFound)
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, fmt.Errorf("memory: %s(%d): %w", meta.Name, id, record.ErrNotFound)
	}
	return toRecord(meta, row), nil
}

// Save inserts or updates rec, assigning a primary key to new rows.
func (s *Store) Save(ctx context.Context, rec *record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.Meta == nil {
		return fmt.Errorf("memory: record and meta are required")
	}
	values, err := record.CoerceValues(rec)
	if err != nil {
		return fmt.Errorf("memory: save %s: %w", rec.Meta.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return record.ErrClosed
	}

	meta := rec.Meta
	t := s.tableFor(meta)
	row := make(map[string]any, len(values)+1)
	for idx, col := range meta.Columns {
		row[col.Name] = values[idx]
	}

	var id int64
	if !rec.IsNew() {
		existing, ok := record.Int64(rec.PK())
		if !ok {
			return fmt.Errorf("memory: save %s: %w: primary key %v", meta.Name, record.ErrInvalidValue, rec.PK())
		}
		if _, found := t.rows[existing]; !found {
			return fmt.Errorf("memory: update %s(%d): %w", meta.Name, existing, record.ErrNotFound)
		}
		id = existing
	}

	if err := checkUnique(meta, t, id, row); err != nil {
		return err
	}

	if id == 0 {
		t.nextID++
		id = t.nextID
	}
	row[meta.PK()] = id
	t.rows[id] = row
	rec.Set(meta.PK(), id)
	return nil
}

// Delete removes rec. Deleting an unsaved or already removed record is a no-op.
func (s *Store) Delete(ctx context.Context, rec *record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.IsNew() {
		return nil
	}
	id, ok := record.Int64(rec.PK())
	if !ok {
		return fmt.Errorf("memory: delete %s: %w", rec.Meta.Name, record.ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return record.ErrClosed
	}
	if t, ok := s.tables[rec.Meta.TableName()]; ok {
		delete(t.rows, id)
	}
	return nil
}

// List returns every row of meta ordered by primary key.
func (s *Store) List(ctx context.Context, meta *record.Meta) ([]*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, record.ErrClosed
	}
	t, ok := s.tables[meta.TableName()]
	if !ok {
		return nil, nil
	}
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*record.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, toRecord(meta, t.rows[id]))
	}
	return out, nil
}

// Close marks the store closed; later calls return record.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func checkUnique(meta *record.Meta, t *table, self int64, row map[string]any) error {
	for _, group := range meta.UniqueChecks(meta.PK()) {
		key, ok := groupKey(group, row)
		if !ok {
			continue
		}
		for id, other := range t.rows {
			if id == self {
				continue
			}
			if otherKey, ok := groupKey(group, other); ok && otherKey == key {
				return fmt.Errorf("memory: save %s: %w: duplicate %v", meta.Name, record.ErrIntegrity, group)
			}
		}
	}
	return nil
}

func groupKey(group []string, row map[string]any) (string, bool) {
	key := ""
	for _, name := range group {
		v := row[name]
		if v == nil {
			return "", false
		}
		key += fmt.Sprintf("%T:%v\x00", v, v)
	}
	return key, true
}

func toRecord(meta *record.Meta, row map[string]any) *record.Record {
	rec := record.New(meta)
	for k, v := range row {
		rec.Values[k] = v
	}
	return rec
}
