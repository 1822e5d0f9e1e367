// Package params holds the Parameter Store: ordered tables of named rows,
// each row holding field entries whose raw values are literals or references.
package params

import (
	"fmt"
	"strings"
)

// OriginConfig marks entries that came from configuration rather than a plugin.
const OriginConfig = "config"

// Entry is the atomic unit of the store. Unit and Comment are display-only.
type Entry struct {
	Path    Path   `json:"path"`
	Raw     Value  `json:"raw"`
	Unit    string `json:"unit,omitempty"`
	Comment string `json:"comment,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// Catalog is the read-only view of a store's structure handed to plugins
// when they declare their inputs.
type Catalog interface {
	Has(p Path) bool
	Get(p Path) (Entry, error)
	Tables() []string
	Rows(table string) []string
	Fields(table, row string) []string
	TablesContaining(substr string) []string
}

type row struct {
	fields  []string
	entries map[string]Entry
}

type table struct {
	rows   []string
	byName map[string]*row
}

// Store is an ordered table -> row -> field mapping of entries.
// A Store is not safe for concurrent mutation; every scenario owns its own clone.
type Store struct {
	tables  []string
	byName  map[string]*table
	size    int
	version uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byName: make(map[string]*table)}
}

// Version increases on every mutation.
func (s *Store) Version() uint64 { return s.version }

// Len returns the number of entries.
func (s *Store) Len() int { return s.size }

// Get returns the entry at p or a *NotFoundError.
func (s *Store) Get(p Path) (Entry, error) {
	t, ok := s.byName[p.Table]
	if !ok {
		return Entry{}, &NotFoundError{Path: p}
	}
	r, ok := t.byName[p.Row]
	if !ok {
		return Entry{}, &NotFoundError{Path: p}
	}
	e, ok := r.entries[p.Field]
	if !ok {
		return Entry{}, &NotFoundError{Path: p}
	}
	return e, nil
}

func (s *Store) Has(p Path) bool {
	_, err := s.Get(p)
	return err == nil
}

// Set inserts or overwrites the raw value at p. Metadata of an existing entry
// is kept; the origin is reset to OriginConfig for new entries.
func (s *Store) Set(p Path, v Value) error {
	e, err := s.Get(p)
	if err != nil {
		e = Entry{Path: p, Origin: OriginConfig}
	}
	e.Raw = v
	return s.SetEntry(e)
}

// SetEntry inserts or overwrites a full entry, preserving insertion order for
// newly created tables and rows.
func (s *Store) SetEntry(e Entry) error {
	p := e.Path
	if p.Table == "" || p.Row == "" || p.Field == "" {
		return fmt.Errorf("cannot set entry with incomplete path %q", p.String())
	}
	if e.Raw.Kind == KindInvalid {
		return fmt.Errorf("cannot set invalid value at %s", p)
	}
	if e.Raw.Kind == KindReference && (e.Raw.Ref == nil || len(e.Raw.Ref.Paths) == 0) {
		return fmt.Errorf("reference at %s has no paths", p)
	}

	t, ok := s.byName[p.Table]
	if !ok {
		t = &table{byName: make(map[string]*row)}
		s.byName[p.Table] = t
		s.tables = append(s.tables, p.Table)
	}
	r, ok := t.byName[p.Row]
	if !ok {
		r = &row{entries: make(map[string]Entry)}
		t.byName[p.Row] = r
		t.rows = append(t.rows, p.Row)
	}
	if _, exists := r.entries[p.Field]; !exists {
		r.fields = append(r.fields, p.Field)
		s.size++
	}
	r.entries[p.Field] = e
	s.version++
	return nil
}

// Tables returns table names in insertion order.
func (s *Store) Tables() []string {
	out := make([]string, len(s.tables))
	copy(out, s.tables)
	return out
}

// HasTable reports whether a table exists.
func (s *Store) HasTable(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Rows returns the row names of a table in insertion order.
func (s *Store) Rows(tableName string) []string {
	t, ok := s.byName[tableName]
	if !ok {
		return nil
	}
	out := make([]string, len(t.rows))
	copy(out, t.rows)
	return out
}

// Fields returns the field names of a row in insertion order.
func (s *Store) Fields(tableName, rowName string) []string {
	t, ok := s.byName[tableName]
	if !ok {
		return nil
	}
	r, ok := t.byName[rowName]
	if !ok {
		return nil
	}
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// TablesContaining returns, in order, every table whose name contains substr.
// This is how table groups such as "Direct Capital Cost" are addressed.
func (s *Store) TablesContaining(substr string) []string {
	var out []string
	for _, name := range s.tables {
		if strings.Contains(name, substr) {
			out = append(out, name)
		}
	}
	return out
}

// Entries returns all entries in table, row, field order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, s.size)
	for _, tn := range s.tables {
		t := s.byName[tn]
		for _, rn := range t.rows {
			r := t.byName[rn]
			for _, fn := range r.fields {
				out = append(out, r.entries[fn])
			}
		}
	}
	return out
}

// Clone produces a deep, independent copy of the structure in O(size).
// Values are immutable and therefore shared.
func (s *Store) Clone() *Store {
	c := &Store{
		tables:  make([]string, len(s.tables)),
		byName:  make(map[string]*table, len(s.byName)),
		size:    s.size,
		version: s.version,
	}
	copy(c.tables, s.tables)
	for name, t := range s.byName {
		ct := &table{
			rows:   make([]string, len(t.rows)),
			byName: make(map[string]*row, len(t.byName)),
		}
		copy(ct.rows, t.rows)
		for rn, r := range t.byName {
			cr := &row{
				fields:  make([]string, len(r.fields)),
				entries: make(map[string]Entry, len(r.entries)),
			}
			copy(cr.fields, r.fields)
			for fn, e := range r.entries {
				cr.entries[fn] = e
			}
			ct.byName[rn] = cr
		}
		c.byName[name] = ct
	}
	return c
}

// Merge fills in every entry of defaults that s does not define.
// Entries already present in s take priority.
func (s *Store) Merge(defaults *Store) error {
	if defaults == nil {
		return nil
	}
	for _, e := range defaults.Entries() {
		if s.Has(e.Path) {
			continue
		}
		if err := s.SetEntry(e); err != nil {
			return err
		}
	}
	return nil
}
