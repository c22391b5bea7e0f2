package record

import (
	"fmt"
	"strings"
)

// ColumnType enumerates the storage kinds a column can hold.
type ColumnType string

const (
	ColumnString    ColumnType = "string"
	ColumnText      ColumnType = "text"
	ColumnInteger   ColumnType = "integer"
	ColumnFloat     ColumnType = "float"
	ColumnBoolean   ColumnType = "boolean"
	ColumnReference ColumnType = "reference"
)

// DefaultPrimaryKey is used when Meta.PrimaryKey is empty.
const DefaultPrimaryKey = "id"

// Column declares a single stored attribute.
type Column struct {
	Name       string     `yaml:"name" json:"name"`
	Type       ColumnType `yaml:"type" json:"type"`
	Unique     bool       `yaml:"unique,omitempty" json:"unique,omitempty"`
	Nullable   bool       `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	References string     `yaml:"references,omitempty" json:"references,omitempty"`
}

// Meta describes a model: its table, columns and unique constraints. The
// primary key column is implicit and always an auto-assigned integer.
type Meta struct {
	Name           string
	Table          string
	PrimaryKey     string
	Columns        []Column
	UniqueTogether [][]string
}

// PK returns the primary key column name.
func (m *Meta) PK() string {
	if m == nil || strings.TrimSpace(m.PrimaryKey) == "" {
		return DefaultPrimaryKey
	}
	return m.PrimaryKey
}

// TableName returns the configured table or the model name.
func (m *Meta) TableName() string {
	if m == nil {
		return ""
	}
	if table := strings.TrimSpace(m.Table); table != "" {
		return table
	}
	return m.Name
}

// Column looks up a column by name.
func (m *Meta) Column(name string) (Column, bool) {
	if m == nil {
		return Column{}, false
	}
	for _, col := range m.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether name is the primary key or a declared column.
func (m *Meta) HasColumn(name string) bool {
	if name == m.PK() {
		return true
	}
	_, ok := m.Column(name)
	return ok
}

// ColumnNames lists the declared columns in order, without the primary key.
func (m *Meta) ColumnNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Columns))
	for _, col := range m.Columns {
		names = append(names, col.Name)
	}
	return names
}

// UniqueChecks returns every field group whose values must not repeat: the
// primary key, each unique column, then each unique-together group. Groups
// containing an excluded field are dropped; the primary key is excluded by
// passing its name.
func (m *Meta) UniqueChecks(exclude ...string) [][]string {
	if m == nil {
		return nil
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	allowed := func(group []string) bool {
		for _, name := range group {
			if _, ok := skip[name]; ok {
				return false
			}
		}
		return len(group) > 0
	}

	var checks [][]string
	seen := make(map[string]struct{})
	add := func(group []string) {
		if !allowed(group) {
			return
		}
		key := strings.Join(group, "\x00")
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		checks = append(checks, append([]string(nil), group...))
	}

	add([]string{m.PK()})
	for _, col := range m.Columns {
		if col.Unique {
			add([]string{col.Name})
		}
	}
	for _, group := range m.UniqueTogether {
		add(group)
	}
	return checks
}

// Validate reports declaration mistakes such as duplicate or unknown columns.
func (m *Meta) Validate() error {
	if m == nil {
		return fmt.Errorf("record: meta is nil")
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("record: meta name is required")
	}
	seen := map[string]struct{}{m.PK(): {}}
	for _, col := range m.Columns {
		name := strings.TrimSpace(col.Name)
		if name == "" {
			return fmt.Errorf("record: %s: column name is required", m.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("record: %s: duplicate column %q", m.Name, name)
		}
		seen[name] = struct{}{}
		if col.Type == ColumnReference && strings.TrimSpace(col.References) == "" {
			return fmt.Errorf("record: %s.%s: reference column requires a target", m.Name, name)
		}
	}
	for _, group := range m.UniqueTogether {
		for _, name := range group {
			if _, ok := seen[name]; !ok {
				return fmt.Errorf("record: %s: unique_together references unknown column %q", m.Name, name)
			}
		}
	}
	return nil
}
