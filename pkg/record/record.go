package record

import (
	"fmt"
	"strconv"
)

// Record is one row of a Meta. Values are keyed by column name and include the
// primary key once the row has been saved.
type Record struct {
	Meta   *Meta
	Values map[string]any
}

// New returns an unsaved record for meta.
func New(meta *Meta) *Record {
	return &Record{Meta: meta, Values: make(map[string]any)}
}

// PK returns the primary key value, nil for unsaved records.
func (r *Record) PK() any {
	if r == nil || r.Values == nil {
		return nil
	}
	return r.Values[r.Meta.PK()]
}

// IsNew reports whether the record has never been persisted.
func (r *Record) IsNew() bool {
	return r.PK() == nil
}

// Get returns a column value.
func (r *Record) Get(name string) any {
	if r == nil || r.Values == nil {
		return nil
	}
	return r.Values[name]
}

// Set assigns a column value.
func (r *Record) Set(name string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[name] = value
}

// Clone returns a shallow copy with its own value map.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{Meta: r.Meta, Values: make(map[string]any, len(r.Values))}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// String implements fmt.Stringer for log output.
func (r *Record) String() string {
	if r == nil {
		return "<nil record>"
	}
	name := ""
	if r.Meta != nil {
		name = r.Meta.Name
	}
	if r.IsNew() {
		return name + "(new)"
	}
	return fmt.Sprintf("%s(%v)", name, r.PK())
}

// Int64 coerces primary keys and reference values into int64. Stores and
// submitted payloads disagree on numeric representation (JSON numbers, strings
// from form posts, driver int64), so lookups normalise through here.
func Int64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case *Record:
		return Int64(v.PK())
	case interface{ Int64() (int64, error) }:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
