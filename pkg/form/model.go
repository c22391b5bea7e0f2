package form

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
)

// ModelForm is a form whose cleaned data is copied onto a record of Meta.
type ModelForm struct {
	Form
	meta     *record.Meta
	instance *record.Record
}

var (
	_ holder.Holder     = (*ModelForm)(nil)
	_ holder.ModelBound = (*ModelForm)(nil)
)

// NewModelForm declares a prototype model form. Fields not matching a column
// of meta are validated but never written to the record.
func NewModelForm(name string, meta *record.Meta, fields []Entry, opts ...Option) *ModelForm {
	return &ModelForm{
		Form: *New(name, fields, opts...),
		meta: meta,
	}
}

func (m *ModelForm) Meta() *record.Meta {
	if m == nil {
		return nil
	}
	return m.meta
}

// Instance returns the backing record; replicas always have one.
func (m *ModelForm) Instance() *record.Record {
	if m == nil {
		return nil
	}
	return m.instance
}

// SetInstance replaces the backing record. A nil record or one of another
// model is replaced by a new record.
func (m *ModelForm) SetInstance(rec *record.Record) {
	if m == nil {
		return
	}
	if rec == nil || rec.Meta == nil || m.meta == nil || rec.Meta.Name != m.meta.Name {
		rec = record.New(m.meta)
	}
	m.instance = rec
}

// Replicate implements holder.Holder. Existing instances seed the initial
// values of unbound replicas.
func (m *ModelForm) Replicate(opts holder.ReplicateOptions) holder.Holder {
	clone := &ModelForm{
		Form: *m.Form.replicate(opts),
		meta: m.meta,
	}
	clone.SetInstance(opts.Instance)
	if !clone.instance.IsNew() {
		clone.initial = mergeInitial(clone.instance, clone.fields, clone.initial)
	}
	return clone
}

func mergeInitial(rec *record.Record, fields []Entry, initial map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, entry := range fields {
		if v, ok := rec.Values[entry.Name]; ok {
			out[entry.Name] = v
		}
	}
	for k, v := range initial {
		out[k] = v
	}
	return out
}

// ApplyCleanedData copies cleaned values of model columns onto the instance.
// The primary key is never copied: the instance keeps the identity it was
// retrieved with, so a stale or foreign submitted key cannot redirect the save.
func (m *ModelForm) ApplyCleanedData() {
	if m == nil || m.cleaned == nil {
		return
	}
	if m.instance == nil {
		m.SetInstance(nil)
	}
	pk := m.meta.PK()
	for _, entry := range m.fields {
		value, ok := m.cleaned[entry.Name]
		if !ok || entry.Name == pk || !m.meta.HasColumn(entry.Name) {
			continue
		}
		m.instance.Set(entry.Name, value)
	}
}

// Save persists the instance.
func (m *ModelForm) Save(ctx context.Context, store record.Store) error {
	if m == nil {
		return fmt.Errorf("form: nil model form")
	}
	if m.instance == nil {
		return fmt.Errorf("form: %s has no instance to save", m.name)
	}
	if store == nil {
		return fmt.Errorf("form: %s: store is nil", m.name)
	}
	return store.Save(ctx, m.instance)
}
