package collection

import (
	"context"
	"errors"

	"github.com/goliatone/go-formset/pkg/record"
)

// Retriever resolves the backing record of one submitted sibling. owner is the
// record the collection belongs to: its own instance, or the parent sibling's
// record when nested.
type Retriever interface {
	Retrieve(ctx context.Context, data map[string]any, owner *record.Record) (*record.Record, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, data map[string]any, owner *record.Record) (*record.Record, error)

func (fn RetrieverFunc) Retrieve(ctx context.Context, data map[string]any, owner *record.Record) (*record.Record, error) {
	return fn(ctx, data, owner)
}

// InstanceRetriever returns the collection's own instance.
var InstanceRetriever Retriever = RetrieverFunc(func(_ context.Context, _ map[string]any, owner *record.Record) (*record.Record, error) {
	return owner, nil
})

// RetrieveByPrimaryKey loads the row whose primary key is submitted under
// data[holderName]. When relatedField is set, only rows linked to the owner
// through it are returned. Absent, unknown and foreign keys yield a new record
// of meta.
func RetrieveByPrimaryKey(store record.Store, holderName string, meta *record.Meta, relatedField string) Retriever {
	return RetrieverFunc(func(ctx context.Context, data map[string]any, owner *record.Record) (*record.Record, error) {
		sub, _ := data[holderName].(map[string]any)
		pk, ok := record.Int64(sub[meta.PK()])
		if !ok {
			return record.New(meta), nil
		}
		rec, err := store.Get(ctx, meta, pk)
		if errors.Is(err, record.ErrNotFound) {
			return record.New(meta), nil
		}
		if err != nil {
			return nil, err
		}
		if relatedField != "" && !linkedTo(rec, relatedField, owner) {
			return record.New(meta), nil
		}
		return rec, nil
	})
}

// linkedTo reports whether rec references owner through field. Unsaved owners
// own nothing.
func linkedTo(rec *record.Record, field string, owner *record.Record) bool {
	if owner == nil || owner.IsNew() {
		return false
	}
	want, ok := record.Int64(owner.PK())
	if !ok {
		return false
	}
	got, ok := record.Int64(rec.Get(field))
	return ok && got == want
}
