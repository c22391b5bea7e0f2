package holder

import (
	"context"
	"strconv"

	"github.com/goliatone/go-formset/pkg/record"
)

// MarkedForRemoval is the reserved key a client adds to a holder's submitted
// payload to request deletion of that sibling on save.
const MarkedForRemoval = "_marked_for_removal_"

// Holder is a unit a collection can manage: a form or a nested collection.
type Holder interface {
	// Name returns the declared name (for collections, the configured name).
	Name() string
	Prefix() string
	Initial() any
	IsBound() bool
	// State exposes the per-replica flags assigned by the parent collection.
	State() *State
	// Replicate returns an independent copy configured by opts.
	Replicate(opts ReplicateOptions) Holder
	// FullClean validates bound data once; later calls are no-ops.
	FullClean(ctx context.Context)
	IsValid(ctx context.Context) bool
	// Errors returns nil until the holder has been cleaned.
	Errors() ErrorTree
	// CleanedData returns nil until the holder has been cleaned.
	CleanedData() any
}

// ReplicateOptions parameterises Replicate. Zero values fall back to the
// prototype's own settings.
type ReplicateOptions struct {
	// Data binds the replica; nil leaves it unbound.
	Data any
	// Initial overrides the prototype initial when HasInitial is set, so an
	// explicit nil initial can be distinguished from "not passed".
	Initial    any
	HasInitial bool
	AutoID     string
	// Prefix overrides the prototype prefix when non-nil.
	Prefix                 *string
	Renderer               Renderer
	IgnoreMarkedForRemoval *bool
	// Instance is the backing record handed to model-bound holders.
	Instance *record.Record
}

// WithPrefix returns a copy of opts with Prefix set.
func (o ReplicateOptions) WithPrefix(prefix string) ReplicateOptions {
	o.Prefix = &prefix
	return o
}

// WithInitial returns a copy of opts with Initial set.
func (o ReplicateOptions) WithInitial(initial any) ReplicateOptions {
	o.Initial = initial
	o.HasInitial = true
	return o
}

// State carries the flags a parent collection assigns to each replica.
type State struct {
	IsSingle bool `json:"isSingle,omitempty"`
	// Position is the sibling index in many mode.
	Position int `json:"position"`
	// PositionToken replaces Position in template siblings, e.g. "${position}".
	PositionToken          string `json:"positionToken,omitempty"`
	IsFirst                bool   `json:"isFirst,omitempty"`
	IsLast                 bool   `json:"isLast,omitempty"`
	IsTemplate             bool   `json:"isTemplate,omitempty"`
	FreshAndEmpty          bool   `json:"freshAndEmpty,omitempty"`
	MarkedForRemoval       bool   `json:"markedForRemoval,omitempty"`
	IgnoreMarkedForRemoval bool   `json:"-"`
}

// PositionLabel returns the token for templates, otherwise the index.
func (s *State) PositionLabel() string {
	if s == nil {
		return ""
	}
	if s.PositionToken != "" {
		return s.PositionToken
	}
	return strconv.Itoa(s.Position)
}

// ErrorTree is the error structure of a cleaned holder. Implementations nest:
// a collection's tree contains the trees of its holders.
type ErrorTree interface {
	// HasErrors reports whether any leaf list in the tree is non-empty.
	HasErrors() bool
}

// ModelBound is implemented by holders backed by a record.Meta.
type ModelBound interface {
	Holder
	Meta() *record.Meta
	Instance() *record.Record
	SetInstance(*record.Record)
	// ApplyCleanedData copies cleaned values onto the instance.
	ApplyCleanedData()
	// Save persists the instance; persistence errors are returned unchanged.
	Save(ctx context.Context, store record.Store) error
	// AddError attaches a message to field, or to the non-field slot when
	// field is empty.
	AddError(field string, code, message string)
	// DiscardCleaned removes fields from the cleaned data.
	DiscardCleaned(fields ...string)
}

// Reconciler is implemented by holders that persist a subtree of records.
type Reconciler interface {
	ConstructInstance(ctx context.Context, store record.Store, parent *record.Record) error
}
