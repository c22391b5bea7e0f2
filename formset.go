package formset

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-formset/internal/schemaloader"
	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
	"github.com/goliatone/go-formset/pkg/render"
	"github.com/goliatone/go-formset/pkg/schema"
	"github.com/goliatone/go-formset/pkg/validation"
)

// FormCollection aliases collection.FormCollection for callers that only
// import the root package.
type FormCollection = collection.FormCollection

// Config aliases collection.Config.
type Config = collection.Config

// Declared aliases collection.Declared.
type Declared = collection.Declared

// ErrorMapping aliases render.ErrorMapping.
type ErrorMapping = render.ErrorMapping

// Registry aliases schema.Registry, the prototypes built from a definition.
type Registry = schema.Registry

// LoaderOptions configures the loader returned by NewLoader.
type LoaderOptions = schemaloader.Options

// ErrNotValid is returned by Reconcile when the submission did not validate.
var ErrNotValid = collection.ErrNotValid

// NewLoader returns a definition loader reading files, fs.FS entries and,
// when enabled, HTTP endpoints.
func NewLoader(options LoaderOptions) schema.Loader {
	return schemaloader.New(options)
}

// LoadDefinition fetches the definition behind src, validates it, and builds
// its prototypes. Every validation issue is reported in the returned error.
func LoadDefinition(ctx context.Context, loader schema.Loader, src schema.Source, opts ...schema.BuildOption) (*Registry, error) {
	if loader == nil {
		loader = NewLoader(LoaderOptions{})
	}
	doc, err := loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("formset: load definition: %w", err)
	}
	def, result := validation.ValidateDocument(ctx, doc.Source(), doc.Raw())
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("formset: %s: %w", doc.Location(), err)
	}
	registry, err := schema.Build(def, opts...)
	if err != nil {
		return nil, fmt.Errorf("formset: %s: %w", doc.Location(), err)
	}
	return registry, nil
}

// Result is the outcome of validating one submission.
type Result struct {
	Valid bool `json:"valid"`
	// Errors is the nested error tree, nil when the submission is valid.
	Errors holder.ErrorTree `json:"errors,omitempty"`
	// Cleaned is only set for valid submissions.
	Cleaned any `json:"cleaned,omitempty"`
	// Mapping lists the same errors by dotted field path.
	Mapping ErrorMapping `json:"mapping"`
	// Bound is the bound replica the result was read from.
	Bound *FormCollection `json:"-"`
}

// Validate binds data to a replica of proto and validates it. proto itself is
// left untouched and may be shared between requests.
func Validate(ctx context.Context, proto *FormCollection, data any, opts ...collection.Option) Result {
	if proto == nil {
		return Result{}
	}
	bound := proto.Bind(data, opts...)
	bound.IsValid(ctx)
	return resultOf(ctx, bound)
}

// Reconcile validates data against proto and, when valid, persists the tree
// below parent. A saved parent also becomes the collection's instance, so only
// rows linked to it can be edited or removed. Rejected saves are reported in
// the result, which is then no longer valid; store failures are returned.
func Reconcile(ctx context.Context, proto *FormCollection, data any, store record.Store, parent *record.Record, opts ...collection.Option) (Result, error) {
	if proto == nil {
		return Result{}, errors.New("formset: collection is nil")
	}
	if parent != nil && !parent.IsNew() {
		opts = append([]collection.Option{collection.WithInstance(parent)}, opts...)
	}
	result := Validate(ctx, proto, data, opts...)
	if !result.Valid {
		return result, fmt.Errorf("formset: %s: %w", proto.Name(), ErrNotValid)
	}
	if err := result.Bound.ConstructInstance(ctx, store, parent); err != nil {
		if errors.Is(err, ErrNotValid) {
			return resultOf(ctx, result.Bound), err
		}
		return result, err
	}
	return resultOf(ctx, result.Bound), nil
}

func resultOf(ctx context.Context, bound *FormCollection) Result {
	result := Result{Valid: bound.IsValid(ctx), Bound: bound}
	if result.Valid {
		result.Cleaned = bound.CleanedData()
		return result
	}
	if tree := bound.Errors(); tree != nil && tree.HasErrors() {
		result.Errors = tree
	}
	result.Mapping = render.FlattenErrors(bound.Prefix(), result.Errors)
	return result
}
