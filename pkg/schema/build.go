package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
)

// BuildOption configures Build.
type BuildOption func(*builder)

// WithStore enables retrieve_by: collections load sibling records from store.
func WithStore(store record.Store) BuildOption {
	return func(b *builder) { b.store = store }
}

// WithLogger hands logger to every built collection.
func WithLogger(logger *zap.Logger) BuildOption {
	return func(b *builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithLabeler overrides how labels are derived from field names.
func WithLabeler(labeler func(string) string) BuildOption {
	return func(b *builder) {
		if labeler != nil {
			b.labeler = labeler
		}
	}
}

// Registry holds the prototypes built from a definition.
type Registry struct {
	metas       []*record.Meta
	forms       map[string]holder.Holder
	collections map[string]*collection.FormCollection
}

// Metas returns the models in dependency order, referenced models first.
func (r *Registry) Metas() []*record.Meta {
	if r == nil {
		return nil
	}
	return append([]*record.Meta(nil), r.metas...)
}

// Meta looks up a model by name.
func (r *Registry) Meta(name string) (*record.Meta, bool) {
	if r == nil {
		return nil, false
	}
	for _, meta := range r.metas {
		if meta.Name == name {
			return meta, true
		}
	}
	return nil, false
}

// Form looks up a prototype form.
func (r *Registry) Form(name string) (holder.Holder, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.forms[name]
	return h, ok
}

// Collection looks up a prototype collection.
func (r *Registry) Collection(name string) (*collection.FormCollection, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.collections[name]
	return c, ok
}

// CollectionNames lists the built collections in sorted order.
func (r *Registry) CollectionNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type builder struct {
	def     *Definition
	store   record.Store
	logger  *zap.Logger
	labeler func(string) string

	metas       map[string]*record.Meta
	forms       map[string]holder.Holder
	collections map[string]*collection.FormCollection
	declared    map[string][]collection.Declared
	building    map[string]bool
}

// Build turns def into prototypes. Errors name the first broken reference;
// run validation.ValidateDefinition first to collect every issue.
func Build(def *Definition, opts ...BuildOption) (*Registry, error) {
	if def == nil {
		return nil, fmt.Errorf("schema: definition is nil")
	}
	b := &builder{
		def:         def,
		logger:      zap.NewNop(),
		labeler:     DefaultLabeler,
		metas:       make(map[string]*record.Meta),
		forms:       make(map[string]holder.Holder),
		collections: make(map[string]*collection.FormCollection),
		declared:    make(map[string][]collection.Declared),
		building:    make(map[string]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	ordered, err := b.buildMetas()
	if err != nil {
		return nil, err
	}
	for _, fd := range def.Forms {
		h, err := b.buildForm(fd)
		if err != nil {
			return nil, err
		}
		if _, dup := b.forms[fd.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate form %q", fd.Name)
		}
		b.forms[fd.Name] = h
	}
	for _, cd := range def.Collections {
		if _, err := b.collection(cd.Name); err != nil {
			return nil, err
		}
	}
	return &Registry{metas: ordered, forms: b.forms, collections: b.collections}, nil
}

// buildMetas validates every model and orders them so referenced models come
// first.
func (b *builder) buildMetas() ([]*record.Meta, error) {
	for _, md := range b.def.Models {
		meta := md.Meta()
		if err := meta.Validate(); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		if _, dup := b.metas[meta.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate model %q", meta.Name)
		}
		b.metas[meta.Name] = meta
	}

	var ordered []*record.Meta
	state := make(map[string]int)
	var visit func(meta *record.Meta) error
	visit = func(meta *record.Meta) error {
		switch state[meta.Name] {
		case 1:
			return fmt.Errorf("schema: model %q references itself through its columns", meta.Name)
		case 2:
			return nil
		}
		state[meta.Name] = 1
		for _, col := range meta.Columns {
			if col.Type != record.ColumnReference {
				continue
			}
			target, ok := b.metas[col.References]
			if !ok {
				return fmt.Errorf("schema: %s.%s references unknown model %q", meta.Name, col.Name, col.References)
			}
			if target == meta {
				continue
			}
			if err := visit(target); err != nil {
				return err
			}
		}
		state[meta.Name] = 2
		ordered = append(ordered, meta)
		return nil
	}
	for _, md := range b.def.Models {
		if err := visit(b.metas[strings.TrimSpace(md.Name)]); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func (b *builder) buildForm(fd FormDef) (holder.Holder, error) {
	entries := make([]form.Entry, 0, len(fd.Fields))
	for _, spec := range fd.Fields {
		field, err := b.buildField(spec)
		if err != nil {
			return nil, fmt.Errorf("schema: form %q: %w", fd.Name, err)
		}
		entries = append(entries, form.Entry{Name: spec.Name, Field: field})
	}
	opts := []form.Option{form.WithIgnoreMarkedForRemoval(fd.IgnoreMarkedForRemoval)}
	if fd.Label != "" {
		opts = append(opts, form.WithLabel(fd.Label))
	}
	if fd.Model == "" {
		return form.New(fd.Name, form.Fields(entries...), opts...), nil
	}
	meta, ok := b.metas[fd.Model]
	if !ok {
		return nil, fmt.Errorf("schema: form %q uses unknown model %q", fd.Name, fd.Model)
	}
	return form.NewModelForm(fd.Name, meta, form.Fields(entries...), opts...), nil
}

func (b *builder) buildField(spec FieldDef) (form.Field, error) {
	label := spec.Label
	if label == "" {
		label = b.labeler(spec.Name)
	}
	base := form.Base{
		Label:    label,
		Required: spec.Required,
		Help:     spec.Help,
		Hidden:   spec.Hidden,
		Initial:  spec.Initial,
		Widget:   spec.Widget,
		Messages: spec.Messages,
	}
	var pattern *regexp.Regexp
	if spec.Pattern != "" {
		compiled, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field %q: invalid pattern: %w", spec.Name, err)
		}
		pattern = compiled
	}

	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case FieldText, "":
		return &form.CharField{Base: base, MinLength: spec.MinLength, MaxLength: spec.MaxLength, Pattern: pattern, KeepWhitespace: spec.KeepWhitespace}, nil
	case FieldTextarea:
		return &form.CharField{Base: base, MinLength: spec.MinLength, MaxLength: spec.MaxLength, Pattern: pattern, KeepWhitespace: spec.KeepWhitespace, Textarea: true}, nil
	case FieldRichText:
		field := &form.RichTextField{Base: base, MaxLength: spec.MaxLength}
		switch strings.ToLower(spec.Policy) {
		case "", "ugc":
		case "strict":
			field.Policy = bluemonday.StrictPolicy()
		default:
			return nil, fmt.Errorf("field %q: unknown rich text policy %q", spec.Name, spec.Policy)
		}
		return field, nil
	case FieldEmail:
		return &form.EmailField{Base: base, MaxLength: spec.MaxLength}, nil
	case FieldInteger:
		return &form.IntegerField{Base: base, Min: spec.Min, Max: spec.Max, Step: spec.Step}, nil
	case FieldBoolean:
		return &form.BooleanField{Base: base}, nil
	case FieldChoice:
		if len(spec.Choices) == 0 {
			return nil, fmt.Errorf("field %q: choice fields need choices", spec.Name)
		}
		return &form.ChoiceField{Base: base, Choices: spec.Choices, Multiple: spec.Multiple}, nil
	case FieldID:
		return &form.IDField{Base: base}, nil
	default:
		return nil, fmt.Errorf("field %q: unknown type %q", spec.Name, spec.Type)
	}
}

// collection builds name once, resolving extended and nested collections
// first.
func (b *builder) collection(name string) (*collection.FormCollection, error) {
	if built, ok := b.collections[name]; ok {
		return built, nil
	}
	if b.building[name] {
		return nil, fmt.Errorf("schema: collection %q contains itself", name)
	}
	cd, ok := b.def.Collection(name)
	if !ok {
		return nil, fmt.Errorf("schema: unknown collection %q", name)
	}
	b.building[name] = true
	defer delete(b.building, name)

	cfg, err := b.config(cd)
	if err != nil {
		return nil, err
	}
	var inherited []collection.Declared
	if cd.Extends != "" {
		if _, err := b.collection(cd.Extends); err != nil {
			return nil, err
		}
		inherited = b.declared[cd.Extends]
	}

	own := make([]collection.Declared, 0, len(cd.Holders))
	for _, hd := range cd.Holders {
		switch {
		case hd.Shadow:
			own = append(own, collection.Shadow(hd.Name))
		case hd.Form != "" && hd.Collection != "":
			return nil, fmt.Errorf("schema: collection %q: holder %q names both a form and a collection", name, hd.Name)
		case hd.Form != "":
			proto, ok := b.forms[hd.Form]
			if !ok {
				return nil, fmt.Errorf("schema: collection %q: holder %q uses unknown form %q", name, hd.Name, hd.Form)
			}
			own = append(own, collection.Declare(hd.Name, proto))
		case hd.Collection != "":
			proto, err := b.collection(hd.Collection)
			if err != nil {
				return nil, err
			}
			own = append(own, collection.Declare(hd.Name, proto))
		default:
			return nil, fmt.Errorf("schema: collection %q: holder %q needs a form or a collection", name, hd.Name)
		}
	}
	declared := collection.Merge(inherited, own)
	if len(declared) == 0 {
		return nil, fmt.Errorf("schema: collection %q declares no holders", name)
	}

	opts := []collection.Option{collection.WithLogger(b.logger)}
	if retrieveBy := b.retrieveBy(cd); retrieveBy != "" && b.store != nil {
		meta, err := retrieveMeta(declared, retrieveBy)
		if err != nil {
			return nil, fmt.Errorf("schema: collection %q: %w", name, err)
		}
		opts = append(opts, collection.WithRetriever(collection.RetrieveByPrimaryKey(b.store, retrieveBy, meta, cfg.RelatedField)))
	}

	built := collection.New(cfg, declared, opts...)
	b.collections[name] = built
	b.declared[name] = declared
	return built, nil
}

func (b *builder) retrieveBy(cd CollectionDef) string {
	for cd.RetrieveBy == "" && cd.Extends != "" {
		base, ok := b.def.Collection(cd.Extends)
		if !ok {
			return ""
		}
		cd = base
	}
	return cd.RetrieveBy
}

func retrieveMeta(declared []collection.Declared, name string) (*record.Meta, error) {
	for _, decl := range declared {
		if decl.Name != name {
			continue
		}
		bound, ok := decl.Holder.(holder.ModelBound)
		if !ok || bound.Meta() == nil {
			return nil, fmt.Errorf("retrieve_by holder %q is not a model form", name)
		}
		return bound.Meta(), nil
	}
	return nil, fmt.Errorf("retrieve_by names unknown holder %q", name)
}

// config resolves the settings of cd, inheriting unset values along the
// extends chain.
func (b *builder) config(cd CollectionDef) (collection.Config, error) {
	merged := cd
	seen := map[string]bool{cd.Name: true}
	for base := cd.Extends; base != ""; {
		if seen[base] {
			return collection.Config{}, fmt.Errorf("schema: collection %q extends itself", cd.Name)
		}
		seen[base] = true
		parent, ok := b.def.Collection(base)
		if !ok {
			return collection.Config{}, fmt.Errorf("schema: collection %q extends unknown collection %q", cd.Name, base)
		}
		inheritConfig(&merged, parent)
		base = parent.Extends
	}

	cfg := collection.Config{
		Name:          merged.Name,
		Legend:        merged.Legend,
		MinSiblings:   merged.MinSiblings,
		MaxSiblings:   merged.MaxSiblings,
		ExtraSiblings: merged.ExtraSiblings,
		RelatedField:  merged.RelatedField,
		AddLabel:      merged.AddLabel,
	}
	if merged.IsSortable != nil {
		cfg.IsSortable = *merged.IsSortable
	}
	if merged.IgnoreMarkedForRemoval != nil {
		cfg.IgnoreMarkedForRemoval = *merged.IgnoreMarkedForRemoval
	}
	return cfg, nil
}

func inheritConfig(dst *CollectionDef, parent CollectionDef) {
	if dst.Legend == "" {
		dst.Legend = parent.Legend
	}
	if dst.MinSiblings == nil {
		dst.MinSiblings = parent.MinSiblings
	}
	if dst.MaxSiblings == nil {
		dst.MaxSiblings = parent.MaxSiblings
	}
	if dst.ExtraSiblings == nil {
		dst.ExtraSiblings = parent.ExtraSiblings
	}
	if dst.IsSortable == nil {
		dst.IsSortable = parent.IsSortable
	}
	if dst.RelatedField == "" {
		dst.RelatedField = parent.RelatedField
	}
	if dst.IgnoreMarkedForRemoval == nil {
		dst.IgnoreMarkedForRemoval = parent.IgnoreMarkedForRemoval
	}
	if dst.AddLabel == "" {
		dst.AddLabel = parent.AddLabel
	}
}
