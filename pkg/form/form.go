package form

import (
	"context"
	"strings"

	"github.com/goliatone/go-formset/pkg/holder"
)

// Entry is a named field in declaration order.
type Entry struct {
	Name  string
	Field Field
}

// Fields builds an ordered field list from name/field pairs.
func Fields(entries ...Entry) []Entry {
	return append([]Entry(nil), entries...)
}

// CleanFunc validates the cleaned data of a form as a whole. Returned
// *FieldError values land on their field, anything else on NonFieldErrors.
// It may mutate cleaned.
type CleanFunc func(ctx context.Context, cleaned map[string]any) error

// Option configures a Form.
type Option func(*Form)

// WithLabel sets the human readable label.
func WithLabel(label string) Option {
	return func(f *Form) { f.label = strings.TrimSpace(label) }
}

// WithInitial sets the initial values shown by unbound replicas.
func WithInitial(initial map[string]any) Option {
	return func(f *Form) { f.initial = initial }
}

// WithPrefix sets the naming prefix.
func WithPrefix(prefix string) Option {
	return func(f *Form) { f.prefix = prefix }
}

// WithCleaner appends a form-level validation hook.
func WithCleaner(fn CleanFunc) Option {
	return func(f *Form) {
		if fn != nil {
			f.cleaners = append(f.cleaners, fn)
		}
	}
}

// WithDefaultRenderer declares the renderer every replica uses.
func WithDefaultRenderer(r holder.Renderer) Option {
	return func(f *Form) { f.defaultRenderer = r }
}

// WithRendererFactory declares a factory invoked once per replica.
func WithRendererFactory(factory holder.RendererFactory) Option {
	return func(f *Form) { f.rendererFactory = factory }
}

// WithIgnoreMarkedForRemoval makes a standalone form validate even when the
// payload carries the removal marker. Inside a many-mode collection a marked
// sibling holding such a form is dropped instead.
func WithIgnoreMarkedForRemoval(ignore bool) Option {
	return func(f *Form) { f.state.IgnoreMarkedForRemoval = ignore }
}

// Form is a set of fields cleaned together.
type Form struct {
	name            string
	label           string
	fields          []Entry
	prefix          string
	autoID          string
	initial         map[string]any
	data            map[string]any
	malformed       bool
	isBound         bool
	renderer        holder.Renderer
	defaultRenderer holder.Renderer
	rendererFactory holder.RendererFactory
	cleaners        []CleanFunc
	state           holder.State

	errors  ErrorDict
	cleaned map[string]any
}

var _ holder.Holder = (*Form)(nil)

// New declares an unbound prototype form.
func New(name string, fields []Entry, opts ...Option) *Form {
	f := &Form{
		name:   strings.TrimSpace(name),
		fields: fields,
		autoID: "id_%s",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	f.renderer = holder.ResolveRenderer(f.defaultRenderer, f.rendererFactory, nil)
	return f
}

func (f *Form) Name() string {
	if f == nil {
		return ""
	}
	return f.name
}

// Label falls back to the name.
func (f *Form) Label() string {
	if f == nil {
		return ""
	}
	if f.label != "" {
		return f.label
	}
	return f.name
}

func (f *Form) Prefix() string {
	if f == nil {
		return ""
	}
	return f.prefix
}

func (f *Form) AutoID() string {
	if f == nil {
		return ""
	}
	return f.autoID
}

func (f *Form) Initial() any {
	if f == nil || f.initial == nil {
		return nil
	}
	return f.initial
}

func (f *Form) IsBound() bool { return f != nil && f.isBound }

func (f *Form) State() *holder.State {
	if f == nil {
		return nil
	}
	return &f.state
}

// Renderer returns the renderer resolved at replication.
func (f *Form) Renderer() holder.Renderer {
	if f == nil {
		return nil
	}
	return f.renderer
}

// Fields returns the declared fields in order.
func (f *Form) Fields() []Entry {
	if f == nil {
		return nil
	}
	return f.fields
}

// Field looks up a declared field.
func (f *Form) Field(name string) (Field, bool) {
	if f == nil {
		return nil, false
	}
	for _, entry := range f.fields {
		if entry.Name == name {
			return entry.Field, true
		}
	}
	return nil, false
}

// Data returns the bound payload.
func (f *Form) Data() map[string]any {
	if f == nil {
		return nil
	}
	return f.data
}

// Value returns the bound value of a field, or its initial when unbound.
func (f *Form) Value(name string) any {
	if f == nil {
		return nil
	}
	if f.isBound {
		return f.data[name]
	}
	if v, ok := f.initial[name]; ok {
		return v
	}
	if field, ok := f.Field(name); ok {
		return field.Options().Initial
	}
	return nil
}

// HTMLName is the submitted key of a field: "<prefix>.<name>".
func (f *Form) HTMLName(field string) string {
	if f == nil || f.prefix == "" {
		return field
	}
	return f.prefix + "." + field
}

// Replicate implements holder.Holder.
func (f *Form) Replicate(opts holder.ReplicateOptions) holder.Holder {
	return f.replicate(opts)
}

func (f *Form) replicate(opts holder.ReplicateOptions) *Form {
	clone := *f
	clone.errors = nil
	clone.cleaned = nil
	clone.state = holder.State{IgnoreMarkedForRemoval: f.state.IgnoreMarkedForRemoval}
	clone.cleaners = append([]CleanFunc(nil), f.cleaners...)
	clone.isBound = opts.Data != nil
	clone.data, clone.malformed = nil, false
	if opts.Data != nil {
		data, ok := opts.Data.(map[string]any)
		clone.data = cloneMap(data)
		clone.malformed = !ok
		if clone.data == nil {
			clone.data = map[string]any{}
		}
	}
	if opts.HasInitial {
		initial, _ := opts.Initial.(map[string]any)
		clone.initial = initial
	}
	if opts.Prefix != nil {
		clone.prefix = *opts.Prefix
	}
	if opts.AutoID != "" {
		clone.autoID = opts.AutoID
	}
	if opts.IgnoreMarkedForRemoval != nil {
		clone.state.IgnoreMarkedForRemoval = *opts.IgnoreMarkedForRemoval
	}
	clone.renderer = holder.ResolveRenderer(f.defaultRenderer, f.rendererFactory, opts.Renderer)
	return &clone
}

// FullClean validates the bound data once. A form marked for removal, by its
// own payload or by its parent, is not validated; its cleaned data is the
// marker alone.
func (f *Form) FullClean(ctx context.Context) {
	if f == nil || f.errors != nil {
		return
	}
	f.errors = ErrorDict{}
	if !f.isBound {
		return
	}
	if f.malformed {
		f.errors.Add(NonFieldErrors, NewError(CodeInvalid, "Form data is malformed."))
		return
	}
	if !f.state.IgnoreMarkedForRemoval && (f.state.MarkedForRemoval || holder.IsMarkedForRemoval(f.data)) {
		f.state.MarkedForRemoval = true
		f.cleaned = map[string]any{holder.MarkedForRemoval: true}
		return
	}

	cleaned := make(map[string]any, len(f.fields))
	for _, entry := range f.fields {
		value, err := entry.Field.Clean(f.data[entry.Name])
		if err != nil {
			f.errors.Add(entry.Name, asValidationError(err))
			continue
		}
		cleaned[entry.Name] = value
	}
	for _, fn := range f.cleaners {
		if err := fn(ctx, cleaned); err != nil {
			f.addCleanError(err, cleaned)
		}
	}
	f.cleaned = cleaned
}

func (f *Form) addCleanError(err error, cleaned map[string]any) {
	if fe, ok := err.(*FieldError); ok {
		f.errors.Add(fe.Field, fe.Err)
		if fe.Field != "" {
			delete(cleaned, fe.Field)
		}
		return
	}
	f.errors.Add(NonFieldErrors, asValidationError(err))
}

// IsValid reports a bound form without errors.
func (f *Form) IsValid(ctx context.Context) bool {
	if f == nil {
		return false
	}
	f.FullClean(ctx)
	return f.isBound && !f.errors.HasErrors()
}

// Errors implements holder.Holder.
func (f *Form) Errors() holder.ErrorTree {
	if f == nil || f.errors == nil {
		return nil
	}
	return f.errors
}

// ErrorDict returns the typed errors.
func (f *Form) ErrorDict() ErrorDict {
	if f == nil {
		return nil
	}
	return f.errors
}

// CleanedData implements holder.Holder.
func (f *Form) CleanedData() any {
	if f == nil || f.cleaned == nil {
		return nil
	}
	return f.cleaned
}

// AddError attaches a message after cleaning and drops the field from the
// cleaned data.
func (f *Form) AddError(field, code, message string) {
	if f == nil {
		return
	}
	if f.errors == nil {
		f.errors = ErrorDict{}
	}
	f.errors.Add(field, NewError(code, message))
	if field != "" && field != NonFieldErrors {
		delete(f.cleaned, field)
	}
}

// DiscardCleaned removes fields from the cleaned data.
func (f *Form) DiscardCleaned(fields ...string) {
	if f == nil {
		return
	}
	for _, name := range fields {
		delete(f.cleaned, name)
	}
}

func asValidationError(err error) *ValidationError {
	if ve, ok := err.(*ValidationError); ok {
		return ve
	}
	if fe, ok := err.(*FieldError); ok {
		return fe.Err
	}
	return NewError(CodeInvalid, err.Error())
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
