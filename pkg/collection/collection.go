package collection

import (
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
)

// Member is a replica together with the name it is declared under.
type Member struct {
	Name   string
	Holder holder.Holder
	// Valid is set on bound members that validated on their own.
	Valid  bool
}

// Sibling is one validated group of replicas. Single-mode collections have
// exactly one.
type Sibling struct {
	Position int
	Instance *record.Record
	Members  []Member
}

// Member looks up a replica by declared name.
func (s *Sibling) Member(name string) (holder.Holder, bool) {
	if s == nil {
		return nil, false
	}
	for _, m := range s.Members {
		if m.Name == name {
			return m.Holder, true
		}
	}
	return nil, false
}

// FormCollection is a holder of declared holders.
type FormCollection struct {
	config   Config
	declared []Declared

	prefix    string
	autoID    string
	initial   any
	data      any
	isBound   bool
	instance  *record.Record
	renderer  holder.Renderer
	retriever Retriever
	logger    *zap.Logger
	state     holder.State

	cleaned  bool
	counted  bool
	errors   holder.ErrorTree
	siblings []*Sibling
	// valid holds the replicas that validated on their own, before
	// cross-sibling checks.
	valid map[holder.Holder]bool
}

var (
	_ holder.Holder     = (*FormCollection)(nil)
	_ holder.Reconciler = (*FormCollection)(nil)
)

// New declares a prototype collection. Declarations are merged, so shadow
// entries in declared are dropped.
func New(cfg Config, declared []Declared, opts ...Option) *FormCollection {
	c := &FormCollection{
		config:    cfg.resolved(),
		declared:  Merge(declared),
		autoID:    "id_%s",
		retriever: InstanceRetriever,
		logger:    zap.NewNop(),
	}
	c.config.Name = strings.TrimSpace(c.config.Name)
	c.state.IgnoreMarkedForRemoval = c.config.IgnoreMarkedForRemoval
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.renderer = holder.ResolveRenderer(c.config.DefaultRenderer, c.config.DefaultRendererFactory, nil)
	return c
}

// Config returns the resolved configuration.
func (c *FormCollection) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.config
}

// Declared returns the declared holders in order.
func (c *FormCollection) Declared() []Declared {
	if c == nil {
		return nil
	}
	return c.declared
}

// Describe implements Describer so collections can extend each other.
func (c *FormCollection) Describe() []Declared {
	return append([]Declared(nil), c.Declared()...)
}

func (c *FormCollection) Name() string {
	if c == nil {
		return ""
	}
	return c.config.Name
}

func (c *FormCollection) Prefix() string {
	if c == nil {
		return ""
	}
	return c.prefix
}

func (c *FormCollection) Initial() any {
	if c == nil {
		return nil
	}
	return c.initial
}

func (c *FormCollection) IsBound() bool { return c != nil && c.isBound }

// HasMany reports many mode.
func (c *FormCollection) HasMany() bool { return c != nil && c.config.HasMany() }

func (c *FormCollection) State() *holder.State {
	if c == nil {
		return nil
	}
	return &c.state
}

// Instance returns the record the collection edits.
func (c *FormCollection) Instance() *record.Record {
	if c == nil {
		return nil
	}
	return c.instance
}

// Renderer returns the resolved renderer.
func (c *FormCollection) Renderer() holder.Renderer {
	if c == nil {
		return nil
	}
	return c.renderer
}

// Siblings returns the siblings processed by FullClean.
func (c *FormCollection) Siblings() []*Sibling {
	if c == nil {
		return nil
	}
	return c.siblings
}

// Replicate implements holder.Holder.
func (c *FormCollection) Replicate(opts holder.ReplicateOptions) holder.Holder {
	clone := *c
	clone.data = opts.Data
	clone.isBound = opts.Data != nil
	clone.cleaned, clone.counted = false, false
	clone.errors = nil
	clone.siblings = nil
	clone.valid = nil
	clone.state = holder.State{IgnoreMarkedForRemoval: c.state.IgnoreMarkedForRemoval}
	if opts.HasInitial {
		clone.initial = opts.Initial
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
	if opts.Instance != nil {
		clone.instance = opts.Instance
	}
	clone.renderer = holder.ResolveRenderer(c.config.DefaultRenderer, c.config.DefaultRendererFactory, opts.Renderer)
	return &clone
}

// Bind returns a replica bound to data, the usual entry point per request.
func (c *FormCollection) Bind(data any, opts ...Option) *FormCollection {
	bound := c.Replicate(holder.ReplicateOptions{Data: data}).(*FormCollection)
	for _, opt := range opts {
		if opt != nil {
			opt(bound)
		}
	}
	return bound
}

func (c *FormCollection) childPrefix(parts ...string) string {
	if c.prefix != "" {
		parts = append([]string{c.prefix}, parts...)
	}
	return strings.Join(parts, ".")
}

func (c *FormCollection) log() *zap.Logger {
	return c.logger.With(zap.String("collection", c.config.Name), zap.String("prefix", c.prefix))
}
