package collection

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
)

// ErrNotValid is returned by ConstructInstance on a collection that did not
// validate.
var ErrNotValid = errors.New("collection: not valid")

// ConfigError reports misuse of a collection that no request can recover
// from: a malformed initial value or nesting beyond the template depth cap.
type ConfigError struct {
	Collection string
	Argument   string
	Reason     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("collection: %s: argument %q %s", e.Collection, e.Argument, e.Reason)
}

// Config is the immutable configuration of a collection.
type Config struct {
	// Name identifies the collection; Legend, when set, is used in messages.
	Name   string `json:"name" yaml:"name"`
	Legend string `json:"legend,omitempty" yaml:"legend,omitempty"`
	// Any non-nil bound switches the collection to many mode.
	MinSiblings   *int `json:"minSiblings,omitempty" yaml:"min_siblings,omitempty"`
	MaxSiblings   *int `json:"maxSiblings,omitempty" yaml:"max_siblings,omitempty"`
	ExtraSiblings *int `json:"extraSiblings,omitempty" yaml:"extra_siblings,omitempty"`
	IsSortable    bool `json:"isSortable,omitempty" yaml:"is_sortable,omitempty"`
	// RelatedField is the column of child records linking them to the parent
	// record passed to ConstructInstance.
	RelatedField           string `json:"relatedField,omitempty" yaml:"related_field,omitempty"`
	IgnoreMarkedForRemoval bool   `json:"ignoreMarkedForRemoval,omitempty" yaml:"ignore_marked_for_removal,omitempty"`
	AddLabel               string `json:"addLabel,omitempty" yaml:"add_label,omitempty"`

	DefaultRenderer        holder.Renderer        `json:"-" yaml:"-"`
	DefaultRendererFactory holder.RendererFactory `json:"-" yaml:"-"`
}

// HasMany reports many mode.
func (c Config) HasMany() bool {
	return c.MinSiblings != nil || c.MaxSiblings != nil || c.ExtraSiblings != nil
}

// DisplayName returns the legend, falling back to the name.
func (c Config) DisplayName() string {
	if legend := strings.TrimSpace(c.Legend); legend != "" {
		return legend
	}
	return c.Name
}

// Min returns the minimum sibling count; 1 unless configured.
func (c Config) Min() int {
	if c.MinSiblings == nil {
		return 1
	}
	return *c.MinSiblings
}

// Max returns the maximum sibling count and whether one is set.
func (c Config) Max() (int, bool) {
	if c.MaxSiblings == nil {
		return 0, false
	}
	return *c.MaxSiblings, true
}

// Extra returns the number of extra siblings rendered; 0 unless configured.
func (c Config) Extra() int {
	if c.ExtraSiblings == nil {
		return 0
	}
	return *c.ExtraSiblings
}

// resolved pins many-mode defaults so later reads never fall back.
func (c Config) resolved() Config {
	if !c.HasMany() {
		return c
	}
	minSiblings, extra := c.Min(), c.Extra()
	c.MinSiblings, c.ExtraSiblings = &minSiblings, &extra
	if c.AddLabel == "" {
		c.AddLabel = "Add " + c.DisplayName()
	}
	return c
}

// Int returns a pointer to v, for filling Config bounds.
func Int(v int) *int { return &v }

// Option configures a FormCollection.
type Option func(*FormCollection)

// WithInitial sets the initial value: a mapping by holder name in single
// mode, a sequence of such mappings in many mode.
func WithInitial(initial any) Option {
	return func(c *FormCollection) { c.initial = initial }
}

// WithInstance sets the record the collection edits.
func WithInstance(instance *record.Record) Option {
	return func(c *FormCollection) { c.instance = instance }
}

// WithPrefix sets the naming prefix.
func WithPrefix(prefix string) Option {
	return func(c *FormCollection) { c.prefix = prefix }
}

// WithAutoID sets the id format propagated to replicas.
func WithAutoID(autoID string) Option {
	return func(c *FormCollection) { c.autoID = autoID }
}

// WithRetriever sets how each sibling resolves its backing record.
func WithRetriever(r Retriever) Option {
	return func(c *FormCollection) {
		if r != nil {
			c.retriever = r
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *FormCollection) {
		if logger != nil {
			c.logger = logger
		}
	}
}
