// Package widgets chooses how fields and collections are presented to the
// client. A Strategy pairs a base widget with an ordered list of capabilities
// (rich text editing, dual selectors, sortable siblings) instead of deriving
// new widget types per combination.
package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formset/pkg/form"
)

// Built-in capability identifiers.
const (
	CapabilityRichText     = "richtext"
	CapabilitySelectize    = "selectize"
	CapabilityDualSelector = "dual-selector"
	CapabilityToggle       = "toggle"
	CapabilitySortable     = "sortable"
)

// SelectizeThreshold is the number of choices above which single selects get
// a searchable dropdown.
const SelectizeThreshold = 10

// Strategy is the resolved presentation of a field or collection.
type Strategy struct {
	Base         string   `json:"base"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Has reports whether capability is part of the strategy.
func (s Strategy) Has(capability string) bool {
	for _, c := range s.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Matcher decides whether a capability applies to the supplied field.
type Matcher func(field form.Field) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry attaches capabilities to fields based on registered matchers.
// Capabilities are ordered by priority, then registration order.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in capabilities
// registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a capability matcher. Registering a name again replaces the
// earlier matcher.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.rules[:0]
	for _, existing := range r.rules {
		if existing.name != trimmed {
			kept = append(kept, existing)
		}
	}
	r.rules = append(kept, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(kept),
	})
}

// Resolve returns the strategy for field. An explicit Widget on the field
// replaces the base widget; capabilities still apply.
func (r *Registry) Resolve(field form.Field) Strategy {
	if field == nil {
		return Strategy{}
	}
	strategy := Strategy{Base: baseWidget(field)}
	if r == nil {
		return strategy
	}
	r.mu.RLock()
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			strategy.Capabilities = append(strategy.Capabilities, entry.name)
		}
	}
	return strategy
}

// ResolveCollection returns the strategy of a collection. Only many-mode
// collections can be sortable.
func (r *Registry) ResolveCollection(many, sortable bool) Strategy {
	strategy := Strategy{Base: "collection"}
	if many && sortable {
		strategy.Capabilities = []string{CapabilitySortable}
	}
	return strategy
}

func baseWidget(field form.Field) string {
	if opts := field.Options(); opts != nil {
		if widget := strings.TrimSpace(opts.Widget); widget != "" {
			return widget
		}
	}
	switch kind := field.Kind(); kind {
	case form.KindSelect:
		if field.Constraints().Multiple {
			return "select-multiple"
		}
		return string(kind)
	default:
		return string(kind)
	}
}

func (r *Registry) registerBuiltins() {
	r.Register(CapabilityRichText, 90, func(field form.Field) bool {
		return field.Kind() == form.KindRichText
	})

	r.Register(CapabilityDualSelector, 80, func(field form.Field) bool {
		c := field.Constraints()
		return field.Kind() == form.KindSelect && c.Multiple
	})

	r.Register(CapabilitySelectize, 70, func(field form.Field) bool {
		c := field.Constraints()
		return field.Kind() == form.KindSelect && !c.Multiple && len(c.Choices) > SelectizeThreshold
	})

	r.Register(CapabilityToggle, 60, func(field form.Field) bool {
		return field.Kind() == form.KindCheckbox
	})
}
