package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/widgets"
)

// Node kinds.
const (
	NodeCollection = "collection"
	NodeForm       = "form"
)

// Node describes one holder for the client runtime.
type Node struct {
	Kind     string        `json:"kind"`
	Name     string        `json:"name"`
	Prefix   string        `json:"prefix,omitempty"`
	Label    string        `json:"label,omitempty"`
	Renderer string        `json:"renderer,omitempty"`
	State    *holder.State `json:"state,omitempty"`
	Errors   []string      `json:"errors,omitempty"`

	Collection *CollectionNode `json:"collection,omitempty"`
	Fields     []FieldNode     `json:"fields,omitempty"`
}

// CollectionNode carries the collection settings and its sibling groups. The
// template sibling, when present, is last.
type CollectionNode struct {
	HasMany  bool             `json:"hasMany"`
	Min      int              `json:"minSiblings"`
	Max      *int             `json:"maxSiblings,omitempty"`
	Extra    int              `json:"extraSiblings"`
	AddLabel string           `json:"addLabel,omitempty"`
	Strategy widgets.Strategy `json:"strategy"`
	Siblings []SiblingNode    `json:"siblings"`
}

// SiblingNode is one group of holders sharing a position.
type SiblingNode struct {
	Position         string `json:"position"`
	IsTemplate       bool   `json:"isTemplate,omitempty"`
	MarkedForRemoval bool   `json:"markedForRemoval,omitempty"`
	Holders          []Node `json:"holders"`
}

// FieldNode describes one field of a form.
type FieldNode struct {
	Name        string                 `json:"name"`
	HTMLName    string                 `json:"htmlName"`
	ID          string                 `json:"id,omitempty"`
	Label       string                 `json:"label,omitempty"`
	Help        string                 `json:"help,omitempty"`
	Kind        form.Kind              `json:"kind"`
	Required    bool                   `json:"required,omitempty"`
	Hidden      bool                   `json:"hidden,omitempty"`
	Strategy    widgets.Strategy       `json:"strategy"`
	Constraints form.Constraints       `json:"constraints"`
	Messages    map[ErrorKind]string   `json:"messages,omitempty"`
	Value       any                    `json:"value,omitempty"`
	Errors      map[ErrorKind][]string `json:"errors,omitempty"`
}

type formView interface {
	holder.Holder
	Label() string
	AutoID() string
	Renderer() holder.Renderer
	Fields() []form.Entry
	Value(name string) any
	HTMLName(field string) string
	ErrorDict() form.ErrorDict
}

// Describe walks h and returns its client descriptor. Bound holders are
// validated first so siblings and errors reflect the submission. A nil registry
// uses the built-in capabilities.
func Describe(ctx context.Context, h holder.Holder, reg *widgets.Registry) (Node, error) {
	if h == nil {
		return Node{}, fmt.Errorf("render: describe requires a holder")
	}
	if reg == nil {
		reg = widgets.NewRegistry()
	}
	d := describer{reg: reg}
	return d.node(ctx, h)
}

type describer struct {
	reg *widgets.Registry
}

func (d describer) node(ctx context.Context, h holder.Holder) (Node, error) {
	switch typed := h.(type) {
	case *collection.FormCollection:
		return d.collection(ctx, typed)
	case formView:
		return d.form(ctx, typed), nil
	default:
		return Node{}, fmt.Errorf("render: unsupported holder %T", h)
	}
}

func (d describer) collection(ctx context.Context, c *collection.FormCollection) (Node, error) {
	cfg := c.Config()
	node := Node{
		Kind:     NodeCollection,
		Name:     c.Name(),
		Prefix:   c.Prefix(),
		Label:    cfg.Legend,
		Renderer: rendererName(c.Renderer()),
		State:    c.State(),
	}
	desc := &CollectionNode{
		HasMany:  c.HasMany(),
		Min:      cfg.Min(),
		Extra:    cfg.Extra(),
		AddLabel: cfg.AddLabel,
		Strategy: d.reg.ResolveCollection(c.HasMany(), cfg.IsSortable),
	}
	if limit, ok := cfg.Max(); ok {
		desc.Max = &limit
	}
	node.Collection = desc

	var groups []SiblingNode
	if c.IsBound() {
		c.IsValid(ctx)
		node.Errors = normalizeMessages(collection.CollectionErrors(c.Errors()).Messages())
		for _, sibling := range c.Siblings() {
			group := SiblingNode{
				Position:         fmt.Sprint(sibling.Position),
				MarkedForRemoval: sibling.MarkedForRemoval(),
			}
			for _, member := range sibling.Members {
				child, err := d.node(ctx, member.Holder)
				if err != nil {
					return Node{}, err
				}
				group.Holders = append(group.Holders, child)
			}
			groups = append(groups, group)
		}
		if c.HasMany() {
			members, err := c.IterMany()
			if err != nil {
				return Node{}, err
			}
			templates, err := d.groups(ctx, templatesOnly(members))
			if err != nil {
				return Node{}, err
			}
			groups = append(groups, templates...)
		}
	} else {
		members, err := c.Iter()
		if err != nil {
			return Node{}, err
		}
		if groups, err = d.groups(ctx, members); err != nil {
			return Node{}, err
		}
	}
	desc.Siblings = groups
	if desc.Siblings == nil {
		desc.Siblings = []SiblingNode{}
	}
	return node, nil
}

// groups folds members into sibling groups by position label.
func (d describer) groups(ctx context.Context, members []collection.Member) ([]SiblingNode, error) {
	var out []SiblingNode
	for _, member := range members {
		state := member.Holder.State()
		label := state.PositionLabel()
		if len(out) == 0 || out[len(out)-1].Position != label {
			out = append(out, SiblingNode{Position: label, IsTemplate: state.IsTemplate})
		}
		child, err := d.node(ctx, member.Holder)
		if err != nil {
			return nil, err
		}
		last := &out[len(out)-1]
		last.Holders = append(last.Holders, child)
	}
	return out, nil
}

func templatesOnly(members []collection.Member) []collection.Member {
	out := members[:0:0]
	for _, member := range members {
		if member.Holder.State().IsTemplate {
			out = append(out, member)
		}
	}
	return out
}

func (d describer) form(ctx context.Context, f formView) Node {
	node := Node{
		Kind:     NodeForm,
		Name:     f.Name(),
		Prefix:   f.Prefix(),
		Label:    f.Label(),
		Renderer: rendererName(f.Renderer()),
		State:    f.State(),
	}
	var errs form.ErrorDict
	if f.IsBound() {
		f.FullClean(ctx)
		errs = f.ErrorDict()
		node.Errors = normalizeMessages(errs.NonField().Messages())
	}
	for _, entry := range f.Fields() {
		if entry.Field == nil {
			continue
		}
		base := entry.Field.Options()
		name := f.HTMLName(entry.Name)
		label := base.Label
		if label == "" {
			label = entry.Name
		}
		node.Fields = append(node.Fields, FieldNode{
			Name:        entry.Name,
			HTMLName:    name,
			ID:          fieldID(f.AutoID(), name),
			Label:       label,
			Help:        base.Help,
			Kind:        entry.Field.Kind(),
			Required:    base.Required,
			Hidden:      base.Hidden,
			Strategy:    d.reg.Resolve(entry.Field),
			Constraints: entry.Field.Constraints(),
			Messages:    ClientMessages(entry.Field),
			Value:       f.Value(entry.Name),
			Errors:      TranslateErrors(errs[entry.Name]),
		})
	}
	return node
}

func fieldID(autoID, name string) string {
	if autoID == "" {
		return ""
	}
	if strings.Contains(autoID, "%s") {
		return fmt.Sprintf(autoID, name)
	}
	return name
}

func rendererName(r holder.Renderer) string {
	if r == nil {
		return ""
	}
	return r.Name()
}
