package collection

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/goliatone/go-formset/pkg/holder"
)

// MaxNestingDepth caps the number of nested many-mode collections whose
// template siblings can be told apart.
const MaxNestingDepth = 10

const positionTokenBase = "${position"

// PositionToken returns the template position token for a collection with the
// given prefix: "${position}" at the outermost level, "${position_N}" when N
// tokens already appear in the prefix.
func PositionToken(prefix string) (string, error) {
	depth := strings.Count(prefix, positionTokenBase)
	if depth == 0 {
		return positionTokenBase + "}", nil
	}
	if depth >= MaxNestingDepth {
		return "", &ConfigError{
			Argument: "prefix",
			Reason:   fmt.Sprintf("nests more than %d template levels", MaxNestingDepth),
		}
	}
	return positionTokenBase + "_" + strconv.Itoa(depth) + "}", nil
}

// IterSingle returns one replica per declared holder.
func (c *FormCollection) IterSingle() []Member {
	initial, _ := c.initial.(map[string]any)
	members := make([]Member, 0, len(c.declared))
	for _, decl := range c.declared {
		opts := c.replicateOptions(c.childPrefix(decl.Name))
		if value, ok := initial[decl.Name]; ok {
			opts = opts.WithInitial(value)
		}
		replica := decl.Holder.Replicate(opts)
		replica.State().IsSingle = true
		members = append(members, Member{Name: decl.Name, Holder: replica})
	}
	return members
}

// IterMany returns the replicas of every rendered sibling followed by one
// template sibling per declared holder.
func (c *FormCollection) IterMany() ([]Member, error) {
	count, initial, err := c.siblingCount()
	if err != nil {
		return nil, err
	}
	last := len(c.declared) - 1
	members := make([]Member, 0, (count+1)*len(c.declared))
	for position := 0; position < count; position++ {
		var entry map[string]any
		if position < len(initial) {
			entry, _ = initial[position].(map[string]any)
		}
		for idx, decl := range c.declared {
			pos := strconv.Itoa(position)
			opts := c.replicateOptions(c.childPrefix(pos, decl.Name))
			value, hasValue := entry[decl.Name]
			if hasValue {
				opts = opts.WithInitial(value)
			}
			replica := decl.Holder.Replicate(opts)
			state := replica.State()
			state.Position = position
			state.IsFirst = idx == 0
			state.IsLast = idx == last
			resolved := replica.Initial()
			if hasValue {
				resolved = value
			}
			state.FreshAndEmpty = holder.IsEmpty(resolved) &&
				(position >= c.config.Min() || c.state.FreshAndEmpty)
			members = append(members, Member{Name: decl.Name, Holder: replica})
		}
	}

	token, err := PositionToken(c.prefix)
	if err != nil {
		err.(*ConfigError).Collection = c.config.Name
		return nil, err
	}
	for idx, decl := range c.declared {
		replica := decl.Holder.Replicate(c.replicateOptions(c.childPrefix(token, decl.Name)))
		state := replica.State()
		state.PositionToken = token
		state.IsTemplate = true
		state.IsFirst = idx == 0
		state.IsLast = idx == last
		members = append(members, Member{Name: decl.Name, Holder: replica})
	}
	return members, nil
}

// Iter dispatches to IterSingle or IterMany.
func (c *FormCollection) Iter() ([]Member, error) {
	if c.HasMany() {
		return c.IterMany()
	}
	return c.IterSingle(), nil
}

func (c *FormCollection) siblingCount() (int, []any, error) {
	count := max(c.config.Min(), c.config.Extra())
	if c.initial == nil {
		return count, nil, nil
	}
	initial, ok := asSequence(c.initial)
	if !ok {
		return 0, nil, &ConfigError{
			Collection: c.config.Name,
			Argument:   "initial",
			Reason:     fmt.Sprintf("must be a sequence, got %T", c.initial),
		}
	}
	count = max(count, len(initial)) + c.config.Extra()
	if limit, ok := c.config.Max(); ok {
		count = min(limit, count)
	}
	return count, initial, nil
}

// replicateOptions only forces IgnoreMarkedForRemoval on; holders declared
// with the flag keep it inside collections that honour markers.
func (c *FormCollection) replicateOptions(prefix string) holder.ReplicateOptions {
	opts := holder.ReplicateOptions{
		Prefix:   &prefix,
		AutoID:   c.autoID,
		Renderer: c.renderer,
	}
	if c.state.IgnoreMarkedForRemoval {
		ignore := true
		opts.IgnoreMarkedForRemoval = &ignore
	}
	return opts
}

// asSequence accepts []any and any other slice or array kind.
func asSequence(value any) ([]any, bool) {
	if items, ok := value.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
