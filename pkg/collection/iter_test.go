package collection_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/record/memory"
	"github.com/goliatone/go-formset/pkg/testsupport"
)

type memberView struct {
	Prefix   string
	Position string
	First    bool
	Last     bool
	Template bool
	Fresh    bool
}

func view(members []collection.Member) []memberView {
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		state := m.Holder.State()
		out = append(out, memberView{
			Prefix:   m.Holder.Prefix(),
			Position: state.PositionLabel(),
			First:    state.IsFirst,
			Last:     state.IsLast,
			Template: state.IsTemplate,
			Fresh:    state.FreshAndEmpty,
		})
	}
	return out
}

func TestIterManyWithInitial(t *testing.T) {
	proto := collection.New(collection.Config{
		Name:          "departments",
		MinSiblings:   collection.Int(1),
		MaxSiblings:   collection.Int(3),
		ExtraSiblings: collection.Int(1),
	}, []collection.Declared{
		collection.Declare("department", testsupport.DepartmentForm()),
		collection.Declare("teams", testsupport.TeamCollection(memory.New())),
	}, collection.WithInitial([]any{
		map[string]any{"department": map[string]any{"name": "Sales"}},
		map[string]any{"department": map[string]any{"name": "Support"}},
	}))

	members, err := proto.IterMany()
	if err != nil {
		t.Fatalf("iter many: %v", err)
	}
	want := []memberView{
		{Prefix: "0.department", Position: "0", First: true},
		{Prefix: "0.teams", Position: "0", Last: true},
		{Prefix: "1.department", Position: "1", First: true},
		{Prefix: "1.teams", Position: "1", Last: true, Fresh: true},
		{Prefix: "2.department", Position: "2", First: true, Fresh: true},
		{Prefix: "2.teams", Position: "2", Last: true, Fresh: true},
		{Prefix: "${position}.department", Position: "${position}", First: true, Template: true},
		{Prefix: "${position}.teams", Position: "${position}", Last: true, Template: true},
	}
	if diff := cmp.Diff(want, view(members)); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"name": "Support"}, members[2].Holder.Initial()); diff != "" {
		t.Fatalf("initial mismatch (-want +got):\n%s", diff)
	}
}

func TestIterManyCount(t *testing.T) {
	cases := []struct {
		name    string
		cfg     collection.Config
		initial []any
		want    int
	}{
		{name: "defaults", cfg: collection.Config{ExtraSiblings: collection.Int(0)}, want: 1},
		{name: "extra wins", cfg: collection.Config{MinSiblings: collection.Int(1), ExtraSiblings: collection.Int(3)}, want: 3},
		{name: "initial plus extra", cfg: collection.Config{MinSiblings: collection.Int(0), ExtraSiblings: collection.Int(2)}, initial: make([]any, 3), want: 5},
		{name: "capped by max", cfg: collection.Config{MinSiblings: collection.Int(0), MaxSiblings: collection.Int(2), ExtraSiblings: collection.Int(2)}, initial: make([]any, 3), want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []collection.Option
			if tc.initial != nil {
				opts = append(opts, collection.WithInitial(tc.initial))
			}
			tc.cfg.Name = "contacts"
			c := collection.New(tc.cfg, []collection.Declared{collection.Declare("person", personForm())}, opts...)
			members, err := c.IterMany()
			if err != nil {
				t.Fatalf("iter many: %v", err)
			}
			if got := len(members) - 1; got != tc.want {
				t.Fatalf("expected %d siblings, got %d", tc.want, got)
			}
		})
	}
}

func TestIterManyRejectsMappingInitial(t *testing.T) {
	c := contacts(collection.Config{MinSiblings: collection.Int(1)})
	c = collection.New(c.Config(), c.Declared(), collection.WithInitial(map[string]any{"person": nil}))
	_, err := c.IterMany()
	var cfgErr *collection.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Collection != "contacts" || cfgErr.Argument != "initial" {
		t.Fatalf("unexpected config error %+v", cfgErr)
	}
}

func TestIterSingle(t *testing.T) {
	c := testsupport.CompanyCollection(memory.New())
	c = collection.New(c.Config(), c.Declared(),
		collection.WithPrefix("root"),
		collection.WithInitial(map[string]any{"company": map[string]any{"name": "Acme"}}))

	members := c.IterSingle()
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if got := members[0].Holder.Prefix(); got != "root.company" {
		t.Fatalf("unexpected prefix %q", got)
	}
	if !members[1].Holder.State().IsSingle {
		t.Fatalf("single-mode replicas must be flagged")
	}
	if diff := cmp.Diff(map[string]any{"name": "Acme"}, members[0].Holder.Initial()); diff != "" {
		t.Fatalf("initial mismatch (-want +got):\n%s", diff)
	}
}

func nested(depth int) *collection.FormCollection {
	var inner = collection.New(collection.Config{Name: "leaf", MinSiblings: collection.Int(0)},
		[]collection.Declared{collection.Declare("person", personForm())})
	for i := 1; i < depth; i++ {
		inner = collection.New(collection.Config{Name: "level", MinSiblings: collection.Int(0)},
			[]collection.Declared{collection.Declare("child", inner)})
	}
	return inner
}

func TestTemplateTokensPerDepth(t *testing.T) {
	var c = nested(3)
	var prefixes []string
	for depth := 0; depth < 3; depth++ {
		members, err := c.IterMany()
		if err != nil {
			t.Fatalf("iter many at depth %d: %v", depth, err)
		}
		template := members[len(members)-1]
		prefixes = append(prefixes, template.Holder.Prefix())
		next, ok := template.Holder.(*collection.FormCollection)
		if !ok {
			break
		}
		c = next
	}
	want := []string{
		"${position}.child",
		"${position}.child.${position_1}.child",
		"${position}.child.${position_1}.child.${position_2}.person",
	}
	if diff := cmp.Diff(want, prefixes); diff != "" {
		t.Fatalf("template prefixes mismatch (-want +got):\n%s", diff)
	}
}

func TestPositionTokenDepthCap(t *testing.T) {
	prefix := strings.Repeat("${position}.x.", 9)
	token, err := collection.PositionToken(prefix)
	if err != nil || token != "${position_9}" {
		t.Fatalf("expected ${position_9}, got %q (%v)", token, err)
	}

	deep := collection.New(collection.Config{Name: "deep", MinSiblings: collection.Int(0)},
		[]collection.Declared{collection.Declare("person", personForm())},
		collection.WithPrefix(strings.Repeat("${position}.x.", 10)+"deep"))
	_, err = deep.IterMany()
	var cfgErr *collection.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Collection != "deep" {
		t.Fatalf("expected ConfigError for deep nesting, got %v", err)
	}
}
