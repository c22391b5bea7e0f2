package widgets

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formset/pkg/form"
)

func manyChoices(n int) []form.Choice {
	out := make([]form.Choice, n)
	for i := range out {
		out[i] = form.Choice{Value: strconv.Itoa(i)}
	}
	return out
}

func TestResolve_Builtins(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name   string
		field  form.Field
		expect Strategy
	}{
		{
			name:   "plain text",
			field:  &form.CharField{},
			expect: Strategy{Base: "text"},
		},
		{
			name:   "rich text",
			field:  &form.RichTextField{},
			expect: Strategy{Base: "richtext", Capabilities: []string{CapabilityRichText}},
		},
		{
			name:   "dual selector",
			field:  &form.ChoiceField{Multiple: true},
			expect: Strategy{Base: "select-multiple", Capabilities: []string{CapabilityDualSelector}},
		},
		{
			name:   "short select",
			field:  &form.ChoiceField{Choices: manyChoices(3)},
			expect: Strategy{Base: "select"},
		},
		{
			name:   "long select",
			field:  &form.ChoiceField{Choices: manyChoices(SelectizeThreshold + 1)},
			expect: Strategy{Base: "select", Capabilities: []string{CapabilitySelectize}},
		},
		{
			name:   "checkbox toggle",
			field:  &form.BooleanField{},
			expect: Strategy{Base: "checkbox", Capabilities: []string{CapabilityToggle}},
		},
		{
			name:   "hidden id",
			field:  &form.IDField{},
			expect: Strategy{Base: "hidden"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.expect, reg.Resolve(tc.field)); diff != "" {
				t.Fatalf("strategy mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_ExplicitWidgetKeepsCapabilities(t *testing.T) {
	reg := NewRegistry()
	field := &form.RichTextField{Base: form.Base{Widget: "prosemirror"}}

	got := reg.Resolve(field)
	if got.Base != "prosemirror" || !got.Has(CapabilityRichText) {
		t.Fatalf("unexpected strategy %+v", got)
	}
}

func TestRegister_PriorityOrderAndReplacement(t *testing.T) {
	reg := &Registry{}
	always := func(form.Field) bool { return true }
	reg.Register("low", 10, always)
	reg.Register("high", 50, always)
	reg.Register("tie", 10, always)
	reg.Register("low", 60, always)
	reg.Register("  ", 99, always)

	got := reg.Resolve(&form.CharField{}).Capabilities
	if diff := cmp.Diff([]string{"low", "high", "tie"}, got); diff != "" {
		t.Fatalf("capability order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveCollection(t *testing.T) {
	reg := NewRegistry()
	if got := reg.ResolveCollection(true, true); !got.Has(CapabilitySortable) {
		t.Fatalf("many-mode sortable collection should be sortable, got %+v", got)
	}
	if got := reg.ResolveCollection(false, true); got.Has(CapabilitySortable) {
		t.Fatalf("single-mode collection cannot be sortable")
	}
}
