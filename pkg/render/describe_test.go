package render_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record/memory"
	"github.com/goliatone/go-formset/pkg/render"
	"github.com/goliatone/go-formset/pkg/testsupport"
	"github.com/goliatone/go-formset/pkg/widgets"
)

func child(t *testing.T, node render.Node, sibling, holder int) render.Node {
	t.Helper()
	if node.Collection == nil {
		t.Fatalf("node %q is not a collection", node.Name)
	}
	if sibling >= len(node.Collection.Siblings) {
		t.Fatalf("node %q has %d siblings, want index %d", node.Name, len(node.Collection.Siblings), sibling)
	}
	holders := node.Collection.Siblings[sibling].Holders
	if holder >= len(holders) {
		t.Fatalf("sibling %d of %q has %d holders, want index %d", sibling, node.Name, len(holders), holder)
	}
	return holders[holder]
}

func TestDescribe_UnboundTemplates(t *testing.T) {
	root, err := render.Describe(testsupport.Context(), testsupport.CompanyCollection(memory.New()), nil)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if root.Kind != render.NodeCollection || root.Collection.HasMany {
		t.Fatalf("expected single-mode collection root, got %+v", root)
	}

	company := child(t, root, 0, 0)
	if company.Kind != render.NodeForm || company.Prefix != "company" {
		t.Fatalf("unexpected company node: %+v", company)
	}
	names := []string{}
	for _, f := range company.Fields {
		names = append(names, f.HTMLName)
	}
	if diff := cmp.Diff([]string{"company.id", "company.name"}, names); diff != "" {
		t.Fatalf("field names mismatch (-want +got):\n%s", diff)
	}
	name := company.Fields[1]
	if name.ID != "id_company.name" || !name.Required || name.Label != "Name" {
		t.Fatalf("unexpected name field: %+v", name)
	}
	if diff := cmp.Diff(map[render.ErrorKind]string{
		render.ValueMissing: "This field is required.",
		render.TooLong:      "Ensure this value has at most 50 characters.",
	}, name.Messages); diff != "" {
		t.Fatalf("client messages mismatch (-want +got):\n%s", diff)
	}
	if company.Fields[0].Kind != form.KindHidden {
		t.Fatalf("expected hidden id field, got %q", company.Fields[0].Kind)
	}

	departments := child(t, root, 0, 1)
	if !departments.Collection.HasMany || len(departments.Collection.Siblings) != 1 {
		t.Fatalf("expected only the template sibling, got %+v", departments.Collection.Siblings)
	}
	tmpl := departments.Collection.Siblings[0]
	if !tmpl.IsTemplate || tmpl.Position != "${position}" {
		t.Fatalf("unexpected template sibling: %+v", tmpl)
	}
	teams := child(t, departments, 0, 1)
	if teams.Prefix != "departments.${position}.teams" {
		t.Fatalf("unexpected teams prefix %q", teams.Prefix)
	}
	team := child(t, teams, 0, 0)
	if team.Prefix != "departments.${position}.teams.${position_1}.team" {
		t.Fatalf("unexpected nested template prefix %q", team.Prefix)
	}
}

func TestDescribe_BoundWithErrors(t *testing.T) {
	bound := testsupport.CompanyCollection(memory.New()).Bind(map[string]any{
		"company": map[string]any{"name": "Pepsi"},
		"departments": []any{
			map[string]any{"department": map[string]any{"name": ""}, "teams": []any{}},
		},
	})

	root, err := render.Describe(testsupport.Context(), bound, widgets.NewRegistry())
	if err != nil {
		t.Fatalf("describe: %v", err)
	}

	company := child(t, root, 0, 0)
	if got := company.Fields[1].Value; got != "Pepsi" {
		t.Fatalf("expected bound value, got %v", got)
	}
	if company.Fields[1].Errors != nil {
		t.Fatalf("expected no errors on company name, got %v", company.Fields[1].Errors)
	}

	departments := child(t, root, 0, 1)
	if len(departments.Collection.Siblings) != 2 {
		t.Fatalf("expected submitted sibling plus template, got %d", len(departments.Collection.Siblings))
	}
	submitted := departments.Collection.Siblings[0]
	if submitted.Position != "0" || submitted.IsTemplate {
		t.Fatalf("unexpected submitted sibling: %+v", submitted)
	}
	department := submitted.Holders[0]
	want := map[render.ErrorKind][]string{render.ValueMissing: {"This field is required."}}
	if diff := cmp.Diff(want, department.Fields[1].Errors); diff != "" {
		t.Fatalf("department errors mismatch (-want +got):\n%s", diff)
	}
	if !departments.Collection.Siblings[1].IsTemplate {
		t.Fatalf("expected template sibling last")
	}
}

func TestDescribe_CollectionLevelErrorsAndJSON(t *testing.T) {
	teams := testsupport.TeamCollection(memory.New()).Bind([]any{})
	node, err := render.Describe(testsupport.Context(), teams, nil)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if node.Errors != nil {
		t.Fatalf("expected no collection errors with min 0, got %v", node.Errors)
	}
	if node.Collection.Strategy.Base != "collection" {
		t.Fatalf("unexpected strategy %+v", node.Collection.Strategy)
	}

	payload, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["kind"] != "collection" || doc["name"] != "teams" {
		t.Fatalf("unexpected document %v", doc)
	}
}

func TestDescribe_ReportsRenderers(t *testing.T) {
	profile := collection.New(collection.Config{Name: "profile"}, []collection.Declared{
		collection.Declare("person", form.New("person", form.Fields(
			form.Entry{Name: "name", Field: &form.CharField{}},
		), form.WithDefaultRenderer(holder.NamedRenderer("inline")))),
		collection.Declare("company", testsupport.CompanyForm()),
	})

	root, err := render.Describe(testsupport.Context(), profile, nil)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	got := []string{root.Renderer, child(t, root, 0, 0).Renderer, child(t, root, 0, 1).Renderer}
	if diff := cmp.Diff([]string{"default", "inline", "default"}, got); diff != "" {
		t.Fatalf("renderers mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribe_RejectsNil(t *testing.T) {
	if _, err := render.Describe(testsupport.Context(), nil, nil); err == nil {
		t.Fatalf("expected error for nil holder")
	}
}
