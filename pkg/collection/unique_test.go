package collection_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/record"
	"github.com/goliatone/go-formset/pkg/record/memory"
	"github.com/goliatone/go-formset/pkg/testsupport"
)

func departments(names ...string) []any {
	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{
			"department": map[string]any{"name": name},
			"teams":      []any{},
		})
	}
	return out
}

func TestUniqueTogetherFlagsSecondOccurrence(t *testing.T) {
	ctx := context.Background()
	c := testsupport.DepartmentCollection(memory.New()).Bind(departments("Sales", "Support", "Sales"))

	if c.IsValid(ctx) {
		t.Fatalf("duplicate departments must be invalid")
	}
	if c.IsValid(ctx) {
		t.Fatalf("repeated IsValid must not change the outcome")
	}

	for idx, wantErrors := range [][]string{nil, nil, {"Please correct the duplicate data for company and name, which must be unique."}} {
		got := nonField(t, errorMap(t, c.Errors(), idx)["department"])
		if diff := cmp.Diff(wantErrors, got); diff != "" {
			t.Fatalf("sibling %d errors mismatch (-want +got):\n%s", idx, diff)
		}
	}

	cleaned := c.CleanedData().([]any)
	first := cleaned[0].(map[string]any)["department"].(map[string]any)
	third := cleaned[2].(map[string]any)["department"].(map[string]any)
	if first["name"] != "Sales" {
		t.Fatalf("first occurrence must keep its data, got %v", first)
	}
	if _, ok := third["name"]; ok {
		t.Fatalf("duplicate fields must be stripped from cleaned data, got %v", third)
	}
}

func TestUniqueSingleColumn(t *testing.T) {
	proto := collection.New(collection.Config{Name: "companies", MinSiblings: collection.Int(1)},
		[]collection.Declared{collection.Declare("company", testsupport.CompanyForm())})
	c := proto.Bind([]any{
		map[string]any{"company": map[string]any{"name": "Acme"}},
		map[string]any{"company": map[string]any{"name": "Acme"}},
	})
	if c.IsValid(context.Background()) {
		t.Fatalf("duplicate unique column must be invalid")
	}
	dict := errorMap(t, c.Errors(), 1)["company"].(form.ErrorDict)
	if diff := cmp.Diff([]string{form.CodeUnique}, dict.NonField().Codes()); diff != "" {
		t.Fatalf("error codes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Please correct the duplicate data for name."}, dict.NonField().Messages()); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestUniqueIgnoresInvalidAndRemovedSiblings(t *testing.T) {
	data := departments("Sales", "Sales", "Sales")
	data[0].(map[string]any)["department"].(map[string]any)["_marked_for_removal_"] = true
	data[1].(map[string]any)["department"].(map[string]any)["id"] = "not-a-number"

	c := testsupport.DepartmentCollection(memory.New()).Bind(data)
	c.IsValid(context.Background())
	if got := nonField(t, errorMap(t, c.Errors(), 2)["department"]); len(got) != 0 {
		t.Fatalf("only independently valid siblings take part, got %v", got)
	}
}

func TestUniqueReducesRecordsAndLists(t *testing.T) {
	meta := &record.Meta{
		Name:           "membership",
		Columns:        []record.Column{{Name: "tags", Type: record.ColumnString}, {Name: "owner", Type: record.ColumnReference}},
		UniqueTogether: [][]string{{"tags", "owner"}},
	}
	owner := &record.Record{Meta: testsupport.Company, Values: map[string]any{"id": int64(4)}}
	tagForm := form.NewModelForm("membership", meta, form.Fields(
		form.Entry{Name: "tags", Field: &form.ChoiceField{Multiple: true, Choices: []form.Choice{{Value: "a"}, {Value: "b"}}}},
	), form.WithCleaner(func(_ context.Context, cleaned map[string]any) error {
		cleaned["owner"] = owner
		return nil
	}))
	proto := collection.New(collection.Config{Name: "memberships", MinSiblings: collection.Int(0)},
		[]collection.Declared{collection.Declare("membership", tagForm)})
	c := proto.Bind([]any{
		map[string]any{"membership": map[string]any{"tags": []any{"a", "b"}}},
		map[string]any{"membership": map[string]any{"tags": []any{"b", "a"}}},
		map[string]any{"membership": map[string]any{"tags": []any{"a", "b"}}},
	})
	c.IsValid(context.Background())

	var flagged []int
	for idx := range c.Errors().(collection.ErrorSeq) {
		if errorMap(t, c.Errors(), idx).HasErrors() {
			flagged = append(flagged, idx)
		}
	}
	if diff := cmp.Diff([]int{2}, flagged); diff != "" {
		t.Fatalf("flagged siblings mismatch (-want +got):\n%s", diff)
	}
}

func TestUniqueGroupsHoldersByModel(t *testing.T) {
	proto := collection.New(collection.Config{Name: "pairs", MinSiblings: collection.Int(0)}, []collection.Declared{
		collection.Declare("primary", testsupport.CompanyForm()),
		collection.Declare("secondary", testsupport.CompanyForm()),
	})
	c := proto.Bind([]any{
		map[string]any{"primary": map[string]any{"name": "Acme"}, "secondary": map[string]any{"name": "Globex"}},
		map[string]any{"primary": map[string]any{"name": "Globex"}, "secondary": map[string]any{"name": "Initech"}},
	})
	if c.IsValid(context.Background()) {
		t.Fatalf("a name repeated across holders of one model must be invalid")
	}
	if got := nonField(t, errorMap(t, c.Errors(), 0)["secondary"]); len(got) != 0 {
		t.Fatalf("first occurrence must stay valid, got %v", got)
	}
	want := []string{"Please correct the duplicate data for name."}
	if diff := cmp.Diff(want, nonField(t, errorMap(t, c.Errors(), 1)["primary"])); diff != "" {
		t.Fatalf("duplicate errors mismatch (-want +got):\n%s", diff)
	}
}
