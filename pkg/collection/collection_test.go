package collection_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
	"github.com/goliatone/go-formset/pkg/record/memory"
	"github.com/goliatone/go-formset/pkg/testsupport"
)

func personForm() *form.Form {
	return form.New("person", form.Fields(
		form.Entry{Name: "name", Field: &form.CharField{Base: form.Base{Required: true}}},
	))
}

func contacts(cfg collection.Config) *collection.FormCollection {
	cfg.Name = "contacts"
	return collection.New(cfg, []collection.Declared{collection.Declare("person", personForm())})
}

func people(names ...string) []any {
	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{"person": map[string]any{"name": name}})
	}
	return out
}

func errorMap(t *testing.T, tree holder.ErrorTree, idx int) collection.ErrorMap {
	t.Helper()
	seq, ok := tree.(collection.ErrorSeq)
	if !ok {
		t.Fatalf("expected ErrorSeq, got %T", tree)
	}
	if idx >= len(seq) {
		t.Fatalf("error sequence has %d entries, want index %d", len(seq), idx)
	}
	m, ok := seq[idx].(collection.ErrorMap)
	if !ok {
		t.Fatalf("expected ErrorMap at %d, got %T", idx, seq[idx])
	}
	return m
}

func nonField(t *testing.T, tree holder.ErrorTree) []string {
	t.Helper()
	switch typed := tree.(type) {
	case form.ErrorDict:
		return typed.NonField().Messages()
	case collection.ErrorMap:
		list, _ := typed[form.NonFieldErrors].(form.ErrorList)
		return list.Messages()
	}
	t.Fatalf("unexpected error tree %T", tree)
	return nil
}

func TestCardinality(t *testing.T) {
	cases := []struct {
		name  string
		count int
		want  []string
	}{
		{name: "none", count: 0, want: []string{"Not enough entries in “contacts”, please add another."}},
		{name: "min", count: 1},
		{name: "max", count: 2},
		{name: "over", count: 3, want: []string{"Too many entries in “contacts”, please remove one."}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			names := []string{"a", "b", "c"}[:tc.count]
			c := contacts(collection.Config{MinSiblings: collection.Int(1), MaxSiblings: collection.Int(2)}).Bind(people(names...))
			valid := c.IsValid(context.Background())
			if valid != (tc.want == nil) {
				t.Fatalf("IsValid = %v, errors %v", valid, c.Errors())
			}
			if diff := cmp.Diff(tc.want, collection.CollectionErrors(c.Errors()).Messages()); diff != "" {
				t.Fatalf("collection errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCardinalityReplacesFieldErrors(t *testing.T) {
	c := contacts(collection.Config{MinSiblings: collection.Int(3)}).Bind(people("a", ""))
	if c.IsValid(context.Background()) {
		t.Fatalf("expected invalid collection")
	}
	seq := c.Errors().(collection.ErrorSeq)
	if len(seq) != 1 {
		t.Fatalf("expected a single replacement entry, got %d", len(seq))
	}
	raw, err := json.Marshal(c.Errors())
	if err != nil {
		t.Fatalf("marshal errors: %v", err)
	}
	var got any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal errors: %v", err)
	}
	want := []any{map[string]any{
		collection.CollectionErrorsKey: []any{"Not enough entries in “contacts”, please add another."},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("error payload mismatch (-want +got):\n%s", diff)
	}
}

func TestCardinalityInvertedBounds(t *testing.T) {
	c := contacts(collection.Config{MinSiblings: collection.Int(3), MaxSiblings: collection.Int(2)}).Bind(people("a"))
	if c.IsValid(context.Background()) {
		t.Fatalf("expected invalid collection")
	}
	want := []string{"Not enough entries in “contacts”, please add another."}
	if diff := cmp.Diff(want, collection.CollectionErrors(c.Errors()).Messages()); diff != "" {
		t.Fatalf("collection errors mismatch (-want +got):\n%s", diff)
	}
}

func TestLegendNamesCollectionErrors(t *testing.T) {
	c := contacts(collection.Config{Legend: "Contacts", MinSiblings: collection.Int(1)}).Bind([]any{})
	c.IsValid(context.Background())
	want := []string{"Not enough entries in “Contacts”, please add another."}
	if diff := cmp.Diff(want, collection.CollectionErrors(c.Errors()).Messages()); diff != "" {
		t.Fatalf("collection errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRemovedSiblingDoesNotCount(t *testing.T) {
	data := people("a", "b")
	data[1].(map[string]any)["person"].(map[string]any)[holder.MarkedForRemoval] = "true"

	c := contacts(collection.Config{MinSiblings: collection.Int(2)}).Bind(data)
	if c.IsValid(context.Background()) {
		t.Fatalf("removed sibling must not count toward the minimum")
	}
	if !c.Siblings()[1].MarkedForRemoval() {
		t.Fatalf("expected second sibling to be marked for removal")
	}
}

func TestSiblingLevelRemovalMarker(t *testing.T) {
	data := people("a", "")
	data[1].(map[string]any)[holder.MarkedForRemoval] = true

	c := contacts(collection.Config{MinSiblings: collection.Int(0)}).Bind(data)
	if !c.IsValid(context.Background()) {
		t.Fatalf("marked sibling should skip validation, errors %v", c.Errors())
	}
	cleaned := c.CleanedData().([]any)
	want := map[string]any{"person": map[string]any{holder.MarkedForRemoval: true}}
	if diff := cmp.Diff(want, cleaned[1]); diff != "" {
		t.Fatalf("cleaned data mismatch (-want +got):\n%s", diff)
	}
}

func TestIgnoreMarkedForRemovalDropsSibling(t *testing.T) {
	data := people("a", "")
	data[1].(map[string]any)["person"].(map[string]any)[holder.MarkedForRemoval] = true

	c := contacts(collection.Config{MinSiblings: collection.Int(1), IgnoreMarkedForRemoval: true}).Bind(data)
	if !c.IsValid(context.Background()) {
		t.Fatalf("unexpected errors %v", c.Errors())
	}
	seq := c.Errors().(collection.ErrorSeq)
	if len(seq) != 2 || seq[1] != nil {
		t.Fatalf("dropped sibling should keep an empty error slot, got %#v", seq)
	}
	if got := len(c.Siblings()); got != 1 {
		t.Fatalf("expected one sibling, got %d", got)
	}
}

func TestFormIgnoringMarkersInsideCollection(t *testing.T) {
	person := form.New("person", form.Fields(
		form.Entry{Name: "name", Field: &form.CharField{Base: form.Base{Required: true}}},
	), form.WithIgnoreMarkedForRemoval(true))
	proto := collection.New(collection.Config{Name: "contacts", MinSiblings: collection.Int(1)},
		[]collection.Declared{collection.Declare("person", person)})

	data := people("a", "")
	data[1].(map[string]any)["person"].(map[string]any)[holder.MarkedForRemoval] = true

	c := proto.Bind(data)
	if !c.IsValid(context.Background()) {
		t.Fatalf("unexpected errors %v", c.Errors())
	}
	if got := len(c.Siblings()); got != 1 {
		t.Fatalf("marked sibling of an ignoring form must be dropped, got %d siblings", got)
	}
	if c.Siblings()[0].MarkedForRemoval() {
		t.Fatalf("remaining sibling must not be marked")
	}
}

func TestErrorsFollowSubmittedPositions(t *testing.T) {
	data := []any{
		map[string]any{"person": map[string]any{"name": "a"}},
		nil,
		map[string]any{"person": map[string]any{"name": ""}},
	}
	c := contacts(collection.Config{MinSiblings: collection.Int(0)}).Bind(data)
	if c.IsValid(context.Background()) {
		t.Fatalf("expected invalid collection")
	}
	seq := c.Errors().(collection.ErrorSeq)
	if len(seq) != 3 || seq[1] != nil {
		t.Fatalf("expected one slot per submitted position, got %#v", seq)
	}
	if !errorMap(t, c.Errors(), 2).HasErrors() || errorMap(t, c.Errors(), 0).HasErrors() {
		t.Fatalf("errors attached to the wrong position: %v", seq)
	}
	if got := c.Siblings()[1].Position; got != 2 {
		t.Fatalf("expected sibling position 2, got %d", got)
	}
}

func TestInvalidMarkedMemberStillCounts(t *testing.T) {
	data := []any{
		map[string]any{"person": map[string]any{"name": "a"}},
		map[string]any{holder.MarkedForRemoval: true, "person": "malformed"},
	}
	c := contacts(collection.Config{MaxSiblings: collection.Int(1)}).Bind(data)
	if c.IsValid(context.Background()) {
		t.Fatalf("expected invalid collection")
	}
	if c.Siblings()[1].MarkedForRemoval() {
		t.Fatalf("a member that failed validation must not mark its sibling")
	}
	want := []string{"Too many entries in “contacts”, please remove one."}
	if diff := cmp.Diff(want, collection.CollectionErrors(c.Errors()).Messages()); diff != "" {
		t.Fatalf("collection errors mismatch (-want +got):\n%s", diff)
	}
}

func TestNilEntriesAreSkipped(t *testing.T) {
	data := append(people("a"), nil)
	c := contacts(collection.Config{MaxSiblings: collection.Int(1)}).Bind(data)
	if !c.IsValid(context.Background()) {
		t.Fatalf("unexpected errors %v", c.Errors())
	}
}

func TestMissingHolderInSibling(t *testing.T) {
	store := memory.New()
	c := testsupport.DepartmentCollection(store).Bind([]any{
		map[string]any{"department": map[string]any{"name": "Sales"}},
	})
	if c.IsValid(context.Background()) {
		t.Fatalf("sibling without teams must be invalid")
	}
	if got := len(c.Siblings()); got != 0 {
		t.Fatalf("incomplete sibling must not be kept, got %d", got)
	}
	m := errorMap(t, c.Errors(), 0)
	if diff := cmp.Diff([]string{"Form data is missing."}, nonField(t, m["teams"])); diff != "" {
		t.Fatalf("missing holder error mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingHolderInSingleMode(t *testing.T) {
	c := testsupport.CompanyCollection(memory.New()).Bind(map[string]any{
		"company": map[string]any{"name": "Acme"},
	})
	if c.IsValid(context.Background()) {
		t.Fatalf("expected invalid collection")
	}
	m := c.Errors().(collection.ErrorMap)
	if diff := cmp.Diff([]string{"Form data is missing."}, nonField(t, m["departments"])); diff != "" {
		t.Fatalf("missing holder error mismatch (-want +got):\n%s", diff)
	}
	if m["company"].HasErrors() {
		t.Fatalf("company form should be valid")
	}
}

func TestRetrievalFailure(t *testing.T) {
	failing := collection.RetrieverFunc(func(context.Context, map[string]any, *record.Record) (*record.Record, error) {
		return nil, errors.New("connection reset")
	})
	proto := collection.New(collection.Config{Name: "contacts", MinSiblings: collection.Int(0)},
		[]collection.Declared{collection.Declare("person", personForm())},
		collection.WithRetriever(failing))
	c := proto.Bind(people("a"))
	if c.IsValid(context.Background()) {
		t.Fatalf("expected invalid collection")
	}
	if diff := cmp.Diff([]string{"Unable to retrieve the referenced entry."}, nonField(t, errorMap(t, c.Errors(), 0))); diff != "" {
		t.Fatalf("retrieval error mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedManyData(t *testing.T) {
	c := contacts(collection.Config{MinSiblings: collection.Int(0)}).Bind(map[string]any{"person": nil})
	if c.IsValid(context.Background()) {
		t.Fatalf("mapping payload for a many-mode collection must be invalid")
	}
}

func TestCleanedDataShape(t *testing.T) {
	ctx := context.Background()
	many := contacts(collection.Config{MinSiblings: collection.Int(1)}).Bind(people("a", "b"))
	if !many.IsValid(ctx) {
		t.Fatalf("unexpected errors %v", many.Errors())
	}
	want := []any{
		map[string]any{"person": map[string]any{"name": "a"}},
		map[string]any{"person": map[string]any{"name": "b"}},
	}
	if diff := cmp.Diff(want, many.CleanedData()); diff != "" {
		t.Fatalf("many cleaned data mismatch (-want +got):\n%s", diff)
	}

	single := collection.New(collection.Config{Name: "profile"}, []collection.Declared{
		collection.Declare("person", personForm()),
	}).Bind(map[string]any{"person": map[string]any{"name": "Ada"}})
	if !single.IsValid(ctx) {
		t.Fatalf("unexpected errors %v", single.Errors())
	}
	if diff := cmp.Diff(map[string]any{"person": map[string]any{"name": "Ada"}}, single.CleanedData()); diff != "" {
		t.Fatalf("single cleaned data mismatch (-want +got):\n%s", diff)
	}
}

func TestUnboundCollection(t *testing.T) {
	c := contacts(collection.Config{MinSiblings: collection.Int(0)})
	if c.IsValid(context.Background()) {
		t.Fatalf("unbound collection must not be valid")
	}
	if c.Errors() == nil || c.Errors().HasErrors() {
		t.Fatalf("unbound collection should have an empty error tree")
	}
}

func TestReplicateIsolation(t *testing.T) {
	ctx := context.Background()
	proto := contacts(collection.Config{MinSiblings: collection.Int(1)})
	a := proto.Bind(people(""))
	b := proto.Bind(people("b"))

	if a.IsValid(ctx) {
		t.Fatalf("replica a should be invalid")
	}
	if !b.IsValid(ctx) {
		t.Fatalf("replica b should be valid, errors %v", b.Errors())
	}
	if proto.IsBound() || proto.Errors() != nil || proto.Siblings() != nil {
		t.Fatalf("prototype must stay unbound and uncleaned")
	}
	if a.Siblings()[0].Members[0].Holder == b.Siblings()[0].Members[0].Holder {
		t.Fatalf("replicas must not share holders")
	}
}

func TestMergeDeclarations(t *testing.T) {
	x, y, z := personForm(), personForm(), personForm()
	base := []collection.Declared{
		collection.Declare("a", x),
		collection.Declare("b", y),
		collection.Declare("c", z),
	}
	replacement := personForm()
	derived := []collection.Declared{
		collection.Shadow("b"),
		collection.Declare("a", replacement),
		collection.Declare("d", x),
		collection.Shadow("unknown"),
	}

	merged := collection.Merge(base, derived)
	names := make([]string, 0, len(merged))
	for _, decl := range merged {
		names = append(names, decl.Name)
	}
	if diff := cmp.Diff([]string{"a", "c", "d"}, names); diff != "" {
		t.Fatalf("merged names mismatch (-want +got):\n%s", diff)
	}
	if merged[0].Holder != replacement {
		t.Fatalf("redeclared holder should replace the inherited one")
	}
}

func TestFromDescribers(t *testing.T) {
	store := memory.New()
	base := testsupport.DepartmentCollection(store)
	extension := collection.New(collection.Config{Name: "ext"}, []collection.Declared{
		collection.Declare("notes", personForm()),
	})
	merged := collection.FromDescribers(base, describer{collection.Shadow("teams")}, extension)
	names := make([]string, 0, len(merged))
	for _, decl := range merged {
		names = append(names, decl.Name)
	}
	if diff := cmp.Diff([]string{"department", "notes"}, names); diff != "" {
		t.Fatalf("merged names mismatch (-want +got):\n%s", diff)
	}
}

type describer []collection.Declared

func (d describer) Describe() []collection.Declared { return d }
