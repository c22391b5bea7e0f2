package validation

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formset/pkg/schema"
)

func TestValidateDocument_Valid(t *testing.T) {
	raw, err := os.ReadFile("../schema/testdata/company.yaml")
	if err != nil {
		t.Fatalf("read definition: %v", err)
	}
	def, result := ValidateDocument(context.Background(), schema.SourceFromFile("company.yaml"), raw)
	if !result.Valid {
		t.Fatalf("expected definition to be valid: %#v", result.Issues)
	}
	if def == nil || len(def.Collections) == 0 {
		t.Fatalf("expected parsed definition, got %#v", def)
	}
	if result.Err() != nil {
		t.Fatalf("expected nil error, got %v", result.Err())
	}
}

func TestValidateDocument_ParseErrorCarriesLine(t *testing.T) {
	raw := []byte("models:\n  - name: a\n    columns: [\n")
	_, result := ValidateDocument(context.Background(), nil, raw)
	if result.Valid || len(result.Issues) != 1 {
		t.Fatalf("expected one parse issue, got %#v", result)
	}
	if !strings.HasPrefix(result.Issues[0].Path, "line ") {
		t.Fatalf("expected line path, got %#v", result.Issues[0])
	}
}

func TestValidateDocument_UnknownKey(t *testing.T) {
	raw := []byte("forms:\n  - name: a\n    feilds: []\n")
	_, result := ValidateDocument(context.Background(), nil, raw)
	if result.Valid {
		t.Fatalf("expected unknown key to be rejected")
	}
	if got := result.Issues[0]; got.Path != "line 3" || !strings.Contains(got.Message, "feilds") {
		t.Fatalf("unexpected issue %#v", got)
	}
}

func TestValidateDefinition_CollectsIssues(t *testing.T) {
	raw := `
models:
  - name: m
    columns:
      - {name: title, type: string}
      - {name: title, type: blob}
      - {name: owner, type: reference, references: ghost}
    unique_together: [[title, missing]]
forms:
  - name: f
    model: nope
    fields:
      - {name: a, type: text, min_length: 5, max_length: 2}
      - {name: b, type: choice}
      - {name: c, type: date}
      - {name: d, pattern: "("}
collections:
  - name: loop
    min_siblings: -1
    holders:
      f: {form: f}
      again: {collection: loop}
  - name: broken
    extends: ghost
    retrieve_by: x
    holders:
      f: {form: f}
      x: {}
      gone: ~
`
	def, err := schema.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result := ValidateDefinition(def)
	if result.Valid {
		t.Fatalf("expected issues")
	}

	var got []string
	for _, issue := range result.Issues {
		got = append(got, issue.Path+"|"+issue.Field+"|"+issue.Message)
	}
	want := []string{
		`models[0].columns[1]|name|duplicate column "title"`,
		`models[0].columns[1]|type|unknown column type "blob"`,
		`models[0].columns[2]|references|references unknown model "ghost"`,
		`models[0].unique_together[0]||unknown column "missing"`,
		`forms[0]|model|unknown model "nope"`,
		`forms[0].fields[0]|min_length|min_length 5 exceeds max_length 2`,
		`forms[0].fields[1]|choices|choice fields need choices`,
		`forms[0].fields[2]|type|unknown field type "date"`,
		"forms[0].fields[3]|pattern|invalid pattern: error parsing regexp: missing closing ): `(`",
		`collections[0]|min_siblings|min_siblings must not be negative`,
		`collections[0]||collection contains itself: loop -> loop`,
		`collections[1]|extends|extends unknown collection "ghost"`,
		`collections[1].holders.x||holder needs a form or a collection`,
		`collections[1]|retrieve_by|holder "x" is not a model form`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if err := result.Err(); err == nil || !strings.HasPrefix(err.Error(), "validation: ") {
		t.Fatalf("expected combined error, got %v", err)
	}
}

func TestValidateDefinition_ShadowNeedsExtends(t *testing.T) {
	def := &schema.Definition{
		Forms: []schema.FormDef{{Name: "f", Fields: []schema.FieldDef{{Name: "a"}}}},
		Collections: []schema.CollectionDef{{
			Name:    "c",
			Holders: schema.HolderList{{Name: "f", Form: "f"}, {Name: "g", Shadow: true}},
		}},
	}
	result := ValidateDefinition(def)
	want := []SchemaIssue{{Path: "collections[0].holders.g", Message: "shadow entries need extends"}}
	if diff := cmp.Diff(want, result.Issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateDefinition_InvertedBounds(t *testing.T) {
	lo, hi := 3, 2
	def := &schema.Definition{
		Forms: []schema.FormDef{{Name: "f", Fields: []schema.FieldDef{{Name: "a", Type: schema.FieldText}}}},
		Collections: []schema.CollectionDef{{
			Name:        "c",
			MinSiblings: &lo,
			MaxSiblings: &hi,
			Holders:     schema.HolderList{{Name: "f", Form: "f"}},
		}},
	}
	result := ValidateDefinition(def)
	want := []SchemaIssue{{Path: "collections[0]", Field: "max_siblings", Message: "max_siblings must not be less than min_siblings"}}
	if diff := cmp.Diff(want, result.Issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}
