package schema_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/schema"
)

func int64p(v int64) *int64 { return &v }

func TestFormsFromOpenAPI(t *testing.T) {
	raw, err := os.ReadFile("testdata/openapi.yaml")
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	forms, err := schema.FormsFromOpenAPI(context.Background(), raw)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	want := []schema.FormDef{{
		Name:  "Department",
		Label: "Department",
		Model: "department",
		Fields: []schema.FieldDef{
			{Name: "name", Type: schema.FieldText, Required: true, MaxLength: 50},
			{Name: "id", Type: schema.FieldID},
			{Name: "active", Type: schema.FieldBoolean},
			{Name: "contact", Type: schema.FieldEmail},
			{Name: "headcount", Type: schema.FieldInteger, Min: int64p(1), Max: int64p(500), Step: 5},
			{Name: "kind", Type: schema.FieldChoice, Choices: []form.Choice{{Value: "sales", Label: "Sales"}, {Value: "support", Label: "Support"}}},
			{Name: "tags", Type: schema.FieldChoice, Multiple: true, Choices: []form.Choice{{Value: "remote", Label: "Remote"}, {Value: "onsite", Label: "Onsite"}}},
		},
	}}
	if diff := cmp.Diff(want, forms); diff != "" {
		t.Fatalf("forms mismatch (-want +got):\n%s", diff)
	}
}

func TestFormsFromOpenAPI_BuildsIntoDefinition(t *testing.T) {
	raw, err := os.ReadFile("testdata/openapi.yaml")
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	forms, err := schema.FormsFromOpenAPI(context.Background(), raw, "Department")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	def := loadCompany(t)
	if skipped := def.AddForms(forms...); len(skipped) != 0 {
		t.Fatalf("unexpected skipped forms %v", skipped)
	}
	reg, err := schema.Build(def)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proto, ok := reg.Form("Department")
	if !ok {
		t.Fatalf("imported form not built")
	}
	if _, ok := proto.(*form.ModelForm); !ok {
		t.Fatalf("expected model form, got %T", proto)
	}
}

func TestFormsFromOpenAPI_Errors(t *testing.T) {
	raw, err := os.ReadFile("testdata/openapi.yaml")
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if _, err := schema.FormsFromOpenAPI(context.Background(), raw, "Missing"); err == nil {
		t.Fatalf("expected error for unknown component")
	}
	if _, err := schema.FormsFromOpenAPI(context.Background(), raw, "Status"); err == nil {
		t.Fatalf("expected error for non-object component")
	}
	if _, err := schema.FormsFromOpenAPI(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestLintOpenAPI(t *testing.T) {
	raw := []byte(`openapi: 3.0.3
info: {title: Lint, version: 1.0.0}
paths: {}
components:
  schemas:
    Team:
      type: object
      x-formset-model: team
      x-formset-label: Team
      properties:
        name:
          type: string
          x-formset-widget: ""
          x-formset-order: first
        size:
          type: integer
          x-formset-model: team
`)
	issues, err := schema.LintOpenAPI(context.Background(), raw)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	want := []schema.LintIssue{
		{Location: "components.schemas.Team", Message: "unsupported extension x-formset-label"},
		{Location: "components.schemas.Team.properties.name", Message: "x-formset-order must be a number, found string"},
		{Location: "components.schemas.Team.properties.name", Message: "x-formset-widget is empty"},
		{Location: "components.schemas.Team.properties.size", Message: "unsupported extension x-formset-model"},
	}
	if diff := cmp.Diff(want, issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestLintOpenAPI_CleanDocument(t *testing.T) {
	raw, err := os.ReadFile("testdata/openapi.yaml")
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	issues, err := schema.LintOpenAPI(context.Background(), raw)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}
