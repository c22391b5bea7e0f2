package testsupport

import (
	"context"
	"os"
	"testing"

	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/record"
)

// Models of the company fixture: companies own departments, departments own
// teams. Names are unique within their parent.
var (
	Company = &record.Meta{
		Name: "company",
		Columns: []record.Column{
			{Name: "name", Type: record.ColumnString, Unique: true},
		},
	}
	Department = &record.Meta{
		Name: "department",
		Columns: []record.Column{
			{Name: "company", Type: record.ColumnReference, References: "company"},
			{Name: "name", Type: record.ColumnString},
		},
		UniqueTogether: [][]string{{"company", "name"}},
	}
	Team = &record.Meta{
		Name: "team",
		Columns: []record.Column{
			{Name: "department", Type: record.ColumnReference, References: "department"},
			{Name: "name", Type: record.ColumnString},
		},
		UniqueTogether: [][]string{{"department", "name"}},
	}
)

// Metas lists the fixture models parents first, the order Migrate needs.
func Metas() []*record.Meta {
	return []*record.Meta{Company, Department, Team}
}

func nameForm(name string, meta *record.Meta) *form.ModelForm {
	return form.NewModelForm(name, meta, form.Fields(
		form.Entry{Name: "id", Field: &form.IDField{}},
		form.Entry{Name: "name", Field: &form.CharField{Base: form.Base{Label: "Name", Required: true}, MaxLength: 50}},
	))
}

// CompanyForm edits a company.
func CompanyForm() *form.ModelForm { return nameForm("company", Company) }

// DepartmentForm edits a department.
func DepartmentForm() *form.ModelForm { return nameForm("department", Department) }

// TeamForm edits a team.
func TeamForm() *form.ModelForm { return nameForm("team", Team) }

// TeamCollection repeats teams of a department.
func TeamCollection(store record.Store) *collection.FormCollection {
	return collection.New(collection.Config{
		Name:         "teams",
		Legend:       "Teams",
		MinSiblings:  collection.Int(0),
		RelatedField: "department",
	}, []collection.Declared{
		collection.Declare("team", TeamForm()),
	}, collection.WithRetriever(collection.RetrieveByPrimaryKey(store, "team", Team, "department")))
}

// DepartmentCollection repeats departments of a company, each with its teams.
func DepartmentCollection(store record.Store) *collection.FormCollection {
	return collection.New(collection.Config{
		Name:         "departments",
		Legend:       "Departments",
		MinSiblings:  collection.Int(0),
		RelatedField: "company",
	}, []collection.Declared{
		collection.Declare("department", DepartmentForm()),
		collection.Declare("teams", TeamCollection(store)),
	}, collection.WithRetriever(collection.RetrieveByPrimaryKey(store, "department", Department, "company")))
}

// CompanyCollection edits a company with its departments and teams.
func CompanyCollection(store record.Store) *collection.FormCollection {
	return collection.New(collection.Config{Name: "company_collection"}, []collection.Declared{
		collection.Declare("company", CompanyForm()),
		collection.Declare("departments", DepartmentCollection(store)),
	})
}

// MustSave persists values as a new record of meta.
func MustSave(t *testing.T, store record.Store, meta *record.Meta, values map[string]any) *record.Record {
	t.Helper()

	rec := record.New(meta)
	for k, v := range values {
		rec.Set(k, v)
	}
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("save %s: %v", meta.Name, err)
	}
	return rec
}

// MustList returns every row of meta.
func MustList(t *testing.T, store record.Store, meta *record.Meta) []*record.Record {
	t.Helper()

	rows, err := store.List(context.Background(), meta)
	if err != nil {
		t.Fatalf("list %s: %v", meta.Name, err)
	}
	return rows
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// MustReadFile returns the contents of a fixture file.
func MustReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}
