// Package validation checks definition documents before they are built and
// reports every problem at once, each with the path of the offending entry.
package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formset/pkg/record"
	"github.com/goliatone/go-formset/pkg/schema"
)

// SchemaIssue represents a validation error with optional location metadata.
type SchemaIssue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// SchemaValidationResult collects the issues of one document.
type SchemaValidationResult struct {
	Valid  bool          `json:"valid"`
	Issues []SchemaIssue `json:"issues,omitempty"`
}

// Err returns nil for valid results, otherwise an error listing the issues.
func (r SchemaValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	parts := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		if issue.Path != "" {
			parts = append(parts, issue.Path+": "+issue.Message)
			continue
		}
		parts = append(parts, issue.Message)
	}
	return fmt.Errorf("validation: %s", strings.Join(parts, "; "))
}

// ValidateDocument parses raw and validates the resulting definition.
func ValidateDocument(ctx context.Context, src schema.Source, raw []byte) (*schema.Definition, SchemaValidationResult) {
	if src == nil {
		src = schema.SourceFromFS("definition.yaml")
	}
	if err := ctx.Err(); err != nil {
		return nil, invalid(SchemaIssue{Message: err.Error()})
	}
	doc, err := schema.NewDocument(src, raw)
	if err != nil {
		return nil, invalid(issueFromError(err))
	}
	def, err := schema.ParseDocument(doc)
	if err != nil {
		return nil, invalid(issueFromError(err))
	}
	return def, ValidateDefinition(def)
}

// ValidateDefinition checks names, references and constraints of def.
func ValidateDefinition(def *schema.Definition) SchemaValidationResult {
	if def == nil {
		return invalid(SchemaIssue{Message: "definition is nil"})
	}
	v := &validator{def: def}
	v.models()
	v.forms()
	v.collections()
	if len(v.issues) == 0 {
		return SchemaValidationResult{Valid: true}
	}
	return SchemaValidationResult{Valid: false, Issues: v.issues}
}

func invalid(issues ...SchemaIssue) SchemaValidationResult {
	return SchemaValidationResult{Valid: false, Issues: issues}
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func issueFromError(err error) SchemaIssue {
	if err == nil {
		return SchemaIssue{Message: "unknown error"}
	}
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		err = errors.New(typeErr.Errors[0])
	}
	msg := strings.TrimSpace(err.Error())
	msg = strings.TrimPrefix(msg, "schema: parse definition: ")
	msg = strings.TrimPrefix(msg, "schema: ")
	msg = strings.TrimPrefix(msg, "yaml: ")

	issue := SchemaIssue{Message: msg}
	if match := yamlLine.FindStringSubmatch(msg); match != nil {
		issue.Path = "line " + match[1]
		issue.Message = strings.TrimSpace(strings.TrimPrefix(msg, match[0]+":"))
	}
	return issue
}

type validator struct {
	def    *schema.Definition
	issues []SchemaIssue
}

func (v *validator) add(path, field, format string, args ...any) {
	v.issues = append(v.issues, SchemaIssue{Path: path, Field: field, Message: fmt.Sprintf(format, args...)})
}

func index(section string, idx int) string {
	return section + "[" + strconv.Itoa(idx) + "]"
}

func (v *validator) models() {
	seen := make(map[string]bool)
	for idx, m := range v.def.Models {
		path := index("models", idx)
		name := strings.TrimSpace(m.Name)
		if name == "" {
			v.add(path, "name", "model name is required")
			continue
		}
		if seen[name] {
			v.add(path, "name", "duplicate model %q", name)
		}
		seen[name] = true

		columns := map[string]bool{m.Meta().PK(): true}
		for cidx, col := range m.Columns {
			cpath := path + "." + index("columns", cidx)
			switch {
			case strings.TrimSpace(col.Name) == "":
				v.add(cpath, "name", "column name is required")
				continue
			case columns[col.Name]:
				v.add(cpath, "name", "duplicate column %q", col.Name)
			}
			columns[col.Name] = true
			if !knownColumnType(col.Type) {
				v.add(cpath, "type", "unknown column type %q", col.Type)
			}
			if col.Type == record.ColumnReference {
				if _, ok := v.def.Model(col.References); !ok {
					v.add(cpath, "references", "references unknown model %q", col.References)
				}
			}
		}
		for gidx, group := range m.UniqueTogether {
			gpath := path + "." + index("unique_together", gidx)
			if len(group) == 0 {
				v.add(gpath, "", "unique_together group is empty")
			}
			for _, name := range group {
				if !columns[name] {
					v.add(gpath, "", "unknown column %q", name)
				}
			}
		}
	}
}

func knownColumnType(t record.ColumnType) bool {
	switch t {
	case record.ColumnString, record.ColumnText, record.ColumnInteger,
		record.ColumnFloat, record.ColumnBoolean, record.ColumnReference:
		return true
	}
	return false
}

func (v *validator) forms() {
	seen := make(map[string]bool)
	for idx, f := range v.def.Forms {
		path := index("forms", idx)
		if strings.TrimSpace(f.Name) == "" {
			v.add(path, "name", "form name is required")
			continue
		}
		if seen[f.Name] {
			v.add(path, "name", "duplicate form %q", f.Name)
		}
		seen[f.Name] = true
		if f.Model != "" {
			if _, ok := v.def.Model(f.Model); !ok {
				v.add(path, "model", "unknown model %q", f.Model)
			}
		}
		if len(f.Fields) == 0 {
			v.add(path, "fields", "form declares no fields")
		}
		fields := make(map[string]bool)
		for fidx, field := range f.Fields {
			v.field(path+"."+index("fields", fidx), field, fields)
		}
	}
}

func (v *validator) field(path string, field schema.FieldDef, seen map[string]bool) {
	name := strings.TrimSpace(field.Name)
	if name == "" {
		v.add(path, "name", "field name is required")
		return
	}
	if seen[name] {
		v.add(path, "name", "duplicate field %q", name)
	}
	seen[name] = true

	kind := strings.ToLower(strings.TrimSpace(field.Type))
	if kind == "" {
		kind = schema.FieldText
	}
	known := false
	for _, candidate := range schema.FieldTypes() {
		if candidate == kind {
			known = true
			break
		}
	}
	if !known {
		v.add(path, "type", "unknown field type %q", field.Type)
		return
	}
	if field.MinLength < 0 || field.MaxLength < 0 {
		v.add(path, "max_length", "lengths must not be negative")
	}
	if field.MaxLength > 0 && field.MinLength > field.MaxLength {
		v.add(path, "min_length", "min_length %d exceeds max_length %d", field.MinLength, field.MaxLength)
	}
	if field.Min != nil && field.Max != nil && *field.Min > *field.Max {
		v.add(path, "min", "min %d exceeds max %d", *field.Min, *field.Max)
	}
	if field.Step < 0 {
		v.add(path, "step", "step must not be negative")
	}
	if field.Pattern != "" {
		if _, err := regexp.Compile(field.Pattern); err != nil {
			v.add(path, "pattern", "invalid pattern: %v", err)
		}
	}
	if kind == schema.FieldChoice && len(field.Choices) == 0 {
		v.add(path, "choices", "choice fields need choices")
	}
	if kind == schema.FieldRichText {
		switch strings.ToLower(field.Policy) {
		case "", "ugc", "strict":
		default:
			v.add(path, "policy", "unknown rich text policy %q", field.Policy)
		}
	}
}

func (v *validator) collections() {
	seen := make(map[string]bool)
	for idx, c := range v.def.Collections {
		path := index("collections", idx)
		if strings.TrimSpace(c.Name) == "" {
			v.add(path, "name", "collection name is required")
			continue
		}
		if seen[c.Name] {
			v.add(path, "name", "duplicate collection %q", c.Name)
		}
		seen[c.Name] = true

		if c.Extends != "" {
			if _, ok := v.def.Collection(c.Extends); !ok {
				v.add(path, "extends", "extends unknown collection %q", c.Extends)
			}
		}
		bounds := []struct {
			field string
			value *int
		}{
			{"min_siblings", c.MinSiblings},
			{"max_siblings", c.MaxSiblings},
			{"extra_siblings", c.ExtraSiblings},
		}
		for _, bound := range bounds {
			if bound.value != nil && *bound.value < 0 {
				v.add(path, bound.field, "%s must not be negative", bound.field)
			}
		}
		if c.MinSiblings != nil && c.MaxSiblings != nil && *c.MinSiblings > *c.MaxSiblings {
			v.add(path, "max_siblings", "max_siblings must not be less than min_siblings")
		}

		holders := make(map[string]bool)
		for _, h := range c.Holders {
			hpath := path + ".holders." + h.Name
			switch {
			case strings.TrimSpace(h.Name) == "":
				v.add(path+".holders", "name", "holder name is required")
				continue
			case holders[h.Name]:
				v.add(hpath, "", "duplicate holder %q", h.Name)
			}
			holders[h.Name] = true
			switch {
			case h.Shadow:
				if c.Extends == "" {
					v.add(hpath, "", "shadow entries need extends")
				}
			case h.Form != "" && h.Collection != "":
				v.add(hpath, "", "holder names both a form and a collection")
			case h.Form != "":
				if _, ok := v.def.Form(h.Form); !ok {
					v.add(hpath, "form", "unknown form %q", h.Form)
				}
			case h.Collection != "":
				if _, ok := v.def.Collection(h.Collection); !ok {
					v.add(hpath, "collection", "unknown collection %q", h.Collection)
				}
			default:
				v.add(hpath, "", "holder needs a form or a collection")
			}
		}
		if c.Extends == "" && len(c.Holders) == 0 {
			v.add(path, "holders", "collection declares no holders")
		}
		if c.RetrieveBy != "" {
			v.retrieveBy(path, c)
		}
		if cycle := v.cycle(c.Name); cycle != "" {
			v.add(path, "", "collection contains itself: %s", cycle)
		}
	}
}

// resolvedHolders folds the extends chain of c.
func (v *validator) resolvedHolders(c schema.CollectionDef, depth int) []schema.HolderDef {
	var base []schema.HolderDef
	if c.Extends != "" && depth < len(v.def.Collections) {
		if parent, ok := v.def.Collection(c.Extends); ok {
			base = v.resolvedHolders(parent, depth+1)
		}
	}
	for _, h := range c.Holders {
		pos := -1
		for i, existing := range base {
			if existing.Name == h.Name {
				pos = i
				break
			}
		}
		switch {
		case pos >= 0 && h.Shadow:
			base = append(base[:pos], base[pos+1:]...)
		case pos >= 0:
			base[pos] = h
		case !h.Shadow:
			base = append(base, h)
		}
	}
	return base
}

func (v *validator) retrieveBy(path string, c schema.CollectionDef) {
	for _, h := range v.resolvedHolders(c, 0) {
		if h.Name != c.RetrieveBy {
			continue
		}
		f, ok := v.def.Form(h.Form)
		if !ok || f.Model == "" {
			v.add(path, "retrieve_by", "holder %q is not a model form", c.RetrieveBy)
		}
		return
	}
	v.add(path, "retrieve_by", "unknown holder %q", c.RetrieveBy)
}

// cycle returns the chain leading from start back to itself through holders
// or extends, or "" when there is none.
func (v *validator) cycle(start string) string {
	visited := make(map[string]bool)
	var walk func(name string, chain []string) string
	walk = func(name string, chain []string) string {
		for _, child := range v.children(name) {
			if child == start {
				return strings.Join(append(chain, child), " -> ")
			}
			if visited[child] {
				continue
			}
			visited[child] = true
			if found := walk(child, append(chain, child)); found != "" {
				return found
			}
		}
		return ""
	}
	return walk(start, []string{start})
}

func (v *validator) children(name string) []string {
	c, ok := v.def.Collection(name)
	if !ok {
		return nil
	}
	var out []string
	if c.Extends != "" {
		out = append(out, c.Extends)
	}
	for _, h := range c.Holders {
		if h.Collection != "" {
			out = append(out, h.Collection)
		}
	}
	return out
}
