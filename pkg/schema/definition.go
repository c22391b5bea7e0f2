// Package schema declares models, forms and form collections in YAML (or
// JSON) documents and builds them into the prototypes the collection engine
// validates. Collections may extend each other; a holder mapped to null
// shadows the inherited declaration of the same name.
//
//	collections:
//	  - name: company_collection
//	    holders:
//	      company: {form: company}
//	      departments: {collection: departments}
//	  - name: company_only
//	    extends: company_collection
//	    holders:
//	      departments: ~
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/record"
)

// Field types understood by the builder.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldRichText = "richtext"
	FieldEmail    = "email"
	FieldInteger  = "integer"
	FieldBoolean  = "boolean"
	FieldChoice   = "choice"
	FieldID       = "id"
)

// FieldTypes lists the supported field types.
func FieldTypes() []string {
	return []string{FieldText, FieldTextarea, FieldRichText, FieldEmail, FieldInteger, FieldBoolean, FieldChoice, FieldID}
}

// Definition is the root of a definition document.
type Definition struct {
	Version     int             `yaml:"version,omitempty" json:"version,omitempty"`
	Models      []ModelDef      `yaml:"models,omitempty" json:"models,omitempty"`
	Forms       []FormDef       `yaml:"forms,omitempty" json:"forms,omitempty"`
	Collections []CollectionDef `yaml:"collections,omitempty" json:"collections,omitempty"`
}

// ModelDef declares a record.Meta.
type ModelDef struct {
	Name           string          `yaml:"name" json:"name"`
	Table          string          `yaml:"table,omitempty" json:"table,omitempty"`
	PrimaryKey     string          `yaml:"primary_key,omitempty" json:"primaryKey,omitempty"`
	Columns        []record.Column `yaml:"columns" json:"columns"`
	UniqueTogether [][]string      `yaml:"unique_together,omitempty" json:"uniqueTogether,omitempty"`
}

// Meta converts the definition.
func (m ModelDef) Meta() *record.Meta {
	columns := append([]record.Column(nil), m.Columns...)
	together := make([][]string, 0, len(m.UniqueTogether))
	for _, group := range m.UniqueTogether {
		together = append(together, append([]string(nil), group...))
	}
	return &record.Meta{
		Name:           strings.TrimSpace(m.Name),
		Table:          strings.TrimSpace(m.Table),
		PrimaryKey:     strings.TrimSpace(m.PrimaryKey),
		Columns:        columns,
		UniqueTogether: together,
	}
}

// FormDef declares a form. Forms naming a model are model forms.
type FormDef struct {
	Name                   string     `yaml:"name" json:"name"`
	Label                  string     `yaml:"label,omitempty" json:"label,omitempty"`
	Model                  string     `yaml:"model,omitempty" json:"model,omitempty"`
	IgnoreMarkedForRemoval bool       `yaml:"ignore_marked_for_removal,omitempty" json:"ignoreMarkedForRemoval,omitempty"`
	Fields                 []FieldDef `yaml:"fields" json:"fields"`
}

// FieldDef declares one field of a form.
type FieldDef struct {
	Name     string            `yaml:"name" json:"name"`
	Type     string            `yaml:"type" json:"type"`
	Label    string            `yaml:"label,omitempty" json:"label,omitempty"`
	Help     string            `yaml:"help,omitempty" json:"help,omitempty"`
	Required bool              `yaml:"required,omitempty" json:"required,omitempty"`
	Hidden   bool              `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Initial  any               `yaml:"initial,omitempty" json:"initial,omitempty"`
	Widget   string            `yaml:"widget,omitempty" json:"widget,omitempty"`
	Messages map[string]string `yaml:"messages,omitempty" json:"messages,omitempty"`

	MinLength      int    `yaml:"min_length,omitempty" json:"minLength,omitempty"`
	MaxLength      int    `yaml:"max_length,omitempty" json:"maxLength,omitempty"`
	Pattern        string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	KeepWhitespace bool   `yaml:"keep_whitespace,omitempty" json:"keepWhitespace,omitempty"`
	// Policy selects the rich text sanitiser: "ugc" (default) or "strict".
	Policy string `yaml:"policy,omitempty" json:"policy,omitempty"`

	Min  *int64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max  *int64 `yaml:"max,omitempty" json:"max,omitempty"`
	Step int64  `yaml:"step,omitempty" json:"step,omitempty"`

	Choices  []form.Choice `yaml:"choices,omitempty" json:"choices,omitempty"`
	Multiple bool          `yaml:"multiple,omitempty" json:"multiple,omitempty"`
}

// CollectionDef declares a form collection. Unset settings are inherited
// from the extended collection.
type CollectionDef struct {
	Name                   string `yaml:"name" json:"name"`
	Extends                string `yaml:"extends,omitempty" json:"extends,omitempty"`
	Legend                 string `yaml:"legend,omitempty" json:"legend,omitempty"`
	MinSiblings            *int   `yaml:"min_siblings,omitempty" json:"minSiblings,omitempty"`
	MaxSiblings            *int   `yaml:"max_siblings,omitempty" json:"maxSiblings,omitempty"`
	ExtraSiblings          *int   `yaml:"extra_siblings,omitempty" json:"extraSiblings,omitempty"`
	IsSortable             *bool  `yaml:"is_sortable,omitempty" json:"isSortable,omitempty"`
	RelatedField           string `yaml:"related_field,omitempty" json:"relatedField,omitempty"`
	IgnoreMarkedForRemoval *bool  `yaml:"ignore_marked_for_removal,omitempty" json:"ignoreMarkedForRemoval,omitempty"`
	AddLabel               string `yaml:"add_label,omitempty" json:"addLabel,omitempty"`
	// RetrieveBy names the model form holder whose submitted primary key
	// selects the record each sibling edits.
	RetrieveBy string     `yaml:"retrieve_by,omitempty" json:"retrieveBy,omitempty"`
	Holders    HolderList `yaml:"holders" json:"holders"`
}

// HolderDef declares one holder of a collection: a form, a collection, or a
// shadow removing an inherited holder.
type HolderDef struct {
	Name       string `yaml:"name" json:"name"`
	Form       string `yaml:"form,omitempty" json:"form,omitempty"`
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`
	Shadow     bool   `yaml:"shadow,omitempty" json:"shadow,omitempty"`
}

// HolderList keeps holders in declaration order. It decodes from a sequence
// of HolderDef or from a mapping of name to {form|collection}, where a null
// value shadows.
type HolderList []HolderDef

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *HolderList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []HolderDef
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	case yaml.MappingNode:
		out := make(HolderList, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			def := HolderDef{Name: key.Value}
			if value.Tag == "!!null" {
				def.Shadow = true
				out = append(out, def)
				continue
			}
			var body struct {
				Form       string `yaml:"form"`
				Collection string `yaml:"collection"`
			}
			if err := value.Decode(&body); err != nil {
				return fmt.Errorf("holder %q: %w", key.Value, err)
			}
			def.Form, def.Collection = body.Form, body.Collection
			out = append(out, def)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: holders must be a sequence or a mapping", node.Line)
	}
}

// Parse decodes a YAML or JSON definition. Unknown keys are rejected.
func Parse(raw []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schema: definition is empty")
		}
		return nil, fmt.Errorf("schema: parse definition: %w", err)
	}
	return &def, nil
}

// ParseDocument parses the payload of doc.
func ParseDocument(doc Document) (*Definition, error) {
	def, err := Parse(doc.Raw())
	if err != nil && doc.Location() != "" {
		return nil, fmt.Errorf("%w (%s)", err, doc.Location())
	}
	return def, err
}

// Model looks up a model definition.
func (d *Definition) Model(name string) (ModelDef, bool) {
	if d == nil {
		return ModelDef{}, false
	}
	for _, m := range d.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelDef{}, false
}

// Form looks up a form definition.
func (d *Definition) Form(name string) (FormDef, bool) {
	if d == nil {
		return FormDef{}, false
	}
	for _, f := range d.Forms {
		if f.Name == name {
			return f, true
		}
	}
	return FormDef{}, false
}

// Collection looks up a collection definition.
func (d *Definition) Collection(name string) (CollectionDef, bool) {
	if d == nil {
		return CollectionDef{}, false
	}
	for _, c := range d.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return CollectionDef{}, false
}

// AddForms appends forms whose names are not declared yet and returns the
// names that were skipped.
func (d *Definition) AddForms(forms ...FormDef) []string {
	var skipped []string
	for _, f := range forms {
		if _, exists := d.Form(f.Name); exists {
			skipped = append(skipped, f.Name)
			continue
		}
		d.Forms = append(d.Forms, f)
	}
	return skipped
}
