package schema

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formset/pkg/form"
)

// Extensions read from component schemas and their properties.
const (
	ExtensionModel  = "x-formset-model"
	ExtensionWidget = "x-formset-widget"
	ExtensionOrder  = "x-formset-order"
)

// FormsFromOpenAPI converts the object schemas under components.schemas into
// form definitions, one per schema. names restricts the conversion; missing
// names are an error. Properties the form layer cannot express (nested
// objects, arrays of non-enum items, read-only values other than the primary
// key) are left out.
func FormsFromOpenAPI(ctx context.Context, raw []byte, names ...string) ([]FormDef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("schema: openapi document is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: load openapi document: %w", err)
	}
	if spec.Components == nil || len(spec.Components.Schemas) == 0 {
		return nil, errors.New("schema: openapi document has no component schemas")
	}

	selected := names
	if len(selected) == 0 {
		for name := range spec.Components.Schemas {
			selected = append(selected, name)
		}
		sort.Strings(selected)
	}

	forms := make([]FormDef, 0, len(selected))
	for _, name := range selected {
		ref, ok := spec.Components.Schemas[name]
		if !ok || ref == nil || ref.Value == nil {
			if len(names) > 0 {
				return nil, fmt.Errorf("schema: openapi component %q not found", name)
			}
			continue
		}
		src := ref.Value
		if !isObject(src) {
			if len(names) > 0 {
				return nil, fmt.Errorf("schema: openapi component %q is not an object", name)
			}
			continue
		}
		forms = append(forms, formFromSchema(name, src))
	}
	return forms, nil
}

func formFromSchema(name string, src *openapi3.Schema) FormDef {
	def := FormDef{
		Name:  name,
		Label: strings.TrimSpace(src.Title),
		Model: stringExtension(src.Extensions, ExtensionModel),
	}
	required := make(map[string]bool, len(src.Required))
	for _, field := range src.Required {
		required[field] = true
	}
	for _, prop := range orderedProperties(src.Properties) {
		if field, ok := fieldFromSchema(prop.name, prop.schema, required[prop.name]); ok {
			def.Fields = append(def.Fields, field)
		}
	}
	return def
}

type property struct {
	name   string
	schema *openapi3.Schema
	order  float64
}

// orderedProperties sorts by x-formset-order, then puts "id" first, then by
// name.
func orderedProperties(props openapi3.Schemas) []property {
	out := make([]property, 0, len(props))
	for name, ref := range props {
		if ref == nil || ref.Value == nil {
			continue
		}
		order := math.Inf(1)
		if value, ok := ref.Value.Extensions[ExtensionOrder].(float64); ok {
			order = value
		}
		out = append(out, property{name: name, schema: ref.Value, order: order})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].order != out[j].order {
			return out[i].order < out[j].order
		}
		if (out[i].name == "id") != (out[j].name == "id") {
			return out[i].name == "id"
		}
		return out[i].name < out[j].name
	})
	return out
}

func fieldFromSchema(name string, src *openapi3.Schema, required bool) (FieldDef, bool) {
	field := FieldDef{
		Name:     name,
		Label:    strings.TrimSpace(src.Title),
		Help:     strings.TrimSpace(src.Description),
		Required: required,
		Initial:  src.Default,
		Widget:   stringExtension(src.Extensions, ExtensionWidget),
	}
	kind := firstType(src.Type)

	if name == "id" && (kind == openapi3.TypeInteger || kind == openapi3.TypeNumber) {
		field.Type = FieldID
		field.Required = false
		return field, true
	}
	if src.ReadOnly {
		return FieldDef{}, false
	}

	switch kind {
	case openapi3.TypeString:
		if len(src.Enum) > 0 {
			field.Type = FieldChoice
			field.Choices = choicesFromEnum(src.Enum)
			return field, true
		}
		switch strings.ToLower(src.Format) {
		case "email":
			field.Type = FieldEmail
		case "html", FieldRichText:
			field.Type = FieldRichText
		case FieldTextarea:
			field.Type = FieldTextarea
		default:
			field.Type = FieldText
		}
		applyLengths(&field, src)
		if field.Type == FieldText || field.Type == FieldTextarea {
			field.Pattern = src.Pattern
		}
		return field, true
	case openapi3.TypeInteger:
		field.Type = FieldInteger
		applyBounds(&field, src)
		return field, true
	case openapi3.TypeBoolean:
		field.Type = FieldBoolean
		field.Required = false
		return field, true
	case openapi3.TypeArray:
		if src.Items == nil || src.Items.Value == nil || len(src.Items.Value.Enum) == 0 {
			return FieldDef{}, false
		}
		field.Type = FieldChoice
		field.Multiple = true
		field.Choices = choicesFromEnum(src.Items.Value.Enum)
		return field, true
	default:
		return FieldDef{}, false
	}
}

func applyLengths(field *FieldDef, src *openapi3.Schema) {
	if src.MinLength > 0 {
		field.MinLength = int(src.MinLength)
	}
	if src.MaxLength != nil {
		field.MaxLength = int(*src.MaxLength)
	}
}

// applyBounds converts numeric bounds to inclusive integer limits.
func applyBounds(field *FieldDef, src *openapi3.Schema) {
	if src.Min != nil {
		limit := int64(math.Ceil(*src.Min))
		if src.ExclusiveMin && float64(limit) == *src.Min {
			limit++
		}
		field.Min = &limit
	}
	if src.Max != nil {
		limit := int64(math.Floor(*src.Max))
		if src.ExclusiveMax && float64(limit) == *src.Max {
			limit--
		}
		field.Max = &limit
	}
	if src.MultipleOf != nil && *src.MultipleOf >= 1 && *src.MultipleOf == math.Trunc(*src.MultipleOf) {
		field.Step = int64(*src.MultipleOf)
	}
}

func choicesFromEnum(values []any) []form.Choice {
	out := make([]form.Choice, 0, len(values))
	for _, value := range values {
		text := fmt.Sprint(value)
		out = append(out, form.Choice{Value: text, Label: DefaultLabeler(text)})
	}
	return out
}

func isObject(src *openapi3.Schema) bool {
	return firstType(src.Type) == openapi3.TypeObject || len(src.Properties) > 0
}

func firstType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	for _, value := range types.Slice() {
		if value != "null" {
			return value
		}
	}
	return ""
}

func stringExtension(extensions map[string]any, key string) string {
	value, _ := extensions[key].(string)
	return strings.TrimSpace(value)
}
