package form

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Kind names the input a field is rendered as.
type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindRichText Kind = "richtext"
	KindEmail    Kind = "email"
	KindNumber   Kind = "number"
	KindCheckbox Kind = "checkbox"
	KindSelect   Kind = "select"
	KindHidden   Kind = "hidden"
)

// Field cleans one submitted value.
type Field interface {
	Kind() Kind
	Options() *Base
	Constraints() Constraints
	// Clean converts raw into its typed value or returns a *ValidationError.
	Clean(raw any) (any, error)
}

// Base carries the options every field shares.
type Base struct {
	Label    string
	Required bool
	Help     string
	Hidden   bool
	Initial  any
	// Widget overrides the base widget chosen from the field kind.
	Widget string
	// Messages overrides default messages by code. Templates may use {limit}
	// and {value}.
	Messages map[string]string
}

// Options returns b; embedding Base satisfies part of Field.
func (b *Base) Options() *Base { return b }

// Message renders the message for code with params substituted.
func (b *Base) Message(code string, params map[string]any) string {
	tmpl := ""
	if b != nil && b.Messages != nil {
		tmpl = b.Messages[code]
	}
	if tmpl == "" {
		tmpl = defaultMessages[code]
	}
	if tmpl == "" {
		tmpl = defaultMessages[CodeInvalid]
	}
	if len(params) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(params)*2)
	for key, value := range params {
		pairs = append(pairs, "{"+key+"}", fmt.Sprint(value))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func (b *Base) fail(code string, params map[string]any) *ValidationError {
	return NewError(code, b.Message(code, params))
}

var defaultMessages = map[string]string{
	CodeRequired:       "This field is required.",
	CodeInvalid:        "Enter a valid value.",
	CodeInvalidChoice:  "Select a valid choice. {value} is not one of the available choices.",
	CodeInvalidPattern: "Enter a valid value.",
	CodeMinLength:      "Ensure this value has at least {limit} characters.",
	CodeMaxLength:      "Ensure this value has at most {limit} characters.",
	CodeMinValue:       "Ensure this value is greater than or equal to {limit}.",
	CodeMaxValue:       "Ensure this value is less than or equal to {limit}.",
	CodeStepSize:       "Ensure this value is a multiple of step size {limit}.",
}

// Constraints describes the checks a field applies, for client descriptors.
type Constraints struct {
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Step      *float64 `json:"step,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Choices   []Choice `json:"choices,omitempty"`
	Multiple  bool     `json:"multiple,omitempty"`
}

// Choice is one option of a ChoiceField.
type Choice struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// CharField accepts text.
type CharField struct {
	Base
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	// KeepWhitespace disables trimming.
	KeepWhitespace bool
	Textarea       bool
}

func (f *CharField) Kind() Kind {
	if f.Hidden {
		return KindHidden
	}
	if f.Textarea {
		return KindTextarea
	}
	return KindText
}

func (f *CharField) Constraints() Constraints {
	return textConstraints(f.MinLength, f.MaxLength, f.Pattern)
}

func (f *CharField) Clean(raw any) (any, error) {
	value := toText(raw)
	if !f.KeepWhitespace {
		value = strings.TrimSpace(value)
	}
	if value == "" {
		if f.Required {
			return nil, f.fail(CodeRequired, nil)
		}
		return "", nil
	}
	if err := checkText(&f.Base, value, f.MinLength, f.MaxLength, f.Pattern); err != nil {
		return nil, err
	}
	return value, nil
}

// EmailField accepts a single address.
type EmailField struct {
	Base
	MaxLength int
}

func (f *EmailField) Kind() Kind { return KindEmail }

func (f *EmailField) Constraints() Constraints {
	return textConstraints(0, f.MaxLength, nil)
}

func (f *EmailField) Clean(raw any) (any, error) {
	value := strings.TrimSpace(toText(raw))
	if value == "" {
		if f.Required {
			return nil, f.fail(CodeRequired, nil)
		}
		return "", nil
	}
	if err := checkText(&f.Base, value, 0, f.MaxLength, nil); err != nil {
		return nil, err
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@"):], ".") {
		return nil, NewError(CodeInvalid, InvalidMessage(f))
	}
	return value, nil
}

func (b *Base) messageOr(code, fallback string) string {
	if b.Messages != nil && b.Messages[code] != "" {
		return b.Messages[code]
	}
	return fallback
}

// InvalidMessage returns the message field reports for unparsable input.
func InvalidMessage(field Field) string {
	base := field.Options()
	switch field.(type) {
	case *EmailField:
		return base.messageOr(CodeInvalid, "Enter a valid email address.")
	case *IntegerField, *IDField:
		return base.messageOr(CodeInvalid, "Enter a whole number.")
	}
	return base.Message(CodeInvalid, nil)
}

// RichTextField accepts HTML and sanitises it. Policy defaults to the
// bluemonday UGC policy.
type RichTextField struct {
	Base
	MaxLength int
	Policy    *bluemonday.Policy
}

func (f *RichTextField) Kind() Kind { return KindRichText }

func (f *RichTextField) Constraints() Constraints {
	return textConstraints(0, f.MaxLength, nil)
}

func (f *RichTextField) Clean(raw any) (any, error) {
	policy := f.Policy
	if policy == nil {
		policy = ugcPolicy
	}
	value := strings.TrimSpace(policy.Sanitize(toText(raw)))
	if value == "" || strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(value)) == "" {
		if f.Required {
			return nil, f.fail(CodeRequired, nil)
		}
		return "", nil
	}
	if err := checkText(&f.Base, value, 0, f.MaxLength, nil); err != nil {
		return nil, err
	}
	return value, nil
}

var ugcPolicy = bluemonday.UGCPolicy()

// IntegerField accepts whole numbers.
type IntegerField struct {
	Base
	Min  *int64
	Max  *int64
	Step int64
}

func (f *IntegerField) Kind() Kind {
	if f.Hidden {
		return KindHidden
	}
	return KindNumber
}

func (f *IntegerField) Constraints() Constraints {
	var c Constraints
	if f.Min != nil {
		v := float64(*f.Min)
		c.Min = &v
	}
	if f.Max != nil {
		v := float64(*f.Max)
		c.Max = &v
	}
	if f.Step > 0 {
		v := float64(f.Step)
		c.Step = &v
	}
	return c
}

func (f *IntegerField) Clean(raw any) (any, error) {
	if isBlank(raw) {
		if f.Required {
			return nil, f.fail(CodeRequired, nil)
		}
		return nil, nil
	}
	value, ok := toInt(raw)
	if !ok {
		return nil, NewError(CodeInvalid, InvalidMessage(f))
	}
	if f.Min != nil && value < *f.Min {
		return nil, f.fail(CodeMinValue, map[string]any{"limit": *f.Min})
	}
	if f.Max != nil && value > *f.Max {
		return nil, f.fail(CodeMaxValue, map[string]any{"limit": *f.Max})
	}
	if f.Step > 0 {
		base := int64(0)
		if f.Min != nil {
			base = *f.Min
		}
		if (value-base)%f.Step != 0 {
			return nil, f.fail(CodeStepSize, map[string]any{"limit": f.Step})
		}
	}
	return value, nil
}

// IDField carries a record primary key through a hidden input. Empty values
// clean to nil; it is never required.
type IDField struct {
	Base
}

func (f *IDField) Kind() Kind               { return KindHidden }
func (f *IDField) Constraints() Constraints { return Constraints{} }

func (f *IDField) Clean(raw any) (any, error) {
	if isBlank(raw) {
		return nil, nil
	}
	value, ok := toInt(raw)
	if !ok {
		return nil, NewError(CodeInvalid, InvalidMessage(f))
	}
	return value, nil
}

// BooleanField accepts a checkbox. Required means it must be checked.
type BooleanField struct {
	Base
}

func (f *BooleanField) Kind() Kind               { return KindCheckbox }
func (f *BooleanField) Constraints() Constraints { return Constraints{} }

func (f *BooleanField) Clean(raw any) (any, error) {
	value := toBool(raw)
	if !value && f.Required {
		return nil, f.fail(CodeRequired, nil)
	}
	return value, nil
}

// ChoiceField accepts one of Choices, or a list of them when Multiple is set.
// Multiple selections clean to []string.
type ChoiceField struct {
	Base
	Choices  []Choice
	Multiple bool
}

func (f *ChoiceField) Kind() Kind {
	if f.Hidden {
		return KindHidden
	}
	return KindSelect
}

func (f *ChoiceField) Constraints() Constraints {
	return Constraints{Choices: append([]Choice(nil), f.Choices...), Multiple: f.Multiple}
}

func (f *ChoiceField) Clean(raw any) (any, error) {
	if f.Multiple {
		return f.cleanMany(raw)
	}
	value := strings.TrimSpace(toText(raw))
	if value == "" {
		if f.Required {
			return nil, f.fail(CodeRequired, nil)
		}
		return "", nil
	}
	if !f.valid(value) {
		return nil, f.fail(CodeInvalidChoice, map[string]any{"value": value})
	}
	return value, nil
}

func (f *ChoiceField) cleanMany(raw any) (any, error) {
	var values []string
	switch typed := raw.(type) {
	case nil:
	case []string:
		values = append(values, typed...)
	case []any:
		for _, item := range typed {
			if item != nil {
				values = append(values, toText(item))
			}
		}
	default:
		values = []string{toText(typed)}
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if !f.valid(value) {
			return nil, f.fail(CodeInvalidChoice, map[string]any{"value": value})
		}
		out = append(out, value)
	}
	if len(out) == 0 && f.Required {
		return nil, f.fail(CodeRequired, nil)
	}
	return out, nil
}

func (f *ChoiceField) valid(value string) bool {
	for _, choice := range f.Choices {
		if choice.Value == value {
			return true
		}
	}
	return false
}

var (
	_ Field = (*CharField)(nil)
	_ Field = (*EmailField)(nil)
	_ Field = (*RichTextField)(nil)
	_ Field = (*IntegerField)(nil)
	_ Field = (*IDField)(nil)
	_ Field = (*BooleanField)(nil)
	_ Field = (*ChoiceField)(nil)
)

func textConstraints(minLen, maxLen int, pattern *regexp.Regexp) Constraints {
	var c Constraints
	if minLen > 0 {
		c.MinLength = &minLen
	}
	if maxLen > 0 {
		c.MaxLength = &maxLen
	}
	if pattern != nil {
		c.Pattern = pattern.String()
	}
	return c
}

func checkText(b *Base, value string, minLen, maxLen int, pattern *regexp.Regexp) *ValidationError {
	length := utf8.RuneCountInString(value)
	if minLen > 0 && length < minLen {
		return b.fail(CodeMinLength, map[string]any{"limit": minLen})
	}
	if maxLen > 0 && length > maxLen {
		return b.fail(CodeMaxLength, map[string]any{"limit": maxLen})
	}
	if pattern != nil && !pattern.MatchString(value) {
		return b.fail(CodeInvalidPattern, nil)
	}
	return nil
}

func isBlank(raw any) bool {
	switch typed := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	}
	return false
}

// toText reduces a submitted value to a string; lists keep their last item,
// matching how a multi-valued form post is read for scalar fields.
func toText(raw any) string {
	switch typed := raw.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []string:
		if len(typed) == 0 {
			return ""
		}
		return typed[len(typed)-1]
	case []any:
		if len(typed) == 0 {
			return ""
		}
		return toText(typed[len(typed)-1])
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func toInt(raw any) (int64, bool) {
	switch typed := raw.(type) {
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case int32:
		return int64(typed), true
	case float64:
		if typed != math.Trunc(typed) || math.IsInf(typed, 0) {
			return 0, false
		}
		return int64(typed), true
	case json.Number:
		v, err := typed.Int64()
		return v, err == nil
	default:
		text := strings.TrimSpace(toText(typed))
		v, err := strconv.ParseInt(text, 10, 64)
		return v, err == nil
	}
}

func toBool(raw any) bool {
	switch typed := raw.(type) {
	case bool:
		return typed
	case nil:
		return false
	default:
		switch strings.ToLower(strings.TrimSpace(toText(typed))) {
		case "", "0", "false", "off", "no":
			return false
		}
		return true
	}
}
