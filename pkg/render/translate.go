package render

import (
	"github.com/goliatone/go-formset/pkg/form"
)

// ErrorKind is the client-side name of a validation failure, matching the
// browser's ValidityState flags.
type ErrorKind string

const (
	ValueMissing    ErrorKind = "valueMissing"
	TypeMismatch    ErrorKind = "typeMismatch"
	RangeUnderflow  ErrorKind = "rangeUnderflow"
	RangeOverflow   ErrorKind = "rangeOverflow"
	TooShort        ErrorKind = "tooShort"
	TooLong         ErrorKind = "tooLong"
	PatternMismatch ErrorKind = "patternMismatch"
	StepMismatch    ErrorKind = "stepMismatch"
	CustomError     ErrorKind = "customError"
)

// KindForCode maps a validation code to its client kind.
func KindForCode(code string) ErrorKind {
	switch code {
	case form.CodeRequired:
		return ValueMissing
	case form.CodeInvalid, form.CodeInvalidChoice:
		return TypeMismatch
	case form.CodeMinValue:
		return RangeUnderflow
	case form.CodeMaxValue:
		return RangeOverflow
	case form.CodeMinLength:
		return TooShort
	case form.CodeMaxLength:
		return TooLong
	case form.CodeInvalidPattern:
		return PatternMismatch
	case form.CodeStepSize:
		return StepMismatch
	default:
		return CustomError
	}
}

// TranslateErrors groups the messages of one field by client kind.
func TranslateErrors(list form.ErrorList) map[ErrorKind][]string {
	if len(list) == 0 {
		return nil
	}
	out := make(map[ErrorKind][]string)
	for _, err := range list {
		if err == nil {
			continue
		}
		kind := KindForCode(err.Code)
		out[kind] = append(out[kind], err.Message)
	}
	return out
}

// ClientMessages returns the message the client shows for each kind field
// can fail with, so browsers can validate before submitting.
func ClientMessages(field form.Field) map[ErrorKind]string {
	if field == nil {
		return nil
	}
	base := field.Options()
	c := field.Constraints()
	out := make(map[ErrorKind]string)
	if base.Required {
		out[ValueMissing] = base.Message(form.CodeRequired, nil)
	}
	switch field.Kind() {
	case form.KindEmail, form.KindNumber:
		out[TypeMismatch] = form.InvalidMessage(field)
	case form.KindSelect:
		out[TypeMismatch] = base.Message(form.CodeInvalidChoice, map[string]any{"value": "%s"})
	}
	if c.MinLength != nil {
		out[TooShort] = base.Message(form.CodeMinLength, map[string]any{"limit": *c.MinLength})
	}
	if c.MaxLength != nil {
		out[TooLong] = base.Message(form.CodeMaxLength, map[string]any{"limit": *c.MaxLength})
	}
	if c.Min != nil {
		out[RangeUnderflow] = base.Message(form.CodeMinValue, map[string]any{"limit": *c.Min})
	}
	if c.Max != nil {
		out[RangeOverflow] = base.Message(form.CodeMaxValue, map[string]any{"limit": *c.Max})
	}
	if c.Step != nil {
		out[StepMismatch] = base.Message(form.CodeStepSize, map[string]any{"limit": *c.Step})
	}
	if c.Pattern != "" {
		out[PatternMismatch] = base.Message(form.CodeInvalidPattern, nil)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
