package form

import (
	"encoding/json"
	"strings"
)

// NonFieldErrors is the ErrorDict key for errors not tied to a single field.
const NonFieldErrors = "__all__"

// Validation error codes. Clients translate these into their own error kinds.
const (
	CodeRequired       = "required"
	CodeInvalid        = "invalid"
	CodeInvalidChoice  = "invalid_choice"
	CodeInvalidPattern = "invalid_pattern"
	CodeMinLength      = "min_length"
	CodeMaxLength      = "max_length"
	CodeMinValue       = "min_value"
	CodeMaxValue       = "max_value"
	CodeStepSize       = "step_size"
	CodeUnique         = "unique"
	CodeUniqueTogether = "unique_together"
	CodeMissing        = "missing"
	CodePersistence    = "persistence"
)

// ValidationError is a single validation failure.
type ValidationError struct {
	Code    string
	Message string
}

// NewError builds a ValidationError.
func NewError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// MarshalJSON emits only the message, the shape clients display.
func (e *ValidationError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Message)
}

// FieldError attaches a ValidationError to a field from form-level cleaners.
// An empty Field targets NonFieldErrors.
type FieldError struct {
	Field string
	Err   *ValidationError
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Err.Message
	}
	return e.Field + ": " + e.Err.Message
}

func (e *FieldError) Unwrap() error { return e.Err }

// ErrorList is the list of failures of one field.
type ErrorList []*ValidationError

// HasErrors implements holder.ErrorTree.
func (l ErrorList) HasErrors() bool { return len(l) > 0 }

// Messages returns the messages in order.
func (l ErrorList) Messages() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = e.Message
	}
	return out
}

// Codes returns the error codes in order.
func (l ErrorList) Codes() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = e.Code
	}
	return out
}

func (l ErrorList) String() string {
	return strings.Join(l.Messages(), "; ")
}

// ErrorDict maps field names (or NonFieldErrors) to their failures.
type ErrorDict map[string]ErrorList

// HasErrors implements holder.ErrorTree.
func (d ErrorDict) HasErrors() bool {
	for _, list := range d {
		if list.HasErrors() {
			return true
		}
	}
	return false
}

// Add appends err under field.
func (d ErrorDict) Add(field string, err *ValidationError) {
	if field == "" {
		field = NonFieldErrors
	}
	d[field] = append(d[field], err)
}

// NonField returns the errors not tied to a field.
func (d ErrorDict) NonField() ErrorList {
	return d[NonFieldErrors]
}

// MissingDataError is recorded for a declared holder absent from a payload.
func MissingDataError() ErrorDict {
	return ErrorDict{NonFieldErrors: ErrorList{NewError(CodeMissing, "Form data is missing.")}}
}
