package render

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
)

// ErrorMapping splits an error tree into field-level messages keyed by the
// dotted paths the client submits, and form-level messages of the root.
// Holder-level messages (missing data, duplicates, sibling counts) are keyed
// by the path of the holder itself.
type ErrorMapping struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
}

// Paths returns the field paths in sorted order.
func (m ErrorMapping) Paths() []string {
	paths := make([]string, 0, len(m.Fields))
	for path := range m.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// MergeFormErrors concatenates and normalises multiple form-level error
// slices, trimming whitespace and removing duplicates while preserving order.
func MergeFormErrors(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

// FlattenErrors maps tree onto dotted paths below prefix. Sequence entries
// are numbered in submission order.
func FlattenErrors(prefix string, tree holder.ErrorTree) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	flatten(&mapping, strings.TrimSpace(prefix), tree)
	for path, messages := range mapping.Fields {
		if messages = normalizeMessages(messages); messages == nil {
			delete(mapping.Fields, path)
			continue
		}
		mapping.Fields[path] = messages
	}
	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func flatten(mapping *ErrorMapping, path string, tree holder.ErrorTree) {
	switch typed := tree.(type) {
	case nil:
	case form.ErrorList:
		mapping.add(path, typed.Messages())
	case form.ErrorDict:
		for field, list := range typed {
			if isFormLevelKey(field) {
				mapping.add(path, list.Messages())
				continue
			}
			mapping.add(joinPath(path, field), list.Messages())
		}
	case collection.ErrorMap:
		for name, sub := range typed {
			if isFormLevelKey(name) {
				flatten(mapping, path, sub)
				continue
			}
			flatten(mapping, joinPath(path, name), sub)
		}
	case collection.ErrorSeq:
		for idx, entry := range typed {
			if list := collection.CollectionErrors(entry); len(list) > 0 {
				mapping.add(path, list.Messages())
				continue
			}
			flatten(mapping, joinPath(path, strconv.Itoa(idx)), entry)
		}
	}
}

func (m *ErrorMapping) add(path string, messages []string) {
	if len(messages) == 0 {
		return
	}
	if path == "" {
		m.Form = append(m.Form, messages...)
		return
	}
	m.Fields[path] = append(m.Fields[path], messages...)
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))

	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func joinPath(parent, child string) string {
	parent = strings.TrimSpace(parent)
	child = strings.TrimSpace(child)
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", form.NonFieldErrors, collection.CollectionErrorsKey, "non_field_errors":
		return true
	default:
		return false
	}
}
