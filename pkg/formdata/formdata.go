// Package formdata turns submitted form posts into the nested payloads form
// collections validate. Browsers submit flat keys such as
// "departments.0.department.name"; Decode builds nested maps from the dotted
// segments and turns maps keyed only by indexes into ordered slices, leaving
// nil where an index was skipped.
package formdata

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MaxIndex bounds numeric path segments so a crafted key cannot allocate an
// arbitrarily large slice.
const MaxIndex = 9999

// DecodeValues decodes a form post. Keys with several values decode to []any.
func DecodeValues(values url.Values) (any, error) {
	root := make(map[string]any, len(values))
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		raw := values[key]
		var value any
		switch len(raw) {
		case 0:
			continue
		case 1:
			value = raw[0]
		default:
			items := make([]any, len(raw))
			for i, item := range raw {
				items[i] = item
			}
			value = items
		}
		if err := Set(root, key, value); err != nil {
			return nil, err
		}
	}
	return Normalize(root)
}

// DecodeJSON decodes a JSON body. Numbers decode to json.Number so integer
// keys survive unchanged.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("formdata: decode json: %w", err)
	}
	return out, nil
}

// Get resolves a dotted path in a decoded payload.
func Get(root any, path string) (any, bool) {
	if root == nil || path == "" {
		return nil, false
	}
	current := root
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at a dotted path, creating intermediate maps. Index
// segments stay map keys until Normalize.
func Set(root map[string]any, path string, value any) error {
	if root == nil {
		return fmt.Errorf("formdata: root map is nil")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("formdata: empty path")
	}
	segments := strings.Split(path, ".")
	node := root
	for i, segment := range segments {
		if segment == "" {
			return fmt.Errorf("formdata: empty segment in path %q", path)
		}
		if i == len(segments)-1 {
			if _, isMap := node[segment].(map[string]any); isMap {
				return fmt.Errorf("formdata: path %q conflicts with nested keys", path)
			}
			node[segment] = value
			return nil
		}
		switch child := node[segment].(type) {
		case nil:
			next := make(map[string]any)
			node[segment] = next
			node = next
		case map[string]any:
			node = child
		default:
			return fmt.Errorf("formdata: path %q conflicts with value at %q", path, strings.Join(segments[:i+1], "."))
		}
	}
	return nil
}

// Normalize converts every map whose keys are all indexes into a slice.
func Normalize(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) > 0 {
			if indexes, ok := indexKeys(typed); ok {
				return toSlice(typed, indexes)
			}
		}
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			n, err := Normalize(v)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			n, err := Normalize(v)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return typed, nil
	}
}

func indexKeys(m map[string]any) (map[string]int, bool) {
	out := make(map[string]int, len(m))
	for key := range m {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || strconv.Itoa(idx) != key {
			return nil, false
		}
		out[key] = idx
	}
	return out, true
}

func toSlice(m map[string]any, indexes map[string]int) ([]any, error) {
	size := 0
	for _, idx := range indexes {
		if idx > MaxIndex {
			return nil, fmt.Errorf("formdata: index %d exceeds %d", idx, MaxIndex)
		}
		size = max(size, idx+1)
	}
	out := make([]any, size)
	for key, idx := range indexes {
		n, err := Normalize(m[key])
		if err != nil {
			return nil, err
		}
		out[idx] = n
	}
	return out, nil
}

// Clone deep-copies maps and slices of a payload.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = Clone(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = Clone(v)
		}
		return clone
	default:
		return typed
	}
}
