package holder

import (
	"fmt"
	"reflect"
	"strings"
)

// IsEmpty reports whether v is an empty value: nil, a zero scalar, or an
// empty string, map or slice.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return rv.IsZero()
	}
}

// IsMarkedForRemoval reports whether a submitted mapping carries a truthy
// removal marker.
func IsMarkedForRemoval(data any) bool {
	m, ok := data.(map[string]any)
	if !ok {
		return false
	}
	switch v := m[MarkedForRemoval].(type) {
	case nil:
		return false
	case bool:
		return v
	case []any:
		if len(v) == 0 {
			return false
		}
		return IsMarkedForRemoval(map[string]any{MarkedForRemoval: v[len(v)-1]})
	default:
		switch strings.ToLower(strings.TrimSpace(fmt.Sprint(v))) {
		case "", "0", "false", "off", "no":
			return false
		}
		return true
	}
}
