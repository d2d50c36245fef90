package normalize

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// MessageKey is the key used to wrap payloads that are not JSON objects.
const MessageKey = "message"

// ToJSON returns the canonical map form of an inbound payload.
//
// Maps are returned as-is, including named map[string]any types. Other
// maps and structs are converted through their JSON encoding. Strings and
// byte slices are parsed as a JSON object; when that fails the original
// text is wrapped under MessageKey. Any other value is formatted with %v
// and wrapped the same way.
func ToJSON(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case string:
		return fromText(v)
	case []byte:
		return fromText(string(v))
	case json.RawMessage:
		return fromText(string(v))
	case nil:
		return map[string]any{}
	default:
		if obj, ok := asObject(v); ok {
			return obj
		}
		return map[string]any{MessageKey: fmt.Sprintf("%v", v)}
	}
}

var objectType = reflect.TypeOf(map[string]any(nil))

// asObject handles structured values other than map[string]any.
func asObject(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().ConvertibleTo(objectType) {
		return rv.Convert(objectType).Interface().(map[string]any), true
	}

	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Map && rv.Kind() != reflect.Struct {
		return nil, false
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		// nil map
		obj = map[string]any{}
	}
	return obj, true
}

func fromText(text string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return map[string]any{MessageKey: text}
	}
	return obj
}

// String returns the string stored under key, or "" if absent or not a string.
func String(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Strings reads key as a list of strings. A single string value is
// returned as a one-element slice; non-string elements are skipped.
func Strings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
