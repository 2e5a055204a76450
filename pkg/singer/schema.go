package singer

import "sort"

// Schema is the subset of JSON Schema used to describe stream records
type Schema struct {
	Type                 interface{}        `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties interface{}        `json:"additionalProperties,omitempty"`
	AnyOf                []*Schema          `json:"anyOf,omitempty"`
}

// Types returns the declared types; a bare string is returned as one element
func (s *Schema) Types() []string {
	if s == nil {
		return nil
	}
	switch t := s.Type.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// HasType reports whether typ is one of the declared types
func (s *Schema) HasType(typ string) bool {
	for _, t := range s.Types() {
		if t == typ {
			return true
		}
	}
	return false
}

// Nullable returns a schema of the given types plus null
func Nullable(types ...string) *Schema {
	t := make([]interface{}, 0, len(types)+1)
	t = append(t, "null")
	for _, typ := range types {
		t = append(t, typ)
	}
	return &Schema{Type: t}
}

// NullableDateTime returns a nullable string schema with date-time format
func NullableDateTime() *Schema {
	s := Nullable("string")
	s.Format = "date-time"
	return s
}

// NullableObject returns a nullable object schema with the given properties
func NullableObject(properties map[string]*Schema) *Schema {
	s := Nullable("object")
	s.Properties = properties
	return s
}

// NullableArray returns a nullable array schema of items
func NullableArray(items *Schema) *Schema {
	s := Nullable("array")
	s.Items = items
	return s
}

func sortedKeys(m map[string]*Schema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
