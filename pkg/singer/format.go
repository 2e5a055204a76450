package singer

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/timeutil"
)

var jsonNumberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// Formatter shapes records of one stream to its catalog schema: it drops
// deselected and undeclared fields, coerces values to the declared types
// and optionally validates the result.
type Formatter struct {
	entry     *CatalogEntry
	validator *Validator

	mu      sync.Mutex
	removed map[string]struct{}
}

// NewFormatter creates a formatter for entry. With validate set, every
// formatted record is checked against the JSON Schema.
func NewFormatter(entry *CatalogEntry, validate bool) (*Formatter, error) {
	f := &Formatter{entry: entry, removed: make(map[string]struct{})}
	if validate {
		v, err := NewValidator(entry.TapStreamID, entry.Schema)
		if err != nil {
			return nil, err
		}
		f.validator = v
	}
	return f, nil
}

// Format returns a new record conforming to the stream schema
func (f *Formatter) Format(record map[string]interface{}) (map[string]interface{}, error) {
	selected := make(map[string]interface{}, len(record))
	for k, v := range record {
		if !f.entry.FieldSelected(k) {
			continue
		}
		selected[k] = v
	}

	out, err := f.transform(selected, f.entry.Schema, "")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "record does not conform to schema").
			WithDetail("stream", f.entry.TapStreamID)
	}

	rec, _ := out.(map[string]interface{})
	if rec == nil {
		rec = map[string]interface{}{}
	}
	if f.validator != nil {
		if err := f.validator.Validate(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Removed returns the paths of undeclared fields dropped so far
func (f *Formatter) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.removed))
	for p := range f.removed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f *Formatter) transform(value interface{}, schema *Schema, path string) (interface{}, error) {
	if schema == nil {
		return value, nil
	}

	if len(schema.AnyOf) > 0 {
		var lastErr error
		for _, alt := range schema.AnyOf {
			v, err := f.transform(value, alt, path)
			if err == nil {
				return v, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}

	types := schema.Types()
	if len(types) == 0 {
		return value, nil
	}

	if value == nil {
		if schema.HasType("null") {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: null is not allowed", pathOrRoot(path))
	}

	for _, typ := range types {
		if typ == "null" {
			continue
		}
		if v, ok := f.coerce(value, typ, schema, path); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s: cannot convert %v (%T) to %s", pathOrRoot(path), value, value, strings.Join(types, "|"))
}

func (f *Formatter) coerce(value interface{}, typ string, schema *Schema, path string) (interface{}, bool) {
	switch typ {
	case "object":
		return f.coerceObject(value, schema, path)
	case "array":
		items, ok := value.([]interface{})
		if !ok {
			return nil, false
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			v, err := f.transform(item, schema.Items, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	case "integer":
		return toInteger(value)
	case "number":
		return toNumber(value)
	case "boolean":
		return toBoolean(value)
	case "string":
		if schema.Format == "date-time" {
			return toDateTime(value)
		}
		return toString(value)
	}
	return nil, false
}

func (f *Formatter) coerceObject(value interface{}, schema *Schema, path string) (interface{}, bool) {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, false
	}
	if len(schema.Properties) == 0 {
		return obj, true
	}

	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		child := joinPath(path, k)
		prop, declared := schema.Properties[k]
		if !declared {
			f.mu.Lock()
			f.removed[child] = struct{}{}
			f.mu.Unlock()
			continue
		}
		tv, err := f.transform(v, prop, child)
		if err != nil {
			return nil, false
		}
		out[k] = tv
	}
	return out, true
}

func toInteger(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case int, int32, int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	case jsonpool.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i, true
		}
	}
	return nil, false
}

func toNumber(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case int, int32, int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		return v, true
	case jsonpool.Number:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		if jsonNumberPattern.MatchString(s) {
			return jsonpool.Number(s), true
		}
	}
	return nil, false
}

func toBoolean(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		return v != 0, true
	case jsonpool.Number:
		if fv, err := v.Float64(); err == nil {
			return fv != 0, true
		}
	}
	return nil, false
}

func toString(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case jsonpool.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return timeutil.Format(v), true
	}
	return nil, false
}

func toDateTime(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case time.Time:
		return timeutil.Format(v), true
	case string:
		if s, err := timeutil.Normalize(v); err == nil {
			return s, true
		}
	}
	return nil, false
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "record"
	}
	return path
}
