package tags

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jonwraymond/cachelayer/keys"
)

// DefaultSeparator joins multiple extracted fields into one composite tag.
const DefaultSeparator = ":"

// Spec is a declarative tag rule. Each variant independently produces zero
// or more tags; Resolve concatenates and deduplicates them.
type Spec interface {
	resolve(ctx context.Context, payload any, params map[string]any, kctx *keys.Context) []string
}

// Value is a static tag.
type Value string

func (v Value) resolve(context.Context, any, map[string]any, *keys.Context) []string {
	if v == "" {
		return nil
	}
	return []string{string(v)}
}

// Data extracts one or more fields from the result payload. When the
// payload is a slice, the spec is evaluated once per element, yielding one
// tag per element.
type Data struct {
	Fields    []string
	Prefix    string
	Suffix    string
	Separator string
}

func (d Data) resolve(_ context.Context, payload any, _ map[string]any, _ *keys.Context) []string {
	if payload == nil || len(d.Fields) == 0 {
		return nil
	}

	rv := reflect.ValueOf(payload)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if tag, ok := d.fromElement(rv.Index(i).Interface()); ok {
				out = append(out, tag)
			}
		}
		return out
	}

	if tag, ok := d.fromElement(payload); ok {
		return []string{tag}
	}
	return nil
}

func (d Data) fromElement(element any) (string, bool) {
	parts := make([]string, 0, len(d.Fields))
	for _, field := range d.Fields {
		if value, ok := extractField(element, field); ok {
			parts = append(parts, stringify(value))
		}
	}
	if len(parts) == 0 {
		return "", false
	}

	sep := d.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	return d.Prefix + strings.Join(parts, sep) + d.Suffix, true
}

// Param extracts named values from the ambient call parameters.
type Param struct {
	Names     []string
	Prefix    string
	Suffix    string
	Separator string
}

func (p Param) resolve(_ context.Context, _ any, params map[string]any, _ *keys.Context) []string {
	if len(params) == 0 || len(p.Names) == 0 {
		return nil
	}

	parts := make([]string, 0, len(p.Names))
	for _, name := range p.Names {
		if value, ok := params[name]; ok {
			parts = append(parts, stringify(value))
		}
	}
	if len(parts) == 0 {
		return nil
	}

	sep := p.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	return []string{p.Prefix + strings.Join(parts, sep) + p.Suffix}
}

// Template expands the same placeholder grammar as key templates, with
// {hash} bound to a digest of the payload.
type Template struct {
	Pattern string
	Prefix  string
	Suffix  string
}

func (t Template) resolve(ctx context.Context, payload any, _ map[string]any, kctx *keys.Context) []string {
	if t.Pattern == "" {
		return nil
	}
	expanded := keys.Expand(ctx, t.Pattern, keys.Digest(payload), kctx)
	if expanded == "" {
		return nil
	}
	return []string{t.Prefix + expanded + t.Suffix}
}

// Resolve evaluates every spec against the payload, params, and ambient
// context, then removes exact duplicates preserving first-seen order.
func Resolve(ctx context.Context, specs []Spec, payload any, params map[string]any, kctx *keys.Context) []string {
	if len(specs) == 0 {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, spec := range specs {
		if spec == nil {
			continue
		}
		for _, tag := range spec.resolve(ctx, payload, params, kctx) {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// extractField walks a dotted path ("user.id") through maps and structs.
// Absent fields report ok=false, never an error.
func extractField(element any, path string) (any, bool) {
	current := element
	for _, segment := range strings.Split(path, ".") {
		value, ok := fieldOf(current, segment)
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

func fieldOf(v any, name string) (any, bool) {
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true

	case reflect.Struct:
		fv := rv.FieldByName(name)
		if !fv.IsValid() || !fv.CanInterface() {
			// Tolerate lowercase field references against exported fields.
			fv = rv.FieldByNameFunc(func(f string) bool {
				return strings.EqualFold(f, name)
			})
			if !fv.IsValid() || !fv.CanInterface() {
				return nil, false
			}
		}
		return fv.Interface(), true

	default:
		return nil, false
	}
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
