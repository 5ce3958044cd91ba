package keys

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Digest returns a fixed-width, collision-resistant digest of v computed
// over its canonical representation. Identical values always produce the
// same 16-hex-character digest, across calls and process restarts.
func Digest(v any) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(Canonical(v)))
}

// Canonical renders v into a deterministic string form: map keys are
// sorted, pointers are dereferenced, and struct fields appear in
// declaration order. Functions and channels are represented by their type
// only, since addresses are not stable across restarts.
func Canonical(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	if v == nil {
		b.WriteString("nil")
		return
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		writeCanonical(b, rv.Elem().Interface())

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Addresses are unstable across restarts; the type is all we keep.
		fmt.Fprintf(b, "%s:%s", rt.Kind(), rt.String())

	case reflect.Slice, reflect.Array:
		if rt.Kind() == reflect.Slice && rv.IsNil() {
			b.WriteString("nil")
			return
		}
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, rv.Index(i).Interface())
		}
		b.WriteByte(']')

	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		writeMap(b, rv)

	case reflect.Struct:
		writeStruct(b, rv, rt)

	case reflect.String:
		fmt.Fprintf(b, "%q", rv.String())

	default:
		fmt.Fprintf(b, "%v", v)
	}
}

// writeMap renders a map with keys sorted by their canonical form.
func writeMap(b *strings.Builder, rv reflect.Value) {
	type pair struct {
		key   string
		value reflect.Value
	}

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{key: Canonical(iter.Key().Interface()), value: iter.Value()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.key)
		b.WriteByte(':')
		writeCanonical(b, p.value.Interface())
	}
	b.WriteByte('}')
}

func writeStruct(b *strings.Builder, rv reflect.Value, rt reflect.Type) {
	b.WriteString(rt.Name())
	b.WriteByte('{')
	first := true
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(field.Name)
		b.WriteByte(':')
		writeCanonical(b, rv.Field(i).Interface())
	}
	b.WriteByte('}')
}
