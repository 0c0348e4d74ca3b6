package domain

import (
	"math/big"
	"reflect"
	"time"
)

// Clone returns a deep copy of a document tree. Maps and slices are copied
// recursively; pointer primitives are duplicated so the copy shares nothing
// mutable with v. Typed slices and string-keyed maps ([]string,
// map[string]int, ...) come back as []any and map[string]any.
func Clone(v any) any {
	switch t := asContainer(v).(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	case *big.Int:
		if t == nil {
			return t
		}
		return new(big.Int).Set(t)
	case *time.Time:
		if t == nil {
			return t
		}
		c := *t
		return &c
	default:
		return v
	}
}

// CloneDocument deep-copies doc. A nil document clones to nil.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	return Clone(doc).(map[string]any)
}

// asContainer exposes a slice, array or string-keyed map of any element type
// as []any or map[string]any, copying one level. Other values, []byte
// included, are returned unchanged.
func asContainer(v any) any {
	switch v.(type) {
	case nil, map[string]any, []any, []byte:
		return v
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	default:
		return v
	}
}
