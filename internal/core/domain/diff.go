package domain

import (
	"reflect"
	"sort"
)

// MaskedFields returns the sorted top-level keys of original whose value in
// masked differs from the original value.
func MaskedFields(original, masked Document) []string {
	fields := make([]string, 0)
	for k, v := range original {
		if !reflect.DeepEqual(Clone(v), Clone(masked[k])) {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}

// CountMaskedLeaves counts primitive leaves that differ between original and
// masked, descending through matching containers.
func CountMaskedLeaves(original, masked any) int {
	switch o := asContainer(original).(type) {
	case map[string]any:
		m, ok := asContainer(masked).(map[string]any)
		if !ok {
			return leafCount(original)
		}
		n := 0
		for k, v := range o {
			n += CountMaskedLeaves(v, m[k])
		}
		return n
	case []any:
		m, ok := asContainer(masked).([]any)
		if !ok || len(m) != len(o) {
			return leafCount(original)
		}
		n := 0
		for i := range o {
			n += CountMaskedLeaves(o[i], m[i])
		}
		return n
	default:
		if reflect.DeepEqual(original, masked) {
			return 0
		}
		return 1
	}
}

func leafCount(v any) int {
	switch t := asContainer(v).(type) {
	case map[string]any:
		n := 0
		for _, val := range t {
			n += leafCount(val)
		}
		return n
	case []any:
		n := 0
		for _, val := range t {
			n += leafCount(val)
		}
		return n
	default:
		return 1
	}
}
