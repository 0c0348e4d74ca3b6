package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"
	"unicode/utf8"
)

// Document is the structured object masks operate on, as produced by
// decoding JSON or YAML into map[string]any.
type Document = map[string]any

// Param is the caller-supplied runtime parameter consulted by ignore
// predicates and passed through to custom mask functions.
type Param = map[string]any

// Class is the result of classifying a resolved value.
type Class int

const (
	ClassMissing Class = iota
	ClassPrimitive
	ClassComposite
)

func (c Class) String() string {
	switch c {
	case ClassPrimitive:
		return "primitive"
	case ClassComposite:
		return "composite"
	default:
		return "missing"
	}
}

// TimestampLayout is the canonical string form of timestamps: UTC ISO-8601
// with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Classify reports whether v is a primitive (string, number, bool,
// arbitrary-precision integer or timestamp) or a composite. nil is missing.
func Classify(v any) Class {
	switch t := v.(type) {
	case nil:
		return ClassMissing
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time:
		return ClassPrimitive
	case *big.Int:
		if t == nil {
			return ClassMissing
		}
		return ClassPrimitive
	case *time.Time:
		if t == nil {
			return ClassMissing
		}
		return ClassPrimitive
	default:
		return ClassComposite
	}
}

// IsPrimitive is shorthand for Classify(v) == ClassPrimitive.
func IsPrimitive(v any) bool {
	return Classify(v) == ClassPrimitive
}

// Canonical returns the string form a primitive is masked from.
// Non-primitives fall back to fmt's %v.
func Canonical(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case *big.Int:
		return t.String()
	case time.Time:
		return t.UTC().Format(TimestampLayout)
	case *time.Time:
		return t.UTC().Format(TimestampLayout)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
