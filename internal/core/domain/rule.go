package domain

import "fmt"

// MaskFunc transforms a resolved value. It may return any shape, including a
// composite, and may call helpers through cfg.
type MaskFunc func(value any, cfg *MaskConfig, param Param) (any, error)

// IgnoreFunc reports whether a rule should be skipped for param.
type IgnoreFunc func(param Param) bool

// MaskSpec is the closed set of mask behaviours a rule can declare:
// FixedLength, Literal, HelperRef and FuncRef.
type MaskSpec interface {
	maskKind() string
}

// FixedLength replaces a primitive with the mask character repeated n times.
type FixedLength int

// Literal replaces a primitive with the literal string verbatim.
type Literal string

// HelperRef applies a named helper from the config to the canonical string
// form of a primitive.
type HelperRef string

// FuncRef applies a custom mask function. Exactly one of ID and Fn is set:
// ID names an entry in the engine's registry, Fn is used directly. A FuncRef
// without ID cannot be serialized.
type FuncRef struct {
	ID string
	Fn MaskFunc
}

// Func returns an inline FuncRef.
func Func(fn MaskFunc) FuncRef { return FuncRef{Fn: fn} }

// Registered returns a FuncRef resolved through the registry by id.
func Registered(id string) FuncRef { return FuncRef{ID: id} }

func (FixedLength) maskKind() string { return maskTypeFixed }
func (Literal) maskKind() string     { return maskTypeLiteral }
func (HelperRef) maskKind() string   { return maskTypeHelper }
func (FuncRef) maskKind() string     { return maskTypeFunc }

const (
	maskTypeFixed   = "fixed"
	maskTypeLiteral = "literal"
	maskTypeHelper  = "helper"
	maskTypeFunc    = "func"

	predicateTypeParamIn = "param_in"
	predicateTypeFunc    = "func"
)

// Predicate is the closed set of ignore conditions: ParamIn and PredicateRef.
type Predicate interface {
	predicateKind() string
}

// ParamIn is true when param[Param] matches one of Values. A list-valued
// parameter matches when any of its elements does.
type ParamIn struct {
	Param  string
	Values []string
}

// PredicateRef is a custom ignore predicate. Like FuncRef it carries either
// a registry ID or an inline Fn.
type PredicateRef struct {
	ID string
	Fn IgnoreFunc
}

func (ParamIn) predicateKind() string      { return predicateTypeParamIn }
func (PredicateRef) predicateKind() string { return predicateTypeFunc }

func (p ParamIn) eval(param Param) bool {
	v, ok := param[p.Param]
	if !ok || v == nil {
		return false
	}
	if list, isList := v.([]any); isList {
		for _, item := range list {
			if p.matches(item) {
				return true
			}
		}
		return false
	}
	if list, isList := v.([]string); isList {
		for _, item := range list {
			if p.matches(item) {
				return true
			}
		}
		return false
	}
	return p.matches(v)
}

func (p ParamIn) matches(v any) bool {
	if !IsPrimitive(v) {
		return false
	}
	s := Canonical(v)
	for _, want := range p.Values {
		if s == want {
			return true
		}
	}
	return false
}

// Rule targets one field path with a mask and an optional ignore predicate.
type Rule struct {
	Key    string
	Mask   MaskSpec
	Ignore Predicate
}

// String renders the rule for logs.
func (r Rule) String() string {
	s := fmt.Sprintf("%s: %s", r.Key, describeMask(r.Mask))
	if r.Ignore != nil {
		s += " (ignore " + describePredicate(r.Ignore) + ")"
	}
	return s
}

func describeMask(m MaskSpec) string {
	switch v := m.(type) {
	case FixedLength:
		return fmt.Sprintf("fixed(%d)", int(v))
	case Literal:
		return fmt.Sprintf("literal(%q)", string(v))
	case HelperRef:
		return "helper(" + string(v) + ")"
	case FuncRef:
		if v.ID == "" {
			return "func(inline)"
		}
		return "func(" + v.ID + ")"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", m)
	}
}

func describePredicate(p Predicate) string {
	switch v := p.(type) {
	case ParamIn:
		return fmt.Sprintf("%s in %v", v.Param, v.Values)
	case PredicateRef:
		if v.ID == "" {
			return "func(inline)"
		}
		return "func(" + v.ID + ")"
	default:
		return fmt.Sprintf("%T", p)
	}
}
