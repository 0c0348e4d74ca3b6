package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRuleKey = errors.New("duplicate rule key")
	ErrInvalidMaskSpec  = errors.New("invalid mask spec")
	ErrInvalidPath      = errors.New("invalid path")
	ErrInvalidRule      = errors.New("invalid rule")
	ErrUnknownHelper    = errors.New("unknown helper")
	ErrUnknownFunction  = errors.New("unknown function")
	ErrNotPortable      = errors.New("mask is not portable")
	ErrMalformedMask    = errors.New("malformed serialized mask")
	ErrNotFound         = errors.New("not found")
)

// RuleError reports a failure attributable to a single rule of a rule set.
type RuleError struct {
	Err   error
	Key   string
	Index int
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %d (key %q): %v", e.Index, e.Key, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// PathError reports a rule key that does not resolve against a schema.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%v %q: %s", ErrInvalidPath, e.Path, e.Reason)
}

func (e *PathError) Unwrap() error {
	return ErrInvalidPath
}

func ruleErr(index int, key string, err error) error {
	return &RuleError{Err: err, Key: key, Index: index}
}
