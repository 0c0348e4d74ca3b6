package domain

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

// Ids of the functions registered by BuiltinRegistry.
const (
	FuncRedact     = "redact"
	FuncHash       = "hash"
	FuncPartial    = "partial"
	FuncNull       = "null"
	FuncEmailLocal = "email-local"
	FuncInitials   = "initials"
	FuncMaskTree   = "mask-tree"
)

var emailLocalPattern = regexp.MustCompile(`^(.*)@`)

// BuiltinRegistry returns a registry preloaded with the stock mask functions.
// Callers may register their own ids on top.
func BuiltinRegistry() *Registry {
	return NewRegistry().
		MustRegisterMask(FuncRedact, redact).
		MustRegisterMask(FuncHash, hash).
		MustRegisterMask(FuncPartial, partial).
		MustRegisterMask(FuncNull, null).
		MustRegisterMask(FuncEmailLocal, emailLocal).
		MustRegisterMask(FuncInitials, initials).
		MustRegisterMask(FuncMaskTree, maskTreeFunc)
}

func redact(value any, _ *MaskConfig, _ Param) (any, error) {
	if value == nil {
		return nil, nil
	}
	return "***", nil
}

// hash returns the hex SHA-256 of the canonical form, so 12345 and "12345"
// hash identically.
func hash(value any, _ *MaskConfig, _ Param) (any, error) {
	if value == nil {
		return nil, nil
	}
	h := sha256.Sum256([]byte(Canonical(value)))
	return fmt.Sprintf("%x", h), nil
}

// partial reveals only the last 4 characters. Values of 4 characters or
// fewer are prefixed with three mask characters instead.
func partial(value any, cfg *MaskConfig, _ Param) (any, error) {
	if value == nil {
		return nil, nil
	}
	runes := []rune(Canonical(value))
	if len(runes) <= 4 {
		return cfg.Repeat(3) + string(runes), nil
	}
	return cfg.Repeat(len(runes)-4) + string(runes[len(runes)-4:]), nil
}

func null(any, *MaskConfig, Param) (any, error) {
	return nil, nil
}

// emailLocal replaces everything up to the last '@' with four mask characters.
func emailLocal(value any, cfg *MaskConfig, _ Param) (any, error) {
	if !IsPrimitive(value) {
		return nil, fmt.Errorf("%s: expected a primitive, got %T", FuncEmailLocal, value)
	}
	return emailLocalPattern.ReplaceAllLiteralString(Canonical(value), cfg.Repeat(4)+"@"), nil
}

// initials keeps the first character of every string leaf and appends four
// mask characters. Other leaves are masked to their own length.
func initials(value any, cfg *MaskConfig, _ Param) (any, error) {
	return walkLeaves(value, func(leaf any) any {
		s, ok := leaf.(string)
		if !ok {
			return cfg.MaskString(Canonical(leaf))
		}
		r := []rune(s)
		if len(r) == 0 {
			return s
		}
		return string(r[0]) + cfg.Repeat(4)
	}), nil
}

func maskTreeFunc(value any, cfg *MaskConfig, _ Param) (any, error) {
	return maskTree(value, cfg), nil
}

// walkLeaves rebuilds v with every primitive leaf replaced by fn(leaf).
// nil leaves are kept.
func walkLeaves(v any, fn func(any) any) any {
	switch t := asContainer(v).(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = walkLeaves(val, fn)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = walkLeaves(val, fn)
		}
		return out
	case nil:
		return nil
	default:
		if !IsPrimitive(v) {
			return fn(strings.TrimSpace(fmt.Sprintf("%v", v)))
		}
		return fn(v)
	}
}
