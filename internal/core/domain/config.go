package domain

import (
	"sort"
	"strings"
)

const (
	DefaultMaskChar  = '*'
	DefaultSeparator = "-"
)

// HelperFunc is a named, pure string transform custom mask functions can
// reach through MaskConfig.Helper.
type HelperFunc func(value string, cfg *MaskConfig) string

// MaskConfig carries the mask character, segment separator and helper set
// shared by every rule evaluation of one engine. It is immutable once built.
type MaskConfig struct {
	maskChar  rune
	separator string
	helpers   map[string]HelperFunc
}

type ConfigOption func(*MaskConfig)

func WithMaskChar(r rune) ConfigOption {
	return func(c *MaskConfig) { c.maskChar = r }
}

func WithSeparator(sep string) ConfigOption {
	return func(c *MaskConfig) { c.separator = sep }
}

// WithHelper registers an additional helper, replacing a builtin of the same name.
func WithHelper(name string, fn HelperFunc) ConfigOption {
	return func(c *MaskConfig) { c.helpers[name] = fn }
}

// NewMaskConfig returns a config with the builtin helpers and the given options applied.
func NewMaskConfig(opts ...ConfigOption) *MaskConfig {
	c := &MaskConfig{
		maskChar:  DefaultMaskChar,
		separator: DefaultSeparator,
		helpers:   BuiltinHelpers(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maskChar == 0 {
		c.maskChar = DefaultMaskChar
	}
	return c
}

func (c *MaskConfig) MaskChar() rune    { return c.maskChar }
func (c *MaskConfig) Separator() string { return c.separator }

// Helper looks up a helper by name.
func (c *MaskConfig) Helper(name string) (HelperFunc, bool) {
	fn, ok := c.helpers[name]
	return fn, ok
}

// HelperNames returns the registered helper names in sorted order.
func (c *MaskConfig) HelperNames() []string {
	names := make([]string, 0, len(c.helpers))
	for n := range c.helpers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Repeat returns the mask character repeated n times.
func (c *MaskConfig) Repeat(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(string(c.maskChar), n)
}

// MaskString replaces every character of s with the mask character.
func (c *MaskConfig) MaskString(s string) string {
	return c.Repeat(runeLen(s))
}

// Derive returns a copy of c with opts applied. c is left unchanged.
func (c *MaskConfig) Derive(opts ...ConfigOption) *MaskConfig {
	d := &MaskConfig{
		maskChar:  c.maskChar,
		separator: c.separator,
		helpers:   make(map[string]HelperFunc, len(c.helpers)),
	}
	for name, fn := range c.helpers {
		d.helpers[name] = fn
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maskChar == 0 {
		d.maskChar = DefaultMaskChar
	}
	return d
}
