package policy

import (
	"fmt"

	"github.com/guillermoBallester/maskit/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy holds operator-controlled mask configuration loaded from a YAML file:
// the mask character and separator, and a catalog of named rule sets.
type Policy struct {
	Config ConfigSection      `yaml:"config"`
	Masks  map[string]MaskSet `yaml:"masks"`
}

type ConfigSection struct {
	MaskChar  string  `yaml:"mask_char"`
	Separator *string `yaml:"separator"`
}

// MaskSet is one named rule set. With All set the rules are ignored and the
// set masks every leaf.
type MaskSet struct {
	Description string         `yaml:"description"`
	All         bool           `yaml:"all"`
	Schema      *domain.Schema `yaml:"schema,omitempty"`
	Rules       []RuleEntry    `yaml:"rules"`
}

type RuleEntry struct {
	Key    string       `yaml:"key"`
	Mask   MaskEntry    `yaml:"mask"`
	Ignore *IgnoreEntry `yaml:"ignore,omitempty"`
}

// MaskEntry accepts a scalar shorthand or a mapping naming exactly one kind.
//
//	mask: 4                  # fixed length
//	mask: "[redacted]"       # literal
//	mask: {helper: email}
//	mask: {func: hash}
//	mask: {fixed: 4}
//	mask: {literal: "x"}
type MaskEntry struct {
	Fixed   *int    `yaml:"fixed,omitempty"`
	Literal *string `yaml:"literal,omitempty"`
	Helper  string  `yaml:"helper,omitempty"`
	Func    string  `yaml:"func,omitempty"`
}

func (m *MaskEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Tag == "!!int" {
			var n int
			if err := value.Decode(&n); err != nil {
				return fmt.Errorf("decoding fixed mask length: %w", err)
			}
			*m = MaskEntry{Fixed: &n}
			return nil
		}
		s := value.Value
		*m = MaskEntry{Literal: &s}
		return nil
	}
	// Decode as struct (avoid infinite recursion by using an alias type).
	type alias MaskEntry
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding mask: %w", err)
	}
	*m = MaskEntry(a)
	return nil
}

// Spec converts the entry to a domain mask spec.
func (m MaskEntry) Spec() (domain.MaskSpec, error) {
	var specs []domain.MaskSpec
	if m.Fixed != nil {
		specs = append(specs, domain.FixedLength(*m.Fixed))
	}
	if m.Literal != nil {
		specs = append(specs, domain.Literal(*m.Literal))
	}
	if m.Helper != "" {
		specs = append(specs, domain.HelperRef(m.Helper))
	}
	if m.Func != "" {
		specs = append(specs, domain.Registered(m.Func))
	}
	switch len(specs) {
	case 0:
		return nil, fmt.Errorf("mask: one of fixed, literal, helper or func is required")
	case 1:
		return specs[0], nil
	default:
		return nil, fmt.Errorf("mask: only one of fixed, literal, helper or func may be set")
	}
}

// IgnoreEntry is either {param: role, in: [admin]} or {func: id}.
type IgnoreEntry struct {
	Param string   `yaml:"param,omitempty"`
	In    []string `yaml:"in,omitempty"`
	Func  string   `yaml:"func,omitempty"`
}

func (i IgnoreEntry) Predicate() (domain.Predicate, error) {
	switch {
	case i.Param != "" && i.Func != "":
		return nil, fmt.Errorf("ignore: param and func are mutually exclusive")
	case i.Param != "":
		return domain.ParamIn{Param: i.Param, Values: i.In}, nil
	case i.Func != "":
		return domain.PredicateRef{ID: i.Func}, nil
	default:
		return nil, fmt.Errorf("ignore: param or func is required")
	}
}

// Rule converts the entry to a domain rule.
func (r RuleEntry) Rule() (domain.Rule, error) {
	spec, err := r.Mask.Spec()
	if err != nil {
		return domain.Rule{}, err
	}
	rule := domain.Rule{Key: r.Key, Mask: spec}
	if r.Ignore != nil {
		p, err := r.Ignore.Predicate()
		if err != nil {
			return domain.Rule{}, err
		}
		rule.Ignore = p
	}
	return rule, nil
}

// DomainRules converts every rule entry, naming the failing rule on error.
func (ms MaskSet) DomainRules() ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0, len(ms.Rules))
	for i, re := range ms.Rules {
		r, err := re.Rule()
		if err != nil {
			return nil, fmt.Errorf("rules[%d] (key %q): %w", i, re.Key, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}
