package domain

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// PortableVersion is the format version written by Serialize.
const PortableVersion = 1

const (
	ModeRules = "rules"
	ModeAll   = "all"
)

// PortableMask is the serialized form of a CompiledMask. It carries only
// variant tags, parameters and registry ids.
type PortableMask struct {
	Version int            `json:"version"`
	Mode    string         `json:"mode"`
	Config  PortableConfig `json:"config"`
	Rules   []PortableRule `json:"rules,omitempty"`
}

type PortableConfig struct {
	MaskChar  string `json:"mask_char"`
	Separator string `json:"separator"`
}

type PortableRule struct {
	Key    string             `json:"key"`
	Mask   PortableSpec       `json:"mask"`
	Ignore *PortablePredicate `json:"ignore,omitempty"`
}

// PortableSpec encodes one MaskSpec variant. Type is one of fixed, literal,
// helper or func.
type PortableSpec struct {
	Type   string  `json:"type"`
	Length *int    `json:"length,omitempty"`
	Value  *string `json:"value,omitempty"`
	Name   string  `json:"name,omitempty"`
	ID     string  `json:"id,omitempty"`
}

// PortablePredicate encodes one Predicate variant. Type is param_in or func.
type PortablePredicate struct {
	Type   string   `json:"type"`
	Param  string   `json:"param,omitempty"`
	Values []string `json:"values,omitempty"`
	ID     string   `json:"id,omitempty"`
}

// Serialize renders cm as portable JSON text. Inline functions have no
// registry id and fail with ErrNotPortable.
func Serialize(cm *CompiledMask) (string, error) {
	pm, err := ToPortable(cm)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(pm)
	if err != nil {
		return "", fmt.Errorf("marshaling mask: %w", err)
	}
	return string(b), nil
}

// ToPortable converts cm into its portable structure.
func ToPortable(cm *CompiledMask) (*PortableMask, error) {
	pm := &PortableMask{
		Version: PortableVersion,
		Mode:    ModeRules,
		Config: PortableConfig{
			MaskChar:  string(cm.cfg.MaskChar()),
			Separator: cm.cfg.Separator(),
		},
	}
	if cm.all {
		pm.Mode = ModeAll
		return pm, nil
	}
	rules, err := EncodeRules(cm.rules)
	if err != nil {
		return nil, err
	}
	pm.Rules = rules
	return pm, nil
}

// EncodeRules converts rules to their portable form.
func EncodeRules(rules []Rule) ([]PortableRule, error) {
	out := make([]PortableRule, 0, len(rules))
	for i, r := range rules {
		pr, err := encodeRule(r)
		if err != nil {
			return nil, ruleErr(i, r.Key, err)
		}
		out = append(out, pr)
	}
	return out, nil
}

func encodeRule(r Rule) (PortableRule, error) {
	pr := PortableRule{Key: r.Key}
	switch m := r.Mask.(type) {
	case FixedLength:
		n := int(m)
		pr.Mask = PortableSpec{Type: maskTypeFixed, Length: &n}
	case Literal:
		s := string(m)
		pr.Mask = PortableSpec{Type: maskTypeLiteral, Value: &s}
	case HelperRef:
		pr.Mask = PortableSpec{Type: maskTypeHelper, Name: string(m)}
	case FuncRef:
		if m.ID == "" || m.Fn != nil {
			return pr, fmt.Errorf("%w: inline mask function has no registry id", ErrNotPortable)
		}
		pr.Mask = PortableSpec{Type: maskTypeFunc, ID: m.ID}
	default:
		return pr, fmt.Errorf("%w: unsupported mask type %T", ErrInvalidMaskSpec, r.Mask)
	}

	switch p := r.Ignore.(type) {
	case nil:
	case ParamIn:
		pr.Ignore = &PortablePredicate{Type: predicateTypeParamIn, Param: p.Param, Values: append([]string(nil), p.Values...)}
	case PredicateRef:
		if p.ID == "" || p.Fn != nil {
			return pr, fmt.Errorf("%w: inline ignore predicate has no registry id", ErrNotPortable)
		}
		pr.Ignore = &PortablePredicate{Type: predicateTypeFunc, ID: p.ID}
	default:
		return pr, fmt.Errorf("%w: unsupported predicate type %T", ErrInvalidRule, r.Ignore)
	}
	return pr, nil
}

// DecodeRules converts portable rules back into rules. References are not
// resolved here; Compile does that against an engine's config and registry.
func DecodeRules(prs []PortableRule) ([]Rule, error) {
	rules := make([]Rule, 0, len(prs))
	for i, pr := range prs {
		r, err := pr.Rule()
		if err != nil {
			return nil, ruleErr(i, pr.Key, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Rule decodes a single portable rule.
func (pr PortableRule) Rule() (Rule, error) {
	r := Rule{Key: pr.Key}
	switch pr.Mask.Type {
	case maskTypeFixed:
		if pr.Mask.Length == nil {
			return r, fmt.Errorf("%w: fixed mask needs a length", ErrMalformedMask)
		}
		r.Mask = FixedLength(*pr.Mask.Length)
	case maskTypeLiteral:
		if pr.Mask.Value == nil {
			return r, fmt.Errorf("%w: literal mask needs a value", ErrMalformedMask)
		}
		r.Mask = Literal(*pr.Mask.Value)
	case maskTypeHelper:
		if pr.Mask.Name == "" {
			return r, fmt.Errorf("%w: helper mask needs a name", ErrMalformedMask)
		}
		r.Mask = HelperRef(pr.Mask.Name)
	case maskTypeFunc:
		if pr.Mask.ID == "" {
			return r, fmt.Errorf("%w: func mask needs an id", ErrMalformedMask)
		}
		r.Mask = Registered(pr.Mask.ID)
	default:
		return r, fmt.Errorf("%w: unknown mask type %q", ErrMalformedMask, pr.Mask.Type)
	}

	if pr.Ignore == nil {
		return r, nil
	}
	switch pr.Ignore.Type {
	case predicateTypeParamIn:
		r.Ignore = ParamIn{Param: pr.Ignore.Param, Values: append([]string(nil), pr.Ignore.Values...)}
	case predicateTypeFunc:
		if pr.Ignore.ID == "" {
			return r, fmt.Errorf("%w: func predicate needs an id", ErrMalformedMask)
		}
		r.Ignore = PredicateRef{ID: pr.Ignore.ID}
	default:
		return r, fmt.Errorf("%w: unknown predicate type %q", ErrMalformedMask, pr.Ignore.Type)
	}
	return r, nil
}

// Deserialize rebuilds a CompiledMask from Serialize output. The result is
// bound to a fresh config derived from the engine's (helpers included) with
// the serialized mask character and separator, and function ids resolve
// against the engine's registry. No code is evaluated.
func (e *Engine) Deserialize(text string) (*CompiledMask, error) {
	var pm PortableMask
	if err := json.Unmarshal([]byte(text), &pm); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMask, err)
	}
	return e.FromPortable(&pm)
}

// FromPortable compiles an already decoded PortableMask.
func (e *Engine) FromPortable(pm *PortableMask) (*CompiledMask, error) {
	if pm.Version != PortableVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedMask, pm.Version)
	}
	cfg, err := e.cfg.derivePortable(pm.Config)
	if err != nil {
		return nil, err
	}
	bound := &Engine{cfg: cfg, registry: e.registry}

	switch pm.Mode {
	case ModeAll:
		return bound.CompileAll(), nil
	case ModeRules, "":
		rules, err := DecodeRules(pm.Rules)
		if err != nil {
			return nil, err
		}
		return bound.Compile(rules)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrMalformedMask, pm.Mode)
	}
}

func (c *MaskConfig) derivePortable(pc PortableConfig) (*MaskConfig, error) {
	var opts []ConfigOption
	if pc.MaskChar != "" {
		r, size := utf8.DecodeRuneInString(pc.MaskChar)
		if r == utf8.RuneError || size != len(pc.MaskChar) {
			return nil, fmt.Errorf("%w: mask_char %q must be a single character", ErrMalformedMask, pc.MaskChar)
		}
		opts = append(opts, WithMaskChar(r))
	}
	opts = append(opts, WithSeparator(pc.Separator))
	return c.Derive(opts...), nil
}
