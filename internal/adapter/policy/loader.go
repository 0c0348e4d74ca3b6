package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/guillermoBallester/maskit/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML policy document.
func Parse(data []byte) (*Policy, error) {
	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

// ParseRules decodes a bare list of rule entries. JSON input is accepted as
// a YAML subset. Lists in the serialized form, where every mask is tagged
// with a "type", are decoded as such, so rules printed by describe_mask can
// be sent back in.
func ParseRules(data []byte) ([]domain.Rule, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	if isPortable(raw) {
		return parsePortableRules(raw)
	}

	var entries []RuleEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return MaskSet{Rules: entries}.DomainRules()
}

func isPortable(raw []map[string]any) bool {
	for _, r := range raw {
		if m, ok := r["mask"].(map[string]any); ok {
			if _, tagged := m["type"]; tagged {
				return true
			}
		}
	}
	return false
}

func parsePortableRules(raw []map[string]any) ([]domain.Rule, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	var prs []domain.PortableRule
	if err := json.Unmarshal(data, &prs); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	rules, err := domain.DecodeRules(prs)
	if err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return rules, nil
}

func validate(pol *Policy) error {
	if pol.Config.MaskChar != "" && utf8.RuneCountInString(pol.Config.MaskChar) != 1 {
		return fmt.Errorf("config.mask_char: %q must be a single character", pol.Config.MaskChar)
	}
	for name, ms := range pol.Masks {
		if name == "" {
			return fmt.Errorf("masks contains an empty key")
		}
		if ms.Schema != nil {
			if err := ms.Schema.Validate(); err != nil {
				return fmt.Errorf("masks[%q]: %w", name, err)
			}
		}
		if ms.All {
			continue
		}
		for i, re := range ms.Rules {
			if re.Key == "" {
				return fmt.Errorf("masks[%q].rules[%d]: key is required", name, i)
			}
			if _, err := re.Rule(); err != nil {
				return fmt.Errorf("masks[%q].rules[%d]: %w", name, i, err)
			}
		}
	}
	return nil
}

// ConfigOptions returns the mask config options the policy declares.
func (p *Policy) ConfigOptions() []domain.ConfigOption {
	var opts []domain.ConfigOption
	if p.Config.MaskChar != "" {
		r, _ := utf8.DecodeRuneInString(p.Config.MaskChar)
		opts = append(opts, domain.WithMaskChar(r))
	}
	if p.Config.Separator != nil {
		opts = append(opts, domain.WithSeparator(*p.Config.Separator))
	}
	return opts
}

// Engine returns an engine configured by the policy, resolving function ids
// against reg (the builtin registry when nil).
func (p *Policy) Engine(reg *domain.Registry) *domain.Engine {
	cfg := domain.NewMaskConfig(p.ConfigOptions()...)
	if reg == nil {
		return domain.NewEngine(cfg)
	}
	return domain.NewEngine(cfg, domain.WithRegistry(reg))
}

// Compile builds every mask set against e. Rule sets with a schema are
// compiled with path checking.
func (p *Policy) Compile(e *domain.Engine) (map[string]*domain.CompiledMask, error) {
	names := make([]string, 0, len(p.Masks))
	for name := range p.Masks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]*domain.CompiledMask, len(names))
	for _, name := range names {
		ms := p.Masks[name]
		if ms.All {
			out[name] = e.CompileAll()
			continue
		}
		rules, err := ms.DomainRules()
		if err != nil {
			return nil, fmt.Errorf("mask %q: %w", name, err)
		}
		var opts []domain.CompileOption
		if ms.Schema != nil {
			opts = append(opts, domain.WithSchema(ms.Schema))
		}
		cm, err := e.Compile(rules, opts...)
		if err != nil {
			return nil, fmt.Errorf("mask %q: %w", name, err)
		}
		out[name] = cm
	}
	return out, nil
}
