package domain

import "fmt"

// Engine binds a MaskConfig and a function Registry. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	cfg      *MaskConfig
	registry *Registry
}

type EngineOption func(*Engine)

// WithRegistry sets the registry FuncRef and PredicateRef ids resolve
// against. The default is BuiltinRegistry().
func WithRegistry(r *Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

func NewEngine(cfg *MaskConfig, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = NewMaskConfig()
	}
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = BuiltinRegistry()
	}
	return e
}

func (e *Engine) Config() *MaskConfig  { return e.cfg }
func (e *Engine) Registry() *Registry { return e.registry }

// Apply masks a deep copy of doc with rules. doc is never modified. Rules are
// validated before any value is read and the call is all-or-nothing: on error
// no document is returned. A nil or empty rule set returns an unmasked copy.
func (e *Engine) Apply(doc Document, rules []Rule, param Param) (Document, error) {
	if len(rules) == 0 {
		return CloneDocument(doc), nil
	}
	cm, err := e.Compile(rules)
	if err != nil {
		return nil, err
	}
	return cm.Apply(doc, param)
}

// ValidateRules checks a rule set without compiling it: unique keys,
// well-formed paths and resolvable helper and function references.
func (e *Engine) ValidateRules(rules []Rule) error {
	_, err := e.resolveAll(rules)
	return err
}

// compiledRule is a rule with its path parsed and every reference resolved.
type compiledRule struct {
	index  int
	key    string
	path   Path
	mask   func(value any, param Param) (any, error)
	ignore func(param Param) bool
}

func (e *Engine) resolveAll(rules []Rule) ([]compiledRule, error) {
	seen := make(map[string]int, len(rules))
	for i, r := range rules {
		if first, dup := seen[r.Key]; dup {
			return nil, ruleErr(i, r.Key, fmt.Errorf("%w: %q already defined by rule %d", ErrDuplicateRuleKey, r.Key, first))
		}
		seen[r.Key] = i
	}

	plan := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		cr, err := e.resolve(i, r)
		if err != nil {
			return nil, err
		}
		plan = append(plan, cr)
	}
	return plan, nil
}

func (e *Engine) resolve(i int, r Rule) (compiledRule, error) {
	path, err := ParsePath(r.Key)
	if err != nil {
		return compiledRule{}, ruleErr(i, r.Key, err)
	}
	mask, err := e.resolveMask(r.Mask)
	if err != nil {
		return compiledRule{}, ruleErr(i, r.Key, err)
	}
	ignore, err := e.resolvePredicate(r.Ignore)
	if err != nil {
		return compiledRule{}, ruleErr(i, r.Key, err)
	}
	return compiledRule{index: i, key: r.Key, path: path, mask: mask, ignore: ignore}, nil
}

func (e *Engine) resolveMask(spec MaskSpec) (func(any, Param) (any, error), error) {
	cfg := e.cfg
	switch m := spec.(type) {
	case nil:
		return nil, fmt.Errorf("%w: no mask", ErrInvalidRule)
	case FixedLength:
		if m < 0 {
			return nil, fmt.Errorf("%w: negative length %d", ErrInvalidMaskSpec, int(m))
		}
		s := cfg.Repeat(int(m))
		return primitiveOnly(maskTypeFixed, func(any) any { return s }), nil
	case Literal:
		s := string(m)
		return primitiveOnly(maskTypeLiteral, func(any) any { return s }), nil
	case HelperRef:
		h, ok := cfg.Helper(string(m))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownHelper, string(m))
		}
		return primitiveOnly(maskTypeHelper, func(v any) any { return h(Canonical(v), cfg) }), nil
	case FuncRef:
		fn := m.Fn
		switch {
		case m.ID != "" && fn != nil:
			return nil, fmt.Errorf("%w: function mask %q takes an id or a function, not both", ErrInvalidRule, m.ID)
		case m.ID != "":
			var ok bool
			if fn, ok = e.registry.Mask(m.ID); !ok {
				return nil, fmt.Errorf("%w: mask %q", ErrUnknownFunction, m.ID)
			}
		case fn == nil:
			return nil, fmt.Errorf("%w: function mask needs an id or a function", ErrInvalidRule)
		}
		// Functions get their own copy so they cannot reach the caller's document.
		return func(v any, param Param) (any, error) { return fn(Clone(v), cfg, param) }, nil
	default:
		return nil, fmt.Errorf("%w: unsupported mask type %T", ErrInvalidMaskSpec, spec)
	}
}

func primitiveOnly(kind string, fn func(any) any) func(any, Param) (any, error) {
	return func(v any, _ Param) (any, error) {
		if !IsPrimitive(v) {
			return nil, fmt.Errorf("%w: %s mask cannot be applied to a composite value", ErrInvalidMaskSpec, kind)
		}
		return fn(v), nil
	}
}

func (e *Engine) resolvePredicate(p Predicate) (func(Param) bool, error) {
	switch v := p.(type) {
	case nil:
		return nil, nil
	case ParamIn:
		if v.Param == "" {
			return nil, fmt.Errorf("%w: param_in predicate needs a param name", ErrInvalidRule)
		}
		return v.eval, nil
	case PredicateRef:
		if v.ID != "" && v.Fn != nil {
			return nil, fmt.Errorf("%w: predicate %q takes an id or a function, not both", ErrInvalidRule, v.ID)
		}
		if v.Fn != nil {
			return v.Fn, nil
		}
		if v.ID == "" {
			return nil, fmt.Errorf("%w: predicate needs an id or a function", ErrInvalidRule)
		}
		fn, ok := e.registry.Predicate(v.ID)
		if !ok {
			return nil, fmt.Errorf("%w: predicate %q", ErrUnknownFunction, v.ID)
		}
		return fn, nil
	default:
		return nil, fmt.Errorf("%w: unsupported predicate type %T", ErrInvalidRule, p)
	}
}
