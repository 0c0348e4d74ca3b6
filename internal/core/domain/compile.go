package domain

// CompiledMask is a reusable transform bound to one config and either a
// validated rule set or mask-everything mode. It is immutable and safe for
// concurrent use.
type CompiledMask struct {
	cfg   *MaskConfig
	rules []Rule
	plan  []compiledRule
	all   bool
}

type compileOptions struct {
	schema *Schema
}

type CompileOption func(*compileOptions)

// WithSchema checks every rule key against s at compile time and fails
// with a *PathError for keys the schema does not contain.
func WithSchema(s *Schema) CompileOption {
	return func(o *compileOptions) { o.schema = s }
}

// Compile validates and resolves rules once. A nil rule set compiles to
// mask-everything mode, the same as CompileAll; an empty non-nil set
// compiles to the identity transform.
func (e *Engine) Compile(rules []Rule, opts ...CompileOption) (*CompiledMask, error) {
	if rules == nil {
		return e.CompileAll(), nil
	}
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}

	plan, err := e.resolveAll(rules)
	if err != nil {
		return nil, err
	}
	if o.schema != nil {
		for _, cr := range plan {
			if err := o.schema.Check(cr.path); err != nil {
				return nil, ruleErr(cr.index, cr.key, err)
			}
		}
	}

	return &CompiledMask{
		cfg:   e.cfg,
		rules: append([]Rule(nil), rules...),
		plan:  plan,
	}, nil
}

// CompileAll returns a transform that replaces every primitive leaf with the
// mask character repeated to the leaf's canonical length. Arrays and objects
// keep their shape; nil leaves stay nil.
func (e *Engine) CompileAll() *CompiledMask {
	return &CompiledMask{cfg: e.cfg, all: true}
}

// Apply runs the compiled transform against a copy of doc.
// Rules read from doc and write into the copy, in rule order. A missing or
// null target is skipped. Any rule failure aborts the call with no result.
func (c *CompiledMask) Apply(doc Document, param Param) (Document, error) {
	if c.all {
		if doc == nil {
			return nil, nil
		}
		return maskTree(doc, c.cfg).(map[string]any), nil
	}

	out := CloneDocument(doc)
	for _, r := range c.plan {
		if r.ignore != nil && r.ignore(param) {
			continue
		}
		v, ok := r.path.Get(doc)
		if !ok || Classify(v) == ClassMissing {
			continue
		}
		masked, err := r.mask(v, param)
		if err != nil {
			return nil, ruleErr(r.index, r.key, err)
		}
		if err := r.path.Set(out, masked); err != nil {
			return nil, ruleErr(r.index, r.key, err)
		}
	}
	return out, nil
}

// MaskAll reports whether c is in mask-everything mode.
func (c *CompiledMask) MaskAll() bool { return c.all }

func (c *CompiledMask) Config() *MaskConfig { return c.cfg }

// Rules returns a copy of the rule set c was compiled from.
func (c *CompiledMask) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

func maskTree(v any, cfg *MaskConfig) any {
	return walkLeaves(v, func(leaf any) any {
		return cfg.MaskString(Canonical(leaf))
	})
}
