package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func portableRules() []Rule {
	return []Rule{
		{Key: "name", Mask: FixedLength(4)},
		{Key: "role", Mask: Literal("[hidden]")},
		{Key: "contact.phone", Mask: HelperRef(HelperPhone)},
		{Key: "contact.email", Mask: Registered(FuncEmailLocal), Ignore: ParamIn{Param: "role", Values: []string{"admin", "owner"}}},
		{Key: "addresses.0", Mask: Registered(FuncInitials), Ignore: PredicateRef{ID: "is-owner"}},
	}
}

func portableEngine(t *testing.T, opts ...ConfigOption) *Engine {
	t.Helper()
	reg := BuiltinRegistry()
	require.NoError(t, reg.RegisterPredicate("is-owner", func(p Param) bool { return p["role"] == "owner" }))
	return NewEngine(NewMaskConfig(opts...), WithRegistry(reg))
}

func TestSerialize_RoundTrip(t *testing.T) {
	t.Parallel()
	e := portableEngine(t, WithMaskChar('#'))
	cm, err := e.Compile(portableRules())
	require.NoError(t, err)

	text, err := Serialize(cm)
	require.NoError(t, err)

	restored, err := e.Deserialize(text)
	require.NoError(t, err)

	for _, param := range []Param{nil, {"role": "user"}, {"role": "admin"}, {"role": "owner"}} {
		want, err := cm.Apply(sampleUser(), param)
		require.NoError(t, err)
		got, err := restored.Apply(sampleUser(), param)
		require.NoError(t, err)
		assert.Equal(t, want, got, "param %v", param)
	}
}

func TestSerialize_CarriesConfig(t *testing.T) {
	t.Parallel()
	src := portableEngine(t, WithMaskChar('#'), WithSeparator("/"))
	cm, err := src.Compile([]Rule{{Key: "path", Mask: HelperRef(HelperLast)}})
	require.NoError(t, err)
	text, err := Serialize(cm)
	require.NoError(t, err)

	// A default-configured engine still reproduces the original behaviour.
	dst := portableEngine(t)
	restored, err := dst.Deserialize(text)
	require.NoError(t, err)

	out, err := restored.Apply(Document{"path": "a/b/secret"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a/b/######", out["path"])
	assert.Equal(t, '*', dst.Config().MaskChar())
}

func TestSerialize_MaskAllRoundTrip(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	text, err := Serialize(e.CompileAll())
	require.NoError(t, err)

	var pm PortableMask
	require.NoError(t, json.Unmarshal([]byte(text), &pm))
	assert.Equal(t, ModeAll, pm.Mode)
	assert.Empty(t, pm.Rules)

	restored, err := e.Deserialize(text)
	require.NoError(t, err)
	assert.True(t, restored.MaskAll())

	out, err := restored.Apply(Document{"a": "x", "b": map[string]any{"c": "yz"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, Document{"a": "*", "b": map[string]any{"c": "**"}}, out)
}

func TestSerialize_DataOnly(t *testing.T) {
	t.Parallel()
	e := portableEngine(t)
	cm, err := e.Compile(portableRules())
	require.NoError(t, err)
	text, err := Serialize(cm)
	require.NoError(t, err)

	var pm PortableMask
	require.NoError(t, json.Unmarshal([]byte(text), &pm))
	assert.Equal(t, PortableVersion, pm.Version)
	assert.Equal(t, ModeRules, pm.Mode)
	require.Len(t, pm.Rules, 5)

	assert.Equal(t, "fixed", pm.Rules[0].Mask.Type)
	require.NotNil(t, pm.Rules[0].Mask.Length)
	assert.Equal(t, 4, *pm.Rules[0].Mask.Length)
	assert.Equal(t, "literal", pm.Rules[1].Mask.Type)
	assert.Equal(t, "helper", pm.Rules[2].Mask.Type)
	assert.Equal(t, HelperPhone, pm.Rules[2].Mask.Name)
	assert.Equal(t, "func", pm.Rules[3].Mask.Type)
	assert.Equal(t, FuncEmailLocal, pm.Rules[3].Mask.ID)
	require.NotNil(t, pm.Rules[3].Ignore)
	assert.Equal(t, "param_in", pm.Rules[3].Ignore.Type)
	assert.Equal(t, []string{"admin", "owner"}, pm.Rules[3].Ignore.Values)
	assert.Equal(t, "is-owner", pm.Rules[4].Ignore.ID)
}

func TestSerialize_InlineFunctionNotPortable(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)

	cm, err := e.Compile([]Rule{{Key: "a", Mask: Func(replaceLocalPart)}})
	require.NoError(t, err)
	_, err = Serialize(cm)
	assert.ErrorIs(t, err, ErrNotPortable)

	cm, err = e.Compile([]Rule{{Key: "a", Mask: FixedLength(1), Ignore: PredicateRef{Fn: func(Param) bool { return false }}}})
	require.NoError(t, err)
	_, err = Serialize(cm)
	assert.ErrorIs(t, err, ErrNotPortable)
}

func TestCompile_RejectsIDWithInlineFunction(t *testing.T) {
	t.Parallel()
	e := portableEngine(t)
	custom := func(any, *MaskConfig, Param) (any, error) { return "custom", nil }

	tests := []struct {
		name string
		rule Rule
	}{
		{"registered mask id", Rule{Key: "name", Mask: FuncRef{ID: FuncHash, Fn: custom}}},
		{"unregistered mask id", Rule{Key: "name", Mask: FuncRef{ID: "not-registered", Fn: custom}}},
		{"predicate id", Rule{Key: "name", Mask: FixedLength(2), Ignore: PredicateRef{ID: "is-owner", Fn: func(Param) bool { return true }}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := e.Compile([]Rule{tt.rule})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRule)
			assert.Contains(t, err.Error(), "not both")

			_, err = EncodeRules([]Rule{tt.rule})
			assert.ErrorIs(t, err, ErrNotPortable)
		})
	}
}

func TestDeserialize_Errors(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	tests := []struct {
		name string
		text string
		want error
	}{
		{"not json", "function(obj) { return obj }", ErrMalformedMask},
		{"bad version", `{"version":2,"mode":"all"}`, ErrMalformedMask},
		{"bad mode", `{"version":1,"mode":"eval"}`, ErrMalformedMask},
		{"bad mask char", `{"version":1,"mode":"all","config":{"mask_char":"ab"}}`, ErrMalformedMask},
		{"unknown mask type", `{"version":1,"rules":[{"key":"a","mask":{"type":"code"}}]}`, ErrMalformedMask},
		{"fixed without length", `{"version":1,"rules":[{"key":"a","mask":{"type":"fixed"}}]}`, ErrMalformedMask},
		{"literal without value", `{"version":1,"rules":[{"key":"a","mask":{"type":"literal"}}]}`, ErrMalformedMask},
		{"unknown predicate type", `{"version":1,"rules":[{"key":"a","mask":{"type":"fixed","length":1},"ignore":{"type":"js"}}]}`, ErrMalformedMask},
		{"unknown function", `{"version":1,"rules":[{"key":"a","mask":{"type":"func","id":"rm -rf"}}]}`, ErrUnknownFunction},
		{"unknown helper", `{"version":1,"rules":[{"key":"a","mask":{"type":"helper","name":"nope"}}]}`, ErrUnknownHelper},
		{"duplicate keys", `{"version":1,"rules":[{"key":"a","mask":{"type":"fixed","length":1}},{"key":"a","mask":{"type":"fixed","length":2}}]}`, ErrDuplicateRuleKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cm, err := e.Deserialize(tt.text)
			assert.Nil(t, cm)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeserialize_EmptyLiteralAllowed(t *testing.T) {
	t.Parallel()
	cm, err := NewEngine(nil).Deserialize(`{"version":1,"mode":"rules","rules":[{"key":"a","mask":{"type":"literal","value":""}}]}`)
	require.NoError(t, err)
	out, err := cm.Apply(Document{"a": "secret"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", out["a"])
}
