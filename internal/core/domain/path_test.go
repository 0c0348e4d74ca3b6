package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	t.Parallel()
	p, err := ParsePath("addresses.0.street")
	require.NoError(t, err)
	assert.Equal(t, Path{"addresses", "0", "street"}, p)
	assert.Equal(t, "addresses.0.street", p.String())

	for _, bad := range []string{"", ".", "a.", ".a", "a..b"} {
		_, err := ParsePath(bad)
		assert.ErrorIs(t, err, ErrInvalidRule, "key %q", bad)
	}
}

func TestPath_Get(t *testing.T) {
	t.Parallel()
	doc := sampleUser()
	doc["0"] = "numeric key"

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"name", "John Doe", true},
		{"contact.email", "john@example.com", true},
		{"names.1", "Jane Smith", true},
		{"addresses.1.city", "Othertown", true},
		{"0", "numeric key", true},
		{"names.2", nil, false},
		{"names.-1", nil, false},
		{"names.first", nil, false},
		{"contact.fax", nil, false},
		{"name.length", nil, false},
	}
	for _, tt := range tests {
		p, err := ParsePath(tt.path)
		require.NoError(t, err)
		got, ok := p.Get(doc)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestPath_Set(t *testing.T) {
	t.Parallel()
	doc := sampleUser()

	require.NoError(t, Path{"contact", "email"}.Set(doc, "x"))
	assert.Equal(t, "x", doc["contact"].(map[string]any)["email"])

	require.NoError(t, Path{"names", "1"}.Set(doc, "y"))
	assert.Equal(t, []any{"John Doe", "y"}, doc["names"])

	require.NoError(t, Path{"extra", "deep", "leaf"}.Set(doc, 1))
	assert.Equal(t, map[string]any{"deep": map[string]any{"leaf": 1}}, doc["extra"])

	assert.ErrorIs(t, Path{"names", "5"}.Set(doc, "z"), ErrInvalidPath)
	assert.ErrorIs(t, Path{"name", "first"}.Set(doc, "z"), ErrInvalidPath)
	assert.ErrorIs(t, Path{"names", "9", "x"}.Set(doc, "z"), ErrInvalidPath)
	assert.ErrorIs(t, Path{}.Set(doc, "z"), ErrInvalidPath)
}

func TestClone_Independent(t *testing.T) {
	t.Parallel()
	n := big.NewInt(42)
	ts := time.Now()
	in := Document{
		"list":  []any{map[string]any{"a": 1}},
		"big":   n,
		"when":  &ts,
		"plain": "s",
	}
	out := CloneDocument(in)
	assert.Equal(t, in, out)

	out["list"].([]any)[0].(map[string]any)["a"] = 2
	out["big"].(*big.Int).SetInt64(7)
	assert.Equal(t, 1, in["list"].([]any)[0].(map[string]any)["a"])
	assert.Equal(t, int64(42), n.Int64())

	assert.Nil(t, CloneDocument(nil))
}

func TestClone_TypedContainers(t *testing.T) {
	t.Parallel()
	raw := []byte("raw")
	in := Document{
		"tags":   []string{"ab"},
		"labels": map[string]string{"k": "v"},
		"ids":    map[int]string{1: "one"},
		"raw":    raw,
	}
	out := CloneDocument(in)

	assert.Equal(t, []any{"ab"}, out["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, out["labels"])
	// Maps with non-string keys are not documents and pass through.
	assert.Equal(t, map[int]string{1: "one"}, out["ids"])

	out["raw"].([]byte)[0] = 'X'
	assert.Equal(t, "raw", string(raw))
}

func TestPath_GetTypedContainers(t *testing.T) {
	t.Parallel()
	doc := Document{"tags": []string{"ab", "cd"}, "labels": map[string]int{"n": 3}}

	v, ok := Path{"tags", "1"}.Get(doc)
	require.True(t, ok)
	assert.Equal(t, "cd", v)

	v, ok = Path{"labels", "n"}.Get(doc)
	require.True(t, ok)
	assert.Equal(t, 3, v)

	// Set never writes into a typed container it would have to copy.
	assert.ErrorIs(t, Path{"tags", "0"}.Set(doc, "x"), ErrInvalidPath)
	assert.Equal(t, []string{"ab", "cd"}, doc["tags"])
}
