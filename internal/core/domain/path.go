package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Path is a parsed dot-separated field path. Segments that are all digits
// index into arrays; on an object the same segment is an ordinary key.
type Path []string

// ParsePath splits a rule key into segments.
func ParsePath(key string) (Path, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidRule)
	}
	segs := strings.Split(key, ".")
	for i, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment %d in key %q", ErrInvalidRule, i, key)
		}
	}
	return Path(segs), nil
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Get resolves the path against v. The second return is false when any
// segment does not resolve.
func (p Path) Get(v any) (any, bool) {
	cur := v
	for _, seg := range p {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set writes value at the path inside root, creating missing intermediate
// objects. Traversing through a primitive or past the end of an array fails.
// Only []any and map[string]any are written into; root is expected to come
// from Clone.
func (p Path) Set(root any, value any) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	cur := root
	for i, seg := range p[:len(p)-1] {
		next, ok := nativeChild(cur, seg)
		if !ok || next == nil {
			m, isMap := cur.(map[string]any)
			if !isMap {
				return fmt.Errorf("%w: cannot descend into %q at %q", ErrInvalidPath, p.String(), strings.Join(p[:i+1], "."))
			}
			next = map[string]any{}
			m[seg] = next
		}
		cur = next
	}

	last := p[len(p)-1]
	switch c := cur.(type) {
	case map[string]any:
		c[last] = value
		return nil
	case []any:
		idx, ok := index(last, len(c))
		if !ok {
			return fmt.Errorf("%w: index %q out of range in %q", ErrInvalidPath, last, p.String())
		}
		c[idx] = value
		return nil
	default:
		return fmt.Errorf("%w: parent of %q is not a container", ErrInvalidPath, p.String())
	}
}

// child reads one segment. Typed slices and maps resolve like []any and
// map[string]any.
func child(v any, seg string) (any, bool) {
	return nativeChild(asContainer(v), seg)
}

func nativeChild(v any, seg string) (any, bool) {
	switch c := v.(type) {
	case map[string]any:
		val, ok := c[seg]
		return val, ok
	case []any:
		idx, ok := index(seg, len(c))
		if !ok {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}

func index(seg string, n int) (int, bool) {
	if !isIndex(seg) {
		return 0, false
	}
	idx, err := strconv.Atoi(seg)
	if err != nil || idx >= n {
		return 0, false
	}
	return idx, true
}

func isIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
