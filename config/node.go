package config

import (
	"fmt"
	"math"
	"strconv"

	"go.yaml.in/yaml/v3"
)

// tree is a YAML node together with the dotted path that reached it.
type tree struct {
	n    *yaml.Node
	path string
}

func newTree(doc *yaml.Node) tree {
	n := doc
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	return tree{n: resolve(n)}
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func (t tree) join(key string) string {
	if t.path == "" {
		return key
	}
	return t.path + "." + key
}

func (t tree) isNull() bool {
	return t.n == nil || (t.n.Kind == yaml.ScalarNode && t.n.Tag == "!!null")
}

func (t tree) fault(err error) *Fault {
	line := 0
	if t.n != nil {
		line = t.n.Line
	}
	return &Fault{Key: t.path, Line: line, Err: err}
}

// child looks up key in a mapping. Absent keys and null values both report
// false.
func (t tree) child(key string) (tree, bool) {
	if t.n == nil || t.n.Kind != yaml.MappingNode {
		return tree{}, false
	}
	for i := 0; i+1 < len(t.n.Content); i += 2 {
		if t.n.Content[i].Value == key {
			c := tree{n: resolve(t.n.Content[i+1]), path: t.join(key)}
			if c.isNull() {
				return tree{}, false
			}
			return c, true
		}
	}
	return tree{}, false
}

// require is child for keys that must be present.
func (t tree) require(key string) (tree, error) {
	c, ok := t.child(key)
	if !ok {
		return tree{}, &Fault{Key: t.join(key), Err: ErrMissingKey}
	}
	return c, nil
}

type entry struct {
	key   string
	value tree
}

// entries lists the pairs of a mapping in file order, nulls included.
func (t tree) entries() ([]entry, error) {
	if t.n.Kind != yaml.MappingNode {
		return nil, t.fault(fmt.Errorf("%w: want a mapping", ErrWrongType))
	}
	out := make([]entry, 0, len(t.n.Content)/2)
	for i := 0; i+1 < len(t.n.Content); i += 2 {
		k := t.n.Content[i].Value
		out = append(out, entry{key: k, value: tree{n: resolve(t.n.Content[i+1]), path: t.join(k)}})
	}
	return out, nil
}

// items lists the elements of a sequence.
func (t tree) items() ([]tree, error) {
	if t.n.Kind != yaml.SequenceNode {
		return nil, t.fault(fmt.Errorf("%w: want a list", ErrWrongType))
	}
	out := make([]tree, len(t.n.Content))
	for i, c := range t.n.Content {
		out[i] = tree{n: resolve(c), path: t.path + "[" + strconv.Itoa(i) + "]"}
	}
	return out, nil
}

func (t tree) asInt() (int, error) {
	var v int
	if t.n.Kind != yaml.ScalarNode || t.n.Decode(&v) != nil {
		return 0, t.fault(fmt.Errorf("%w: want an integer, got %q", ErrWrongType, t.n.Value))
	}
	return v, nil
}

// asInt32 decodes an integer that must fit a 32-bit machine word, signed or
// unsigned. Unsigned values above math.MaxInt32 wrap to their
// two's-complement reading.
func (t tree) asInt32() (int32, error) {
	var v int64
	if t.n.Kind != yaml.ScalarNode || t.n.Decode(&v) != nil {
		return 0, t.fault(fmt.Errorf("%w: want an integer, got %q", ErrWrongType, t.n.Value))
	}
	if v < math.MinInt32 || v > math.MaxUint32 {
		return 0, t.fault(fmt.Errorf("%w: %d does not fit 32 bits", ErrInvalid, v))
	}
	return int32(v), nil
}

func (t tree) asStr() (string, error) {
	if t.n.Kind != yaml.ScalarNode {
		return "", t.fault(fmt.Errorf("%w: want a string", ErrWrongType))
	}
	return t.n.Value, nil
}

func (t tree) requireInt(key string) (int, error) {
	c, err := t.require(key)
	if err != nil {
		return 0, err
	}
	return c.asInt()
}

func (t tree) requireStr(key string) (string, error) {
	c, err := t.require(key)
	if err != nil {
		return "", err
	}
	return c.asStr()
}

// optInt32 decodes key if present; absent or null keys report false.
func (t tree) optInt32(key string) (int32, bool, error) {
	c, ok := t.child(key)
	if !ok {
		return 0, false, nil
	}
	v, err := c.asInt32()
	return v, err == nil, err
}

// optStr decodes key if present; absent or null keys give "".
func (t tree) optStr(key string) (string, error) {
	c, ok := t.child(key)
	if !ok {
		return "", nil
	}
	return c.asStr()
}
