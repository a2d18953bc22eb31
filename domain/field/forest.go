package field

import (
	"errors"
	"sync"
)

// Errors returned by Forest construction and commands.
var (
	ErrNotFound     = errors.New("field not found")
	ErrMissingID    = errors.New("field id is required")
	ErrDuplicateID  = errors.New("field id already exists")
	ErrNilNode      = errors.New("field node is nil")
	ErrItemsPresent = errors.New("field already has an items definition")
	ErrUnknownKey   = errors.New("unknown field key")
	ErrValueType    = errors.New("value has the wrong type for key")
)

// step is one hop from a parent to a child slot.
// The first step of a path indexes the root list.
type step struct {
	items bool
	index int
}

type path []step

// Forest is the ordered root list of a field tree.
// The id index is built on first lookup and reused for the lifetime of the value.
type Forest struct {
	roots []*Node

	once  sync.Once
	index map[string]path
}

// Empty returns a forest with no fields.
func Empty() *Forest {
	return &Forest{}
}

// NewForest builds a forest from root nodes.
// Ids must be non-empty and unique across the whole tree.
func NewForest(roots ...*Node) (*Forest, error) {
	f := &Forest{roots: append([]*Node(nil), roots...)}
	idx, err := buildIndex(f.roots)
	if err != nil {
		return nil, err
	}
	f.once.Do(func() { f.index = idx })
	return f, nil
}

// Roots returns the root nodes in order, never nil. The slice is a copy; the
// nodes are not.
func (f *Forest) Roots() []*Node {
	return append(make([]*Node, 0, len(f.roots)), f.roots...)
}

// Len returns the number of root nodes.
func (f *Forest) Len() int {
	return len(f.roots)
}

// Size returns the number of nodes in the whole tree.
func (f *Forest) Size() int {
	return len(f.lookup())
}

// Find returns the node with the given id at any depth.
func (f *Forest) Find(id string) (*Node, bool) {
	p, ok := f.lookup()[id]
	if !ok {
		return nil, false
	}
	return f.at(p), true
}

// Depth returns the nesting depth of id (0 for roots).
func (f *Forest) Depth(id string) (int, bool) {
	p, ok := f.lookup()[id]
	if !ok {
		return 0, false
	}
	return len(p) - 1, true
}

func (f *Forest) lookup() map[string]path {
	f.once.Do(func() {
		// Forests built through Apply are consistent by construction,
		// so the error can only come from a hand-assembled value.
		f.index, _ = buildIndex(f.roots)
	})
	return f.index
}

func (f *Forest) at(p path) *Node {
	n := f.roots[p[0].index]
	for _, s := range p[1:] {
		if s.items {
			n = n.Items
		} else {
			n = n.Properties[s.index]
		}
	}
	return n
}

func buildIndex(roots []*Node) (map[string]path, error) {
	idx := make(map[string]path)
	var walk func(n *Node, p path) error
	walk = func(n *Node, p path) error {
		if n == nil {
			return ErrNilNode
		}
		if n.ID == "" {
			return ErrMissingID
		}
		if _, dup := idx[n.ID]; dup {
			return ErrDuplicateID
		}
		idx[n.ID] = p
		for i, child := range n.Properties {
			if err := walk(child, extend(p, step{index: i})); err != nil {
				return err
			}
		}
		if n.Items != nil {
			if err := walk(n.Items, extend(p, step{items: true})); err != nil {
				return err
			}
		}
		return nil
	}
	for i, n := range roots {
		if err := walk(n, path{{index: i}}); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func extend(p path, s step) path {
	out := make(path, len(p)+1)
	copy(out, p)
	out[len(p)] = s
	return out
}

// rewrite returns a new root list in which the node at p is replaced by fn(node).
// Only the nodes on the path are copied.
func (f *Forest) rewrite(p path, fn func(*Node) *Node) []*Node {
	roots := append([]*Node(nil), f.roots...)
	roots[p[0].index] = rewriteNode(roots[p[0].index], p[1:], fn)
	return roots
}

func rewriteNode(n *Node, rest path, fn func(*Node) *Node) *Node {
	if len(rest) == 0 {
		return fn(n)
	}
	c := n.clone()
	s := rest[0]
	if s.items {
		c.Items = rewriteNode(n.Items, rest[1:], fn)
		return c
	}
	props := append([]*Node(nil), n.Properties...)
	props[s.index] = rewriteNode(n.Properties[s.index], rest[1:], fn)
	c.Properties = props
	return c
}
