package field

import (
	"fmt"
)

// Command is a structural edit applied by Forest.Apply.
type Command interface {
	command()
}

// AddField appends a blank node. An empty ParentID appends to the root list,
// otherwise the node is appended to the parent's properties.
type AddField struct {
	ID       string
	ParentID string
}

// AddItems sets a blank node as the items definition of ParentID.
type AddItems struct {
	ID       string
	ParentID string
}

// RemoveField deletes a node and its whole subtree.
type RemoveField struct {
	ID string
}

// UpdateField sets Key to Value on the node with the given id.
type UpdateField struct {
	ID    string
	Key   Key
	Value any
}

// SetAttribute sets a single attribute. An empty Value removes it.
type SetAttribute struct {
	ID    string
	Name  string
	Value string
}

// ReorderFields replaces the root list with Fields.
type ReorderFields struct {
	Fields []*Node
}

// MoveField moves a node to Index within its sibling list.
type MoveField struct {
	ID    string
	Index int
}

func (AddField) command()      {}
func (AddItems) command()      {}
func (RemoveField) command()   {}
func (UpdateField) command()   {}
func (SetAttribute) command()  {}
func (ReorderFields) command() {}
func (MoveField) command()     {}

// Key names an updatable node field.
type Key string

const (
	KeyTitle       Key = "keyTitle"
	KeyDataType    Key = "dataType"
	KeyDescription Key = "description"
	KeyAttributes  Key = "attributes"
	KeyProperties  Key = "properties"
	KeyItems       Key = "items"
)

// ParseKey validates a key name.
func ParseKey(s string) (Key, error) {
	switch k := Key(s); k {
	case KeyTitle, KeyDataType, KeyDescription, KeyAttributes, KeyProperties, KeyItems:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

// Apply returns the forest that results from cmd. f is never modified.
func (f *Forest) Apply(cmd Command) (*Forest, error) {
	switch c := cmd.(type) {
	case AddField:
		return f.addField(c)
	case AddItems:
		return f.addItems(c)
	case RemoveField:
		return f.removeField(c)
	case UpdateField:
		return f.updateField(c)
	case SetAttribute:
		return f.setAttribute(c)
	case ReorderFields:
		return NewForest(c.Fields...)
	case MoveField:
		return f.moveField(c)
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}

func (f *Forest) checkNewID(id string) error {
	if id == "" {
		return ErrMissingID
	}
	if _, exists := f.lookup()[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	return nil
}

func (f *Forest) addField(c AddField) (*Forest, error) {
	if err := f.checkNewID(c.ID); err != nil {
		return nil, err
	}
	if c.ParentID == "" {
		roots := append(f.Roots(), Blank(c.ID))
		return &Forest{roots: roots}, nil
	}
	p, ok := f.lookup()[c.ParentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c.ParentID)
	}
	roots := f.rewrite(p, func(n *Node) *Node {
		out := n.clone()
		out.Properties = append(append([]*Node(nil), n.Properties...), Blank(c.ID))
		return out
	})
	return &Forest{roots: roots}, nil
}

func (f *Forest) addItems(c AddItems) (*Forest, error) {
	if err := f.checkNewID(c.ID); err != nil {
		return nil, err
	}
	p, ok := f.lookup()[c.ParentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c.ParentID)
	}
	if f.at(p).Items != nil {
		return nil, fmt.Errorf("%w: %s", ErrItemsPresent, c.ParentID)
	}
	roots := f.rewrite(p, func(n *Node) *Node {
		out := n.clone()
		out.Items = Blank(c.ID)
		return out
	})
	return &Forest{roots: roots}, nil
}

func (f *Forest) removeField(c RemoveField) (*Forest, error) {
	p, ok := f.lookup()[c.ID]
	if !ok {
		return f, nil
	}
	if len(p) == 1 {
		i := p[0].index
		roots := make([]*Node, 0, len(f.roots)-1)
		roots = append(roots, f.roots[:i]...)
		roots = append(roots, f.roots[i+1:]...)
		return &Forest{roots: roots}, nil
	}
	last := p[len(p)-1]
	roots := f.rewrite(p[:len(p)-1], func(n *Node) *Node {
		out := n.clone()
		if last.items {
			out.Items = nil
			return out
		}
		props := make([]*Node, 0, len(n.Properties)-1)
		props = append(props, n.Properties[:last.index]...)
		out.Properties = append(props, n.Properties[last.index+1:]...)
		return out
	})
	return &Forest{roots: roots}, nil
}

func (f *Forest) updateField(c UpdateField) (*Forest, error) {
	if _, err := ParseKey(string(c.Key)); err != nil {
		return nil, err
	}
	p, ok := f.lookup()[c.ID]
	if !ok {
		return f, nil
	}
	var setErr error
	roots := f.rewrite(p, func(n *Node) *Node {
		out := n.clone()
		setErr = set(out, c.Key, c.Value)
		return out
	})
	if setErr != nil {
		return nil, setErr
	}
	if c.Key == KeyProperties || c.Key == KeyItems {
		// Replacing children can introduce foreign ids.
		return NewForest(roots...)
	}
	return &Forest{roots: roots}, nil
}

func set(n *Node, key Key, value any) error {
	switch key {
	case KeyTitle, KeyDataType, KeyDescription:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s wants string, got %T", ErrValueType, key, value)
		}
		switch key {
		case KeyTitle:
			n.KeyTitle = s
		case KeyDataType:
			n.DataType = s
		default:
			n.Description = s
		}
	case KeyAttributes:
		switch v := value.(type) {
		case Attributes:
			n.Attributes = v.Clone()
		case map[string]string:
			n.Attributes = Attributes(v).Clone()
		case nil:
			n.Attributes = Attributes{}
		default:
			return fmt.Errorf("%w: %s wants attributes, got %T", ErrValueType, key, value)
		}
	case KeyProperties:
		switch v := value.(type) {
		case []*Node:
			n.Properties = append([]*Node(nil), v...)
		case nil:
			n.Properties = nil
		default:
			return fmt.Errorf("%w: %s wants []*Node, got %T", ErrValueType, key, value)
		}
	case KeyItems:
		v, ok := value.(*Node)
		if !ok && value != nil {
			return fmt.Errorf("%w: %s wants *Node, got %T", ErrValueType, key, value)
		}
		n.Items = v
	}
	return nil
}

func (f *Forest) setAttribute(c SetAttribute) (*Forest, error) {
	p, ok := f.lookup()[c.ID]
	if !ok {
		return f, nil
	}
	roots := f.rewrite(p, func(n *Node) *Node {
		out := n.clone()
		out.Attributes = n.Attributes.With(c.Name, c.Value)
		return out
	})
	return &Forest{roots: roots}, nil
}

func (f *Forest) moveField(c MoveField) (*Forest, error) {
	p, ok := f.lookup()[c.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	last := p[len(p)-1]
	if last.items {
		return f, nil
	}
	if len(p) == 1 {
		return &Forest{roots: move(f.roots, last.index, c.Index)}, nil
	}
	roots := f.rewrite(p[:len(p)-1], func(n *Node) *Node {
		out := n.clone()
		out.Properties = move(n.Properties, last.index, c.Index)
		return out
	})
	return &Forest{roots: roots}, nil
}

// move returns a copy of list with the element at from relocated to to.
func move(list []*Node, from, to int) []*Node {
	if to < 0 {
		to = 0
	}
	if to > len(list)-1 {
		to = len(list) - 1
	}
	out := make([]*Node, 0, len(list))
	moved := list[from]
	for i, n := range list {
		if i != from {
			out = append(out, n)
		}
	}
	out = append(out[:to], append([]*Node{moved}, out[to:]...)...)
	return out
}
