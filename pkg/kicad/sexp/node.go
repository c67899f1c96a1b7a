package sexp

// Node is a single S-expression node: either an atom (a bare symbol or a
// quoted string) or a list of child nodes. Every node parsed from a
// document keeps the exact byte span it was parsed from (Start/End into
// the owning Document's buffer) so that Print can re-emit it verbatim
// when nothing inside it changed.
type Node struct {
	List   bool
	Atom   string
	Quoted bool // atom was written as a quoted string in the source
	Items  []*Node

	// Dirty marks a node whose structured fields were set or mutated by
	// the core and must be re-printed from Items/Atom rather than from
	// its original source span. Fresh nodes (never parsed) are Dirty by
	// construction (Start == End == 0, doc is nil).
	Dirty bool

	doc        *Document
	Start, End int
}

// Document is a parsed S-expression file: the top-level forms plus the
// original source buffer that node spans index into.
type Document struct {
	Src   []byte
	Forms []*Node
}

// Raw returns the exact original source bytes for a node parsed from a
// document. It is meaningless (and unused) for freshly constructed nodes.
func (n *Node) Raw() []byte {
	if n.doc == nil {
		return nil
	}
	return n.doc.Src[n.Start:n.End]
}

// NewAtom builds a fresh, dirty atom node.
func NewAtom(value string, quoted bool) *Node {
	return &Node{Atom: value, Quoted: quoted, Dirty: true}
}

// NewList builds a fresh, dirty list node from a keyword and children.
// The keyword becomes Items[0], an unquoted atom.
func NewList(keyword string, children ...*Node) *Node {
	items := make([]*Node, 0, len(children)+1)
	items = append(items, NewAtom(keyword, false))
	items = append(items, children...)
	return &Node{List: true, Items: items, Dirty: true}
}

// Keyword returns Items[0]'s atom text if this is a non-empty list whose
// head is an unquoted atom, else "".
func (n *Node) Keyword() string {
	if n == nil || !n.List || len(n.Items) == 0 {
		return ""
	}
	head := n.Items[0]
	if head.List {
		return ""
	}
	return head.Atom
}

// Child returns the first child list node whose keyword matches key.
func (n *Node) Child(key string) (*Node, bool) {
	if n == nil || !n.List {
		return nil, false
	}
	for _, item := range n.Items {
		if item.Keyword() == key {
			return item, true
		}
	}
	return nil, false
}

// Children returns every child list node whose keyword matches key, in
// order.
func (n *Node) Children(key string) []*Node {
	if n == nil || !n.List {
		return nil
	}
	var out []*Node
	for _, item := range n.Items {
		if item.Keyword() == key {
			out = append(out, item)
		}
	}
	return out
}

// Arg returns the i-th element of a list node (0 is the keyword itself),
// or nil if out of range.
func (n *Node) Arg(i int) *Node {
	if n == nil || !n.List || i < 0 || i >= len(n.Items) {
		return nil
	}
	return n.Items[i]
}

// ArgCount returns the number of elements in a list node, 0 for atoms.
func (n *Node) ArgCount() int {
	if n == nil || !n.List {
		return 0
	}
	return len(n.Items)
}

// Text returns an atom's text regardless of quoting, or "" for a list.
func (n *Node) Text() string {
	if n == nil || n.List {
		return ""
	}
	return n.Atom
}

// MarkDirty flags this node (but not its children) for structured
// re-emission.
func (n *Node) MarkDirty() {
	n.Dirty = true
}

// Clone returns a deep structural copy detached from any Document, dirty
// throughout so it prints from its fields. Used when an edit needs to
// start from an existing node's shape (e.g. copying a sibling unit of a
// multi-unit symbol) without aliasing the original's children.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{List: n.List, Atom: n.Atom, Quoted: n.Quoted, Dirty: true}
	if n.List {
		c.Items = make([]*Node, len(n.Items))
		for i, item := range n.Items {
			c.Items[i] = item.Clone()
		}
	}
	return c
}
