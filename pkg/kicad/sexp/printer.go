package sexp

import (
	"bytes"
	"strings"
)

// Print renders a node to canonical text. A node that was parsed from a
// document, and neither it nor any descendant was marked Dirty, re-emits
// its exact original bytes — this is the mechanism that keeps opaque
// blobs (and untouched parts of edited nodes) byte-stable across a sync.
// Any other node (freshly built, mutated itself, or holding a mutated
// descendant) is re-serialized from its structured Items, each at the
// given indent level.
func Print(n *Node, indent int) string {
	var buf bytes.Buffer
	writeNode(&buf, n, indent)
	return buf.String()
}

// PrintDocument renders every top-level form, one per line, followed by
// a trailing newline, matching KiCad's own file layout.
func PrintDocument(doc *Document) string {
	var buf bytes.Buffer
	for i, form := range doc.Forms {
		if i > 0 {
			buf.WriteByte('\n')
		}
		writeNode(&buf, form, 0)
	}
	buf.WriteByte('\n')
	return buf.String()
}

func writeNode(buf *bytes.Buffer, n *Node, indent int) {
	if n == nil {
		return
	}
	var dirty func(m *Node) bool
	dirty = func(m *Node) bool {
		if m.Dirty {
			return true
		}
		for _, item := range m.Items {
			if dirty(item) {
				return true
			}
		}
		return false
	}
	if n.doc != nil && !dirty(n) {
		buf.Write(n.Raw())
		return
	}
	if !n.List {
		writeAtom(buf, n)
		return
	}

	buf.WriteByte('(')
	for i, item := range n.Items {
		if i > 0 {
			if needsOwnLine(n, item) {
				buf.WriteByte('\n')
				buf.WriteString(strings.Repeat("  ", indent+1))
			} else {
				buf.WriteByte(' ')
			}
		}
		writeNode(buf, item, indent+1)
	}
	if hasMultilineChild(n) {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat("  ", indent))
	}
	buf.WriteByte(')')
}

func writeAtom(buf *bytes.Buffer, n *Node) {
	if !n.Quoted {
		buf.WriteString(n.Atom)
		return
	}
	buf.WriteByte('"')
	buf.WriteString(strings.ReplaceAll(n.Atom, `"`, `""`))
	buf.WriteByte('"')
}

// needsOwnLine decides whether item (the i-th child of parent, i>0)
// starts a new indented line rather than continuing inline. Structural
// list children (nested lists) get their own line; scalar trailing
// arguments (numbers, flags) stay inline with the keyword.
func needsOwnLine(parent *Node, item *Node) bool {
	return item.List && hasMultilineChild(parent)
}

// hasMultilineChild reports whether any child of n is itself a list,
// which is our signal that n should be printed one child per line
// instead of entirely inline.
func hasMultilineChild(n *Node) bool {
	for i, item := range n.Items {
		if i == 0 {
			continue
		}
		if item.List {
			return true
		}
	}
	return false
}
