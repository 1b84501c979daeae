// Package astree implements the generic labeled tree consumed by the rest of
// this compiler: a parser external to this module produces it, and every
// downstream pass (type environment, CFG builder, code generator) walks the
// same shape.
package astree

import "strings"

// Node is a single labeled tree node. Leaves carry a label of the form
// "kind:lexeme" (e.g. "id:foo", "dec:42"); interior nodes carry a grammar
// production name (e.g. "funcDef", "block", "binop").
type Node struct {
	Label    string
	Children []*Node
}

// New builds an interior node with the given label and children.
func New(label string, children ...*Node) *Node {
	return &Node{Label: label, Children: children}
}

// Leaf builds a "kind:lexeme" leaf node.
func Leaf(kind, lexeme string) *Node {
	return &Node{Label: kind + ":" + lexeme}
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return n != nil && len(n.Children) == 0
}

// KindLexeme splits a leaf label "kind:lexeme" into its two parts. ok is
// false whenever the label has no colon, as with grammar-production labels;
// the node's children are not consulted.
func (n *Node) KindLexeme() (kind, lexeme string, ok bool) {
	if n == nil {
		return "", "", false
	}
	idx := strings.IndexByte(n.Label, ':')
	if idx < 0 {
		return "", "", false
	}
	return n.Label[:idx], n.Label[idx+1:], true
}

// Kind returns the leaf kind ("" if n is not a "kind:lexeme" leaf).
func (n *Node) Kind() string {
	k, _, _ := n.KindLexeme()
	return k
}

// Lexeme returns the leaf lexeme ("" if n is not a "kind:lexeme" leaf).
func (n *Node) Lexeme() string {
	_, l, _ := n.KindLexeme()
	return l
}

// IsKind reports whether n is a leaf of the given kind.
func (n *Node) IsKind(kind string) bool {
	k, _, ok := n.KindLexeme()
	return ok && k == kind
}

// Child returns the i-th child, or nil if out of range. Nil-safe on n.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// ChildByLabel returns the first direct child whose label equals one of the
// given labels, or nil.
func (n *Node) ChildByLabel(labels ...string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		for _, l := range labels {
			if c.Label == l {
				return c
			}
		}
	}
	return nil
}

// ChildByKind returns the first direct child that is a leaf of the given
// kind, or nil.
func (n *Node) ChildByKind(kind string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.IsKind(kind) {
			return c
		}
	}
	return nil
}
