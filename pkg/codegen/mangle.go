package codegen

import (
	"strings"

	"github.com/ftagili/spo/pkg/astree"
)

// mangleTypeUncached implements the type-mangling rule directly, with no
// memoization. It is the ground truth; mangleType (below) wraps it with
// the generator's LRU cache.
func mangleTypeUncached(n *astree.Node) string {
	if n == nil {
		return ""
	}
	if _, l, ok := n.KindLexeme(); ok {
		return l
	}
	switch n.Label {
	case "genType":
		var gname string
		if g := n.ChildByKind("id"); g != nil {
			gname = g.Lexeme()
		}
		var targ string
		if len(n.Children) > 0 {
			targ = mangleTypeUncached(n.Children[len(n.Children)-1])
		}
		return gname + "_" + targ
	case "array":
		var inner string
		if len(n.Children) > 0 {
			inner = mangleTypeUncached(n.Children[0])
		}
		return inner + "_arr"
	default:
		return n.Label
	}
}

// mangleType memoizes mangleTypeUncached per AST node: the same type node is
// frequently re-queried once per call site that references it.
func (g *Generator) mangleType(n *astree.Node) string {
	if n == nil {
		return ""
	}
	if g.mangleCache != nil {
		if v, ok := g.mangleCache.Get(n); ok {
			return v.(string)
		}
	}
	result := mangleTypeUncached(n)
	if g.mangleCache != nil {
		g.mangleCache.Add(n, result)
	}
	return result
}

// mangleFuncName implements the base rule "funcName__T1_T2_…_Tn"; a
// zero-parameter function is emitted unmangled.
func (g *Generator) mangleFuncName(base string, paramTypes []*astree.Node) string {
	if len(paramTypes) == 0 {
		return base
	}
	parts := make([]string, len(paramTypes))
	for i, t := range paramTypes {
		parts[i] = g.mangleType(t)
	}
	return base + "__" + strings.Join(parts, "_")
}

// argTypeNodes extracts the declared type node of each "arg" entry of a
// signature's args node, in order.
func argTypeNodes(args *astree.Node) []*astree.Node {
	var out []*astree.Node
	for _, a := range argListChildren(args) {
		if a.Label == "arg" {
			out = append(out, a.Child(0))
		}
	}
	return out
}

// argNames extracts the declared parameter name of each "arg" entry.
func argNames(args *astree.Node) []string {
	var out []string
	for _, a := range argListChildren(args) {
		if a.Label == "arg" {
			if idc := a.ChildByKind("id"); idc != nil {
				out = append(out, idc.Lexeme())
			}
		}
	}
	return out
}

// arity returns the declared parameter count of a signature node.
func arity(sig *astree.Node) int {
	return len(argNames(sig.Child(2)))
}
