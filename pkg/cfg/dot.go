package cfg

import (
	"fmt"
	"strings"
)

// escapeDOT replaces the characters Graphviz requires escaped inside a
// quoted string label.
func escapeDOT(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
	)
	return r.Replace(s)
}

// RenderFunctionDOT renders one function's CFG as Graphviz DOT. knownFuncs
// is the set of defined function names in the whole program, used only to
// color CALL ellipses that cannot resolve.
func RenderFunctionDOT(f *Function, knownFuncs map[string]bool) string {
	var out strings.Builder
	fmt.Fprintf(&out, "digraph CFG_%s {\n", f.Name)

	opCounter := 0
	for _, blk := range f.AllNodes {
		fmt.Fprintf(&out, "  block_%d [shape=square,label=\"#%d\"];\n", blk.ID, blk.ID)
		for _, op := range blk.Ops {
			renderOpNode(&out, blk.ID, op, &opCounter, knownFuncs)
		}
	}

	for _, blk := range f.AllNodes {
		switch {
		case blk.IsConditional():
			if blk.SuccessorTrue != nil {
				fmt.Fprintf(&out, "  block_%d -> block_%d [label=\"true\"];\n", blk.ID, blk.SuccessorTrue.ID)
			}
			if blk.SuccessorFalse != nil {
				fmt.Fprintf(&out, "  block_%d -> block_%d [label=\"false\"];\n", blk.ID, blk.SuccessorFalse.ID)
			}
		case blk.Successor != nil:
			fmt.Fprintf(&out, "  block_%d -> block_%d;\n", blk.ID, blk.Successor.ID)
		}
	}

	out.WriteString("}\n")
	return out.String()
}

// renderOpNode renders op (and recursively its operand tree) as ellipse
// nodes, with a solid edge from the owning block and from each op to its
// operands.
func renderOpNode(out *strings.Builder, blockID int, op *Op, counter *int, knownFuncs map[string]bool) int {
	id := 10000 + *counter
	*counter++

	color := "lightgreen"
	if op.Kind == CALL && knownFuncs != nil && !knownFuncs[op.OpName] {
		color = "lightcoral"
	}

	label := fmt.Sprintf("%s(%s)@0:0", op.Kind.String(), op.OpName)
	fmt.Fprintf(out, "  op_%d [shape=ellipse,style=filled,fillcolor=%s,label=\"%s\"];\n", id, color, escapeDOT(label))
	fmt.Fprintf(out, "  block_%d -> op_%d;\n", blockID, id)

	for _, operand := range op.Operands {
		childID := renderOpNode(out, blockID, operand, counter, knownFuncs)
		fmt.Fprintf(out, "  op_%d -> op_%d;\n", id, childID)
	}
	return id
}

// RenderCallGraphDOT renders the whole-program call graph as Graphviz DOT.
// Edges to an unresolved callee are dashed and red.
func RenderCallGraphDOT(prog *Program) string {
	var out strings.Builder
	out.WriteString("digraph CallGraph {\n")

	seenNode := make(map[string]bool)
	declareNode := func(name string) {
		if seenNode[name] {
			return
		}
		seenNode[name] = true
		fmt.Fprintf(&out, "  \"%s\";\n", escapeDOT(name))
	}
	for _, e := range prog.CallGraph {
		declareNode(e.Caller)
		declareNode(e.CalleeName)
	}

	for _, e := range prog.CallGraph {
		if e.Callee == nil {
			fmt.Fprintf(&out, "  \"%s\" -> \"%s\" [style=dashed,color=red];\n",
				escapeDOT(e.Caller), escapeDOT(e.CalleeName))
		} else {
			fmt.Fprintf(&out, "  \"%s\" -> \"%s\";\n", escapeDOT(e.Caller), escapeDOT(e.CalleeName))
		}
	}

	out.WriteString("}\n")
	return out.String()
}

// KnownFunctionNames returns the set of defined function names in prog, for
// use as RenderFunctionDOT's knownFuncs argument.
func KnownFunctionNames(prog *Program) map[string]bool {
	out := make(map[string]bool, len(prog.Functions))
	for _, f := range prog.Functions {
		out[f.Name] = true
	}
	return out
}
