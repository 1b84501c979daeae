package codegen

import (
	"strings"

	"github.com/ftagili/spo/pkg/astree"
	"github.com/ftagili/spo/pkg/runtimeabi"
)

// genBinop lowers a two-operand arithmetic or comparison expression,
// leaving the value form (0/1 for comparisons) in r2.
func (g *Generator) genBinop(n *astree.Node) {
	opName := n.Child(1).Lexeme()
	g.genExpr(n.Child(0))
	g.pushTemp()
	g.genExpr(n.Child(2))
	g.popTemp("r3")
	g.applyBinaryOp(opName)
}

// applyBinaryOp assumes r3 holds the left operand and r2 the right, and
// leaves the result in r2.
func (g *Generator) applyBinaryOp(opName string) {
	switch opName {
	case "+":
		g.line("\tagr r3,r2")
		g.line("\tlgr r2,r3")
	case "-":
		g.line("\tsgr r3,r2")
		g.line("\tlgr r2,r3")
	case "*":
		g.line("\tmsgr r3,r2")
		g.line("\tlgr r2,r3")
	case "/", "%":
		g.line("\tlgr r1,r3")
		g.line("\tsrag r0,r1,63")
		g.line("\tdsgr r0,r2")
		if opName == "/" {
			g.line("\tlgr r2,r1")
		} else {
			g.line("\tlgr r2,r0")
		}
	case "<", "<=", ">", ">=", "==", "!=":
		g.line("\tcgr r3,r2")
		trueLbl := g.newLabel("cmpt")
		endLbl := g.newLabel("cmpe")
		g.line("\t%s %s", conditionTrueBranch(opName), trueLbl)
		g.line("\tlghi r2,0")
		g.line("\tj %s", endLbl)
		g.line("%s:", trueLbl)
		g.line("\tlghi r2,1")
		g.line("%s:", endLbl)
	default:
		g.errorComment("unsupported binary operator %q", opName)
		g.line("\tlghi r2,0")
	}
}

func (g *Generator) genUnop(n *astree.Node) {
	opName := n.Child(0).Lexeme()
	g.genExpr(n.Child(1))
	switch opName {
	case "-":
		g.line("\tlcgr r2,r2")
	case "!":
		g.line("\tcghi r2,0")
		trueLbl := g.newLabel("nott")
		endLbl := g.newLabel("note")
		g.line("\tje %s", trueLbl)
		g.line("\tlghi r2,0")
		g.line("\tj %s", endLbl)
		g.line("%s:", trueLbl)
		g.line("\tlghi r2,1")
		g.line("%s:", endLbl)
	default:
		g.errorComment("unsupported unary operator %q", opName)
		g.line("\tlghi r2,0")
	}
}

// evalArgsIntoRegisters evaluates each argument left to right, pushing
// its result, then pops them back in reverse order into r2..r6. It does
// not check the count itself: its callers emit the diagnostic for more
// than five arguments and do not call it in that case.
func (g *Generator) evalArgsIntoRegisters(args []*astree.Node) {
	for _, a := range args {
		g.genExpr(a)
		g.pushTemp()
	}
	argRegs := []string{"r2", "r3", "r4", "r5", "r6"}
	for i := len(args) - 1; i >= 0; i-- {
		g.popTemp(argRegs[i])
	}
}

// genCall lowers a plain call(f, args) expression, resolving f to a
// concrete symbol per resolveCallTarget.
func (g *Generator) genCall(n *astree.Node) {
	name := identName(n.Child(0))
	args := argListChildren(n.Child(1))
	if len(args) > 5 {
		g.errorComment("call to %q has more than 5 arguments", name)
		g.line("\tlghi r2,0")
		return
	}

	target := g.resolveCallTarget(name, len(args))
	g.evalArgsIntoRegisters(args)
	g.line("\tbrasl r14,%s", target)

	if flushesOutput(target) {
		g.line("\tlarl r2,%s", runtimeabi.StdoutSymbol)
		g.line("\tlg r2,0(r2)")
		g.line("\tbrasl r14,%s", runtimeabi.FflushSymbol)
	}
}

// resolveCallTarget implements four-tier call resolution:
//  1. f is already a defined or allow-listed symbol: call it directly.
//  2. Inside a method and f is unqualified: try <Class>__f.
//  3. Search defined names for f__..., preferring an arity match.
//  4. Fall back to a direct call to f and rely on the linker.
func (g *Generator) resolveCallTarget(f string, argCount int) string {
	if _, ok := g.definedNames[f]; ok || g.isAllowlisted(f) {
		return f
	}
	if prefix := g.currentClassPrefix(); prefix != "" && !strings.Contains(f, "__") {
		return prefix + "__" + f
	}
	if target, ok := g.searchBySuffix(f, argCount); ok {
		return target
	}
	return f
}

// searchBySuffix finds a defined mangled name "<name>__..." (an
// overloaded top-level function), preferring an arity match over the
// first hit encountered.
func (g *Generator) searchBySuffix(name string, argCount int) (string, bool) {
	prefix := name + "__"
	var first string
	found := false
	for _, mangled := range g.definedOrder {
		if !strings.HasPrefix(mangled, prefix) {
			continue
		}
		if !found {
			first = mangled
			found = true
		}
		if g.definedNames[mangled].arity == argCount {
			return mangled, true
		}
	}
	if found {
		return first, true
	}
	return "", false
}

// genMethodCall lowers obj.method(args), resolving the target method
// symbol through resolveMethodTarget's dispatch chain and falling back to
// a vtable-indirected call to unknown_method when no better match exists.
func (g *Generator) genMethodCall(n *astree.Node) {
	objNode := n.Child(0)
	method := identName(n.Child(1))
	args := argListChildren(n.Child(2))
	allArgs := append([]*astree.Node{objNode}, args...)

	if len(allArgs) > 5 {
		g.errorComment("method call to %q has more than 5 arguments", method)
		g.line("\tlghi r2,0")
		return
	}

	target, vtableFallback := g.resolveMethodTarget(objNode, method, len(allArgs))
	g.evalArgsIntoRegisters(allArgs)

	if vtableFallback {
		g.line("\tlg r1,0(r2)")
		g.line("\tbrasl r14,%s", runtimeabi.UnknownMethodSymbol)
		return
	}
	g.line("\tbrasl r14,%s", target)
}

// resolveMethodTarget implements method dispatch rules:
//  1. Static dispatch: the receiver is a local with a known static type.
//  2. Arity-matched name+suffix lookup across all defined methods.
//  3. First-suffix fallback, dropping the arity constraint.
//  4. Vtable indirection through the runtime's unknown_method trampoline.
func (g *Generator) resolveMethodTarget(objNode *astree.Node, method string, totalArgs int) (target string, vtableFallback bool) {
	if objNode.IsKind("id") {
		if e, ok := g.fn.locals.lookup(objNode.Lexeme()); ok && e.staticType != "" {
			return e.staticType + "__" + method, false
		}
	}
	if t, ok := g.searchMethodBySuffix(method, totalArgs, true); ok {
		return t, false
	}
	if t, ok := g.searchMethodBySuffix(method, totalArgs, false); ok {
		return t, false
	}
	return "unknown_method", true
}

// searchMethodBySuffix finds a defined mangled name whose suffix after
// its last "__" equals method.
func (g *Generator) searchMethodBySuffix(method string, totalArgs int, requireArity bool) (string, bool) {
	var first string
	found := false
	for _, mangled := range g.definedOrder {
		idx := strings.LastIndex(mangled, "__")
		if idx < 0 || mangled[idx+2:] != method {
			continue
		}
		if !found {
			first = mangled
			found = true
		}
		if requireArity && g.definedNames[mangled].arity == totalArgs {
			return mangled, true
		}
	}
	if found && !requireArity {
		return first, true
	}
	return "", false
}
