package codegen

import (
	"strings"

	"github.com/ftagili/spo/pkg/astree"
)

// genBlock lowers a sequence of statements, stopping early once one of
// them has unconditionally transferred control away (return or break).
// It reports whether the block as a whole has terminated.
func (g *Generator) genBlock(n *astree.Node) bool {
	terminated := false
	for _, child := range n.Children {
		if terminated {
			break
		}
		terminated = g.genStmt(child)
	}
	return terminated
}

func (g *Generator) genStmt(n *astree.Node) bool {
	if n == nil {
		return false
	}
	switch n.Label {
	case "block", "stmts":
		return g.genBlock(n)
	case "vardecl":
		g.genVarDecl(n)
		return false
	case "exprStmt", "exprstmt":
		g.genExpr(n.Child(0))
		return false
	case "if":
		return g.genIf(n)
	case "while":
		return g.genWhile(n)
	case "doWhile":
		return g.genDoWhile(n)
	case "break":
		return g.genBreak()
	case "return":
		g.genReturn(n)
		return true
	default:
		g.genExpr(n)
		return false
	}
}

func (g *Generator) genVarDecl(n *astree.Node) {
	varsNode := n.Child(1)
	if varsNode == nil {
		return
	}
	children := varsNode.Children
	for i := 0; i < len(children); i += 2 {
		idNode := children[i]
		if !idNode.IsKind("id") {
			continue
		}
		e, ok := g.fn.locals.lookup(idNode.Lexeme())
		if !ok {
			continue
		}
		if i+1 >= len(children) {
			continue
		}
		opt := children[i+1]
		if opt == nil || len(opt.Children) == 0 {
			continue
		}
		g.genExpr(opt.Child(0))
		g.line("\tstg r2,%d(r11)", e.offset)
	}
}

// ifElseChild mirrors pkg/cfg's decoding of an "if" node's optional third
// child: either a literal "else"-wrapped block, or the block directly.
func ifElseChild(n *astree.Node) *astree.Node {
	if len(n.Children) < 3 {
		return nil
	}
	e := n.Child(2)
	if e == nil {
		return nil
	}
	if e.Label == "else" {
		return e.Child(0)
	}
	return e
}

// genCondBranch evaluates cond and branches to falseLabel when it does
// not hold. A top-level comparison compiles to a single `cgr` plus the
// inverted-predicate branch; any other expression is evaluated to r2 and
// compared against zero.
func (g *Generator) genCondBranch(cond *astree.Node, falseLabel string) {
	if cond.Label == "binop" {
		op := cond.Child(1).Lexeme()
		if compareOps[op] {
			g.genExpr(cond.Child(0))
			g.pushTemp()
			g.genExpr(cond.Child(2))
			g.popTemp("r3")
			g.line("\tcgr r3,r2")
			g.line("\t%s %s", invertedBranch(op), falseLabel)
			return
		}
	}
	g.genExpr(cond)
	g.line("\tcghi r2,0")
	g.line("\tje %s", falseLabel)
}

// genCondTrueBranch is genCondBranch's counterpart for do/while's tail
// test: it branches to trueLabel when cond holds.
func (g *Generator) genCondTrueBranch(cond *astree.Node, trueLabel string) {
	if cond.Label == "binop" {
		op := cond.Child(1).Lexeme()
		if compareOps[op] {
			g.genExpr(cond.Child(0))
			g.pushTemp()
			g.genExpr(cond.Child(2))
			g.popTemp("r3")
			g.line("\tcgr r3,r2")
			g.line("\t%s %s", conditionTrueBranch(op), trueLabel)
			return
		}
	}
	g.genExpr(cond)
	g.line("\tcghi r2,0")
	g.line("\tjne %s", trueLabel)
}

func (g *Generator) genIf(n *astree.Node) bool {
	elseNode := ifElseChild(n)
	hasElse := elseNode != nil

	elseLabel := g.newLabel("else")
	endLabel := g.newLabel("endif")

	g.genCondBranch(n.Child(0), elseLabel)
	thenTerm := g.genStmt(n.Child(1))

	if !hasElse {
		g.line("%s:", elseLabel)
		return false
	}

	if !thenTerm {
		g.line("\tj %s", endLabel)
	}
	g.line("%s:", elseLabel)
	elseTerm := g.genStmt(elseNode)

	if thenTerm && elseTerm {
		return true
	}
	g.line("%s:", endLabel)
	return false
}

func (g *Generator) genWhile(n *astree.Node) bool {
	headerLabel := g.newLabel("whilehead")
	exitLabel := g.newLabel("whileexit")

	g.line("%s:", headerLabel)
	g.genCondBranch(n.Child(0), exitLabel)

	g.breakPush(exitLabel)
	g.genStmt(n.Child(1))
	g.breakPop()

	g.line("\tj %s", headerLabel)
	g.line("%s:", exitLabel)
	return false
}

func (g *Generator) genDoWhile(n *astree.Node) bool {
	headerLabel := g.newLabel("dowhilehead")
	exitLabel := g.newLabel("dowhileexit")

	g.line("%s:", headerLabel)
	g.breakPush(exitLabel)
	g.genStmt(n.Child(0))
	g.breakPop()

	g.genCondTrueBranch(n.Child(1), headerLabel)
	g.line("%s:", exitLabel)
	return false
}

func (g *Generator) breakPush(label string) {
	g.fn.breakLabels = append(g.fn.breakLabels, label)
}

func (g *Generator) breakPop() {
	g.fn.breakLabels = g.fn.breakLabels[:len(g.fn.breakLabels)-1]
}

func (g *Generator) genBreak() bool {
	if len(g.fn.breakLabels) == 0 {
		g.errorComment("break used outside of a loop")
		return false
	}
	target := g.fn.breakLabels[len(g.fn.breakLabels)-1]
	g.line("\tj %s", target)
	return true
}

func (g *Generator) genReturn(n *astree.Node) {
	if len(n.Children) > 0 {
		g.genExpr(n.Child(0))
	} else {
		g.line("\tlghi r2,0")
	}
	g.line("\tj %s", g.fn.epilogueLabel)
}

func (g *Generator) genAssign(n *astree.Node) {
	target := identName(n.Child(0))
	g.genExpr(n.Child(len(n.Children) - 1))
	e, ok := g.fn.locals.lookup(target)
	if !ok {
		g.errorComment("assignment to unknown variable %q", target)
		return
	}
	g.line("\tstg r2,%d(r11)", e.offset)
}

func compoundBaseOp(n *astree.Node) string {
	if opTok := n.ChildByKind("op"); opTok != nil {
		return strings.TrimSuffix(opTok.Lexeme(), "=")
	}
	return "+"
}

// genCompoundAssign reuses the binary-operator lowering (applyBinaryOp),
// loading the current value as the left operand and storing the result
// back to the same slot.
func (g *Generator) genCompoundAssign(n *astree.Node) {
	target := identName(n.Child(0))
	e, ok := g.fn.locals.lookup(target)
	if !ok {
		g.errorComment("compound assignment to unknown variable %q", target)
		return
	}
	g.line("\tlg r2,%d(r11)", e.offset)
	g.pushTemp()
	g.genExpr(n.Child(len(n.Children) - 1))
	g.popTemp("r3")
	g.applyBinaryOp(compoundBaseOp(n))
	g.line("\tstg r2,%d(r11)", e.offset)
}

// genAssignIndex lowers a[i] = v, guarding the store so that it is
// skipped when the computed element address is 0. Only the final address
// is tested: a zero base with a nonzero index still stores.
func (g *Generator) genAssignIndex(n *astree.Node) {
	g.genIndexAddress(n.Child(0), soleExpr(n.Child(1)))
	g.pushTemp()
	g.genExpr(n.Child(2))
	g.popTemp("r3")

	skip := g.newLabel("skipstore")
	g.line("\tcghi r3,0")
	g.line("\tje %s", skip)
	g.line("\tstg r2,0(r3)")
	g.line("%s:", skip)
}

// genIndexAddress computes the address of base[index] into r2. When base
// is not itself a local, it falls back to resolving base as a field of
// `this`.
func (g *Generator) genIndexAddress(baseNode, idxNode *astree.Node) {
	baseName := identName(baseNode)
	if e, ok := g.fn.locals.lookup(baseName); ok {
		g.line("\tlg r2,%d(r11)", e.offset)
	} else if thisEntry, hasThis := g.fn.locals.lookup("this"); hasThis && baseNode.IsKind("id") {
		offset := g.lookupFieldOffset(baseName)
		g.line("\tlg r2,%d(r11)", thisEntry.offset)
		g.line("\tlg r2,%d(r2)", offset)
	} else {
		g.errorComment("cannot resolve array base %q", baseName)
		g.line("\tlghi r2,0")
	}
	g.pushTemp()
	g.genExpr(idxNode)
	g.popTemp("r3")
	g.line("\tsllg r2,r2,3")
	g.line("\tagr r2,r3")
}
