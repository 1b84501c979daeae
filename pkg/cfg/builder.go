package cfg

import (
	"fmt"

	"github.com/ftagili/spo/pkg/astree"
)

// literalKinds lists the leaf kinds that decompose to a LITERAL op rather
// than a VAR op.
var literalKinds = map[string]bool{
	"dec": true, "hex": true, "bits": true, "bool": true, "char": true, "string": true,
}

type builder struct {
	blockID   int
	funcs     map[string]*Function
	loopStack []*Block
	errors    []Diagnostic
}

// BuildProgram lowers every funcDef found across files into a CFG and
// builds the whole-program call graph (passes A and B).
func BuildProgram(files []SourceFile) *Program {
	b := &builder{funcs: make(map[string]*Function)}
	prog := &Program{}

	for _, sf := range files {
		funcDefs := astree.Collect(sf.Root, func(n *astree.Node) bool { return n.Label == "funcDef" })
		for _, fd := range funcDefs {
			f := b.buildFunction(sf.Name, fd)
			prog.Functions = append(prog.Functions, f)
			if _, exists := b.funcs[f.Name]; !exists {
				b.funcs[f.Name] = f
			}
		}
	}

	b.buildCallGraph(prog)
	prog.Errors = b.errors
	return prog
}

func (b *builder) addError(d Diagnostic) {
	b.errors = append(b.errors, d)
}

func (b *builder) newBlock(f *Function) *Block {
	blk := &Block{ID: b.blockID}
	b.blockID++
	f.AllNodes = append(f.AllNodes, blk)
	return blk
}

func (b *builder) link(from, to *Block) {
	if from == nil || to == nil {
		return
	}
	from.Successor = to
}

func (b *builder) buildFunction(file string, fd *astree.Node) *Function {
	sig := fd.Child(0)
	body := fd.Child(1)

	f := &Function{
		Name:       identLikeName(sig.ChildByKind("id")),
		ReturnType: typeNameOf(sig.Child(0)),
		Parameters: extractParams(sig),
		SourceFile: file,
	}
	if f.Name == "" {
		f.Name = identLikeName(sig.ChildByKind("IDENTIFIER"))
	}

	entry := b.newBlock(f)
	entry.IsEntry = true
	exit := b.newBlock(f)
	exit.IsExit = true
	f.Entry = entry
	f.Exit = exit

	cur, terminated := b.buildStmt(f, body, entry)
	if !terminated {
		b.link(cur, exit)
	}
	return f
}

func extractParams(sig *astree.Node) []Param {
	args := sig.Child(2)
	if args == nil {
		return nil
	}
	var params []Param
	for _, a := range argListChildren(args) {
		if a.Label == "arg" {
			var name, typ string
			if t := a.Child(0); t != nil {
				typ = typeNameOf(t)
			}
			if idc := a.ChildByKind("id"); idc != nil {
				name = idc.Lexeme()
			}
			params = append(params, Param{Name: name, Type: typ})
		} else if a.IsKind("id") {
			params = append(params, Param{Name: a.Lexeme()})
		}
	}
	return params
}

// buildStmt lowers one statement, threading the current block. It returns
// the new current block and whether this path has already terminated (its
// last block already carries a successor to the function exit or a loop
// exit, so the caller must not link it further).
func (b *builder) buildStmt(f *Function, n *astree.Node, cur *Block) (*Block, bool) {
	if n == nil {
		return cur, false
	}
	switch n.Label {
	case "block", "stmts":
		return b.buildSequence(f, n, cur)
	case "vardecl":
		blk := b.newBlock(f)
		b.link(cur, blk)
		blk.Ops = b.decomposeVarDecl(n)
		return blk, false
	case "exprStmt", "exprstmt":
		blk := b.newBlock(f)
		b.link(cur, blk)
		blk.Ops = []*Op{b.decomposeExpr(n.Child(0))}
		return blk, false
	case "if":
		return b.buildIf(f, n, cur)
	case "while":
		return b.buildWhile(f, n, cur)
	case "doWhile":
		return b.buildDoWhile(f, n, cur)
	case "break":
		return b.buildBreak(f, n, cur)
	case "return":
		return b.buildReturn(f, n, cur)
	default:
		blk := b.newBlock(f)
		b.link(cur, blk)
		blk.Ops = []*Op{b.decomposeExpr(n)}
		return blk, false
	}
}

func (b *builder) buildSequence(f *Function, n *astree.Node, cur *Block) (*Block, bool) {
	terminated := false
	for _, child := range n.Children {
		if terminated {
			break
		}
		cur, terminated = b.buildStmt(f, child, cur)
	}
	return cur, terminated
}

func (b *builder) buildIf(f *Function, n *astree.Node, cur *Block) (*Block, bool) {
	condBlk := b.newBlock(f)
	b.link(cur, condBlk)
	condBlk.Ops = []*Op{b.decomposeCond(n.Child(0))}

	thenStart := b.newBlock(f)
	condBlk.SuccessorTrue = thenStart
	thenEnd, thenTerm := b.buildStmt(f, n.Child(1), thenStart)

	elseNode := ifElseChild(n)
	hasElse := elseNode != nil
	var elseEnd *Block
	elseTerm := false
	if hasElse {
		elseStart := b.newBlock(f)
		condBlk.SuccessorFalse = elseStart
		elseEnd, elseTerm = b.buildStmt(f, elseNode, elseStart)
	}

	if thenTerm && hasElse && elseTerm {
		return nil, true
	}

	merge := b.newBlock(f)
	if !hasElse {
		condBlk.SuccessorFalse = merge
	}
	if !thenTerm {
		b.link(thenEnd, merge)
	}
	if hasElse && !elseTerm {
		b.link(elseEnd, merge)
	}
	return merge, false
}

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

func (b *builder) buildWhile(f *Function, n *astree.Node, cur *Block) (*Block, bool) {
	header := b.newBlock(f)
	b.link(cur, header)
	header.Ops = []*Op{b.decomposeCond(n.Child(0))}

	loopExit := b.newBlock(f)
	header.SuccessorFalse = loopExit

	bodyStart := b.newBlock(f)
	header.SuccessorTrue = bodyStart

	b.loopStack = append(b.loopStack, loopExit)
	bodyEnd, bodyTerm := b.buildStmt(f, n.Child(1), bodyStart)
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	if !bodyTerm {
		b.link(bodyEnd, header)
	}
	return loopExit, false
}

func (b *builder) buildDoWhile(f *Function, n *astree.Node, cur *Block) (*Block, bool) {
	bodyStart := b.newBlock(f)
	b.link(cur, bodyStart)

	loopExit := b.newBlock(f)
	b.loopStack = append(b.loopStack, loopExit)
	bodyEnd, bodyTerm := b.buildStmt(f, n.Child(0), bodyStart)
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	condBlk := b.newBlock(f)
	if !bodyTerm {
		b.link(bodyEnd, condBlk)
	}
	condBlk.Ops = []*Op{b.decomposeCond(n.Child(1))}
	condBlk.SuccessorTrue = bodyStart
	condBlk.SuccessorFalse = loopExit

	return loopExit, false
}

func (b *builder) buildBreak(f *Function, n *astree.Node, cur *Block) (*Block, bool) {
	blk := b.newBlock(f)
	b.link(cur, blk)
	blk.Ops = []*Op{{Kind: BREAK, OpName: "break", Node: n}}

	if len(b.loopStack) == 0 {
		b.addError(Diagnostic{
			Kind: BreakOutsideLoop, Message: "break used outside of a loop",
			FunctionName: f.Name, SourceFile: f.SourceFile,
		})
		return blk, false
	}
	target := b.loopStack[len(b.loopStack)-1]
	blk.Successor = target
	return nil, true
}

func (b *builder) buildReturn(f *Function, n *astree.Node, cur *Block) (*Block, bool) {
	blk := b.newBlock(f)
	b.link(cur, blk)

	op := &Op{Kind: RETURN, OpName: "return", Node: n}
	if len(n.Children) > 0 {
		op.Operands = []*Op{b.decomposeExpr(n.Child(0))}
	}
	blk.Ops = []*Op{op}
	blk.Successor = f.Exit
	return nil, true
}

func (b *builder) decomposeVarDecl(n *astree.Node) []*Op {
	varsNode := n.Child(1)
	if varsNode == nil {
		return nil
	}
	children := varsNode.Children
	var ops []*Op
	for i := 0; i < len(children); i += 2 {
		idNode := children[i]
		if !idNode.IsKind("id") {
			continue
		}
		op := &Op{Kind: VARDECL, OpName: idNode.Lexeme(), Node: n}
		if i+1 < len(children) {
			if opt := children[i+1]; opt != nil && len(opt.Children) > 0 {
				op.Operands = []*Op{b.decomposeExpr(opt.Child(0))}
			}
		}
		ops = append(ops, op)
	}
	return ops
}

func (b *builder) decomposeCond(n *astree.Node) *Op {
	inner := b.decomposeExpr(n)
	return &Op{Kind: COND, OpName: inner.OpName, Node: inner.Node, Operands: []*Op{inner}}
}

func (b *builder) decomposeExpr(n *astree.Node) *Op {
	if n == nil {
		return &Op{Kind: LITERAL, OpName: "0"}
	}
	if k, l, ok := n.KindLexeme(); ok {
		if k == "id" {
			return &Op{Kind: VAR, OpName: l, Node: n}
		}
		if literalKinds[k] {
			return &Op{Kind: LITERAL, OpName: l, Node: n}
		}
		return &Op{Kind: VAR, OpName: l, Node: n}
	}

	switch n.Label {
	case "binop":
		return &Op{
			Kind: BINOP, OpName: n.Child(1).Lexeme(), Node: n,
			Operands: []*Op{b.decomposeExpr(n.Child(0)), b.decomposeExpr(n.Child(2))},
		}
	case "unop":
		return &Op{
			Kind: UNOP, OpName: n.Child(0).Lexeme(), Node: n,
			Operands: []*Op{b.decomposeExpr(n.Child(1))},
		}
	case "call":
		name := identLikeName(n.Child(0))
		ops := []*Op{{Kind: VAR, OpName: name, Node: n.Child(0)}}
		for _, a := range argListChildren(n.Child(1)) {
			ops = append(ops, b.decomposeExpr(a))
		}
		return &Op{Kind: CALL, OpName: name, Node: n, Operands: ops}
	case "index":
		return &Op{
			Kind: INDEX, OpName: "index", Node: n,
			Operands: []*Op{b.decomposeExpr(n.Child(0)), b.decomposeExpr(soleExpr(n.Child(1)))},
		}
	case "fieldAccess":
		name := identLikeName(n.Child(1))
		return &Op{Kind: FIELD_ACCESS, OpName: name, Node: n, Operands: []*Op{b.decomposeExpr(n.Child(0))}}
	case "methodCall":
		name := identLikeName(n.Child(1))
		ops := []*Op{b.decomposeExpr(n.Child(0))}
		for _, a := range argListChildren(n.Child(2)) {
			ops = append(ops, b.decomposeExpr(a))
		}
		return &Op{Kind: METHOD_CALL, OpName: name, Node: n, Operands: ops}
	case "new":
		name := identLikeName(n.Child(0))
		var ops []*Op
		for _, a := range argListChildren(n.Child(1)) {
			ops = append(ops, b.decomposeExpr(a))
		}
		return &Op{Kind: NEW, OpName: name, Node: n, Operands: ops}
	case "address":
		return &Op{Kind: VAR, OpName: "&" + identLikeName(n.Child(0)), Node: n}
	case "assign":
		target := identLikeName(n.Child(0))
		value := b.decomposeExpr(n.Child(len(n.Children) - 1))
		return &Op{Kind: ASSIGN, OpName: target, Node: n, Operands: []*Op{value}}
	case "compound_assign":
		target := identLikeName(n.Child(0))
		opName := target
		if opTok := n.ChildByKind("op"); opTok != nil {
			opName = target + " " + opTok.Lexeme()
		}
		value := b.decomposeExpr(n.Child(len(n.Children) - 1))
		return &Op{Kind: ASSIGN, OpName: opName, Node: n, Operands: []*Op{value}}
	case "assign_index":
		base := b.decomposeExpr(n.Child(0))
		idx := b.decomposeExpr(n.Child(1))
		val := b.decomposeExpr(n.Child(2))
		return &Op{Kind: ASSIGN, OpName: "index", Node: n, Operands: []*Op{base, idx, val}}
	default:
		return &Op{Kind: LITERAL, OpName: n.Label, Node: n}
	}
}

// argListChildren returns the entries of an args/arglist node, unwrapping
// the single "arglist"/"list" wrapper child some parser productions insert
// between "args" and the actual argument expressions.
func argListChildren(n *astree.Node) []*astree.Node {
	if n == nil {
		return nil
	}
	if len(n.Children) == 1 {
		if c := n.Children[0]; c.Label == "arglist" || c.Label == "list" {
			return c.Children
		}
	}
	return n.Children
}

// soleExpr unwraps an expression wrapped in an args/arglist/list container
// (an index subscript, typically).
func soleExpr(n *astree.Node) *astree.Node {
	if n == nil {
		return nil
	}
	switch n.Label {
	case "args", "arglist", "list":
		kids := argListChildren(n)
		if len(kids) > 0 {
			return kids[0]
		}
		if len(n.Children) > 0 {
			return n.Children[0]
		}
		return nil
	}
	return n
}

func identLikeName(n *astree.Node) string {
	if n == nil {
		return ""
	}
	if k, l, ok := n.KindLexeme(); ok {
		switch k {
		case "id", "type", "typeRef", "IDENTIFIER":
			return l
		}
	}
	return n.Label
}

func typeNameOf(n *astree.Node) string {
	if n == nil {
		return ""
	}
	if _, l, ok := n.KindLexeme(); ok {
		return l
	}
	if t := n.ChildByKind("id"); t != nil {
		return t.Lexeme()
	}
	return n.Label
}

func (b *builder) buildCallGraph(prog *Program) {
	seen := make(map[[2]string]bool)
	for _, f := range prog.Functions {
		for _, blk := range f.AllNodes {
			for _, op := range blk.Ops {
				b.collectCalls(f, op, seen, prog)
			}
		}
	}
}

func (b *builder) collectCalls(f *Function, op *Op, seen map[[2]string]bool, prog *Program) {
	if op == nil {
		return
	}
	if op.Kind == CALL {
		key := [2]string{f.Name, op.OpName}
		if !seen[key] {
			seen[key] = true
			edge := CallEdge{Caller: f.Name, CalleeName: op.OpName}
			if callee, ok := b.funcs[op.OpName]; ok {
				edge.Callee = callee
			} else {
				b.addError(Diagnostic{
					Kind: UnknownFunction, Message: fmt.Sprintf("unresolved call to %q", op.OpName),
					FunctionName: f.Name, SourceFile: f.SourceFile,
				})
			}
			prog.CallGraph = append(prog.CallGraph, edge)
		}
	}
	for _, operand := range op.Operands {
		b.collectCalls(f, operand, seen, prog)
	}
}
