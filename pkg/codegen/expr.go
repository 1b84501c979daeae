package codegen

import (
	"github.com/ftagili/spo/pkg/astree"
	"github.com/ftagili/spo/pkg/runtimeabi"
)

// pushTemp pushes r2 onto the scratch stack addressed by r12.
func (g *Generator) pushTemp() {
	g.line("\taghi r12,-8")
	g.line("\tstg r2,0(r12)")
}

// popTemp pops the top scratch-stack slot into reg.
func (g *Generator) popTemp(reg string) {
	g.line("\tlg %s,0(r12)", reg)
	g.line("\taghi r12,8")
}

// genExpr lowers any expression node so that its value ends up in r2.
func (g *Generator) genExpr(n *astree.Node) {
	if n == nil {
		g.line("\tlghi r2,0")
		return
	}
	if k, l, ok := n.KindLexeme(); ok {
		switch k {
		case "id":
			g.genLoadVar(l)
		case "dec", "hex", "bits", "bool", "char":
			v, ok := parseIntLiteral(k, l)
			if !ok {
				g.errorComment("malformed literal %q", l)
				g.line("\tlghi r2,0")
				return
			}
			g.genLoadImmediate(v)
		case "string":
			idx := g.strings.intern(l)
			g.line("\tlarl r2,%s", g.strings.label(idx))
		default:
			g.errorComment("unsupported leaf %s:%s", k, l)
			g.line("\tlghi r2,0")
		}
		return
	}

	switch n.Label {
	case "binop":
		g.genBinop(n)
	case "unop":
		g.genUnop(n)
	case "call":
		g.genCall(n)
	case "index":
		g.genIndexRead(n)
	case "fieldAccess":
		g.genFieldAccess(n)
	case "methodCall":
		g.genMethodCall(n)
	case "new":
		g.genNew(n)
	case "address":
		g.genAddress(n)
	case "assign":
		g.genAssign(n)
	case "compound_assign":
		g.genCompoundAssign(n)
	case "assign_index":
		g.genAssignIndex(n)
	default:
		g.errorComment("unsupported expression node %q", n.Label)
		g.line("\tlghi r2,0")
	}
}

func (g *Generator) genLoadImmediate(v int64) {
	if v >= -32768 && v <= 32767 {
		g.line("\tlghi r2,%d", v)
		return
	}
	idx := g.ints.intern(v)
	g.line("\tlarl r2,%s", g.ints.label(idx))
	g.line("\tlg r2,0(r2)")
}

func (g *Generator) genLoadVar(name string) {
	e, ok := g.fn.locals.lookup(name)
	if !ok {
		g.errorComment("unknown variable %q", name)
		g.line("\tlghi r2,0")
		return
	}
	g.line("\tlg r2,%d(r11)", e.offset)
}

// genAddress lowers &id, loading r11 + offset(id) into r2.
func (g *Generator) genAddress(n *astree.Node) {
	name := identName(n.Child(0))
	e, ok := g.fn.locals.lookup(name)
	if !ok {
		g.errorComment("address-of unknown variable %q", name)
		g.line("\tlghi r2,0")
		return
	}
	g.line("\tla r2,%d(r11)", e.offset)
}

// genIndexRead lowers a[i]: base and index are evaluated, the index is
// scaled by the 8-byte element size, and the element is loaded.
func (g *Generator) genIndexRead(n *astree.Node) {
	g.genExpr(n.Child(0))
	g.pushTemp()
	g.genExpr(soleExpr(n.Child(1)))
	g.popTemp("r3")
	g.line("\tsllg r2,r2,3")
	g.line("\tagr r2,r3")
	g.line("\tlg r2,0(r2)")
}

// genFieldAccess loads obj.field: the object is evaluated, its field
// offset is resolved against the flat field table (preferring the
// current class when ambiguous), and the field word is loaded.
func (g *Generator) genFieldAccess(n *astree.Node) {
	fieldName := identName(n.Child(1))
	g.genExpr(n.Child(0))
	g.line("\tlgr r3,r2")
	offset := g.lookupFieldOffset(fieldName)
	g.line("\tlg r2,%d(r3)", offset)
}

// genNew lowers `new ClassName(args)`: allocate via the runtime ABI,
// install the class's vtable pointer, and leave the object pointer in
// r2. Constructor arguments are not supported by this backend and are
// only noted. The class is registered as needing a vtable even if it has
// no class AST of its own.
func (g *Generator) genNew(n *astree.Node) {
	className := identName(n.Child(0))
	if len(argListChildren(n.Child(1))) > 0 {
		g.comment("constructor arguments to %s ignored", className)
	}
	g.line("\tlghi r2,16")
	g.line("\tbrasl r14,%s", runtimeabi.MallocSymbol)
	g.line("\tlgr r3,r2")
	g.line("\tlarl r2,%s_vtable", className)
	g.line("\tstg r2,0(r3)")
	g.line("\tlgr r2,r3")
	g.markVtableNeeded(className)
}

// lookupFieldOffset resolves fieldName's byte offset within an object of
// the current class, memoized via the generator's offset cache. This uses a flat,
// heuristic table rather than the type environment's resolved layout.
func (g *Generator) lookupFieldOffset(fieldName string) int {
	prefix := g.currentClassPrefix()
	key := prefix + "\x00" + fieldName
	if g.offsetCache != nil {
		if v, ok := g.offsetCache.Get(key); ok {
			return v.(int)
		}
	}
	offset := g.computeFieldOffset(prefix, fieldName)
	if g.offsetCache != nil {
		g.offsetCache.Add(key, offset)
	}
	return offset
}

func (g *Generator) computeFieldOffset(prefix, fieldName string) int {
	if prefix != "" {
		for _, f := range g.fieldTable {
			if f.name == fieldName && f.class == prefix {
				return f.offset
			}
		}
	}
	for _, f := range g.fieldTable {
		if f.name == fieldName {
			return f.offset
		}
	}
	return 8
}
