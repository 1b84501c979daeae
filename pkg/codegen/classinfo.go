package codegen

import "github.com/ftagili/spo/pkg/astree"

// classMembers unwraps a class node's member list, descending through
// "member" wrapper nodes, nested ones included (mirrors pkg/typeenv's
// collectDeclFrom, which faces the same ambiguous grammar shape).
func classMembers(cn *astree.Node) []*astree.Node {
	container := cn
	if c := cn.ChildByLabel("members"); c != nil {
		container = c
	}
	var out []*astree.Node
	var walk func(*astree.Node)
	walk = func(n *astree.Node) {
		if n.Label == "member" {
			for _, c := range n.Children {
				walk(c)
			}
			return
		}
		out = append(out, n)
	}
	for _, c := range container.Children {
		walk(c)
	}
	return out
}

func isMethodLabel(l string) bool {
	switch l {
	case "funcDef", "funcDecl", "methodDef", "methodDecl":
		return true
	}
	return false
}

func isFieldLabel(l string) bool {
	switch l {
	case "vardecl", "fieldDecl", "field":
		return true
	}
	return false
}

func fieldNamesOf(m *astree.Node) []string {
	if m.Label == "vardecl" {
		varsNode := m.Child(1)
		var names []string
		if varsNode != nil {
			for i := 0; i < len(varsNode.Children); i += 2 {
				idNode := varsNode.Children[i]
				if idNode.IsKind("id") {
					names = append(names, idNode.Lexeme())
				}
			}
		}
		return names
	}
	var names []string
	for _, c := range m.Children {
		if c.IsKind("id") {
			names = append(names, c.Lexeme())
		}
	}
	return names
}

// registerClassFields populates the generator's flat field table for one
// class: offsets start at 8, each field taking 8 bytes, in declaration
// order (pass 3).
func (g *Generator) registerClassFields(className string, cn *astree.Node) {
	offset := 8
	for _, m := range classMembers(cn) {
		if !isFieldLabel(m.Label) {
			continue
		}
		for _, name := range fieldNamesOf(m) {
			g.fieldTable = append(g.fieldTable, fieldEntry{class: className, name: name, offset: offset})
			offset += 8
		}
	}
}

// synthesizeMethodFuncDef builds the top-level funcDef a method is
// lifted into: its signature gains a leading `this : ClassName`
// parameter and its name becomes the final "<ClassName>__<method>"
// symbol directly, bypassing the usual arg-type mangling.
func (g *Generator) synthesizeMethodFuncDef(className string, m *astree.Node) *astree.Node {
	sig := m.Child(0)
	if sig == nil || sig.Label != "signature" {
		sig = m
	}
	methodName := identName(sig.ChildByKind("id"))
	returnType := sig.Child(0)

	thisArg := astree.New("arg", astree.Leaf("type", className), astree.Leaf("id", "this"))
	origArgs := argListChildren(sig.Child(2))
	newArgsChildren := append([]*astree.Node{thisArg}, origArgs...)
	newArgs := astree.New("args", newArgsChildren...)

	newSig := astree.New("signature", returnType, astree.Leaf("id", className+"__"+methodName), newArgs)

	body := m.Child(1)
	if body == nil {
		body = astree.New("block")
	}
	return astree.New("funcDef", newSig, body)
}

// liftMethods walks every top-level class, registers its field layout,
// and appends a synthesized top-level funcDef for each declared method
// (pass 3).
func (g *Generator) liftMethods(items *astree.Node) {
	var classNodes []*astree.Node
	for _, it := range items.Children {
		if it.Label == "class" {
			classNodes = append(classNodes, it)
		}
	}

	for _, cn := range classNodes {
		className := identName(cn.ChildByKind("id"))
		if className == "" {
			continue
		}
		g.classesWithAST[className] = true
		g.registerClassFields(className, cn)

		for _, m := range classMembers(cn) {
			if !isMethodLabel(m.Label) {
				continue
			}
			synth := g.synthesizeMethodFuncDef(className, m)
			items.Children = append(items.Children, synth)
			g.registerFuncDef(synth)
		}
	}
}

// emitTypeInfo writes the per-class type-info records (name, base,
// size, field table) backed by the resolved type environment, plus a
// placeholder vtable for every class seen either here or via `new`
// (pass 5).
func (g *Generator) emitTypeInfo() {
	classNames := []string{}
	if g.env != nil {
		classNames = g.env.ClassNames()
	}

	if len(classNames) > 0 {
		g.line(".section .rodata")
		for _, name := range classNames {
			ci, ok := g.env.FindClass(name)
			if !ok {
				continue
			}
			g.line("%s_name:", name)
			g.line("\t.asciz \"%s\"", escapeAsciz(name))
			for _, f := range ci.Fields {
				g.line("%s_field_%s_name:", name, f.Name)
				g.line("\t.asciz \"%s\"", escapeAsciz(f.Name))
			}
		}

		g.line(".section .data.typeinfo")
		g.line("\t.align 8")
		for _, name := range classNames {
			ci, ok := g.env.FindClass(name)
			if !ok {
				continue
			}
			g.line("\t.type %s_typeinfo, @object", name)
			g.line("\t.size %s_typeinfo, %d", name, 8+8+8+8+16*len(ci.Fields))
			g.line("%s_typeinfo:", name)
			g.line("\t.quad %s_name", name)
			if ci.Base != nil {
				g.line("\t.quad %s_typeinfo", ci.Base.Name)
			} else {
				g.line("\t.quad 0")
			}
			g.line("\t.quad %d", ci.SizeBytes)
			g.line("\t.quad %d", len(ci.Fields))
			for _, f := range ci.Fields {
				g.line("\t.quad %d", f.Offset)
				g.line("\t.quad %s_field_%s_name", name, f.Name)
			}
			g.markVtableNeeded(name)
		}
	}

	g.emitVtablePlaceholders()
}

// emitVtablePlaceholders emits the current dispatch-prefers-name-lookup
// backend's stand-in vtable symbols. A complete implementation would
// populate these with real function-pointer slots.
func (g *Generator) emitVtablePlaceholders() {
	if len(g.vtableOrder) == 0 {
		return
	}
	g.line(".section .data.vtables")
	g.line("\t.align 8")
	for _, name := range g.vtableOrder {
		g.line("%s_vtable:", name)
		g.line("\t.quad 0")
	}
}
