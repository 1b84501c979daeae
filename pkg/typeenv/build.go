package typeenv

import "github.com/ftagili/spo/pkg/astree"

type rawMethod struct {
	name       string
	returnType string
}

type rawClass struct {
	name            string
	baseName        string
	declaredFields  []Field
	declaredMethods []rawMethod
}

// Build walks root once, collecting every class declaration and resolving
// its layout and vtable. The returned TypeEnv is immutable.
func Build(root *astree.Node) *TypeEnv {
	classNodes := astree.Collect(root, func(n *astree.Node) bool { return n.Label == "class" })

	raw := make(map[string]rawClass, len(classNodes))
	order := make([]string, 0, len(classNodes))
	for _, cn := range classNodes {
		rc := extractRawClass(cn)
		if rc.name == "" {
			continue
		}
		if _, exists := raw[rc.name]; !exists {
			order = append(order, rc.name)
		}
		raw[rc.name] = rc
	}

	resolved := make(map[string]*ClassInfo, len(order))
	visiting := make(map[string]bool, len(order))
	for _, name := range order {
		if _, ok := resolved[name]; !ok {
			buildClassInfo(name, raw, resolved, visiting)
		}
	}
	return &TypeEnv{classes: resolved, order: order}
}

// buildClassInfo resolves one class's layout via depth-first recursion on
// its base, breaking cycles with the visiting set (step 2).
func buildClassInfo(name string, raw map[string]rawClass, resolved map[string]*ClassInfo, visiting map[string]bool) *ClassInfo {
	if ci, ok := resolved[name]; ok {
		return ci
	}
	r, ok := raw[name]
	if !ok {
		return nil
	}

	visiting[name] = true
	defer delete(visiting, name)

	var base *ClassInfo
	if r.baseName != "" && !visiting[r.baseName] {
		if _, exists := raw[r.baseName]; exists {
			base = buildClassInfo(r.baseName, raw, resolved, visiting)
		}
	}

	ci := &ClassInfo{Name: name, BaseName: r.baseName, Base: base}

	offset := 8
	if base != nil {
		ci.Fields = append(ci.Fields, base.Fields...)
		if base.SizeBytes > offset {
			offset = base.SizeBytes
		}
	}
	for _, f := range r.declaredFields {
		ci.Fields = append(ci.Fields, Field{Name: f.Name, TypeName: f.TypeName, Offset: offset})
		offset += 8
	}
	ci.SizeBytes = 8 + len(ci.Fields)*8
	if ci.SizeBytes < 8 {
		ci.SizeBytes = 8
	}

	if base != nil {
		ci.VTable = append(ci.VTable, base.VTable...)
	}
	slotByName := make(map[string]int, len(ci.VTable))
	for i, s := range ci.VTable {
		slotByName[s.MethodName] = i
	}
	for _, m := range r.declaredMethods {
		implLabel := name + "__" + m.name
		if idx, exists := slotByName[m.name]; exists {
			ci.VTable[idx].ReturnType = m.returnType
			ci.VTable[idx].ImplLabel = implLabel
		} else {
			slot := len(ci.VTable)
			ci.VTable = append(ci.VTable, VTableSlot{
				MethodName: m.name,
				ReturnType: m.returnType,
				Slot:       slot,
				ImplLabel:  implLabel,
			})
			slotByName[m.name] = slot
		}
	}

	resolved[name] = ci
	return ci
}

func extractRawClass(cn *astree.Node) rawClass {
	name := classHeaderName(cn)
	baseName := classBaseName(cn)

	var members []*astree.Node
	if container := cn.ChildByLabel("members"); container != nil {
		members = container.Children
	} else {
		members = cn.Children
	}

	var fields []Field
	var methods []rawMethod
	for _, m := range members {
		collectDeclFrom(m, &fields, &methods)
	}
	return rawClass{name: name, baseName: baseName, declaredFields: fields, declaredMethods: methods}
}

// collectDeclFrom classifies one members-container child, unwrapping
// "member" wrapper nodes (recursively, if nested) when present.
func collectDeclFrom(m *astree.Node, fields *[]Field, methods *[]rawMethod) {
	switch m.Label {
	case "vardecl", "fieldDecl", "field":
		*fields = append(*fields, extractFieldDecl(m)...)
	case "funcDef", "funcDecl", "methodDef", "methodDecl":
		if rm, ok := extractMethodDecl(m); ok {
			*methods = append(*methods, rm)
		}
	case "member":
		for _, mm := range m.Children {
			collectDeclFrom(mm, fields, methods)
		}
	}
}

func classHeaderName(cn *astree.Node) string {
	if idc := cn.ChildByKind("id"); idc != nil {
		return idc.Lexeme()
	}
	if idc := cn.ChildByKind("IDENTIFIER"); idc != nil {
		return idc.Lexeme()
	}
	return ""
}

func classBaseName(cn *astree.Node) string {
	if b := cn.ChildByKind("base"); b != nil {
		return b.Lexeme()
	}
	if b := cn.ChildByLabel("base"); b != nil {
		if name := firstIdentLike(b); name != "" {
			return name
		}
	}
	if e := cn.ChildByLabel("extends"); e != nil {
		if name := firstIdentLike(e); name != "" {
			return name
		}
	}
	return ""
}

// firstIdentLike returns the lexeme of the first id/type/typeRef leaf found
// among n's direct children (or n itself, if n is such a leaf).
func firstIdentLike(n *astree.Node) string {
	if k, l, ok := n.KindLexeme(); ok {
		switch k {
		case "id", "type", "typeRef", "IDENTIFIER":
			return l
		}
	}
	for _, c := range n.Children {
		if k, l, ok := c.KindLexeme(); ok {
			switch k {
			case "id", "type", "typeRef", "IDENTIFIER":
				return l
			}
		}
	}
	return ""
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
	if t := n.ChildByKind("type"); t != nil {
		return t.Lexeme()
	}
	if t := n.ChildByKind("typeRef"); t != nil {
		return t.Lexeme()
	}
	return n.Label
}

func extractFieldDecl(m *astree.Node) []Field {
	if m.Label == "vardecl" {
		typeName := typeNameOf(m.Child(0))
		varsNode := m.Child(1)
		var fields []Field
		if varsNode != nil {
			for i := 0; i < len(varsNode.Children); i += 2 {
				idNode := varsNode.Children[i]
				if idNode.IsKind("id") {
					fields = append(fields, Field{Name: idNode.Lexeme(), TypeName: typeName})
				}
			}
		}
		return fields
	}

	var typeName string
	var names []string
	for _, c := range m.Children {
		if c.IsKind("id") {
			names = append(names, c.Lexeme())
		} else if typeName == "" {
			typeName = typeNameOf(c)
		}
	}
	fields := make([]Field, 0, len(names))
	for _, nm := range names {
		fields = append(fields, Field{Name: nm, TypeName: typeName})
	}
	return fields
}

func extractMethodDecl(m *astree.Node) (rawMethod, bool) {
	sig := m.Child(0)
	if sig == nil || sig.Label != "signature" {
		sig = m
	}
	idNode := sig.ChildByKind("id")
	if idNode == nil {
		idNode = sig.ChildByKind("IDENTIFIER")
	}
	if idNode == nil {
		return rawMethod{}, false
	}
	return rawMethod{name: idNode.Lexeme(), returnType: typeNameOf(sig.Child(0))}, true
}
