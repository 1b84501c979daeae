package codegen

import "github.com/ftagili/spo/pkg/astree"

type localEntry struct {
	offset     int
	staticType string
}

// localMap is a function's local variable map:
// parameters first, then body-declared locals, each assigned an 8-byte
// frame slot. Re-declaring an already-known name is a no-op: the first
// declaration wins its slot.
type localMap struct {
	info  map[string]localEntry
	order []string
}

func newLocalMap() *localMap {
	return &localMap{info: map[string]localEntry{}}
}

func (lm *localMap) declare(name, staticType string, offset int) {
	if _, exists := lm.info[name]; exists {
		return
	}
	lm.info[name] = localEntry{offset: offset, staticType: staticType}
	lm.order = append(lm.order, name)
}

func (lm *localMap) lookup(name string) (localEntry, bool) {
	e, ok := lm.info[name]
	return e, ok
}

func (lm *localMap) count() int { return len(lm.order) }

// buildLocalMap assigns frame offsets starting at 160: declared
// parameters first, in signature order, then every vardecl found in the
// body, in source order.
func buildLocalMap(sig *astree.Node, body *astree.Node) *localMap {
	lm := newLocalMap()
	offset := 160

	args := sig.Child(2)
	for _, a := range argListChildren(args) {
		if a.Label != "arg" {
			continue
		}
		name := identName(a.ChildByKind("id"))
		if name == "" {
			continue
		}
		if _, exists := lm.info[name]; exists {
			continue
		}
		lm.declare(name, rawTypeName(a.Child(0)), offset)
		offset += 8
	}

	vardecls := astree.Collect(body, func(n *astree.Node) bool { return n.Label == "vardecl" })
	for _, vd := range vardecls {
		typeName := rawTypeName(vd.Child(0))
		varsNode := vd.Child(1)
		if varsNode == nil {
			continue
		}
		for i := 0; i < len(varsNode.Children); i += 2 {
			idNode := varsNode.Children[i]
			if !idNode.IsKind("id") {
				continue
			}
			name := idNode.Lexeme()
			if _, exists := lm.info[name]; exists {
				continue
			}
			lm.declare(name, typeName, offset)
			offset += 8
		}
	}

	return lm
}
