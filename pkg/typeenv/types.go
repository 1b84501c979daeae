// Package typeenv builds the class table: for every class it resolves an
// inherited field layout, an object size, and a virtual-method table with
// override resolution. It is built once, in a single bottom-up pass over
// the AST, and is read-only afterwards.
package typeenv

// Field is one entry of a class's flattened field list; every field is
// 8 bytes, a design simplification.
type Field struct {
	Name     string
	TypeName string
	Offset   int
}

// VTableSlot is one entry of a class's virtual-method table.
type VTableSlot struct {
	MethodName string
	ReturnType string
	Slot       int
	ImplLabel  string
}

// ClassInfo is the resolved layout and dispatch table for one class.
type ClassInfo struct {
	Name      string
	BaseName  string // declared base name, "" if none; independent of Base.
	Base      *ClassInfo
	Fields    []Field
	VTable    []VTableSlot
	SizeBytes int
}

// fieldOffset returns the byte offset of the named field, searching this
// class's flattened field list only (inherited fields are already present
// in Fields by construction).
func (ci *ClassInfo) fieldOffset(name string) (int, bool) {
	for _, f := range ci.Fields {
		if f.Name == name {
			return f.Offset, true
		}
	}
	return 0, false
}

// methodSlotAndLabel returns the vtable slot and current implementation
// label for the named method.
func (ci *ClassInfo) methodSlotAndLabel(name string) (slot int, implLabel string, ok bool) {
	for _, s := range ci.VTable {
		if s.MethodName == name {
			return s.Slot, s.ImplLabel, true
		}
	}
	return 0, "", false
}

// TypeEnv is the immutable class table produced by Build.
type TypeEnv struct {
	classes map[string]*ClassInfo
	order   []string
}

// FindClass returns the resolved ClassInfo for name, if one was built.
func (e *TypeEnv) FindClass(name string) (*ClassInfo, bool) {
	if e == nil {
		return nil, false
	}
	ci, ok := e.classes[name]
	return ci, ok
}

// FieldOffset returns the byte offset of field within class, if any.
func (e *TypeEnv) FieldOffset(class, field string) (int, bool) {
	ci, ok := e.FindClass(class)
	if !ok {
		return 0, false
	}
	return ci.fieldOffset(field)
}

// MethodSlotAndLabel returns the vtable slot and implementation label for
// method on class, if any.
func (e *TypeEnv) MethodSlotAndLabel(class, method string) (slot int, implLabel string, ok bool) {
	ci, found := e.FindClass(class)
	if !found {
		return 0, "", false
	}
	return ci.methodSlotAndLabel(method)
}

// ClassNames returns every resolved class name in build order, for callers
// (the code generator's type-info emission pass) that need a deterministic
// iteration order.
func (e *TypeEnv) ClassNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.order))
	for _, name := range e.order {
		if _, ok := e.classes[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
