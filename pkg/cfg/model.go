// Package cfg lowers function bodies into control-flow graphs of decomposed
// operations and builds the whole-program call graph. A sibling file
// (dot.go) renders the same graphs as Graphviz DOT; it reads the CFG only,
// never the AST.
package cfg

import "github.com/ftagili/spo/pkg/astree"

// OpKind tags the variant carried by an Op.
type OpKind int

const (
	ASSIGN OpKind = iota
	BINOP
	UNOP
	CALL
	INDEX
	VAR
	LITERAL
	COND
	RETURN
	BREAK
	VARDECL
	FIELD_ACCESS
	METHOD_CALL
	NEW
)

var opKindNames = [...]string{
	"ASSIGN", "BINOP", "UNOP", "CALL", "INDEX", "VAR", "LITERAL", "COND",
	"RETURN", "BREAK", "VARDECL", "FIELD_ACCESS", "METHOD_CALL", "NEW",
}

// String returns the upper-case opcode name used in DOT labels.
func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opKindNames) {
		return "UNKNOWN"
	}
	return opKindNames[k]
}

// Op is one decomposed operation within a basic block.
type Op struct {
	Kind     OpKind
	OpName   string
	Node     *astree.Node
	Operands []*Op
}

// Block is a maximal straight-line sequence of operations with a single
// entry and a single exit. Edge model: exactly one of Successor or
// (SuccessorTrue, SuccessorFalse) is set, never both, except on the exit
// block, which has neither.
type Block struct {
	ID              int
	IsEntry         bool
	IsExit          bool
	Ops             []*Op
	Successor       *Block
	SuccessorTrue   *Block
	SuccessorFalse  *Block
}

// IsConditional reports whether b ends in a conditional edge.
func (b *Block) IsConditional() bool {
	return b.SuccessorTrue != nil || b.SuccessorFalse != nil
}

// Param is one function parameter (name, declared type name).
type Param struct {
	Name string
	Type string
}

// Function is one lowered function body.
type Function struct {
	Name       string
	ReturnType string
	Parameters []Param
	SourceFile string
	Entry      *Block
	Exit       *Block
	AllNodes   []*Block
}

// CallEdge is one edge of the whole-program call graph. Callee is nil when
// CalleeName could not be resolved to a defined function.
type CallEdge struct {
	Caller     string
	Callee     *Function
	CalleeName string
}

// ErrorKind tags the variant carried by a Diagnostic.
type ErrorKind int

const (
	BreakOutsideLoop ErrorKind = iota
	UnknownFunction
	InvalidAST
	ParseError
)

// Diagnostic is one accumulated, non-fatal error.
type Diagnostic struct {
	Kind         ErrorKind
	Message      string
	FunctionName string
	SourceFile   string
	Line         int
	Column       int
}

// Program is the whole-program result of BuildProgram: every lowered
// function, the call graph, and every diagnostic accumulated along the way.
type Program struct {
	Functions []*Function
	CallGraph []CallEdge
	Errors    []Diagnostic
}

// SourceFile pairs a file name with its already-parsed AST root, the input
// shape BuildProgram consumes (contract).
type SourceFile struct {
	Name string
	Root *astree.Node
}
