package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ftagili/spo/pkg/astree"
	"github.com/ftagili/spo/pkg/runtimeabi"
)

func mainWith(stmts ...*astree.Node) *astree.Node {
	stmts = append(stmts, astree.New("return", astree.Leaf("dec", "0")))
	return funcDefNode(sigNode("int", "main"), astree.New("block", stmts...))
}

func TestLiteralBasesDecodeToImmediates(t *testing.T) {
	cases := []struct {
		kind, lexeme, want string
	}{
		{"dec", "42", "lghi r2,42"},
		{"hex", "0x2A", "lghi r2,42"},
		{"bits", "0b101010", "lghi r2,42"},
		{"bool", "true", "lghi r2,1"},
		{"bool", "false", "lghi r2,0"},
		{"char", "'A'", "lghi r2,65"},
	}
	for _, tc := range cases {
		fd := mainWith(exprStmt(astree.Leaf(tc.kind, tc.lexeme)))
		out, err := Generate(sourceNode(fd), nil, Options{})
		require.NoError(t, err)
		require.Contains(t, out, tc.want, "%s:%s", tc.kind, tc.lexeme)
	}
}

func TestLargeImmediateGoesThroughConstantPool(t *testing.T) {
	fd := mainWith(exprStmt(astree.Leaf("dec", "1099511627776")))
	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "larl r2,.LCQ0")
	require.Contains(t, out, ".LCQ0:\n\t.quad 1099511627776")
}

func TestStringPoolInternsUniqueByContent(t *testing.T) {
	fd := mainWith(
		exprStmt(callNode("puts", astree.Leaf("string", "dup"))),
		exprStmt(callNode("puts", astree.Leaf("string", "dup"))),
		exprStmt(callNode("puts", astree.Leaf("string", "other"))),
	)
	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(out, ".LC0:\n\t.asciz \"dup\""))
	require.Contains(t, out, ".LC1:\n\t.asciz \"other\"")
	require.NotContains(t, out, ".LC2:")
}

func TestDivisionAndRemainderSelectQuotientAndRemainder(t *testing.T) {
	div := astree.New("binop", astree.Leaf("id", "a"), astree.Leaf("op", "/"), astree.Leaf("id", "b"))
	rem := astree.New("binop", astree.Leaf("id", "a"), astree.Leaf("op", "%"), astree.Leaf("id", "b"))
	fd := funcDefNode(sigNode("int", "f", [2]string{"int", "a"}, [2]string{"int", "b"}),
		astree.New("block", exprStmt(div), exprStmt(rem), astree.New("return", astree.Leaf("dec", "0"))))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "srag r0,r1,63")
	require.Equal(t, 2, strings.Count(out, "dsgr r0,r2"))
	require.Contains(t, out, "lgr r2,r1") // quotient
	require.Contains(t, out, "lgr r2,r0") // remainder
}

func TestComparisonMaterializesZeroOne(t *testing.T) {
	lt := astree.New("binop", astree.Leaf("id", "a"), astree.Leaf("op", "<"), astree.Leaf("id", "b"))
	assign := astree.New("assign", astree.Leaf("id", "r"), lt)
	fd := funcDefNode(sigNode("int", "f", [2]string{"int", "a"}, [2]string{"int", "b"}),
		astree.New("block",
			astree.New("vardecl", astree.Leaf("typeRef", "int"), astree.New("vars", astree.Leaf("id", "r"), astree.New("optAssign"))),
			exprStmt(assign),
			astree.New("return", astree.Leaf("id", "r"))))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "cgr r3,r2")
	require.Contains(t, out, "jl .Lcmpt")
	require.Contains(t, out, "lghi r2,1")
}

func TestUnaryMinusAndNot(t *testing.T) {
	neg := astree.New("unop", astree.Leaf("op", "-"), astree.Leaf("id", "a"))
	not := astree.New("unop", astree.Leaf("op", "!"), astree.Leaf("id", "a"))
	fd := funcDefNode(sigNode("int", "f", [2]string{"int", "a"}),
		astree.New("block", exprStmt(neg), exprStmt(not), astree.New("return", astree.Leaf("dec", "0"))))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "lcgr r2,r2")
	require.Contains(t, out, "cghi r2,0")
}

func TestIndexReadScalesByEight(t *testing.T) {
	idx := astree.New("index", astree.Leaf("id", "a"), astree.Leaf("id", "i"))
	fd := funcDefNode(sigNode("int", "f", [2]string{"int_arr", "a"}, [2]string{"int", "i"}),
		astree.New("block", astree.New("return", idx)))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "sllg r2,r2,3")
	require.Contains(t, out, "agr r2,r3")
	require.Contains(t, out, "lg r2,0(r2)")
}

func TestIndexReadUnwrapsSubscriptWrapper(t *testing.T) {
	// some parser productions wrap the subscript in args(list(...)).
	wrapped := astree.New("args", astree.New("list", astree.Leaf("id", "i")))
	idx := astree.New("index", astree.Leaf("id", "a"), wrapped)
	fd := funcDefNode(sigNode("int", "f", [2]string{"int_arr", "a"}, [2]string{"int", "i"}),
		astree.New("block", astree.New("return", idx)))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.NotContains(t, out, "ERROR")
	require.Contains(t, out, "sllg r2,r2,3")
}

func TestAssignIndexGuardsNullBase(t *testing.T) {
	st := astree.New("assign_index", astree.Leaf("id", "a"), astree.Leaf("id", "i"), astree.Leaf("dec", "9"))
	fd := funcDefNode(sigNode("int", "f", [2]string{"int_arr", "a"}, [2]string{"int", "i"}),
		astree.New("block", exprStmt(st), astree.New("return", astree.Leaf("dec", "0"))))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "cghi r3,0")
	require.Contains(t, out, "je .Lskipstore")
	require.Contains(t, out, "stg r2,0(r3)")
}

func TestAssignIndexResolvesBaseAsFieldOfThis(t *testing.T) {
	// inside C__set, `data[i] = v` with no local `data` resolves through
	// the field table of the class prefix.
	set := astree.New("assign_index", astree.Leaf("id", "data"), astree.Leaf("id", "i"), astree.Leaf("id", "v"))
	setSig := sigNode("int", "set", [2]string{"int", "i"}, [2]string{"int", "v"})
	setDef := funcDefNode(setSig, astree.New("block", exprStmt(set), astree.New("return", astree.Leaf("dec", "0"))))
	members := astree.New("members",
		astree.New("vardecl", astree.Leaf("type", "int"), astree.New("vars", astree.Leaf("id", "pad"))),
		astree.New("vardecl", astree.Leaf("type", "int_arr"), astree.New("vars", astree.Leaf("id", "data"))),
		setDef,
	)
	cls := astree.New("class", astree.Leaf("id", "C"), members)

	out, err := Generate(sourceNode(cls), nil, Options{})
	require.NoError(t, err)
	body := out[strings.Index(out, "C__set:"):]
	// this is the first local at 160; data is the class's second field, at 16.
	require.Contains(t, body, "lg r2,160(r11)")
	require.Contains(t, body, "lg r2,16(r2)")
}

func TestFieldOffsetPrefersCurrentClassOverGlobalMatch(t *testing.T) {
	// two classes both declare `v`, at different positions; inside B__get
	// the lookup must use B's offset (16), not A's (8).
	aMembers := astree.New("members",
		astree.New("vardecl", astree.Leaf("type", "int"), astree.New("vars", astree.Leaf("id", "v"))),
	)
	aCls := astree.New("class", astree.Leaf("id", "A"), aMembers)

	getBody := astree.New("block",
		astree.New("return", astree.New("fieldAccess", astree.Leaf("id", "this"), astree.Leaf("id", "v"))))
	bMembers := astree.New("members",
		astree.New("vardecl", astree.Leaf("type", "int"), astree.New("vars", astree.Leaf("id", "w"))),
		astree.New("vardecl", astree.Leaf("type", "int"), astree.New("vars", astree.Leaf("id", "v"))),
		funcDefNode(sigNode("int", "get"), getBody),
	)
	bCls := astree.New("class", astree.Leaf("id", "B"), bMembers)

	out, err := Generate(sourceNode(aCls, bCls), nil, Options{})
	require.NoError(t, err)
	body := out[strings.Index(out, "B__get:"):]
	require.Contains(t, body, "lg r2,16(r3)")
}

func TestNewInstallsVtableAndEmitsPlaceholderForUnknownClass(t *testing.T) {
	newExpr := astree.New("new", astree.Leaf("id", "List"), astree.New("arglist"))
	fd := mainWith(exprStmt(newExpr))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "brasl r14,"+runtimeabi.MallocSymbol)
	require.Contains(t, out, "larl r2,List_vtable")
	require.Contains(t, out, "stg r2,0(r3)")
	// List has no class AST, yet its vtable placeholder must still exist.
	require.Contains(t, out, ".section .data.vtables")
	require.Contains(t, out, "List_vtable:\n\t.quad 0")
}

func TestNewWithConstructorArgsNotesAndIgnoresThem(t *testing.T) {
	newExpr := astree.New("new", astree.Leaf("id", "Vec"), astree.New("arglist", astree.Leaf("dec", "3")))
	fd := mainWith(exprStmt(newExpr))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "constructor arguments to Vec ignored")
	require.Contains(t, out, "lghi r2,16")
}

func TestAddressOfLoadsFrameAddress(t *testing.T) {
	addr := astree.New("address", astree.Leaf("id", "x"))
	fd := funcDefNode(sigNode("int", "f", [2]string{"int", "x"}),
		astree.New("block", astree.New("return", addr)))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "la r2,160(r11)")
}

func TestCompoundAssignReusesBinaryLowering(t *testing.T) {
	ca := astree.New("compound_assign", astree.Leaf("id", "x"), astree.Leaf("op", "+="), astree.Leaf("dec", "5"))
	fd := funcDefNode(sigNode("int", "f", [2]string{"int", "x"}),
		astree.New("block", exprStmt(ca), astree.New("return", astree.Leaf("id", "x"))))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "agr r3,r2")
	require.Contains(t, out, "stg r2,160(r11)")
}

func TestParamsSpilledToFrameSlots(t *testing.T) {
	fd := funcDefNode(sigNode("int", "f", [2]string{"int", "a"}, [2]string{"int", "b"}, [2]string{"int", "c"}),
		astree.New("block", astree.New("return", astree.Leaf("id", "c"))))

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "stg r2,160(r11)")
	require.Contains(t, out, "stg r3,168(r11)")
	require.Contains(t, out, "stg r4,176(r11)")
	require.Contains(t, out, "lg r2,176(r11)")
}

func TestSignatureArglistWrapperAcceptedForMangleAndLocals(t *testing.T) {
	// args -> arglist -> arg, the nested shape the external parser emits.
	arg := astree.New("arg", astree.Leaf("type", "int"), astree.Leaf("id", "x"))
	args := astree.New("args", astree.New("arglist", arg))
	sig := astree.New("signature", astree.Leaf("type", "int"), astree.Leaf("id", "inc"), args)
	body := astree.New("block",
		astree.New("return", astree.New("binop", astree.Leaf("id", "x"), astree.Leaf("op", "+"), astree.Leaf("dec", "1"))))
	fd := funcDefNode(sig, body)

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "inc__int:")
	require.NotContains(t, out, "ERROR: unknown variable")
}
