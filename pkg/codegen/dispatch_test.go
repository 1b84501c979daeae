package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ftagili/spo/pkg/astree"
	"github.com/ftagili/spo/pkg/runtimeabi"
)

func callNode(name string, args ...*astree.Node) *astree.Node {
	return astree.New("call", astree.Leaf("id", name), astree.New("arglist", args...))
}

func exprStmt(e *astree.Node) *astree.Node { return astree.New("exprStmt", e) }

func TestStaticDispatchFromLocalType(t *testing.T) {
	// int use(C c) { c.get(); return 0; } with class C { int get() {...} }
	getBody := astree.New("block", astree.New("return", astree.Leaf("dec", "7")))
	members := astree.New("members", funcDefNode(sigNode("int", "get"), getBody))
	cls := astree.New("class", astree.Leaf("id", "C"), members)

	mcall := astree.New("methodCall", astree.Leaf("id", "c"), astree.Leaf("id", "get"), astree.New("arglist"))
	useBody := astree.New("block", exprStmt(mcall), astree.New("return", astree.Leaf("dec", "0")))
	use := funcDefNode(sigNode("int", "use", [2]string{"C", "c"}), useBody)

	out, err := Generate(sourceNode(cls, use), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "brasl r14,C__get")
	require.NotContains(t, out, "unknown_method")
}

func TestMethodDispatchFallsBackToSuffixLookup(t *testing.T) {
	// the receiver is a fieldAccess, not a typed local, so dispatch goes
	// through the name+arity search across lifted methods.
	getBody := astree.New("block", astree.New("return", astree.Leaf("dec", "1")))
	members := astree.New("members", funcDefNode(sigNode("int", "get"), getBody))
	cls := astree.New("class", astree.Leaf("id", "D"), members)

	recv := astree.New("fieldAccess", astree.Leaf("id", "box"), astree.Leaf("id", "inner"))
	mcall := astree.New("methodCall", recv, astree.Leaf("id", "get"), astree.New("arglist"))
	body := astree.New("block",
		astree.New("vardecl", astree.Leaf("typeRef", "D"), astree.New("vars", astree.Leaf("id", "box"), astree.New("optAssign"))),
		exprStmt(mcall),
		astree.New("return", astree.Leaf("dec", "0")),
	)
	fd := funcDefNode(sigNode("int", "main"), body)

	out, err := Generate(sourceNode(cls, fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "brasl r14,D__get")
}

func TestMethodDispatchVtableFallbackCallsUnknownMethod(t *testing.T) {
	// the receiver is a call result (no static type) and no method named
	// "poke" is defined anywhere, so dispatch bottoms out at the vtable
	// trampoline.
	recv := callNode("malloc", astree.Leaf("dec", "16"))
	mcall := astree.New("methodCall", recv, astree.Leaf("id", "poke"), astree.New("arglist"))
	body := astree.New("block", exprStmt(mcall), astree.New("return", astree.Leaf("dec", "0")))
	fd := funcDefNode(sigNode("int", "main"), body)

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "lg r1,0(r2)")
	require.Contains(t, out, "brasl r14,"+runtimeabi.UnknownMethodSymbol)
}

func TestStaticDispatchWinsEvenWhenTargetIsUndefined(t *testing.T) {
	// tier 1 trusts the recorded static type without consulting the
	// defined-names set; the linker is left to resolve Ghost__poke.
	mcall := astree.New("methodCall", astree.Leaf("id", "g"), astree.Leaf("id", "poke"), astree.New("arglist"))
	body := astree.New("block",
		astree.New("vardecl", astree.Leaf("typeRef", "Ghost"), astree.New("vars", astree.Leaf("id", "g"), astree.New("optAssign"))),
		exprStmt(mcall),
		astree.New("return", astree.Leaf("dec", "0")),
	)
	fd := funcDefNode(sigNode("int", "main"), body)

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "brasl r14,Ghost__poke")
}

func TestCallInsideMethodResolvesToSameClass(t *testing.T) {
	// class E { int helper() {...} int run() { helper(); } }:
	// the unqualified call inside E__run resolves to E__helper.
	helper := funcDefNode(sigNode("int", "helper"), astree.New("block", astree.New("return", astree.Leaf("dec", "3"))))
	runBody := astree.New("block", exprStmt(callNode("helper")), astree.New("return", astree.Leaf("dec", "0")))
	runM := funcDefNode(sigNode("int", "run"), runBody)
	cls := astree.New("class", astree.Leaf("id", "E"), astree.New("members", helper, runM))

	out, err := Generate(sourceNode(cls), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "brasl r14,E__helper")
}

func TestCallWithMoreThanFiveArgumentsIsDiagnostic(t *testing.T) {
	args := make([]*astree.Node, 6)
	for i := range args {
		args[i] = astree.Leaf("dec", "1")
	}
	body := astree.New("block", exprStmt(callNode("wide", args...)), astree.New("return", astree.Leaf("dec", "0")))
	fd := funcDefNode(sigNode("int", "main"), body)

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "more than 5 arguments")
	require.NotContains(t, out, "brasl r14,wide")
}

func TestAllowlistedFuncDeclEmitsExtern(t *testing.T) {
	decl := astree.New("funcDecl", sigNode("int", "strlen", [2]string{"string", "s"}))
	fd := funcDefNode(sigNode("int", "main"), astree.New("block", astree.New("return", astree.Leaf("dec", "0"))))

	out, err := Generate(sourceNode(fd, decl), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, ".extern strlen")
	require.NotContains(t, out, "strlen__string:")
}

func TestNonAllowlistedFuncDeclEmitsStub(t *testing.T) {
	decl := astree.New("funcDecl", sigNode("int", "vendorHook"))
	fd := funcDefNode(sigNode("int", "main"), astree.New("block", astree.New("return", astree.Leaf("dec", "0"))))

	out, err := Generate(sourceNode(fd, decl), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "vendorHook:\n\tlghi r2,0\n\tbr r14")
	require.Contains(t, out, ".size vendorHook, .-vendorHook")
}

func TestArrayAllocatorIsAllowlistedDespiteLeadingUnderscores(t *testing.T) {
	body := astree.New("block",
		exprStmt(callNode(runtimeabi.ArrayAllocSymbol, astree.Leaf("dec", "4"))),
		astree.New("return", astree.Leaf("dec", "0")),
	)
	fd := funcDefNode(sigNode("int", "main"), body)

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "brasl r14,"+runtimeabi.ArrayAllocSymbol)
	require.NotContains(t, out, "ERROR")
}

func TestExtraAllowlistOptionResolvesCustomRuntimeSymbol(t *testing.T) {
	body := astree.New("block", exprStmt(callNode("traceHook")), astree.New("return", astree.Leaf("dec", "0")))
	fd := funcDefNode(sigNode("int", "main"), body)

	out, err := Generate(sourceNode(fd), nil, Options{ExtraAllowlist: []string{"traceHook"}})
	require.NoError(t, err)
	require.Contains(t, out, "brasl r14,traceHook")
}

func TestPrintfFlushesButStrlenDoesNot(t *testing.T) {
	body := astree.New("block",
		exprStmt(callNode("printf", astree.Leaf("string", "x"))),
		exprStmt(callNode("strlen", astree.Leaf("string", "x"))),
		astree.New("return", astree.Leaf("dec", "0")),
	)
	fd := funcDefNode(sigNode("int", "main"), body)

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)

	printfIdx := strings.Index(out, "brasl r14,printf")
	require.GreaterOrEqual(t, printfIdx, 0)
	require.Contains(t, out[printfIdx:], "brasl r14,fflush")

	strlenIdx := strings.Index(out, "brasl r14,strlen")
	require.GreaterOrEqual(t, strlenIdx, 0)
	require.NotContains(t, out[strlenIdx:], "brasl r14,fflush")
}

func TestArgumentsEvaluatedLeftToRightIntoRegisters(t *testing.T) {
	body := astree.New("block",
		exprStmt(callNode("memset", astree.Leaf("dec", "1"), astree.Leaf("dec", "2"), astree.Leaf("dec", "3"))),
		astree.New("return", astree.Leaf("dec", "0")),
	)
	fd := funcDefNode(sigNode("int", "main"), body)

	out, err := Generate(sourceNode(fd), nil, Options{})
	require.NoError(t, err)
	// three pushes, then pops into r4, r3, r2 in that order.
	r4 := strings.Index(out, "lg r4,0(r12)")
	r3 := strings.Index(out, "lg r3,0(r12)")
	r2 := strings.Index(out, "lg r2,0(r12)")
	require.Greater(t, r3, r4)
	require.Greater(t, r2, r3)
}

func TestSearchMethodBySuffixPrefersArityMatch(t *testing.T) {
	g := newGenerator(nil, Options{})
	g.definedNames["A__m"] = definedFunc{arity: 1}
	g.definedNames["B__m"] = definedFunc{arity: 2}
	g.definedOrder = []string{"A__m", "B__m"}

	target, ok := g.searchMethodBySuffix("m", 2, true)
	require.True(t, ok)
	require.Equal(t, "B__m", target)

	target, ok = g.searchMethodBySuffix("m", 3, false)
	require.True(t, ok)
	require.Equal(t, "A__m", target)
}
