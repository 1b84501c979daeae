package codegen

import (
	"strconv"
	"strings"

	"github.com/ftagili/spo/pkg/astree"
)

// identName returns the lexeme of n if it is a "kind:lexeme" leaf of any
// kind (id/type/typeRef/IDENTIFIER or otherwise), else a best-effort
// fallback to its label.
func identName(n *astree.Node) string {
	if n == nil {
		return ""
	}
	if k, l, ok := n.KindLexeme(); ok {
		switch k {
		case "id", "type", "typeRef", "IDENTIFIER":
			return l
		}
		return l
	}
	return n.Label
}

// rawTypeName returns the unmangled declared type name of a type node,
// used for the code generator's static-type bookkeeping, as opposed to
// mangleType's composite mangling form.
func rawTypeName(n *astree.Node) string {
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

// argListChildren returns the argument nodes of an "args"/"arglist" node,
// or nil if n is nil (no arguments). The parser wraps the actual list one
// level deeper in some productions ("args" holding a single "arglist" or
// "list" child), so a lone wrapper child is unwrapped first.
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

// soleExpr unwraps an expression that the parser may have wrapped in an
// args/arglist/list container (an index subscript, typically).
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

// parseIntLiteral decodes an integer/boolean/char leaf, respecting the
// literal's source base.
func parseIntLiteral(kind, lexeme string) (int64, bool) {
	switch kind {
	case "dec":
		v, err := strconv.ParseInt(lexeme, 10, 64)
		return v, err == nil
	case "hex":
		v, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimPrefix(lexeme, "0x"), "0X"), 16, 64)
		return v, err == nil
	case "bits":
		v, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimPrefix(lexeme, "0b"), "0B"), 2, 64)
		return v, err == nil
	case "bool":
		if lexeme == "true" {
			return 1, true
		}
		return 0, true
	case "char":
		s := strings.Trim(lexeme, "'")
		if len(s) == 0 {
			return 0, true
		}
		return int64(s[0]), true
	default:
		return 0, false
	}
}

// escapeAsciz escapes a string literal's content for a GAS ".asciz"
// directive.
func escapeAsciz(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\t", `\t`,
		"\r", `\r`,
	)
	return r.Replace(s)
}

var compareOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

// invertedBranch returns the conditional-branch mnemonic that jumps to the
// false target for comparison operator op, after a `cgr`. This is the
// inverted predicate: `<` branches on `jhe`.
func invertedBranch(op string) string {
	switch op {
	case "<":
		return "jhe"
	case "<=":
		return "jh"
	case ">":
		return "jle"
	case ">=":
		return "jl"
	case "==":
		return "jne"
	case "!=":
		return "je"
	default:
		return "jne"
	}
}

// conditionTrueBranch returns the conditional-branch mnemonic that jumps
// when comparison operator op holds, after a `cgr`: the non-inverted
// counterpart of invertedBranch, used both to materialize a 0/1 value and
// by do/while's tail test.
func conditionTrueBranch(op string) string {
	switch op {
	case "<":
		return "jl"
	case "<=":
		return "jle"
	case ">":
		return "jh"
	case ">=":
		return "jhe"
	case "==":
		return "je"
	case "!=":
		return "jne"
	default:
		return "je"
	}
}
