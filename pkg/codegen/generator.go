// Package codegen lowers a source AST directly to s390x GNU-assembler
// text. It does not share state with pkg/cfg: the two backends both
// consume the raw astree.Node tree independently.
package codegen

import (
	"bytes"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/ftagili/spo/pkg/astree"
	"github.com/ftagili/spo/pkg/typeenv"
)

// Options carries the configurable scratch-stack and allow-list additions
// to the otherwise fixed defaults.
type Options struct {
	// ScratchSize overrides the default 512-byte scratch stack (with its
	// implicit 256-byte auto-reduction above a 4000-byte frame). Zero
	// selects the default behavior.
	ScratchSize int
	// ExtraAllowlist names additional runtime symbols treated as resolved
	// externs rather than user functions, alongside stdlibAllowList.
	ExtraAllowlist []string
}

type fieldEntry struct {
	class  string
	name   string
	offset int
}

type definedFunc struct {
	arity int
}

type funcContext struct {
	mangledName   string
	locals        *localMap
	frameSize     int
	scratchSize   int
	breakLabels   []string
	epilogueLabel string
}

// Generator holds all cross-function state accumulated across the six
// passes of and emits the final assembly text.
type Generator struct {
	out  *bytes.Buffer
	env  *typeenv.TypeEnv
	opts Options

	strings *stringPool
	ints    *intPool

	definedNames map[string]definedFunc
	definedOrder []string

	fieldTable []fieldEntry

	vtablesNeeded  map[string]bool
	vtableOrder    []string
	classesWithAST map[string]bool

	mangleCache *lru.Cache
	offsetCache *lru.Cache

	extraAllow map[string]bool

	fn *funcContext

	labelSeq int
}

func newGenerator(env *typeenv.TypeEnv, opts Options) *Generator {
	mc, _ := lru.New(256)
	oc, _ := lru.New(256)
	extra := make(map[string]bool, len(opts.ExtraAllowlist))
	for _, s := range opts.ExtraAllowlist {
		extra[s] = true
	}
	return &Generator{
		out:            &bytes.Buffer{},
		env:            env,
		opts:           opts,
		strings:        newStringPool(),
		ints:           newIntPool(),
		definedNames:   map[string]definedFunc{},
		vtablesNeeded:  map[string]bool{},
		classesWithAST: map[string]bool{},
		mangleCache:    mc,
		offsetCache:    oc,
		extraAllow:     extra,
	}
}

func (g *Generator) line(format string, args ...interface{}) {
	fmt.Fprintf(g.out, format+"\n", args...)
}

func (g *Generator) comment(format string, args ...interface{}) {
	g.line("\t# "+format, args...)
}

// errorComment records a recoverable codegen-time problem inline as a
// comment and substitutes a zero value, keeping emission total.
func (g *Generator) errorComment(format string, args ...interface{}) {
	g.comment("ERROR: "+format, args...)
}

func (g *Generator) newLabel(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf(".L%s%d", prefix, g.labelSeq)
}

func (g *Generator) isAllowlisted(name string) bool {
	return isStdlibCall(name) || g.extraAllow[name] || g.extraAllow[baseName(name)]
}

func (g *Generator) markVtableNeeded(className string) {
	if !g.vtablesNeeded[className] {
		g.vtablesNeeded[className] = true
		g.vtableOrder = append(g.vtableOrder, className)
	}
}

func (g *Generator) currentClassPrefix() string {
	if g.fn == nil {
		return ""
	}
	if idx := strings.Index(g.fn.mangledName, "__"); idx >= 0 {
		return g.fn.mangledName[:idx]
	}
	return ""
}

// finalMangledNameOf resolves a funcDef/funcDecl's emitted symbol. A
// synthesized method signature's id leaf is already the final
// "<Class>__<method>" symbol (pass 3); anything else goes
// through the ordinary base-rule mangling.
func (g *Generator) finalMangledNameOf(fd *astree.Node) string {
	sig := fd.Child(0)
	base := identName(sig.ChildByKind("id"))
	if strings.Contains(base, "__") {
		return base
	}
	return g.mangleFuncName(base, argTypeNodes(sig.Child(2)))
}

func (g *Generator) registerFuncDef(fd *astree.Node) {
	mangled := g.finalMangledNameOf(fd)
	sig := fd.Child(0)
	if _, exists := g.definedNames[mangled]; !exists {
		g.definedOrder = append(g.definedOrder, mangled)
	}
	g.definedNames[mangled] = definedFunc{arity: arity(sig)}
}

// Generate runs the full pipeline over a single "source" AST root and
// returns the assembled GAS text.
func Generate(root *astree.Node, env *typeenv.TypeEnv, opts Options) (string, error) {
	items := root.ChildByLabel("items")
	if items == nil {
		items = root
	}
	if items == nil {
		return "", errors.New("source AST has no items container")
	}

	g := newGenerator(env, opts)

	g.collectLiterals(root)
	g.inventoryFunctions(items)
	g.liftMethods(items)
	g.emitFunctions(items)
	g.emitTypeInfo()
	g.emitRodata()

	return g.out.String(), nil
}

// collectLiterals pre-walks the AST, interning every string literal so the
// rodata pool is fully populated before any function body is emitted
// (pass 1).
func (g *Generator) collectLiterals(root *astree.Node) {
	strs := astree.Collect(root, func(n *astree.Node) bool { return n.IsKind("string") })
	for _, s := range strs {
		g.strings.intern(s.Lexeme())
	}
}

func (g *Generator) inventoryFunctions(items *astree.Node) {
	for _, it := range items.Children {
		if it.Label == "funcDef" {
			g.registerFuncDef(it)
		}
	}
}

func (g *Generator) emitFunctions(items *astree.Node) {
	emitted := map[string]bool{}
	for _, it := range items.Children {
		if it.Label != "funcDef" {
			continue
		}
		name := g.finalMangledNameOf(it)
		if emitted[name] {
			continue
		}
		emitted[name] = true
		g.emitFunction(it, name)
	}

	for _, it := range items.Children {
		if it.Label != "funcDecl" {
			continue
		}
		sig := it.Child(0)
		base := identName(sig.ChildByKind("id"))
		name := g.finalMangledNameOf(it)
		if emitted[name] {
			continue
		}
		if g.isAllowlisted(base) {
			g.line(".extern %s", base)
			continue
		}
		emitted[name] = true
		g.emitStub(name)
	}
}

func (g *Generator) emitStub(name string) {
	g.line(".globl %s", name)
	g.line("\t.type %s, @function", name)
	g.line("%s:", name)
	g.line("\tlghi r2,0")
	g.line("\tbr r14")
	g.line("\t.size %s, .-%s", name, name)
}

func (g *Generator) emitFunction(fd *astree.Node, mangledName string) {
	sig := fd.Child(0)
	body := fd.Child(1)
	if body == nil {
		body = astree.New("block")
	}

	locals := buildLocalMap(sig, body)
	frameSize, scratchSize := computeFrameSize(locals.count(), g.opts)

	prevFn := g.fn
	g.fn = &funcContext{
		mangledName:   mangledName,
		locals:        locals,
		frameSize:     frameSize,
		scratchSize:   scratchSize,
		epilogueLabel: ".Lepilogue_" + sanitizeLabel(mangledName),
	}
	defer func() { g.fn = prevFn }()

	g.line(".text")
	g.line(".globl %s", mangledName)
	g.line("\t.type %s, @function", mangledName)
	g.line("%s:", mangledName)
	g.emitPrologue(frameSize)
	g.spillParams(sig)

	terminated := g.genBlock(body)
	if !terminated {
		g.line("\tlghi r2,0")
		g.line("\tj %s", g.fn.epilogueLabel)
	}

	g.emitEpilogue(g.fn.epilogueLabel)
	g.line("\t.size %s, .-%s", mangledName, mangledName)
}

// sanitizeLabel strips characters GAS local labels cannot carry, mostly
// relevant when a mangled name derives from a genType's composite form.
func sanitizeLabel(s string) string {
	return strings.NewReplacer("<", "_", ">", "_", ",", "_", " ", "_").Replace(s)
}
