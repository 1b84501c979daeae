package codegen

import "github.com/ftagili/spo/pkg/astree"

// computeFrameSize applies the frame-layout rule: 160 ABI bytes
// plus 8 bytes per local, plus a scratch area (default 512, auto-reduced
// to 256 once that total exceeds 4000 bytes), rounded up to 16. An
// explicit Options.ScratchSize overrides the default and its
// auto-reduction.
func computeFrameSize(localCount int, opts Options) (frameSize, scratchSize int) {
	scratch := 512
	auto := true
	if opts.ScratchSize > 0 {
		scratch = opts.ScratchSize
		auto = false
	}

	base := 160 + localCount*8
	total := base + scratch
	if auto && total > 4000 {
		scratch = 256
		total = base + scratch
	}

	if rem := total % 16; rem != 0 {
		total += 16 - rem
	}
	return total, scratch
}

// emitPrologue saves r6..r15, allocates the frame, writes the back chain,
// and establishes r11 (frame base) and r12 (scratch top).
func (g *Generator) emitPrologue(frameSize int) {
	g.line("\tstmg r6,r15,48(r15)")
	g.line("\tlgr r1,r15")
	g.line("\taghi r15,-%d", frameSize)
	g.line("\tstg r1,0(r15)")
	g.line("\tlgr r11,r15")
	g.line("\tla r12,%d(r15)", frameSize)
}

// emitEpilogue restores the caller's stack pointer from the back chain,
// reloads r6..r15 from the save area recorded by emitPrologue, and
// returns.
func (g *Generator) emitEpilogue(label string) {
	g.line("%s:", label)
	g.line("\tlg r15,0(r15)")
	g.line("\tlmg r6,r15,48(r15)")
	g.line("\tbr r14")
}

// spillParams stores the incoming argument registers r2..r6 into their
// assigned frame slots so every later read goes through the local map.
func (g *Generator) spillParams(sig *astree.Node) {
	reg := 2
	for _, name := range argNames(sig.Child(2)) {
		if reg > 6 {
			break
		}
		if e, ok := g.fn.locals.lookup(name); ok {
			g.line("\tstg r%d,%d(r11)", reg, e.offset)
		}
		reg++
	}
}
