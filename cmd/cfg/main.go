// Command cfg is the CLI front end for the control-flow-graph analyzer:
// for every input source AST it writes one Graphviz DOT file per function
// plus a whole-program call-graph DOT.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/ftagili/spo/internal/applog"
	"github.com/ftagili/spo/internal/config"
	"github.com/ftagili/spo/pkg/astree"
	"github.com/ftagili/spo/pkg/cfg"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := cli.NewApp()
	app.Name = "cfg"
	app.Usage = "analyze source ASTs and emit per-function and call-graph DOT"
	app.ArgsUsage = "<input>... [outputDir]"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "verbose", Usage: "enable debug-level logging"},
		cli.StringFlag{Name: "config", Usage: "optional YAML config (only its LogLevel is used here)"},
	}

	exitCode := 0
	app.Action = func(ctx *cli.Context) error {
		code, err := runCfg(ctx)
		exitCode = code
		return err
	}

	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

func runCfg(ctx *cli.Context) (int, error) {
	conf, err := config.Load(ctx.String("config"))
	if err != nil {
		return 1, err
	}

	log, err := applog.New("cfg", applog.Level(ctx.Bool("verbose"), conf.LogLevel))
	if err != nil {
		return 1, errors.Wrap(err, "building logger")
	}
	defer func() { _ = log.Sync() }()

	inputs, outDir := splitArgsAndOutputDir(ctx.Args())
	if len(inputs) == 0 {
		return 1, errors.New("usage: cfg <input>... [outputDir]")
	}

	hadError := false
	var sources []cfg.SourceFile
	for _, in := range inputs {
		root, err := parseInput(in)
		if err != nil {
			log.Errorw("parse failure", "input", in, "error", err)
			hadError = true
			continue
		}
		sources = append(sources, cfg.SourceFile{Name: in, Root: root})
	}

	prog := cfg.BuildProgram(sources)
	for _, d := range prog.Errors {
		log.Warnw("analysis diagnostic", "kind", d.Kind, "message", d.Message, "function", d.FunctionName, "file", d.SourceFile)
		hadError = true
	}

	known := cfg.KnownFunctionNames(prog)
	for _, f := range prog.Functions {
		dot := cfg.RenderFunctionDOT(f, known)
		dir := outDir
		if dir == "" {
			dir = filepath.Dir(f.SourceFile)
		}
		outPath := filepath.Join(dir, fmt.Sprintf("%s.%s.cfg.dot", baseName(f.SourceFile), f.Name))
		if err := os.WriteFile(outPath, []byte(dot), 0o644); err != nil {
			log.Errorw("write failure", "path", outPath, "error", err)
			hadError = true
		}
	}

	// The call graph describes the whole program, not any single input, so
	// it is written once, keyed off the first input's base name (matching
	// the original CLI's use of argv[1] for this filename).
	callGraphDot := cfg.RenderCallGraphDOT(prog)
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(inputs[0])
	}
	outPath := filepath.Join(dir, baseName(inputs[0])+".callgraph.dot")
	if err := os.WriteFile(outPath, []byte(callGraphDot), 0o644); err != nil {
		log.Errorw("write failure", "path", outPath, "error", err)
		hadError = true
	}

	if hadError {
		return 1, nil
	}
	log.Infow("analyzed", "inputs", len(inputs), "functions", len(prog.Functions))
	return 0, nil
}

func parseInput(path string) (*astree.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", path)
	}
	defer f.Close()

	root, err := astree.Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", path)
	}
	if root == nil {
		return nil, errors.Errorf("no AST root produced for %q", path)
	}
	return root, nil
}

// splitArgsAndOutputDir implements "if the last argument is an
// existing directory, it is the output directory; otherwise outputs go
// next to each input".
func splitArgsAndOutputDir(args cli.Args) (inputs []string, outDir string) {
	all := []string(args)
	if len(all) == 0 {
		return nil, ""
	}
	last := all[len(all)-1]
	if info, err := os.Stat(last); err == nil && info.IsDir() {
		return all[:len(all)-1], last
	}
	return all, ""
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
