// Command semantic is the CLI front end for the semantic DOT dumper: it
// reads a source AST and writes its raw tree shape as Graphviz DOT, with
// no type or control-flow analysis layered on top.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/ftagili/spo/internal/applog"
	"github.com/ftagili/spo/internal/config"
	"github.com/ftagili/spo/pkg/astdot"
	"github.com/ftagili/spo/pkg/astree"
)

// Exit codes: 1 if the input cannot be opened,
// 2 on a syntax error, 3 if parsing produced no root, 4 if the output
// cannot be opened for writing.
const (
	exitInputOpenFailure  = 1
	exitSyntaxError       = 2
	exitNoRoot            = 3
	exitOutputOpenFailure = 4
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := cli.NewApp()
	app.Name = "semantic"
	app.Usage = "dump a source AST as Graphviz DOT"
	app.ArgsUsage = "<input> <output>"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "verbose", Usage: "enable debug-level logging"},
		cli.StringFlag{Name: "config", Usage: "optional YAML config (only its LogLevel is used here)"},
	}

	exitCode := 0
	app.Action = func(ctx *cli.Context) error {
		code, err := runSemantic(ctx)
		exitCode = code
		return err
	}

	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = exitInputOpenFailure
		}
	}
	return exitCode
}

func runSemantic(ctx *cli.Context) (int, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return exitInputOpenFailure, err
	}

	log, logErr := applog.New("semantic", applog.Level(ctx.Bool("verbose"), cfg.LogLevel))
	if logErr == nil {
		defer func() { _ = log.Sync() }()
	}

	args := []string(ctx.Args())
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: semantic <input> <output>")
		return exitInputOpenFailure, nil
	}
	inputPath, outputPath := args[0], args[1]

	inFile, err := os.Open(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening input %q: %v\n", inputPath, err)
		return exitInputOpenFailure, nil
	}
	defer inFile.Close()

	root, err := astree.Parse(inFile)
	if err != nil {
		if log != nil {
			log.Errorw("syntax error", "input", inputPath, "error", err)
		}
		fmt.Fprintf(os.Stderr, "parsing %q: %v\n", inputPath, err)
		return exitSyntaxError, nil
	}
	if root == nil {
		fmt.Fprintf(os.Stderr, "no AST root produced for %q\n", inputPath)
		return exitNoRoot, nil
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening output %q: %v\n", outputPath, err)
		return exitOutputOpenFailure, nil
	}
	defer outFile.Close()

	if _, err := outFile.WriteString(astdot.Render(root)); err != nil {
		fmt.Fprintf(os.Stderr, "writing output %q: %v\n", outputPath, err)
		return exitOutputOpenFailure, nil
	}

	if log != nil {
		log.Infow("dumped", "input", inputPath, "output", outputPath)
	}
	return 0, nil
}
