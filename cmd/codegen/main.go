// Command codegen is the CLI front end for the s390x code generator: it
// reads an already-parsed AST (pkg/astree's exchange notation, standing
// in for the external lexer/parser that produces it) and writes
// GNU-assembler text.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/ftagili/spo/internal/applog"
	"github.com/ftagili/spo/internal/config"
	"github.com/ftagili/spo/pkg/astree"
	"github.com/ftagili/spo/pkg/codegen"
	"github.com/ftagili/spo/pkg/typeenv"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := cli.NewApp()
	app.Name = "codegen"
	app.Usage = "compile a source AST to s390x GNU-assembler text"
	app.ArgsUsage = "<input> <output> | <input> -o <output>"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "o", Usage: "output file (alternative to the second positional argument)"},
		cli.StringFlag{Name: "config", Usage: "optional YAML config overriding the scratch-stack size and allow-list"},
		cli.BoolFlag{Name: "verbose", Usage: "enable debug-level logging"},
	}

	exitCode := 0
	app.Action = func(ctx *cli.Context) error {
		code, err := runCodegen(ctx)
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

func runCodegen(ctx *cli.Context) (int, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return 1, err
	}

	log, err := applog.New("codegen", applog.Level(ctx.Bool("verbose"), cfg.LogLevel))
	if err != nil {
		return 1, errors.Wrap(err, "building logger")
	}
	defer func() { _ = log.Sync() }()

	inputPath, outputPath, err := resolvePaths(ctx)
	if err != nil {
		return 1, err
	}

	if os.Getenv("PARSER_DEBUG") != "" {
		log.Debugw("parser trace enabled via PARSER_DEBUG", "input", inputPath)
	}

	inFile, err := os.Open(inputPath)
	if err != nil {
		return 1, errors.Wrapf(err, "opening input %q", inputPath)
	}
	defer inFile.Close()

	root, err := astree.Parse(inFile)
	if err != nil {
		log.Errorw("parse failure", "input", inputPath, "error", err)
		return 1, errors.Wrapf(err, "parsing %q", inputPath)
	}
	if root == nil {
		return 1, errors.Errorf("no AST root produced for %q", inputPath)
	}

	env := typeenv.Build(root)
	asm, err := codegen.Generate(root, env, cfg.CodegenOptions())
	if err != nil {
		log.Errorw("code generation failed", "input", inputPath, "error", err)
		return 1, errors.Wrap(err, "generating assembly")
	}

	if err := os.WriteFile(outputPath, []byte(asm), 0o644); err != nil {
		return 1, errors.Wrapf(err, "writing output %q", outputPath)
	}
	log.Infow("compiled", "input", inputPath, "output", outputPath)
	return 0, nil
}

func resolvePaths(ctx *cli.Context) (input, output string, err error) {
	args := []string(ctx.Args())
	if ctx.IsSet("o") {
		if len(args) != 1 {
			return "", "", errors.New("usage: codegen <input> -o <output>")
		}
		return args[0], ctx.String("o"), nil
	}
	if len(args) != 2 {
		return "", "", errors.New("usage: codegen <input> <output>")
	}
	return args[0], args[1], nil
}
