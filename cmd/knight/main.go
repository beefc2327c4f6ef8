// Command knight is the CLI entry point: argument parsing, input
// reading, and optional timing — collaborators that sit outside the
// core lexer/linker/VM pipeline.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/chazu/knight/internal/config"
	"github.com/chazu/knight/internal/env"
	"github.com/chazu/knight/internal/history"
	"github.com/chazu/knight/internal/klog"
	"github.com/chazu/knight/internal/lexer"
	"github.com/chazu/knight/internal/link"
	"github.com/chazu/knight/internal/parser"
	"github.com/chazu/knight/internal/shell"
	"github.com/chazu/knight/internal/snapshot"
	"github.com/chazu/knight/internal/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("knight", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	expr := fs.String("e", "", "evaluate the given expression")
	file := fs.String("f", "", "evaluate the given file")
	debug := fs.Bool("debug", false, "trace opcode dispatch to stderr")
	timeIt := fs.Bool("time", false, "print elapsed wall-clock time to stderr")
	dumpImage := fs.String("dump-image", "", "write the environment's variables and literal pool here on exit")
	loadImage := fs.String("load-image", "", "restore variables and literal pool from a prior --dump-image before running")
	historyPath := fs.String("history", "", "log EVAL splices and the terminal exit status to this SQLite database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: knight [--debug] [--time] [--dump-image <path>] [--load-image <path>] [--history <path>] (-e <expr> | -f <file> | < stdin)\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	cfg, _ := config.Load()
	if *historyPath == "" {
		*historyPath = cfg.HistoryPath
	}
	if *dumpImage == "" {
		*dumpImage = cfg.DumpImage
	}
	if !*debug {
		*debug = cfg.Debug
	}

	source, err := readSource(*expr, *file)
	if err != nil {
		fmt.Fprintln(os.Stdout, err.Error())
		return 1
	}

	logger := klog.Init(0)
	if *debug {
		logger = klog.Init(3)
	}

	e := env.New()

	if *loadImage != "" {
		img, err := snapshot.Load(*loadImage)
		if err != nil {
			fmt.Fprintln(os.Stdout, err.Error())
			return 1
		}
		snapshot.Restore(e, img)
	}

	toks, err := lexer.Tokenize(source)
	if err != nil {
		fmt.Fprintln(os.Stdout, err.Error())
		return 1
	}

	blocks, err := parser.Parse(toks, e)
	if err != nil {
		fmt.Fprintln(os.Stdout, err.Error())
		return 1
	}

	lk := link.New()
	entry, err := lk.Link(blocks)
	if err != nil {
		fmt.Fprintln(os.Stdout, err.Error())
		return 1
	}

	var hist *history.Store
	if *historyPath != "" {
		hist, err = history.Open(*historyPath)
		if err != nil {
			fmt.Fprintln(os.Stdout, err.Error())
			return 1
		}
		defer hist.Close()
	}

	m := vm.New(lk, e, vm.Options{
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Shell:   shell.New(),
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		Debug:   *debug,
		Log:     logger,
		History: hist,
	})

	start := time.Now()
	exitCode, err := m.Run(entry)
	if *timeIt {
		fmt.Fprintf(os.Stderr, "elapsed: %v\n", time.Since(start))
	}
	if err != nil {
		fmt.Fprintln(os.Stdout, err.Error())
		return 1
	}

	if *dumpImage != "" {
		if err := snapshot.Save(*dumpImage, snapshot.Build(e)); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		}
	}

	return exitCode
}

func readSource(expr, file string) (string, error) {
	switch {
	case expr != "":
		return expr, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
}
