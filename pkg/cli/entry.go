package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/funvibe/tyunify/internal/config"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/pipeline"
	"github.com/funvibe/tyunify/internal/prettyprinter"
	"github.com/funvibe/tyunify/internal/signatures"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitDiagnostics = 1 // solved, but error-severity diagnostics were reported
	ExitInput       = 2 // nothing could be solved
)

const usage = `Usage:
  tyunify [options] <program.yaml>       solve an IR document, print the solution
  tyunify sigs import <sigs.yaml> <db>   store a signature file in an sqlite table
  tyunify sigs list [<db>]               list the active signature table
  tyunify help | -version

Options:
  -config <path>   use this tyunify.yaml instead of searching for one
  -o <path>        write the solution to path instead of stdout
  -annotate        print the program with solved types and casts instead of YAML
  -watch           solve again whenever the program file changes
  -debug           log every stage to stderr
`

// options are the parsed flags of the solve command.
type options struct {
	configPath string
	outPath    string
	annotate   bool
	watch      bool
	debug      bool
	file       string
}

// Run is the entry point of the tyunify binary.
func Run() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(ExitInput)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := Main(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Main runs the command line args and returns the exit code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if code, ok := handleHelp(args, stdout); ok {
		return code
	}
	if code, ok := handleVersion(args, stdout); ok {
		return code
	}
	if code, ok := handleSigs(ctx, args, stdout, stderr); ok {
		return code
	}

	opts, err := parseOptions(args[1:])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n\n%s", err, usage)
		return ExitInput
	}
	if opts.watch {
		return watchAndSolve(ctx, opts, stdout, stderr)
	}
	return solveFile(ctx, opts, stdout, stderr)
}

func handleHelp(args []string, stdout io.Writer) (int, bool) {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return ExitInput, true
	}
	switch args[1] {
	case "help", "-help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return ExitOK, true
	}
	return 0, false
}

func handleVersion(args []string, stdout io.Writer) (int, bool) {
	if len(args) != 2 {
		return 0, false
	}
	switch args[1] {
	case "-v", "-version", "--version":
		fmt.Fprintln(stdout, "tyunify "+config.Version)
		return ExitOK, true
	}
	return 0, false
}

func parseOptions(args []string) (*options, error) {
	opts := &options{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-config", "--config", "-o", "--output":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s needs a value", arg)
			}
			i++
			if strings.HasPrefix(arg, "-c") || strings.HasPrefix(arg, "--c") {
				opts.configPath = args[i]
			} else {
				opts.outPath = args[i]
			}
		case "-annotate", "--annotate":
			opts.annotate = true
		case "-watch", "--watch":
			opts.watch = true
		case "-debug", "--debug":
			opts.debug = true
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown option %s", arg)
			}
			if opts.file != "" {
				return nil, fmt.Errorf("only one program file may be given (got %s and %s)", opts.file, arg)
			}
			opts.file = arg
		}
	}
	if opts.file == "" {
		return nil, fmt.Errorf("missing program file")
	}
	if !isIRFile(opts.file) {
		return nil, fmt.Errorf("%s: expected one of %s", opts.file, strings.Join(config.IRFileExtensions, ", "))
	}
	return opts, nil
}

// isIRFile checks if a file has a recognized IR extension
func isIRFile(path string) bool {
	for _, ext := range config.IRFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func newLogger(debug bool, stderr io.Writer) *slog.Logger {
	if !debug {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// loadConfig uses the explicit path if there is one, else the nearest
// tyunify.yaml above dir, else the defaults.
func loadConfig(explicit, dir string) (*config.Config, error) {
	if explicit != "" {
		return config.LoadConfig(explicit)
	}
	found, err := config.FindConfig(dir)
	if err != nil {
		return nil, err
	}
	if found == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(found)
}

// solveFile runs the engine once over opts.file.
func solveFile(ctx context.Context, opts *options, stdout, stderr io.Writer) int {
	logger := newLogger(opts.debug, stderr)
	r := newRenderer(stderr)

	cfg, err := loadConfig(opts.configPath, filepath.Dir(opts.file))
	if err != nil {
		r.diagnostic(diagnostics.NewError(diagnostics.ErrI001, ir.Location{}, err.Error()))
		return ExitInput
	}
	sigs, err := signatures.Load(ctx, cfg.Signatures)
	if err != nil {
		r.diagnostic(diagnostics.NewError(diagnostics.ErrI002, ir.Location{}, err.Error()))
		return ExitInput
	}
	prog, err := ir.Load(opts.file)
	if err != nil {
		r.diagnostic(diagnostics.NewError(diagnostics.ErrI001, ir.Location{File: opts.file}, err.Error()))
		return ExitInput
	}
	logger.Debug("solving", "file", opts.file, "signatures", sigs.Len(), "max_iterations", cfg.MaxIterations)

	pc := pipeline.Engine().Run(pipeline.NewPipelineContext(ctx, prog, cfg, sigs, logger))
	for _, d := range pc.Errors {
		r.diagnostic(d)
	}
	if pc.Solution == nil {
		return ExitInput
	}

	if err := writeSolution(pc, opts, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return ExitInput
	}
	r.summary(pc)
	if pc.HasErrors() {
		return ExitDiagnostics
	}
	return ExitOK
}

func writeSolution(pc *pipeline.PipelineContext, opts *options, stdout io.Writer) error {
	encode := pc.Solution.Encode
	if opts.annotate {
		encode = func(w io.Writer) error {
			_, err := io.WriteString(w, prettyprinter.NewAnnotatingPrinter(pc.Solution).PrintProgram(pc.Program))
			return err
		}
	}
	if opts.outPath == "" {
		return encode(stdout)
	}
	f, err := os.Create(opts.outPath)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// handleSigs implements `tyunify sigs import|list`.
func handleSigs(ctx context.Context, args []string, stdout, stderr io.Writer) (int, bool) {
	if len(args) < 3 || args[1] != "sigs" {
		return 0, false
	}

	switch sub := args[2]; sub {
	case "import":
		if len(args) != 5 {
			fmt.Fprintf(stderr, "Usage: %s sigs import <sigs.yaml> <db>\n", args[0])
			return ExitInput, true
		}
		t, err := signatures.LoadFile(args[3])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return ExitInput, true
		}
		store, err := signatures.OpenStore(args[4])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return ExitInput, true
		}
		defer store.Close()
		if err := store.Save(ctx, t); err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return ExitInput, true
		}
		fmt.Fprintf(stdout, "Imported %d signatures into %s\n", t.Len(), args[4])
		return ExitOK, true

	case "list":
		var cfg config.SignaturesConfig
		switch len(args) {
		case 3:
			c, err := loadConfig("", ".")
			if err != nil {
				fmt.Fprintf(stderr, "Error: %s\n", err)
				return ExitInput, true
			}
			cfg = c.Signatures
		case 4:
			cfg.Database = args[3]
		default:
			fmt.Fprintf(stderr, "Usage: %s sigs list [<db>]\n", args[0])
			return ExitInput, true
		}
		t, err := signatures.Load(ctx, cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return ExitInput, true
		}
		for _, name := range t.Names() {
			sig, _ := t.Lookup(name)
			fmt.Fprintf(stdout, "  %-20s %s\n", name, sig)
		}
		return ExitOK, true

	default:
		fmt.Fprintf(stderr, "Unknown sigs subcommand: %s\n", sub)
		fmt.Fprintln(stderr, "Available: import, list")
		return ExitInput, true
	}
}
