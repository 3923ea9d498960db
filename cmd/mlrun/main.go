// Command mlrun calls the demo externals of a managed runtime from the
// command line or an interactive terminal UI.
//
//	mlrun -list
//	mlrun -func demo_add 1 2
//	mlrun -func centroid '[{x: 0, y: 0}, {x: 2, y: 4}]'
//	mlrun -i
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/mlbridge/derive"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/runtime"
)

type options struct {
	funcName string
	args     []string
	memory   string
	minor    int
	major    int
	list     bool
	stats    bool
	verbose  bool
}

func main() {
	var (
		opts        options
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.StringVar(&opts.funcName, "func", "", "External to call; remaining arguments are its parameters as YAML")
	flag.BoolVar(&opts.list, "list", false, "List externals with their managed types and exit")
	flag.BoolVar(&opts.stats, "stats", false, "Print collector statistics after the call")
	flag.StringVar(&opts.memory, "memory", "wazero", "Heap backing: wazero or slice")
	flag.IntVar(&opts.minor, "minor", runtime.DefaultMinorWords, "Minor heap size in words")
	flag.IntVar(&opts.major, "major", runtime.DefaultMajorWords, "Major semispace size in words")
	flag.BoolVar(&opts.verbose, "v", false, "Debug logging")
	flag.Parse()
	opts.args = flag.Args()

	if opts.funcName == "" && !opts.list && !*interactive {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			*interactive = true
		} else {
			opts.list = true
		}
	}

	if *interactive {
		if err := runInteractive(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o options) config() (*runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	cfg.MinorWords = o.minor
	cfg.MajorWords = o.major
	switch o.memory {
	case "", "wazero":
		cfg.Memory = runtime.MemoryWazero
	case "slice":
		cfg.Memory = runtime.MemorySlice
	default:
		return nil, fmt.Errorf("unknown memory backing %q", o.memory)
	}
	if o.verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		cfg.Logger = log
		ffi.SetLogger(log)
		derive.SetLogger(log)
	}
	return cfg, nil
}

func run(opts options, stdout io.Writer) error {
	ctx := context.Background()

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if opts.list || opts.funcName == "" {
		fmt.Fprintln(stdout, "Externals:")
		for _, f := range s.funcs {
			fmt.Fprintf(stdout, "  %s\n", f.signature())
		}
		return nil
	}

	res, err := s.call(opts.funcName, opts.args)
	if err != nil {
		var exn *ffi.Exception
		if stderrors.As(err, &exn) {
			return fmt.Errorf("%s raised %s: %s", opts.funcName, exn.Name(), exn.Message())
		}
		return err
	}

	fmt.Fprintf(stdout, "Result: %s\n", res.described)
	if res.decoded != "" {
		fmt.Fprintf(stdout, "Go:     %s\n", res.decoded)
	}
	if opts.stats {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, formatStats(res.stats))
	}
	return nil
}
