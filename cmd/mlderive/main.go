// Command mlderive generates Go types with managed-value conversions from
// a YAML declaration file.
//
//	mlderive -in decl.yaml -out types_ml.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wippyai/mlbridge/derive/gen"
)

func main() {
	var (
		in    = flag.String("in", "", "Path to the YAML declaration file")
		out   = flag.String("out", "", "Output Go file (stdout when empty)")
		check = flag.Bool("check", false, "Validate declarations without writing output")
	)
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "Usage: mlderive -in <decl.yaml> [-out types_ml.go]")
		fmt.Fprintln(os.Stderr, "       mlderive -in <decl.yaml> -check")
		os.Exit(2)
	}

	if err := run(*in, *out, *check, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(in, out string, check bool, stdout io.Writer) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read declarations: %w", err)
	}
	f, err := gen.Parse(data)
	if err != nil {
		return err
	}
	if check {
		if err := f.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: %d types ok\n", in, len(f.Types))
		return nil
	}

	src, err := gen.Generate(f)
	if err != nil {
		return err
	}
	if out == "" {
		_, err = stdout.Write(src)
		return err
	}
	if err := os.WriteFile(out, src, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
