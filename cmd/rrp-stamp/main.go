// Command rrp-stamp writes the ABI header of this build into a wasm plugin module, so
// the loader accepts it:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o plugin.wasm ./plugins/wasmdemo
//	rrp-stamp plugin.wasm
//
// An existing header section is replaced.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/reglet-dev/robohost/abi"
)

func main() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rrp-stamp: %v\n", err)
		os.Exit(1)
	}
}

func execute(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("rrp-stamp", flag.ContinueOnError)
	output := fs.StringP("output", "o", "", "Write the stamped module here instead of in place")
	quiet := fs.BoolP("quiet", "q", false, "Print nothing on success")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rrp-stamp [-o out.wasm] in.wasm\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one input module is required")
	}
	in := fs.Arg(0)
	out := *output
	if out == "" {
		out = in
	}

	data, err := os.ReadFile(filepath.Clean(in))
	if err != nil {
		return err
	}

	h := abi.CurrentHeader()
	stamped, err := abi.StampHeader(data, h)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(in); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(out, stamped, mode); err != nil {
		return err
	}

	if !*quiet {
		fmt.Fprintf(stdout, "%s: stamped ABI %s\n", out, h.SemVer())
	}
	return nil
}
