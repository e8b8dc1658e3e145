// Command inkspect analyzes the vector colors of a PDF file and
// prints a JSON report.
//
// Usage:
//
//	inkspect [--debug] file.pdf
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/inkspect/inkspect"
	"github.com/inkspect/inkspect/pkg/logging"
)

func main() {
	debug := flag.Bool("debug", false, "enable diagnostic output on stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [--debug] FILE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if *debug {
		logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	rep, err := inkspect.Analyze(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, err := rep.MarshalIndent()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	// Partial success still reports, but the exit code flags it.
	if len(rep.Errors) > 0 {
		for _, pe := range rep.Errors {
			fmt.Fprintf(os.Stderr, "Error: %v\n", pe)
		}
		os.Exit(1)
	}
}
