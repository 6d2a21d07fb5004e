package main

import (
	"fmt"
	"io"
	"os"

	"github.com/tidwall/pretty"
	"golang.org/x/term"
)

// Status lines go to stderr so stdout stays machine-readable.

func printSuccess(msg string) {
	fmt.Fprintf(os.Stderr, "\033[0;32m[OK]\033[0m %s\n", msg)
}

func printInfo(msg string) {
	fmt.Fprintf(os.Stderr, "\033[0;34m[INFO]\033[0m %s\n", msg)
}

func printWarn(msg string) {
	fmt.Fprintf(os.Stderr, "\033[1;33m[WARN]\033[0m %s\n", msg)
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "\033[0;31m[ERROR]\033[0m %s\n", msg)
}

// writeJSON pretty-prints data to w, colorized when w is a terminal.
func writeJSON(w io.Writer, data []byte) error {
	out := pretty.Pretty(data)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out = pretty.Color(out, nil)
	}
	_, err := w.Write(out)
	return err
}
