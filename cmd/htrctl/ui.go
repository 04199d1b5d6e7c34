package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// out is the colored stderr reporter; transcripts themselves go to stdout so
// they stay pipeable.
var out = struct {
	ok   func(format string, a ...any)
	warn func(format string, a ...any)
	fail func(format string, a ...any)
}{
	ok:   stderrPrinter(color.New(color.FgGreen)),
	warn: stderrPrinter(color.New(color.FgYellow)),
	fail: stderrPrinter(color.New(color.FgRed, color.Bold)),
}

func stderrPrinter(c *color.Color) func(format string, a ...any) {
	return func(format string, a ...any) {
		_, _ = c.Fprintln(os.Stderr, fmt.Sprintf(format, a...))
	}
}
