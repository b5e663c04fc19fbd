package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/danee593/carris-encm/internal/cli"
	"github.com/danee593/carris-encm/pkg/encm"
)

func main() {
	// Recover from panics to exit with a stack trace and ExitPanic
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(encm.ExitPanic)
		}
	}()

	if err := cli.Execute(); err != nil {
		os.Exit(encm.ExitCodeForError(err))
	}
}
