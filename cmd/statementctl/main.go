// Command statementctl runs the statement pipeline on local files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// Exit codes beyond the generic failure.
const (
	exitFailure    = 1
	exitInvalid    = 2
	exitEncrypted  = 3
	exitCorruptPDF = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, statement.ErrEncrypted):
		return exitEncrypted
	case errors.Is(err, statement.ErrCorrupt):
		return exitCorruptPDF
	case errors.Is(err, statement.ErrValidationFailed):
		return exitInvalid
	default:
		return exitFailure
	}
}
