// Package main provides the bmmgr CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks command-line mistakes: bad flags, wrong argument counts,
// ambiguous selections.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, color.New(color.FgRed, color.Bold).Sprint("error:"), err)
	return exitCode(err)
}

// exitCode maps caller mistakes to exitUserError and everything else to
// exitSysError.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errUsage),
		errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrDuplicateKey),
		errors.Is(err, types.ErrUnknownLocation),
		errors.Is(err, types.ErrLocationEmpty):
		return exitUserError
	default:
		return exitSysError
	}
}
