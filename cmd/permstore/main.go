package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/permstore/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Usage errors from cobra (unknown command, wrong arg count).
		// Commands report their own failures.
		fmt.Fprintln(os.Stderr, "Error:", err)
		err = cli.WrapExitError(cli.ExitCommandError, "invalid invocation", err)
	}
	os.Exit(cli.GetExitCode(err))
}
