package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rshade/cmsbulk/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // Set by the linker

func main() {
	os.Exit(extractExitCode(run()))
}

func run() error {
	root := cli.NewRootCmd(version)
	err := root.ExecuteContext(context.Background())
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// extractExitCode maps an error from run to a process exit code.
func extractExitCode(err error) int {
	if err == nil {
		return cli.ExitCodeOK
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return cli.ExitCodeError
}
