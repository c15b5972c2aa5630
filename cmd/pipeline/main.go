// Command pipeline builds media pipelines from launch descriptions or YAML
// files and runs them until the end of stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"pipelined.dev/pipeline"
)

var (
	successExitCode = 0
	errorExitCode   = 1
	missingExitCode = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return exitCode(stderr, cmd.ExecuteContext(ctx))
}

func newRootCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Build and run media pipelines",
		Long: `pipeline assembles a linear chain of elements from a launch description
or a YAML file, plays it and reports state changes, probes and errors.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(
		newLaunchCommand(out),
		newRunCommand(out),
		newInspectCommand(out),
	)
	return cmd
}

// exitCode prints the error and maps it to the exit code. Missing elements
// are listed one per line.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return successExitCode
	}
	var pe *pipeline.ParseError
	if errors.As(err, &pe) && len(pe.Missing) > 0 {
		fmt.Fprintln(w, "Missing elements:")
		for _, m := range pe.Missing {
			fmt.Fprintf(w, "  %s\n", m)
		}
		return missingExitCode
	}
	fmt.Fprintf(w, "Command failed: %v\n", err)
	return errorExitCode
}
