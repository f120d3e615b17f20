package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chimera-labs/trend-skills/internal/doccheck"
	"github.com/spf13/cobra"
)

// errCheckFailed signals missing files; the report has already been printed.
var errCheckFailed = errors.New("required documentation missing")

func newRootCmd(out io.Writer) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:           "speccheck",
		Short:         "Check that the required project documentation exists",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(out, "Running spec compliance check...")

			report, err := doccheck.Check(root, doccheck.RequiredFiles)
			if err != nil {
				return err
			}

			doccheck.Write(out, report)
			if !report.Passed() {
				return errCheckFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "repository root to check")
	return cmd
}

func run(args []string, out io.Writer) int {
	cmd := newRootCmd(out)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintln(out, "error:", err)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}
