package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

const defaultAddr = "http://localhost:8080"

// errSilent marks failures already reported on stderr.
var errSilent = errors.New("silent failure")

func main() {
	exitFn(run(os.Args[1:], os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "geogate",
		Short:         "Geo-compliance decision engine and review ledger client",
		Long:          "geogate corrects draft compliance verdicts against analysis findings\nand talks to a running geogate-gateway.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newDecideCmd())
	root.AddCommand(newPolicyCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newTasksCmd())
	return root
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
