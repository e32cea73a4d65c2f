// Command resctl is a small operator CLI against the on-disk store: list
// jobs, print a log, read or change a job's state, upload an image or
// script with a progress bar. Grounded on cmd/root.go's cobra tree, trimmed of the
// knative-specific flag plumbing this domain has no use for.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mati2251/res"
	"github.com/mati2251/res/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "resctl",
		Short:         "Operate a res store directly, bypassing the HTTP API",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newListJobsCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newPutImageCmd())
	root.AddCommand(newPutScriptCmd())
	root.AddCommand(newStateCmd())

	return root
}

// coreFromEnv builds a res.Core from the same config resd would load, so
// resctl always operates on the daemon's configured store.
func coreFromEnv() (*res.Core, error) {
	cfg, err := config.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	c := res.NewFromConfig(cfg)
	if err := c.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("preparing store directories: %w", err)
	}
	return c, nil
}
