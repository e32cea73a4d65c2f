package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListJobsCmd() *cobra.Command {
	var state string
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "list-jobs",
		Short: "List jobs, optionally filtered by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := coreFromEnv()
			if err != nil {
				return err
			}
			items, total, err := core.Jobs.List(state, skip, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tIMAGE\tEXIT CODE")
			for _, j := range items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", j.ID, j.State, j.Image, j.ExitCode)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d job(s)\n", len(items), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "filter by a substring of the projected state")
	cmd.Flags().IntVar(&skip, "skip", 0, "number of jobs to skip")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of jobs to return")
	return cmd
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <job-id>",
		Short: "Print a job's captured stdout/stderr log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			core, err := coreFromEnv()
			if err != nil {
				return err
			}
			b, err := os.ReadFile(core.Store.JobLog(id))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	return cmd
}

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state <job-id> [start|stop]",
		Short: "Read or change a job's state",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			core, err := coreFromEnv()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				state, err := core.Jobs.State(id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), state)
				return nil
			}
			verb := args[1]
			if err := core.Jobs.SetState(id, verb); err != nil {
				return err
			}
			if verb != "start" {
				return nil
			}
			handle, err := core.Runner.Launch(id)
			if err != nil {
				return err
			}
			exitCode, err := handle.Wait()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exit code %d\n", exitCode)
			return nil
		},
	}
	return cmd
}
