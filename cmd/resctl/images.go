package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	progress "github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newPutImageCmd() *cobra.Command {
	var etag string
	cmd := &cobra.Command{
		Use:   "put-image <name> <file>",
		Short: "Upload a SIF image blob, reporting upload progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := coreFromEnv()
			if err != nil {
				return err
			}
			data, err := readWithProgress(args[1], fmt.Sprintf("uploading image %s", args[0]))
			if err != nil {
				return err
			}
			newETag, err := core.Images.Put(args[0], data, etag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "etag: %s\n", newETag)
			return nil
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "current etag, required when overwriting an existing image")
	return cmd
}

func newPutScriptCmd() *cobra.Command {
	var etag string
	cmd := &cobra.Command{
		Use:   "put-script <job-id> <file>",
		Short: "Upload a job's script, reporting upload progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			core, err := coreFromEnv()
			if err != nil {
				return err
			}
			data, err := readWithProgress(args[1], fmt.Sprintf("uploading script for job %d", id))
			if err != nil {
				return err
			}
			newETag, err := core.Jobs.PutScript(id, data, etag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "etag: %s\n", newETag)
			return nil
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "current etag, required when overwriting an existing script")
	return cmd
}

// readWithProgress reads path fully into memory while driving a
// progressbar.v3 bar against its size, the same library used elsewhere
// in this ecosystem for build/push progress.
func readWithProgress(path, description string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	bar := progress.NewOptions64(fi.Size(),
		progress.OptionSetVisibility(term.IsTerminal(int(os.Stdout.Fd()))),
		progress.OptionSetDescription(description),
		progress.OptionShowCount(),
		progress.OptionShowBytes(true),
		progress.OptionShowElapsedTimeOnFinish(),
	)
	buf := make([]byte, fi.Size())
	if _, err := io.ReadFull(io.TeeReader(f, bar), buf); err != nil {
		return nil, err
	}
	return buf, nil
}
