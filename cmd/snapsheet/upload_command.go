package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"snapsheet/internal/config"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE [FILE...]",
		Short: "Upload images and generate a dataset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", arg, err)
				}
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("stat %s: %w", arg, err)
				}
				if info.IsDir() {
					return errors.New("directories cannot be uploaded; pass image files")
				}
				paths = append(paths, path)
			}

			resp, err := ctx.client().Upload(cmd.Context(), paths)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded %d image(s) in batch %s\n", resp.Images, resp.BatchID)
			if resp.Failures > 0 {
				fmt.Fprintf(out, "%d image(s) failed generation; their rows carry the error sentinel\n", resp.Failures)
			}
			fmt.Fprintf(out, "Dataset: %s\n", resp.CSVFilePath)
			return nil
		},
	}
}
