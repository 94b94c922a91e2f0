package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

func newBatchesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List recorded upload batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Batches(cmd.Context())
			if err != nil {
				return fmt.Errorf("list batches: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(resp.Batches) == 0 {
				fmt.Fprintln(out, "No batches recorded")
				return nil
			}

			rows := make([][]string, 0, len(resp.Batches))
			for _, batch := range resp.Batches {
				rows = append(rows, []string{
					batch.BatchID,
					filepath.Base(batch.DatasetPath),
					strconv.Itoa(batch.Images),
					strconv.Itoa(batch.Failures),
					batch.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Batch", "Dataset", "Images", "Failures", "Created"}, rows))
			return nil
		},
	}
}
