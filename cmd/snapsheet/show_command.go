package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"snapsheet/internal/dataset"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var raw bool
	var asTable bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the current dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ctx.client().LatestCSV(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch dataset: %w", err)
			}

			out := cmd.OutOrStdout()
			if raw || (!asTable && !terminalOutput(out)) {
				_, err := out.Write(data)
				return err
			}

			ds, err := dataset.Decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("parse dataset: %w", err)
			}
			rows := make([][]string, 0, len(ds.Rows))
			for _, row := range ds.Rows {
				record := make([]string, len(ds.Header))
				for i, column := range ds.Header {
					record[i] = row[column]
				}
				rows = append(rows, record)
			}
			fmt.Fprintln(out, renderTable(ds.Header, rows))
			fmt.Fprintf(out, "%d row(s)\n", len(ds.Rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the CSV exactly as stored")
	cmd.Flags().BoolVar(&asTable, "table", false, "Render a table even when output is not a terminal")
	return cmd
}
