package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snapsheet/internal/dataset"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit IMAGE FIELD=VALUE [FIELD=VALUE...]",
		Short: "Update one row of the current dataset",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := strings.TrimSpace(args[0])
			if image == "" {
				return errors.New("image name is required")
			}

			row := map[string]string{dataset.ImageColumn: image}
			for _, pair := range args[1:] {
				field, value, ok := strings.Cut(pair, "=")
				field = strings.TrimSpace(field)
				if !ok || field == "" {
					return fmt.Errorf("expected FIELD=VALUE, got %q", pair)
				}
				if field == dataset.ImageColumn {
					return errors.New("the Image column identifies the row and cannot be edited")
				}
				row[field] = value
			}

			if _, err := ctx.client().SaveRow(cmd.Context(), row); err != nil {
				return fmt.Errorf("save row: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated row for %s\n", image)
			return nil
		},
	}
	return cmd
}
