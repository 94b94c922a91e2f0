package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapsheet/internal/preflight"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete uploads and datasets past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Sweep(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d file(s) removed)\n", resp.Message, resp.Deleted)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon availability and local readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			address := ctx.apiAddress()
			if err := ctx.client().Health(cmd.Context()); err != nil {
				fmt.Fprintf(out, "Daemon at %s is not responding: %v\n", address, err)
			} else {
				fmt.Fprintf(out, "Daemon at %s is running\n", address)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, 4)
			for _, result := range preflight.RunAll(cfg) {
				status := "FAIL"
				if result.Passed {
					status = "OK"
				}
				rows = append(rows, []string{result.Name, status, result.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows))
			return nil
		},
	}
}
