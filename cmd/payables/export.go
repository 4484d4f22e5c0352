package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Prygunov-Andrei/finance-sub003/internal/container"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export-registry",
	Short:   "Write the payment registry to an Excel file",
	Example: `  payables export-registry --out registry.xlsx`,
	RunE:    runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("out", "o", "", "Output file (default: registry-YYYY-MM-DD.xlsx)")
}

func runExport(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	return runOneShot(cmd, func(ctx context.Context, c *container.Container) error {
		now := c.Clock().Now()
		if out == "" {
			out = fmt.Sprintf("registry-%s.xlsx", now.Format("2006-01-02"))
		}

		rows, err := c.Services().Dashboard.ListRegistry(ctx, now)
		if err != nil {
			return err
		}

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		if err := c.Exporter().Write(f, rows); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d invoices to %s\n", len(rows), out)
		return nil
	})
}
