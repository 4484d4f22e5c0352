package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/container"
	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Generate the invoices of recurring payments due on a day",
	Long: `Runs one scheduler tick: every active recurring payment whose next
generation date is on or before the given day produces its invoices.
Re-running a tick for the same day creates nothing new.`,
	Example: `  # Generate everything due today
  payables tick

  # Catch up a specific day
  payables tick --date 2026-03-01`,
	RunE: runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)

	tickCmd.Flags().String("date", "", "Business day to run for (format: YYYY-MM-DD, default: today)")
}

func runTick(cmd *cobra.Command, args []string) error {
	dateStr, _ := cmd.Flags().GetString("date")

	return runOneShot(cmd, func(ctx context.Context, c *container.Container) error {
		today := c.Clock().Now()
		if dateStr != "" {
			parsed, err := time.ParseInLocation("2006-01-02", dateStr, today.Location())
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", dateStr, err)
			}
			today = parsed
		}

		report, err := c.Services().Recurring.GenerateDue(ctx, today)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	})
}
