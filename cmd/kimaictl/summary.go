package main

import (
	"fmt"
	"time"

	"alteran/kimai-agent/internal/filter"
	"alteran/kimai-agent/internal/kimai"
	"alteran/kimai-agent/internal/timeutil"

	"github.com/spf13/cobra"
)

var (
	summaryToday bool
	summaryWeek  bool
)

func init() {
	summaryCmd.Flags().BoolVar(&summaryToday, "today", false, "Only today's entries")
	summaryCmd.Flags().BoolVar(&summaryWeek, "week", false, "Only this week's entries")
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Sum tracked time and earnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if summaryToday && summaryWeek {
			return fmt.Errorf("--today and --week are mutually exclusive")
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.requireConfigured(); err != nil {
			return err
		}

		e.service.Refresh()
		if err := e.service.LoadHistory(true); err != nil {
			return err
		}

		entries := e.service.History()
		now := time.Now()
		label := "All fetched entries"
		switch {
		case summaryToday:
			entries = filter.Today(entries, now)
			label = "Today"
		case summaryWeek:
			entries = filter.ThisWeek(entries, now)
			label = "This week"
		}

		printSummary(label, entries, e.cfg.CurrencySuffix)
		return nil
	},
}

func printSummary(label string, entries []kimai.Timesheet, currency string) {
	fmt.Println(label)
	fmt.Println("  Entries: ", len(entries))
	fmt.Println("  Tracked: ", timeutil.FormatDuration(filter.TotalDuration(entries)))
	if total := filter.TotalRate(entries); total > 0 {
		fmt.Printf("  Earnings: %.2f %s\n", total, currency)
	}
}
