package main

import (
	"fmt"

	"alteran/kimai-agent/internal/timeutil"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current tracking state",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.requireConfigured(); err != nil {
			return err
		}

		e.service.Refresh()

		conn := e.service.Connection()
		if !conn.Connected {
			fmt.Println("Disconnected:", conn.LastError)
			return nil
		}

		active, ok := e.service.Active()
		if !ok {
			fmt.Println("Idle, no active entry")
			return nil
		}

		fmt.Printf("Tracking  %s / %s\n",
			active.ResolvedProjectName(e.service.Projects()),
			active.ResolvedActivityName(e.service.Activities()),
		)
		if active.Description != nil && *active.Description != "" {
			fmt.Println("Note     ", *active.Description)
		}
		fmt.Println("Elapsed  ", timeutil.FormatElapsed(e.service.Elapsed()))
		if earnings, ok := e.service.FormattedEarnings(e.cfg.CurrencySuffix); ok {
			fmt.Println("Earnings ", earnings)
		}
		return nil
	},
}
