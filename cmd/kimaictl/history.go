package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"alteran/kimai-agent/internal/filter"
	"alteran/kimai-agent/internal/timeutil"

	"github.com/spf13/cobra"
)

var (
	historyPages   int
	historyProject int
	historyFrom    string
	historyTo      string
	historySearch  string
)

func init() {
	historyCmd.Flags().IntVar(&historyPages, "pages", 1, "Number of history pages to fetch")
	historyCmd.Flags().IntVar(&historyProject, "project", 0, "Only entries for this project ID")
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "Only entries beginning on or after this date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "Only entries beginning before the end of this date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historySearch, "search", "", "Substring match over project, activity and note")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past time entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.requireConfigured(); err != nil {
			return err
		}

		f := filter.TimesheetFilter{Search: historySearch}
		if historyProject > 0 {
			f.ProjectID = &historyProject
		}
		if historyFrom != "" {
			from, err := time.ParseInLocation("2006-01-02", historyFrom, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --from date: %w", err)
			}
			f.From = &from
		}
		if historyTo != "" {
			to, err := time.ParseInLocation("2006-01-02", historyTo, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --to date: %w", err)
			}
			end := to.AddDate(0, 0, 1)
			f.To = &end
		}

		e.service.Refresh()
		if err := e.service.LoadHistory(true); err != nil {
			return err
		}
		for page := 1; page < historyPages && e.service.HasMoreHistory(); page++ {
			if err := e.service.LoadHistory(false); err != nil {
				return err
			}
		}

		projects := e.service.Projects()
		activities := e.service.Activities()
		entries := filter.Timesheets(e.service.History(), projects, activities, f)
		if len(entries) == 0 {
			fmt.Println("No entries")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBEGIN\tDURATION\tPROJECT\tACTIVITY\tNOTE")
		for _, ts := range entries {
			began := ts.Begin
			if begin, err := ts.BeginTime(); err == nil {
				began = begin.Local().Format("2006-01-02 15:04")
			}
			duration := ""
			if ts.Duration != nil {
				duration = timeutil.FormatDuration(*ts.Duration)
			} else if ts.IsActive() {
				duration = "running"
			}
			note := ""
			if ts.Description != nil {
				note = *ts.Description
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				ts.ID, began, duration,
				ts.ResolvedProjectName(projects),
				ts.ResolvedActivityName(activities),
				note,
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if e.service.HasMoreHistory() {
			fmt.Println("\nMore entries available; raise --pages to fetch them")
		}
		return nil
	},
}
