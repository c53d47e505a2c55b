package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var startDescription string

var startCmd = &cobra.Command{
	Use:   "start <project-id> <activity-id>",
	Short: "Start a timer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}
		activityID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid activity id %q", args[1])
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.requireConfigured(); err != nil {
			return err
		}

		var description *string
		if startDescription != "" {
			description = &startDescription
		}

		if err := e.service.StartTimer(projectID, activityID, description); err != nil {
			return err
		}

		active, _ := e.service.Active()
		fmt.Printf("Started %s / %s\n",
			active.ResolvedProjectName(e.service.Projects()),
			active.ResolvedActivityName(e.service.Activities()),
		)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.requireConfigured(); err != nil {
			return err
		}

		// Discover the active entry first so stop works from a cold start
		e.service.Refresh()

		if err := e.service.StopTimer(); err != nil {
			return err
		}
		fmt.Println("Timer stopped")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart [entry-id]",
	Short: "Restart an entry (defaults to the most recent)",
	Args:  cobra.MaximumNArgs(1),
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

		var entryID int
		if len(args) == 1 {
			entryID, err = strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
		} else {
			recent := e.service.Recent()
			if len(recent) == 0 {
				return fmt.Errorf("no recent entries to restart")
			}
			entryID = recent[0].ID
		}

		if err := e.service.RestartTimer(entryID); err != nil {
			return err
		}

		active, _ := e.service.Active()
		fmt.Printf("Restarted %s / %s\n",
			active.ResolvedProjectName(e.service.Projects()),
			active.ResolvedActivityName(e.service.Activities()),
		)
		return nil
	},
}

func init() {
	startCmd.Flags().StringVarP(&startDescription, "description", "m", "", "Entry description")
}
