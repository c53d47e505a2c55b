package main

import (
	"fmt"
	"time"

	"alteran/kimai-agent/internal/timeutil"

	"github.com/spf13/cobra"
)

// snapshotCmd reads the state the agent last published. It never talks
// to the server, so it stays fast and works offline; widget-style
// consumers poll it.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the agent's last published tracking state",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		snap, ok, err := e.snapshots.Read()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No snapshot; is the agent running?")
			return nil
		}

		if !snap.IsTracking {
			fmt.Println("Idle")
		} else {
			project := "?"
			if snap.ProjectName != nil {
				project = *snap.ProjectName
			}
			activity := "?"
			if snap.ActivityName != nil {
				activity = *snap.ActivityName
			}
			fmt.Printf("Tracking  %s / %s\n", project, activity)
			if snap.Begin != nil {
				fmt.Println("Elapsed  ", timeutil.FormatElapsed(time.Since(*snap.Begin)))
			}
		}
		fmt.Println("Last sync", snap.LastSync.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}
