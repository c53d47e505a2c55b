package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"alteran/kimai-agent/internal/filter"
	"alteran/kimai-agent/internal/kimai"

	"github.com/spf13/cobra"
)

var (
	projectsSearch  string
	projectsGrouped bool
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List visible projects",
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
		projects := filter.Projects(e.service.Projects(), projectsSearch)

		if len(projects) == 0 {
			fmt.Println("No projects")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()

		if projectsGrouped {
			for _, group := range filter.GroupByCustomer(projects) {
				fmt.Fprintf(w, "%s\t\n", group.Customer)
				for _, p := range group.Projects {
					fmt.Fprintf(w, "  %d\t%s\n", p.ID, p.Name)
				}
			}
			return nil
		}

		fmt.Fprintln(w, "ID\tPROJECT\tCUSTOMER")
		for _, p := range projects {
			fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Name, p.CustomerName())
		}
		return nil
	},
}

var activitiesProject int

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "List visible activities",
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

		activities := e.service.Activities()
		if activitiesProject > 0 {
			scoped := make([]kimai.Activity, 0, len(activities))
			for _, a := range activities {
				if a.Project == nil || *a.Project == activitiesProject {
					scoped = append(scoped, a)
				}
			}
			activities = scoped
		}

		if len(activities) == 0 {
			fmt.Println("No activities")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintln(w, "ID\tACTIVITY\tPROJECT")
		for _, a := range activities {
			scope := "(global)"
			if a.Project != nil {
				scope = strconv.Itoa(*a.Project)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.Name, scope)
		}
		return nil
	},
}

func init() {
	projectsCmd.Flags().StringVar(&projectsSearch, "search", "", "Filter by project or customer name")
	projectsCmd.Flags().BoolVar(&projectsGrouped, "grouped", false, "Group projects by customer")

	activitiesCmd.Flags().IntVar(&activitiesProject, "project", 0, "Only activities usable with this project")
}
