package filter

import (
	"sort"
	"strings"
	"time"

	"alteran/kimai-agent/internal/kimai"
	"alteran/kimai-agent/internal/timeutil"
)

// NoCustomerGroup labels the project group for projects without a
// customer display name
const NoCustomerGroup = "No customer"

// Projects returns projects whose name or customer name contains the
// search text, case-insensitively. An empty search keeps everything.
func Projects(projects []kimai.Project, search string) []kimai.Project {
	if search == "" {
		return projects
	}
	needle := strings.ToLower(search)

	var out []kimai.Project
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.CustomerName()), needle) {
			out = append(out, p)
		}
	}
	return out
}

// ProjectGroup is one customer's projects
type ProjectGroup struct {
	Customer string
	Projects []kimai.Project
}

// GroupByCustomer groups projects by customer display name, mapping a
// blank customer to NoCustomerGroup, sorted case-insensitively by
// group name
func GroupByCustomer(projects []kimai.Project) []ProjectGroup {
	byCustomer := make(map[string][]kimai.Project)
	for _, p := range projects {
		name := p.CustomerName()
		if name == "" {
			name = NoCustomerGroup
		}
		byCustomer[name] = append(byCustomer[name], p)
	}

	groups := make([]ProjectGroup, 0, len(byCustomer))
	for customer, members := range byCustomer {
		groups = append(groups, ProjectGroup{Customer: customer, Projects: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Customer) < strings.ToLower(groups[j].Customer)
	})
	return groups
}

// TimesheetFilter selects entries by project, inclusive begin-date
// range and substring search over resolved names and description.
// Nil fields match everything.
type TimesheetFilter struct {
	ProjectID *int
	From      *time.Time
	To        *time.Time
	Search    string
}

// Timesheets applies the filter over cached entries. Name resolution
// uses the cached project and activity collections.
func Timesheets(sheets []kimai.Timesheet, projects []kimai.Project, activities []kimai.Activity, f TimesheetFilter) []kimai.Timesheet {
	needle := strings.ToLower(f.Search)

	var out []kimai.Timesheet
	for _, ts := range sheets {
		if f.ProjectID != nil && ts.ProjectID != *f.ProjectID {
			continue
		}
		if f.From != nil || f.To != nil {
			begin, err := ts.BeginTime()
			if err != nil {
				continue
			}
			if f.From != nil && begin.Before(*f.From) {
				continue
			}
			if f.To != nil && begin.After(*f.To) {
				continue
			}
		}
		if needle != "" {
			projectName := strings.ToLower(ts.ResolvedProjectName(projects))
			activityName := strings.ToLower(ts.ResolvedActivityName(activities))
			description := ""
			if ts.Description != nil {
				description = strings.ToLower(*ts.Description)
			}
			if !strings.Contains(projectName, needle) &&
				!strings.Contains(activityName, needle) &&
				!strings.Contains(description, needle) {
				continue
			}
		}
		out = append(out, ts)
	}
	return out
}

// Today returns entries whose begin falls on now's calendar day
func Today(sheets []kimai.Timesheet, now time.Time) []kimai.Timesheet {
	start := timeutil.StartOfDay(now)
	end := start.AddDate(0, 0, 1)
	return between(sheets, start, end)
}

// ThisWeek returns entries whose begin falls within now's ISO week
func ThisWeek(sheets []kimai.Timesheet, now time.Time) []kimai.Timesheet {
	start := timeutil.StartOfWeek(now)
	end := start.AddDate(0, 0, 7)
	return between(sheets, start, end)
}

func between(sheets []kimai.Timesheet, start, end time.Time) []kimai.Timesheet {
	var out []kimai.Timesheet
	for _, ts := range sheets {
		begin, err := ts.BeginTime()
		if err != nil {
			continue
		}
		if !begin.Before(start) && begin.Before(end) {
			out = append(out, ts)
		}
	}
	return out
}

// TotalDuration sums entry durations in seconds
func TotalDuration(sheets []kimai.Timesheet) int {
	total := 0
	for _, ts := range sheets {
		if ts.Duration != nil {
			total += *ts.Duration
		}
	}
	return total
}

// TotalRate sums entry rates
func TotalRate(sheets []kimai.Timesheet) float64 {
	total := 0.0
	for _, ts := range sheets {
		if ts.Rate != nil {
			total += *ts.Rate
		}
	}
	return total
}
