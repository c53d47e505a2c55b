package kimai

import (
	"encoding/json"
	"fmt"
	"time"

	"alteran/kimai-agent/internal/timeutil"
)

// User is the authenticated account, used only to verify credentials
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Project is a Kimai project with its owning customer
type Project struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Customer    int     `json:"customer"`
	ParentTitle *string `json:"parentTitle,omitempty"`
	Visible     bool    `json:"visible"`
	Color       *string `json:"color,omitempty"`
}

// CustomerName returns the embedded customer display name, or ""
func (p Project) CustomerName() string {
	if p.ParentTitle != nil {
		return *p.ParentTitle
	}
	return ""
}

// DisplayName combines customer and project names for display
func (p Project) DisplayName() string {
	if name := p.CustomerName(); name != "" {
		return fmt.Sprintf("%s — %s", name, p.Name)
	}
	return p.Name
}

// Activity is a Kimai activity, optionally scoped to one project
type Activity struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Project     *int    `json:"project,omitempty"`
	Visible     bool    `json:"visible"`
	Color       *string `json:"color,omitempty"`
	ParentTitle *string `json:"parentTitle,omitempty"`
	Comment     *string `json:"comment,omitempty"`
}

type activityWire struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Project     *int    `json:"project"`
	Visible     *bool   `json:"visible"`
	Color       *string `json:"color"`
	ParentTitle *string `json:"parentTitle"`
	Comment     *string `json:"comment"`
}

// UnmarshalJSON defaults a missing visible flag to true
func (a *Activity) UnmarshalJSON(data []byte) error {
	var wire activityWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Activity{
		ID:          wire.ID,
		Name:        wire.Name,
		Project:     wire.Project,
		Color:       wire.Color,
		ParentTitle: wire.ParentTitle,
		Comment:     wire.Comment,
		Visible:     true,
	}
	if wire.Visible != nil {
		a.Visible = *wire.Visible
	}
	return nil
}

// Rate is a project- or activity-level rate definition
type Rate struct {
	ID           int       `json:"id"`
	User         *RateUser `json:"user,omitempty"`
	Rate         float64   `json:"rate"`
	InternalRate *float64  `json:"internalRate,omitempty"`
	IsFixed      bool      `json:"isFixed"`
}

// RateUser references the user a rate is scoped to
type RateUser struct {
	ID int `json:"id"`
}

// Timesheet is one recorded or in-progress span of tracked time.
// A nil End marks the active entry; the server keeps at most one.
type Timesheet struct {
	ID           int
	Begin        string
	End          *string
	Duration     *int
	ProjectID    int
	ProjectName  *string
	ActivityID   int
	ActivityName *string
	Description  *string
	Tags         []string
	Rate         *float64
}

type timesheetWire struct {
	ID          int             `json:"id"`
	Begin       string          `json:"begin"`
	End         *string         `json:"end"`
	Duration    *int            `json:"duration"`
	Project     json.RawMessage `json:"project"`
	Activity    json.RawMessage `json:"activity"`
	Description *string         `json:"description"`
	Tags        []string        `json:"tags"`
	Rate        *float64        `json:"rate"`
}

type entityRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// decodeRef handles fields that arrive as either a bare integer id or
// an embedded {id, name} object. Object shape is tried first, then the
// bare integer; anything else is treated as missing.
func decodeRef(raw json.RawMessage) (int, *string) {
	if len(raw) == 0 {
		return 0, nil
	}
	var ref entityRef
	if err := json.Unmarshal(raw, &ref); err == nil && ref.ID != 0 {
		name := ref.Name
		return ref.ID, &name
	}
	var id int
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	return 0, nil
}

func (t *Timesheet) UnmarshalJSON(data []byte) error {
	var wire timesheetWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*t = Timesheet{
		ID:          wire.ID,
		Begin:       wire.Begin,
		End:         wire.End,
		Duration:    wire.Duration,
		Description: wire.Description,
		Tags:        wire.Tags,
		Rate:        wire.Rate,
	}
	t.ProjectID, t.ProjectName = decodeRef(wire.Project)
	t.ActivityID, t.ActivityName = decodeRef(wire.Activity)
	return nil
}

func (t Timesheet) MarshalJSON() ([]byte, error) {
	return json.Marshal(timesheetWire{
		ID:          t.ID,
		Begin:       t.Begin,
		End:         t.End,
		Duration:    t.Duration,
		Project:     json.RawMessage(fmt.Sprintf("%d", t.ProjectID)),
		Activity:    json.RawMessage(fmt.Sprintf("%d", t.ActivityID)),
		Description: t.Description,
		Tags:        t.Tags,
		Rate:        t.Rate,
	})
}

// IsActive reports whether this is the running entry
func (t Timesheet) IsActive() bool {
	return t.End == nil
}

// BeginTime parses the begin timestamp
func (t Timesheet) BeginTime() (time.Time, error) {
	return timeutil.Parse(t.Begin)
}

// EndTime parses the end timestamp; zero time for the active entry
func (t Timesheet) EndTime() (time.Time, error) {
	if t.End == nil {
		return time.Time{}, nil
	}
	return timeutil.Parse(*t.End)
}

// ResolvedProjectName prefers the embedded name, then the cached
// project list, then a placeholder
func (t Timesheet) ResolvedProjectName(projects []Project) string {
	if t.ProjectName != nil {
		return *t.ProjectName
	}
	for _, p := range projects {
		if p.ID == t.ProjectID {
			return p.Name
		}
	}
	return fmt.Sprintf("Project #%d", t.ProjectID)
}

// ResolvedActivityName prefers the embedded name, then the cached
// activity list, then a placeholder
func (t Timesheet) ResolvedActivityName(activities []Activity) string {
	if t.ActivityName != nil {
		return *t.ActivityName
	}
	for _, a := range activities {
		if a.ID == t.ActivityID {
			return a.Name
		}
	}
	return fmt.Sprintf("Activity #%d", t.ActivityID)
}

// CreateTimesheetRequest is the body for starting a new entry
type CreateTimesheetRequest struct {
	Begin       string  `json:"begin"`
	Project     int     `json:"project"`
	Activity    int     `json:"activity"`
	Description *string `json:"description,omitempty"`
}

// NewCreateTimesheetRequest builds a start request beginning now
func NewCreateTimesheetRequest(projectID, activityID int, description *string) CreateTimesheetRequest {
	return CreateTimesheetRequest{
		Begin:       timeutil.FormatForWire(time.Now()),
		Project:     projectID,
		Activity:    activityID,
		Description: description,
	}
}
