package kimai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// CredentialSource provides the server base URL and API token as one
// pair; ok is false unless both are configured.
type CredentialSource interface {
	Credentials() (baseURL, token string, ok bool)
}

// Client handles communication with the Kimai REST API
type Client struct {
	creds      CredentialSource
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// NewClient creates a Kimai API client. connectTimeout bounds dialing
// and the TLS handshake, requestTimeout bounds the whole exchange.
func NewClient(creds CredentialSource, connectTimeout, requestTimeout time.Duration, userAgent string, logger *zap.Logger) *Client {
	return &Client{
		creds: creds,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: connectTimeout,
			},
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// do issues one authenticated JSON request and returns the raw
// response body after status mapping
func (c *Client) do(method, path string, query url.Values, body interface{}) ([]byte, error) {
	baseURL, token, ok := c.creds.Credentials()
	if !ok {
		return nil, newDetailError(ErrNotConfigured, "")
	}

	target, err := url.Parse(baseURL + path)
	if err != nil || target.Host == "" {
		return nil, newDetailError(ErrInvalidURL, baseURL+path)
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, newDetailError(ErrUnknown, fmt.Sprintf("failed to marshal request body: %v", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, target.String(), reqBody)
	if err != nil {
		return nil, newDetailError(ErrInvalidURL, err.Error())
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("Request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return nil, newDetailError(ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newDetailError(ErrNetwork, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("duration", duration),
		)
		return nil, statusToError(resp.StatusCode)
	}

	c.logger.Debug("Request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)
	return data, nil
}

// decode unmarshals a response body, mapping parser failures into the
// error taxonomy
func decode(data []byte, target interface{}) error {
	if err := json.Unmarshal(data, target); err != nil {
		return newDetailError(ErrDecoding, err.Error())
	}
	return nil
}

// CurrentUser fetches the authenticated account; used to verify
// credentials
func (c *Client) CurrentUser() (User, error) {
	data, err := c.do(http.MethodGet, "/api/users/me", nil, nil)
	if err != nil {
		return User{}, err
	}
	var user User
	if err := decode(data, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Projects lists visible projects
func (c *Client) Projects() ([]Project, error) {
	query := url.Values{"visible": {"1"}}
	data, err := c.do(http.MethodGet, "/api/projects", query, nil)
	if err != nil {
		return nil, err
	}
	var projects []Project
	if err := decode(data, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Activities lists visible activities, optionally filtered by project
// when projectID is non-nil
func (c *Client) Activities(projectID *int) ([]Activity, error) {
	query := url.Values{"visible": {"1"}}
	if projectID != nil {
		query.Set("project", strconv.Itoa(*projectID))
	}
	data, err := c.do(http.MethodGet, "/api/activities", query, nil)
	if err != nil {
		return nil, err
	}
	var activities []Activity
	if err := decode(data, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// ActiveTimesheets lists currently running entries. The server keeps
// at most one per account.
func (c *Client) ActiveTimesheets() ([]Timesheet, error) {
	data, err := c.do(http.MethodGet, "/api/timesheets/active", nil, nil)
	if err != nil {
		return nil, err
	}
	var sheets []Timesheet
	if err := decode(data, &sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// RecentTimesheets lists the most recently used entries
func (c *Client) RecentTimesheets(count int) ([]Timesheet, error) {
	query := url.Values{"size": {strconv.Itoa(count)}}
	data, err := c.do(http.MethodGet, "/api/timesheets/recent", query, nil)
	if err != nil {
		return nil, err
	}
	var sheets []Timesheet
	if err := decode(data, &sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// Timesheets lists one page of entries sorted by begin descending
func (c *Client) Timesheets(page, size int) ([]Timesheet, error) {
	return c.timesheets(page, size, nil)
}

// TimesheetsForProject lists one page of entries for a single project,
// sorted by begin descending
func (c *Client) TimesheetsForProject(projectID, page, size int) ([]Timesheet, error) {
	return c.timesheets(page, size, &projectID)
}

func (c *Client) timesheets(page, size int, projectID *int) ([]Timesheet, error) {
	query := url.Values{
		"page":    {strconv.Itoa(page)},
		"size":    {strconv.Itoa(size)},
		"order":   {"DESC"},
		"orderBy": {"begin"},
	}
	if projectID != nil {
		query.Set("project", strconv.Itoa(*projectID))
	}
	data, err := c.do(http.MethodGet, "/api/timesheets", query, nil)
	if err != nil {
		return nil, err
	}
	var sheets []Timesheet
	if err := decode(data, &sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// StartTimesheet starts a new entry beginning now
func (c *Client) StartTimesheet(projectID, activityID int, description *string) (Timesheet, error) {
	body := NewCreateTimesheetRequest(projectID, activityID, description)
	data, err := c.do(http.MethodPost, "/api/timesheets", nil, body)
	if err != nil {
		return Timesheet{}, err
	}
	var sheet Timesheet
	if err := decode(data, &sheet); err != nil {
		return Timesheet{}, err
	}
	return sheet, nil
}

// StopTimesheet stops the entry with the given id
func (c *Client) StopTimesheet(id int) (Timesheet, error) {
	data, err := c.do(http.MethodPatch, fmt.Sprintf("/api/timesheets/%d/stop", id), nil, nil)
	if err != nil {
		return Timesheet{}, err
	}
	var sheet Timesheet
	if err := decode(data, &sheet); err != nil {
		return Timesheet{}, err
	}
	return sheet, nil
}

// RestartTimesheet starts a fresh entry copying the given one
func (c *Client) RestartTimesheet(id int) (Timesheet, error) {
	data, err := c.do(http.MethodPatch, fmt.Sprintf("/api/timesheets/%d/restart", id), nil, nil)
	if err != nil {
		return Timesheet{}, err
	}
	var sheet Timesheet
	if err := decode(data, &sheet); err != nil {
		return Timesheet{}, err
	}
	return sheet, nil
}

// ProjectRates lists rate definitions for a project
func (c *Client) ProjectRates(projectID int) ([]Rate, error) {
	data, err := c.do(http.MethodGet, fmt.Sprintf("/api/projects/%d/rates", projectID), nil, nil)
	if err != nil {
		return nil, err
	}
	var rates []Rate
	if err := decode(data, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// ActivityRates lists rate definitions for an activity
func (c *Client) ActivityRates(activityID int) ([]Rate, error) {
	data, err := c.do(http.MethodGet, fmt.Sprintf("/api/activities/%d/rates", activityID), nil, nil)
	if err != nil {
		return nil, err
	}
	var rates []Rate
	if err := decode(data, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}
