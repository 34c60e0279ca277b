package models

import (
	"regexp"
	"time"
)

// issueKeyPattern matches Jira issue keys like "DT-123".
var issueKeyPattern = regexp.MustCompile(`^[A-Za-z0-9]+-[0-9]+$`)

// Project is one Jira project as returned by /rest/api/3/project/search.
type Project struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Board is one Jira software board. ProjectKey comes from the board's
// location and may be empty when Jira omits it (e.g. user-located boards).
type Board struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	ProjectKey string `json:"project_key"`
}

// Sprint is one sprint on a board. CompleteDate is only set once the
// sprint is closed.
type Sprint struct {
	BoardID      int        `json:"board_id"`
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	State        string     `json:"state"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	CompleteDate *time.Time `json:"complete_date,omitempty"`
	Goal         string     `json:"goal,omitempty"`
}

// Issue is one Jira issue with its changelog flattened into Histories.
type Issue struct {
	ID          int       `json:"id"`
	Key         string    `json:"key"`
	Assignee    string    `json:"assignee,omitempty"`
	IssueType   string    `json:"issuetype"`
	Description string    `json:"description,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Estimate    string    `json:"estimate,omitempty"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	Status      string    `json:"status"`
	Project     string    `json:"project,omitempty"`
	Sprints     []string  `json:"sprints,omitempty"`
	Histories   []History `json:"histories,omitempty"`
}

// History is one atomic field change from an issue changelog. A changelog
// entry carrying several changed fields expands into several History
// records sharing the same author and timestamp.
type History struct {
	Author  string    `json:"author"`
	Created time.Time `json:"created"`
	Field   string    `json:"field"`
	Old     string    `json:"old,omitempty"`
	New     string    `json:"new,omitempty"`
}

// ValidIssueKey reports whether key matches the project-prefix-dash-number
// format Jira uses for issue keys.
func ValidIssueKey(key string) bool {
	return issueKeyPattern.MatchString(key)
}
