package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/providentiaww/jira-connector/internal/models"
)

// issueColumns is the fixed column order of the issue table.
var issueColumns = []string{
	"id", "key", "assignee", "issuetype", "summary", "status",
	"estimate", "project", "created", "updated", "sprints", "history_count",
}

// WriteIssueTable renders issues as CSV: a header row plus one row per
// issue, timestamps in RFC3339 UTC, sprint ids joined with ";". Optional
// fields render as empty cells.
func WriteIssueTable(w io.Writer, issues []models.Issue) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(issueColumns); err != nil {
		return fmt.Errorf("export: writing header: %w", err)
	}

	for _, issue := range issues {
		row := []string{
			strconv.Itoa(issue.ID),
			issue.Key,
			issue.Assignee,
			issue.IssueType,
			issue.Summary,
			issue.Status,
			issue.Estimate,
			issue.Project,
			issue.Created.UTC().Format(time.RFC3339),
			issue.Updated.UTC().Format(time.RFC3339),
			strings.Join(issue.Sprints, ";"),
			strconv.Itoa(len(issue.Histories)),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: writing row for %s: %w", issue.Key, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
