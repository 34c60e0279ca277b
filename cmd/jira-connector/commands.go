package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/providentiaww/jira-connector/internal/export"
	"github.com/providentiaww/jira-connector/internal/models"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the configured Jira credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.client.Validate(cmd.Context()); err != nil {
			return fmt.Errorf("credential check failed: %w", err)
		}
		fmt.Printf("credentials OK for %s\n", a.cfg.JiraURL)
		return nil
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List visible Jira projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.retriever(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range r.Projects() {
			fmt.Printf("%6d  %-10s  %s\n", p.ID, p.Key, p.Name)
		}
		return nil
	},
}

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List Jira software boards",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.retriever(cmd.Context())
		if err != nil {
			return err
		}
		for _, b := range r.Boards() {
			fmt.Printf("%6d  %-10s  %s\n", b.ID, b.ProjectKey, b.Name)
		}
		return nil
	},
}

var sprintsCmd = &cobra.Command{
	Use:   "sprints",
	Short: "List sprints on the project's board",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.retriever(cmd.Context())
		if err != nil {
			return err
		}
		board, ok := r.BoardForProjectKey("")
		if !ok {
			return fmt.Errorf("no board found for project %s", a.cfg.ProjectKey)
		}
		sprints, err := r.SprintsForBoard(cmd.Context(), board)
		if err != nil {
			return err
		}
		for _, s := range sprints {
			window := ""
			if s.StartDate != nil && s.EndDate != nil {
				window = fmt.Sprintf("%s .. %s",
					s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))
			}
			fmt.Printf("%6d  %-8s  %-24s  %s\n", s.ID, s.State, s.Name, window)
		}
		return nil
	},
}

var (
	issuesAllSprints bool
	issuesCSVPath    string
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Fetch the project's issues with change histories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.retriever(cmd.Context())
		if err != nil {
			return err
		}

		var issues []models.Issue
		if issuesAllSprints {
			issues, err = r.IssuesForAllSprints(cmd.Context())
		} else {
			project, ok := r.ProjectForProjectKey("")
			if !ok {
				return fmt.Errorf("project %s not found", a.cfg.ProjectKey)
			}
			issues, err = r.IssuesForProject(cmd.Context(), project)
		}
		if err != nil {
			return err
		}

		if issuesCSVPath != "" {
			f, err := os.Create(issuesCSVPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", issuesCSVPath, err)
			}
			defer f.Close()
			if err := export.WriteIssueTable(f, issues); err != nil {
				return err
			}
			fmt.Printf("wrote %d issues to %s\n", len(issues), issuesCSVPath)
			return nil
		}

		for _, issue := range issues {
			fmt.Printf("%-12s  %-10s  %-12s  %-20s  %s\n",
				issue.Key, issue.IssueType, issue.Status,
				truncate(issue.Assignee, 20), truncate(issue.Summary, 60))
		}
		fmt.Printf("%d issues\n", len(issues))
		return nil
	},
}

func init() {
	issuesCmd.Flags().BoolVar(&issuesAllSprints, "all-sprints", false, "fetch issues sprint by sprint instead of by project query")
	issuesCmd.Flags().StringVar(&issuesCSVPath, "csv", "", "write the issue table to a CSV file instead of stdout")

	syncCmd.Flags().StringVar(&syncOutPath, "out", "", "also write the snapshot to a JSON file")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-1]) + "…"
}

var syncOutPath string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch all sprint issues and push them to the configured sinks",
	Long: `Fetches every issue across the project's sprints, then pushes the
snapshot to whichever sinks are configured: the relational store, the
Redis mirror, the message queue and an optional JSON file.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	if err := a.client.Validate(ctx); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}

	r, err := a.retriever(ctx)
	if err != nil {
		return err
	}

	started := time.Now()
	issues, err := r.IssuesForAllSprints(ctx)
	if err != nil {
		return err
	}

	batch := newBatch(a.cfg.ProjectKey, started, issues)
	if err := deliver(ctx, a, batch); err != nil {
		return err
	}

	fmt.Printf("synced %d issues for %s (run %s)\n", len(issues), a.cfg.ProjectKey, batch.RunID)
	return nil
}
