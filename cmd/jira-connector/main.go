package main

import (
	"fmt"
	"os"

	"github.com/providentiaww/jira-connector/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	projectKey string
)

var rootCmd = &cobra.Command{
	Use:           "jira-connector",
	Short:         "Retrieve and normalize Jira project-tracking data",
	Long:          `A batch connector that pulls projects, boards, sprints, issues and change histories from a Jira instance and normalizes them into typed records for export or persistence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&projectKey, "project", "", "Jira project key (overrides config)")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(boardsCmd)
	rootCmd.AddCommand(sprintsCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(syncCmd)
}

func main() {
	config.LoadEnv(".env")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
