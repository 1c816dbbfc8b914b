package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evaldeck/evaldeck/internal/cmd/output"
)

var (
	logsProjectID    string
	logsLimit        int
	logsCursor       string
	logsFilters      string
	logsEventsFile   string
	logsFeedbackFile string
)

// logsCmd represents the logs command group.
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Manage Braintrust project logs",
}

var logsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch logs from a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var filters any
		if logsFilters != "" {
			if err := json.Unmarshal([]byte(logsFilters), &filters); err != nil {
				return fmt.Errorf("invalid JSON in --filters: %w", err)
			}
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		page, err := client.FetchLogs(cmd.Context(), logsProjectID, logsLimit, logsCursor, filters)
		if err != nil {
			return err
		}
		// Log events are nested JSON; default to JSON even on a terminal.
		if output.Format(globalFlags.Output) == output.FormatYAML {
			return formatter().Format(os.Stdout, page)
		}
		return (&output.JSONFormatter{Indent: "  "}).Format(os.Stdout, page)
	},
}

var logsInsertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert log events into a project from a JSON file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		events, err := readEventsFile(logsEventsFile)
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.InsertLogEvents(cmd.Context(), logsProjectID, events); err != nil {
			return err
		}
		if !machineOutput() {
			fmt.Printf("Inserted %d log event(s) into project %s\n", len(events), logsProjectID)
		}
		return nil
	},
}

var logsFeedbackCmd = &cobra.Command{
	Use:   "feedback <log-id>",
	Short: "Attach feedback to a log entry from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(logsFeedbackFile)
		if err != nil {
			return err
		}
		var feedback any
		if err := json.Unmarshal(data, &feedback); err != nil {
			return fmt.Errorf("invalid JSON in %s: %w", logsFeedbackFile, err)
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.AddLogFeedback(cmd.Context(), logsProjectID, args[0], feedback); err != nil {
			return err
		}
		if !machineOutput() {
			fmt.Printf("Added feedback to log %s\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsFetchCmd)
	logsCmd.AddCommand(logsInsertCmd)
	logsCmd.AddCommand(logsFeedbackCmd)

	logsCmd.PersistentFlags().StringVar(&logsProjectID, "project-id", "", "Project ID")
	_ = logsCmd.MarkPersistentFlagRequired("project-id")

	logsFetchCmd.Flags().IntVar(&logsLimit, "limit", 100, "Maximum number of log events to return")
	logsFetchCmd.Flags().StringVar(&logsCursor, "cursor", "", "Cursor from a previous page")
	logsFetchCmd.Flags().StringVar(&logsFilters, "filters", "", "JSON filter document applied server side")

	logsInsertCmd.Flags().StringVar(&logsEventsFile, "file", "", "JSON file containing log events")
	_ = logsInsertCmd.MarkFlagRequired("file")

	logsFeedbackCmd.Flags().StringVar(&logsFeedbackFile, "file", "", "JSON file containing the feedback document")
	_ = logsFeedbackCmd.MarkFlagRequired("file")
}
