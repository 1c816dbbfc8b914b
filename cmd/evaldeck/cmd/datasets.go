package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evaldeck/evaldeck/internal/braintrust"
	"github.com/evaldeck/evaldeck/internal/cmd/output"
)

var (
	datasetsProjectID   string
	datasetsLimit       int
	datasetsName        string
	datasetsDescription string
	datasetsEventsFile  string
)

// datasetsCmd represents the datasets command group.
var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Manage Braintrust datasets",
	Long:  `List, inspect, create, update, and delete datasets, and move raw events in and out of them.`,
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		datasets, err := client.ListDatasets(cmd.Context(), datasetsProjectID, datasetsLimit)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, datasets)
	},
}

var datasetsGetCmd = &cobra.Command{
	Use:   "get <dataset-id>",
	Short: "Get a specific dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		dataset, err := client.GetDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *dataset)
	},
}

var datasetsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		dataset, err := client.CreateDataset(cmd.Context(), datasetsName, datasetsProjectID, datasetsDescription)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *dataset)
	},
}

var datasetsUpdateCmd = &cobra.Command{
	Use:   "update <dataset-id>",
	Short: "Update a dataset's name or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if datasetsName == "" && datasetsDescription == "" {
			return fmt.Errorf("no update fields provided: set --name and/or --description")
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		dataset, err := client.UpdateDataset(cmd.Context(), args[0], datasetsName, datasetsDescription)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *dataset)
	},
}

var datasetsDeleteCmd = &cobra.Command{
	Use:   "delete <dataset-id>",
	Short: "Delete a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.DeleteDataset(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !machineOutput() {
			fmt.Printf("Deleted dataset %s\n", args[0])
		}
		return nil
	},
}

var datasetsInsertCmd = &cobra.Command{
	Use:   "insert <dataset-id>",
	Short: "Insert events into a dataset from a JSON file",
	Long: `Insert reads a JSON file containing an event object or an array of
event objects and upserts them into the dataset. Events carrying an
existing id replace that record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := readEventsFile(datasetsEventsFile)
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.InsertEvents(cmd.Context(), args[0], events); err != nil {
			return err
		}
		if !machineOutput() {
			fmt.Printf("Inserted %d event(s) into dataset %s\n", len(events), args[0])
		}
		return nil
	},
}

var datasetsFetchCmd = &cobra.Command{
	Use:   "fetch <dataset-id>",
	Short: "Fetch all events from a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		events, err := client.FetchDatasetEvents(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		// Events are free-form JSON; tables would be unreadable.
		if output.Format(globalFlags.Output) == output.FormatYAML {
			return formatter().Format(os.Stdout, events)
		}
		return (&output.JSONFormatter{Indent: "  "}).Format(os.Stdout, events)
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.AddCommand(datasetsListCmd)
	datasetsCmd.AddCommand(datasetsGetCmd)
	datasetsCmd.AddCommand(datasetsCreateCmd)
	datasetsCmd.AddCommand(datasetsUpdateCmd)
	datasetsCmd.AddCommand(datasetsDeleteCmd)
	datasetsCmd.AddCommand(datasetsInsertCmd)
	datasetsCmd.AddCommand(datasetsFetchCmd)

	datasetsListCmd.Flags().StringVar(&datasetsProjectID, "project-id", "", "Filter by project ID")
	datasetsListCmd.Flags().IntVar(&datasetsLimit, "limit", 100, "Maximum number of datasets to return")

	datasetsCreateCmd.Flags().StringVar(&datasetsName, "name", "", "Dataset name")
	datasetsCreateCmd.Flags().StringVar(&datasetsProjectID, "project-id", "", "Project ID")
	datasetsCreateCmd.Flags().StringVar(&datasetsDescription, "description", "", "Dataset description")
	_ = datasetsCreateCmd.MarkFlagRequired("name")
	_ = datasetsCreateCmd.MarkFlagRequired("project-id")

	datasetsUpdateCmd.Flags().StringVar(&datasetsName, "name", "", "New dataset name")
	datasetsUpdateCmd.Flags().StringVar(&datasetsDescription, "description", "", "New dataset description")

	datasetsInsertCmd.Flags().StringVar(&datasetsEventsFile, "file", "", "JSON file containing events")
	_ = datasetsInsertCmd.MarkFlagRequired("file")
}

// readEventsFile loads one event or an array of events from a JSON file.
func readEventsFile(path string) ([]braintrust.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var events []braintrust.Event
	if err := json.Unmarshal(data, &events); err == nil {
		return events, nil
	}

	var single braintrust.Event
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return []braintrust.Event{single}, nil
}
