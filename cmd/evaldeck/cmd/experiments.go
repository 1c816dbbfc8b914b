package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evaldeck/evaldeck/internal/braintrust"
	"github.com/evaldeck/evaldeck/internal/cmd/output"
	"github.com/evaldeck/evaldeck/pkg/logging"
)

var (
	experimentsEditedOnly  bool
	experimentsMaxResults  int
	experimentsPageSize    int
	experimentsPushApply   bool
	experimentsProjectID   string
	experimentsLimit       int
	experimentsName        string
	experimentsDescription string
	experimentsDatasetID   string
	experimentsEventsFile  string
	experimentsNoScores    bool
)

// experimentsCmd represents the experiments command group.
var experimentsCmd = &cobra.Command{
	Use:   "experiments",
	Short: "Manage Braintrust experiments and their results",
}

var experimentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		experiments, err := client.ListExperiments(cmd.Context(), experimentsProjectID, experimentsLimit)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, experiments)
	},
}

var experimentsGetCmd = &cobra.Command{
	Use:   "get <experiment-id>",
	Short: "Get a specific experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		experiment, err := client.GetExperiment(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *experiment)
	},
}

var experimentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new experiment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		experiment, err := client.CreateExperiment(cmd.Context(),
			experimentsName, experimentsProjectID, experimentsDescription, experimentsDatasetID)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *experiment)
	},
}

var experimentsUpdateCmd = &cobra.Command{
	Use:   "update <experiment-id>",
	Short: "Update an experiment's name or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if experimentsName == "" && experimentsDescription == "" {
			return fmt.Errorf("no update fields provided: set --name and/or --description")
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		experiment, err := client.UpdateExperiment(cmd.Context(), args[0], experimentsName, experimentsDescription)
		if err != nil {
			return err
		}
		return formatter().Format(os.Stdout, *experiment)
	},
}

var experimentsDeleteCmd = &cobra.Command{
	Use:   "delete <experiment-id>",
	Short: "Delete an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.DeleteExperiment(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !machineOutput() {
			fmt.Printf("Deleted experiment %s\n", args[0])
		}
		return nil
	},
}

var experimentsInsertCmd = &cobra.Command{
	Use:   "insert <experiment-id>",
	Short: "Insert events into an experiment from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := readEventsFile(experimentsEventsFile)
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.InsertExperimentEvents(cmd.Context(), args[0], events); err != nil {
			return err
		}
		if !machineOutput() {
			fmt.Printf("Inserted %d event(s) into experiment %s\n", len(events), args[0])
		}
		return nil
	},
}

var experimentsSummarizeCmd = &cobra.Command{
	Use:   "summarize <experiment-id>",
	Short: "Summarize an experiment's results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		summary, err := client.SummarizeExperiment(cmd.Context(), args[0], !experimentsNoScores)
		if err != nil {
			return err
		}
		// The summary is free-form; default to JSON even on a terminal.
		if output.Format(globalFlags.Output) == output.FormatYAML {
			return formatter().Format(os.Stdout, summary)
		}
		return (&output.JSONFormatter{Indent: "  "}).Format(os.Stdout, summary)
	},
}

var experimentsResultsCmd = &cobra.Command{
	Use:   "results <experiment-id>",
	Short: "Fetch flattened experiment results",
	Long: `Results fetches every datapoint from an experiment and flattens it:
one record per root eval span with input, output, expected, metadata,
joined scores, and the originating dataset record when the experiment ran
against a dataset. With --edited-only, only datapoints whose expected
value was manually edited after the run are returned.`,
	Example: `  evaldeck experiments results exp-123
  evaldeck experiments results exp-123 --edited-only
  evaldeck experiments results exp-123 --max-results 10 > results.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		events, err := client.FetchExperimentEvents(cmd.Context(), args[0], experimentsPageSize)
		if err != nil {
			return err
		}
		results := braintrust.FlattenResults(events, braintrust.ResultFilter{
			EditedOnly: experimentsEditedOnly,
			MaxResults: experimentsMaxResults,
		})

		// Results are nested JSON; default to JSON even on a terminal.
		if output.Format(globalFlags.Output) == output.FormatYAML {
			return formatter().Format(os.Stdout, results)
		}
		return (&output.JSONFormatter{Indent: "  "}).Format(os.Stdout, results)
	},
}

// pushReport summarizes an experiments push run.
type pushReport struct {
	ExperimentID string             `json:"experiment_id"`
	DatasetID    string             `json:"dataset_id"`
	DatasetName  string             `json:"dataset_name,omitempty"`
	DatasetURL   string             `json:"dataset_url,omitempty"`
	EditedCount  int                `json:"edited_count"`
	Skipped      int                `json:"skipped"`
	Applied      bool               `json:"applied"`
	Updated      int                `json:"updated"`
	Events       []braintrust.Event `json:"events,omitempty"`
}

var experimentsPushCmd = &cobra.Command{
	Use:   "push <experiment-id>",
	Short: "Push edited experiment results back to the source dataset",
	Long: `Push finds experiment datapoints whose expected value was manually
edited, resolves the dataset each one came from, and upserts the edited
values back into that dataset using the original record IDs.

Without --apply this is a dry-run that reports what would be written.`,
	Example: `  evaldeck experiments push exp-123
  evaldeck experiments push exp-123 --apply`,
	Args: cobra.ExactArgs(1),
	RunE: runExperimentsPush,
}

func runExperimentsPush(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	experimentID := args[0]

	client, err := newClient()
	if err != nil {
		return err
	}

	events, err := client.FetchExperimentEvents(ctx, experimentID, experimentsPageSize)
	if err != nil {
		return err
	}
	edited := braintrust.FlattenResults(events, braintrust.ResultFilter{EditedOnly: true})
	if len(edited) == 0 {
		if machineOutput() {
			return formatter().Format(os.Stdout, pushReport{ExperimentID: experimentID})
		}
		fmt.Println("No edited records found in experiment.")
		return nil
	}

	datasetEvents, skipped := braintrust.PrepareDatasetEvents(edited)
	if skipped > 0 {
		logging.FromContext(ctx).Warn().
			Int("skipped", skipped).
			Msg("Records without dataset origin cannot be pushed back")
	}
	if len(datasetEvents) == 0 {
		return fmt.Errorf("no pushable records: all %d edited records lack a dataset origin", len(edited))
	}

	datasetID := ""
	for _, r := range edited {
		if r.Origin != nil && r.Origin.DatasetID != "" {
			datasetID = r.Origin.DatasetID
			break
		}
	}
	if datasetID == "" {
		return fmt.Errorf("could not determine dataset ID from experiment records")
	}

	report := pushReport{
		ExperimentID: experimentID,
		DatasetID:    datasetID,
		EditedCount:  len(edited),
		Skipped:      skipped,
		Applied:      experimentsPushApply,
	}

	if dataset, err := client.GetDataset(ctx, datasetID); err == nil {
		report.DatasetName = dataset.Name
		if orgName := viper.GetString("BRAINTRUST_ORG_NAME"); orgName != "" {
			report.DatasetURL = client.DatasetURL(ctx, orgName, dataset)
		}
	}

	if experimentsPushApply {
		if err := client.InsertEvents(ctx, datasetID, datasetEvents); err != nil {
			return err
		}
		report.Updated = len(datasetEvents)
	} else {
		report.Events = datasetEvents
	}

	if machineOutput() {
		return formatter().Format(os.Stdout, report)
	}

	if experimentsPushApply {
		fmt.Printf("Updated %d record(s) in dataset %s", report.Updated, datasetID)
	} else {
		fmt.Printf("Dry-run: %d record(s) would be updated in dataset %s", len(datasetEvents), datasetID)
	}
	if report.DatasetName != "" {
		fmt.Printf(" (%s)", report.DatasetName)
	}
	fmt.Println()
	if report.DatasetURL != "" {
		fmt.Printf("Dataset: %s\n", report.DatasetURL)
	}
	if !experimentsPushApply {
		fmt.Println("Run with --apply to write the edits back.")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(experimentsCmd)
	experimentsCmd.AddCommand(experimentsListCmd)
	experimentsCmd.AddCommand(experimentsGetCmd)
	experimentsCmd.AddCommand(experimentsCreateCmd)
	experimentsCmd.AddCommand(experimentsUpdateCmd)
	experimentsCmd.AddCommand(experimentsDeleteCmd)
	experimentsCmd.AddCommand(experimentsInsertCmd)
	experimentsCmd.AddCommand(experimentsSummarizeCmd)
	experimentsCmd.AddCommand(experimentsResultsCmd)
	experimentsCmd.AddCommand(experimentsPushCmd)

	experimentsListCmd.Flags().StringVar(&experimentsProjectID, "project-id", "", "Filter by project ID")
	experimentsListCmd.Flags().IntVar(&experimentsLimit, "limit", 100, "Maximum number of experiments to return")

	experimentsCreateCmd.Flags().StringVar(&experimentsName, "name", "", "Experiment name")
	experimentsCreateCmd.Flags().StringVar(&experimentsProjectID, "project-id", "", "Project ID")
	experimentsCreateCmd.Flags().StringVar(&experimentsDescription, "description", "", "Experiment description")
	experimentsCreateCmd.Flags().StringVar(&experimentsDatasetID, "dataset-id", "", "Dataset ID to link to this experiment")
	_ = experimentsCreateCmd.MarkFlagRequired("name")
	_ = experimentsCreateCmd.MarkFlagRequired("project-id")

	experimentsUpdateCmd.Flags().StringVar(&experimentsName, "name", "", "New experiment name")
	experimentsUpdateCmd.Flags().StringVar(&experimentsDescription, "description", "", "New experiment description")

	experimentsInsertCmd.Flags().StringVar(&experimentsEventsFile, "file", "", "JSON file containing events")
	_ = experimentsInsertCmd.MarkFlagRequired("file")

	experimentsSummarizeCmd.Flags().BoolVar(&experimentsNoScores, "no-scores", false,
		"Skip score summarization")

	experimentsResultsCmd.Flags().BoolVar(&experimentsEditedOnly, "edited-only", false,
		"Only return records where expected was manually edited")
	experimentsResultsCmd.Flags().IntVar(&experimentsMaxResults, "max-results", 0,
		"Maximum number of flattened records to return (0 = unlimited)")
	experimentsResultsCmd.Flags().IntVar(&experimentsPageSize, "page-size", 0,
		"Raw events per API page (0 = API maximum)")

	experimentsPushCmd.Flags().BoolVar(&experimentsPushApply, "apply", false,
		"Write the edits back (default is dry-run)")
	experimentsPushCmd.Flags().IntVar(&experimentsPageSize, "page-size", 0,
		"Raw events per API page (0 = API maximum)")
}
