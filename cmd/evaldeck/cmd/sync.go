package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evaldeck/evaldeck/pkg/reconcile"
)

var (
	syncApply        bool
	syncOnFetchError string
)

// syncCmd represents the sync command.
var syncCmd = &cobra.Command{
	Use:   "sync <dataset-id> <dataset-id> [dataset-id...]",
	Short: "Reconcile datasets bidirectionally",
	Long: `Sync compares entries across two or more datasets, matching them by
input regardless of field order. For every input present in multiple
datasets, the entry with the newest creation timestamp is authoritative;
older copies with a different expected value are updated to match.

Without --apply, sync is a dry-run: it prints the full update plan and
makes no changes. With --apply, updates are issued independently; a
failing update does not block or roll back the others, and the command
still exits zero with failure counts in the report.`,
	Example: `  evaldeck sync ds-111 ds-222
  evaldeck sync ds-111 ds-222 ds-333 --apply
  evaldeck sync ds-111 ds-222 -o json
  evaldeck sync ds-111 ds-222 --on-fetch-error=abort`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncApply, "apply", false, "Apply changes (default is dry-run)")
	syncCmd.Flags().StringVar(&syncOnFetchError, "on-fetch-error", string(reconcile.SkipUnreachable),
		"Behavior when a dataset is unreachable: skip (treat as empty) or abort")
}

// syncReport is the machine-readable result of one sync run.
type syncReport struct {
	*reconcile.Plan
	Applied bool              `json:"applied"`
	Result  *reconcile.Result `json:"result,omitempty"`
}

func runSync(cmd *cobra.Command, args []string) error {
	policy := reconcile.FetchErrorPolicy(syncOnFetchError)
	if policy != reconcile.SkipUnreachable && policy != reconcile.AbortOnFetchError {
		return fmt.Errorf("invalid --on-fetch-error value %q: must be skip or abort", syncOnFetchError)
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	syncer := reconcile.NewSyncer(client, client,
		reconcile.WithApply(syncApply),
		reconcile.WithFetchErrorPolicy(policy),
	)

	if !machineOutput() {
		fmt.Printf("Syncing %d datasets...\n\n", len(args))
	}

	plan, result, err := syncer.Run(cmd.Context(), args)
	if err != nil {
		return err
	}

	if machineOutput() {
		return formatter().Format(os.Stdout, syncReport{
			Plan:    plan,
			Applied: syncApply,
			Result:  result,
		})
	}

	printPlan(plan)
	printApplyResult(result)
	if !syncApply && !plan.InSync() {
		fmt.Println("Run with --apply to sync changes.")
	}
	return nil
}

// printPlan renders the human-readable dry-run report.
func printPlan(plan *reconcile.Plan) {
	for _, rep := range plan.Replicas {
		if rep.FetchError != "" {
			fmt.Printf("  %s: unreachable (%s)\n", rep.Name, rep.FetchError)
			continue
		}
		fmt.Printf("  %s: %d entries", rep.Name, rep.RecordCount)
		if rep.Skipped > 0 {
			fmt.Printf(", %d skipped (no input)", rep.Skipped)
		}
		if rep.Collapsed > 0 {
			fmt.Printf(", %d duplicates collapsed", rep.Collapsed)
		}
		fmt.Println()
	}
	fmt.Println()

	fmt.Printf("Unique inputs across all datasets: %d\n", plan.UniqueKeys)
	fmt.Printf("Inputs present in multiple datasets: %d\n", plan.MultiReplicaKeys)
	fmt.Printf("Inputs with differing expected values: %d\n\n", plan.DivergentKeys)

	if plan.InSync() {
		fmt.Println("All datasets are in sync!")
		return
	}

	fmt.Println("Updates needed:")
	for _, rep := range plan.Replicas {
		updates := plan.Updates[rep.ReplicaID]
		if len(updates) == 0 {
			fmt.Printf("  → %q: already up to date\n", rep.Name)
			continue
		}

		fmt.Printf("  → %q: %d update(s)\n", rep.Name, len(updates))
		const maxShown = 5
		for i, upd := range updates {
			if i == maxShown {
				fmt.Printf("    ... and %d more\n", len(updates)-maxShown)
				break
			}
			fmt.Printf("    %d. %q\n", i+1, truncateValue(upd.Identity, 60))
			fmt.Printf("       old: %s\n", compactJSON(upd.OldPayload))
			fmt.Printf("       new: %s\n", compactJSON(upd.NewPayload))
		}
	}
	fmt.Println()
}

// printApplyResult renders the outcome of the apply phase, if it ran.
func printApplyResult(result *reconcile.Result) {
	if result == nil {
		return
	}
	fmt.Printf("Done! %d updated, %d failed\n", result.Succeeded, result.Failed)
	for _, failure := range result.Failures {
		fmt.Printf("  failed: dataset %s record %s: %s\n", failure.ReplicaID, failure.RecordID, failure.Err)
	}
}

// truncateValue renders a value for display, truncated to maxLen runes.
func truncateValue(v any, maxLen int) string {
	s, ok := v.(string)
	if !ok {
		s = compactJSON(v)
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// compactJSON renders a value as single-line JSON, falling back to %v.
func compactJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
