package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
	"github.com/joanies-kitchen/recipes-cli/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Summarize a run's report",
	Long:  "Prints a human-readable summary of one run. With no argument the most recent run is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var run *model.Run
		if len(args) == 1 {
			run, err = st.GetRun(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "report")
			}
		} else {
			runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 1})
			if err != nil {
				return eris.Wrap(err, "report")
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stderr, "No runs found.")
				return nil
			}
			run = &runs[0]
		}

		formatReport(os.Stdout, run)
		return nil
	},
}

func formatReport(out io.Writer, run *model.Run) {
	fmt.Fprintf(out, "Run %s (%s, %s)\n", run.ID, run.Source, run.Status)
	if run.Report == nil {
		fmt.Fprintln(out, "No report recorded.")
		return
	}

	r := run.Report
	mode := "apply"
	if r.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(out, "Mode: %s  Started: %s  Elapsed: %s\n\n",
		mode, r.StartedAt.Format("2006-01-02 15:04:05"), r.Elapsed)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Processed\t%d\n", r.Processed)
	_, _ = fmt.Fprintf(w, "Inserted\t%d\n", r.Inserted)
	_, _ = fmt.Fprintf(w, "Duplicates\t%d\n", r.Duplicates)
	_, _ = fmt.Fprintf(w, "Failed\t%d\n", r.Failed)
	_, _ = fmt.Fprintf(w, "Scoring deferred\t%d\n", r.ScoringDeferred)
	_, _ = fmt.Fprintf(w, "Unique tags\t%d\n", r.UniqueTags)
	_, _ = fmt.Fprintf(w, "Unique tools\t%d\n", r.UniqueTools)
	_ = w.Flush()

	if len(r.Warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(r.Warnings))
		for _, warning := range r.Warnings {
			fmt.Fprintf(out, "  - %s\n", warning)
		}
	}

	failed := 0
	for _, o := range r.Outcomes {
		if o.Kind == model.OutcomeFailed {
			failed++
			if failed <= 10 {
				fmt.Fprintf(out, "\nFailed: %s (%s): %s", o.SourceID, o.Name, o.Reason)
			}
		}
	}
	if failed > 10 {
		fmt.Fprintf(out, "\n... and %d more failed records\n", failed-10)
	} else if failed > 0 {
		fmt.Fprintln(out)
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
