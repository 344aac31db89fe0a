package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/monitoring"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect aggregation run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List aggregation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		location, _ := cmd.Flags().GetString("location")
		industry, _ := cmd.Flags().GetString("industry")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Location: location,
			Industry: industry,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
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

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if run == nil {
			return eris.Errorf("run %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show engine health over recent runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		since, _ := cmd.Flags().GetDuration("since")

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		// Source health grading uses the newest run's snapshots, the best
		// available picture of current source behavior.
		var sourceSnaps []source.MetricsSnapshot
		if len(runs) > 0 {
			sourceSnaps, err = st.ListSourceSnapshots(ctx, runs[0].RunID)
			if err != nil {
				return eris.Wrap(err, "runs stats")
			}
		}

		col := monitoring.NewCollector(nil, since)
		formatSnapshot(os.Stdout, col.Collect(sourceSnaps, runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("location", "", "filter by run location")
	runsListCmd.Flags().String("industry", "", "filter by run industry")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 7*24*time.Hour, "time window for stats (e.g. 24h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []aggregate.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLOCATION\tINDUSTRY\tTARGET\tUNIQUE\tRETURNED\tSTARTED\tDURATION")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.RunID),
			r.Location,
			r.Industry,
			r.TargetCount,
			r.UniqueEntities,
			r.Returned,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.Duration.Round(time.Millisecond),
		)
	}
	_ = w.Flush()
}

// formatSnapshot writes engine-level totals to w.
func formatSnapshot(out io.Writer, s *monitoring.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Runs:\t%d\n", s.RunsTotal)
	_, _ = fmt.Fprintf(w, "Records fetched:\t%d\n", s.RecordsFetched)
	_, _ = fmt.Fprintf(w, "Entities found:\t%d\n", s.EntitiesFound)
	if s.RunsTotal > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%s\n", s.AvgRunDuration.Round(time.Millisecond))
		_, _ = fmt.Fprintf(w, "Avg yield/run:\t%.1f\n", s.AvgYieldPerRun)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
