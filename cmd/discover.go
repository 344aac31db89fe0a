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
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

var (
	discoverCount    int
	discoverIndustry string
	discoverJSON     bool
	discoverNoSave   bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover <location>",
	Short: "Discover businesses in a location across all enabled sources",
	Long:  "Runs an aggregation pass over every enabled source in priority order, merges duplicate records into entities, and prints the consensus-validated results.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		location := args[0]

		reg, err := buildRegistry()
		if err != nil {
			return err
		}

		orch := newOrchestrator(reg)
		entities, summary, err := orch.Run(ctx, discoverCount, location, discoverIndustry)
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		if !discoverNoSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			if err := st.SaveRun(ctx, *summary); err != nil {
				return err
			}
			if err := st.SaveSourceSnapshots(ctx, summary.RunID, orch.GetSourceMetrics()); err != nil {
				return err
			}
			zap.L().Info("run saved", zap.String("run_id", summary.RunID))
		}

		if discoverJSON {
			enc := json.NewEncoder(os.Stdout)
			for _, e := range entities {
				if err := enc.Encode(e); err != nil {
					return eris.Wrap(err, "discover: encode entity")
				}
			}
			return nil
		}

		formatEntities(os.Stdout, entities)
		fmt.Fprintf(os.Stderr, "\n%d entities from %d records across %d sources in %s\n",
			summary.Returned, summary.RecordsFetched, summary.SourcesTried,
			summary.Duration.Round(time.Millisecond),
		)
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverCount, "count", 25, "target number of entities")
	discoverCmd.Flags().StringVar(&discoverIndustry, "industry", "", "restrict to sources targeting this industry")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "emit entities as JSON lines")
	discoverCmd.Flags().BoolVar(&discoverNoSave, "no-save", false, "skip persisting the run summary")
	rootCmd.AddCommand(discoverCmd)
}

// formatEntities writes a tabular entity listing to w.
func formatEntities(out io.Writer, entities []model.ResolvedEntity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCITY\tPHONE\tWEBSITE\tSOURCES\tCONF\tISSUES")

	for _, e := range entities {
		name := e.Name
		if len(name) > 32 {
			name = name[:29] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\t%d\n",
			name, e.City, e.Phone, e.Website,
			e.SourceCount, e.ValidationConfidence, len(e.ValidationIssues),
		)
	}
	_ = w.Flush()
}
