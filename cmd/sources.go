package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/monitoring"
	"github.com/sells-group/prospector/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and manage the source registry",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources in priority order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := buildRegistry()
		if err != nil {
			return err
		}
		formatSources(os.Stdout, reg)
		return nil
	},
}

var sourcesHealthCmd = &cobra.Command{
	Use:   "health <run-id>",
	Short: "Show per-source health for a saved run",
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

		snaps, err := st.ListSourceSnapshots(ctx, args[0])
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Fprintln(os.Stderr, "No source snapshots for that run.")
			return nil
		}

		checker := monitoring.NewChecker(monitoring.DefaultThresholds())
		formatHealth(os.Stdout, checker.Check(snaps))
		return nil
	},
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(args[0], true)
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(args[0], false)
	},
}

// setSourceEnabled persists the toggle in the registry override file so it
// survives across invocations; the in-memory registry is rebuilt every run.
func setSourceEnabled(name string, enabled bool) error {
	path := cfg.Sources.RegistryPath
	if path == "" {
		return eris.New("sources: no registry_path configured; set sources.registry_path to persist toggles")
	}

	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	if reg.Get(name) == nil {
		return eris.Errorf("sources: unknown source %s", name)
	}

	rc, err := source.LoadRegistryConfig(path)
	if err != nil {
		if !os.IsNotExist(eris.Cause(err)) {
			return err
		}
		rc = &source.RegistryConfig{}
	}
	if rc.Sources == nil {
		rc.Sources = make(map[string]source.EntryConfig)
	}
	ec := rc.Sources[name]
	ec.Enabled = &enabled
	rc.Sources[name] = ec

	if err := source.SaveRegistryConfig(path, rc); err != nil {
		return err
	}
	fmt.Printf("source %s %s\n", name, map[bool]string{true: "enabled", false: "disabled"}[enabled])
	return nil
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesHealthCmd)
	sourcesCmd.AddCommand(sourcesEnableCmd)
	sourcesCmd.AddCommand(sourcesDisableCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func formatSources(out io.Writer, reg *source.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tPRIORITY\tENABLED\tCOST/REQ\tINDUSTRIES")

	for _, name := range reg.Names() {
		e := reg.Get(name)
		if e == nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%t\t%.4f\t%s\n",
			name, e.Priority, e.Enabled, e.CostPerRequest,
			strings.Join(e.TargetIndustries, ","),
		)
	}
	_ = w.Flush()
}

func formatHealth(out io.Writer, health []monitoring.SourceHealth) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tERR_RATE\tREC/RUN\tAVG_FETCH\tREASONS")

	for _, h := range health {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%.1f\t%s\t%s\n",
			h.Source, h.Status, h.ErrorRate*100, h.RecordsPerRun,
			h.AvgFetchTime.Round(time.Millisecond), strings.Join(h.Reasons, "; "),
		)
	}
	_ = w.Flush()
}
