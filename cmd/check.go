package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geomarketing-cli/internal/loader"
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that configured data files exist and load",
	Long: `Lists every configured input (municipalities, income table, point sets,
manifest entries), loads each one, and reports record counts. Exits non-zero
when a required file is missing or any file fails to parse.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate("check"); err != nil {
		return err
	}
	if err := scorer.ValidateConfig(cfg.Scoring); err != nil {
		return err
	}

	statuses, err := newLoader(cfg).Inspect(cmd.Context(), cfg.Data)
	if err != nil {
		return err
	}
	return writeCheck(os.Stdout, statuses)
}

func writeCheck(w io.Writer, statuses []loader.SourceStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SOURCE\tPATH\tSTATUS\tRECORDS")

	var failed int
	for _, s := range statuses {
		status, count := "ok", strconv.Itoa(s.Count)
		switch {
		case !s.Exists && s.Required:
			status, count = "MISSING", "-"
		case !s.Exists:
			status, count = "missing (optional)", "-"
		case s.Error != "":
			status, count = "ERROR: "+s.Error, "-"
		}
		if !s.OK() {
			failed++
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Path, status, count)
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "check: write table")
	}

	if failed > 0 {
		return eris.Errorf("check: %d of %d data sources unusable", failed, len(statuses))
	}
	_, _ = fmt.Fprintln(w, "\nAll data files present.")
	return nil
}
