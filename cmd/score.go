package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/config"
	"github.com/sells-group/geomarketing-cli/internal/model"
	"github.com/sells-group/geomarketing-cli/internal/pipeline"
	"github.com/sells-group/geomarketing-cli/internal/report"
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank municipalities per customer segment",
	Long: `Loads the configured municipalities, income table, and point sets, merges
income onto municipalities by fuzzy name matching, computes proximity weights,
and ranks municipalities for each segment.

Examples:
  # Top 10 per segment as a table
  score

  # Top 5 KMU municipalities as JSON
  score --segment kmu --top 5 --format json

  # Full scored map layer
  score --format geojson --output scores.geojson

  # Stricter matching, 5 km saturation
  score --threshold 90 --max-distance 5000`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringSlice("segment", nil, "segment IDs or labels to report (default: all)")
	f.Int("top", 0, "regions per segment (overrides report.top_k)")
	f.String("format", "table", "output format: table, csv, json, or geojson")
	f.String("output", "", "output file path (default: stdout)")
	f.Int("threshold", 0, "fuzzy match threshold 1-100 (overrides matcher.threshold)")
	f.String("scorer", "", "similarity backend: wratio, ratio, token_set, jaro_winkler")
	f.Float64("max-distance", 0, "proximity saturation distance (overrides proximity.max_distance)")
	f.String("metric", "", "distance metric: haversine or planar")
	f.String("income-field", "", "income attribute to score: per_capita or total")
	f.Int("workers", 0, "parallel proximity workers (overrides proximity.workers)")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCfg := applyScoreOverrides(cmd, cfg)
	if err := runCfg.Validate("score"); err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	switch format {
	case "table", "csv", "json", "geojson":
	default:
		return eris.Errorf("score: --format must be table, csv, json, or geojson (got %q)", format)
	}

	svc, err := newService(runCfg)
	if err != nil {
		return err
	}

	res, err := svc.Result(ctx)
	if err != nil {
		return eris.Wrap(err, "score: run pipeline")
	}

	keys, _ := cmd.Flags().GetStringSlice("segment")
	segments, err := selectSegments(res.Segments, keys)
	if err != nil {
		return err
	}

	zap.L().Info("score: run finished",
		zap.String("run_id", res.RunID),
		zap.Int("regions", len(res.Regions)),
		zap.Int("segments", len(segments)),
	)

	var w io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	return writeScoreOutput(w, res, segments, format, runCfg.Report.TopK, model.IncomeField(runCfg.Data.Income.Field))
}

// applyScoreOverrides returns a copy of the base config with CLI flag overrides applied.
func applyScoreOverrides(cmd *cobra.Command, base *config.Config) *config.Config {
	c := *base

	if v, _ := cmd.Flags().GetInt("top"); v > 0 {
		c.Report.TopK = v
	}
	if v, _ := cmd.Flags().GetInt("threshold"); v > 0 {
		c.Matcher.Threshold = v
	}
	if v, _ := cmd.Flags().GetString("scorer"); v != "" {
		c.Matcher.Scorer = v
	}
	if v, _ := cmd.Flags().GetFloat64("max-distance"); v > 0 {
		c.Proximity.MaxDistance = v
	}
	if v, _ := cmd.Flags().GetString("metric"); v != "" {
		c.Proximity.Metric = v
	}
	if v, _ := cmd.Flags().GetString("income-field"); v != "" {
		c.Data.Income.Field = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		c.Proximity.Workers = v
	}

	return &c
}

// selectSegments resolves IDs or labels against the run's segments,
// keeping registry order when no keys are given.
func selectSegments(all []scorer.Segment, keys []string) ([]scorer.Segment, error) {
	keys = splitAndTrim(strings.Join(keys, ","))
	if len(keys) == 0 {
		return all, nil
	}

	reg, err := scorer.NewRegistry(all...)
	if err != nil {
		return nil, err
	}
	out := make([]scorer.Segment, 0, len(keys))
	for _, k := range keys {
		seg, ok := reg.Lookup(k)
		if !ok {
			return nil, eris.Errorf("score: unknown segment %q", k)
		}
		out = append(out, seg)
	}
	return out, nil
}

func writeScoreOutput(w io.Writer, res *pipeline.Result, segments []scorer.Segment, format string, k int, field model.IncomeField) error {
	switch format {
	case "csv":
		return writeScoreCSV(w, res.Regions, segments, k)
	case "json":
		return writeScoreJSON(w, res.Regions, segments, k)
	case "geojson":
		return report.WriteGeoJSON(w, res.Regions, segments, field)
	case "table":
		if err := writeScoreTable(w, res.Regions, segments, k); err != nil {
			return err
		}
		return writeScoreSummary(w, res)
	default:
		return eris.Errorf("score: unsupported format %q", format)
	}
}

func writeScoreJSON(w io.Writer, regions []model.ScoredRegion, segments []scorer.Segment, k int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(scorer.Statistics(regions, segments, k)); err != nil {
		return eris.Wrap(err, "score: write JSON")
	}
	return nil
}

func writeScoreCSV(w io.Writer, regions []model.ScoredRegion, segments []scorer.Segment, k int) error {
	cw := csv.NewWriter(w)

	header := []string{"segment_id", "segment", "rank", "region_id", "name", "weight"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, s := range segments {
		for i, r := range scorer.TopK(regions, s.ID, k) {
			row := []string{
				s.ID,
				s.Label,
				strconv.Itoa(i + 1),
				r.RegionID,
				r.Name,
				strconv.FormatFloat(r.Weight, 'f', 4, 64),
			}
			if err := cw.Write(row); err != nil {
				return eris.Wrap(err, "score: write CSV row")
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "score: flush CSV")
	}
	return nil
}

func writeScoreTable(w io.Writer, regions []model.ScoredRegion, segments []scorer.Segment, k int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, s := range segments {
		if i > 0 {
			_, _ = fmt.Fprintln(tw)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", s.Label, s.Formula())
		_, _ = fmt.Fprintln(tw, "#\tMUNICIPALITY\tWEIGHT")
		ranked := scorer.TopK(regions, s.ID, k)
		if len(ranked) == 0 {
			_, _ = fmt.Fprintln(tw, "-\t(no eligible regions)\t-")
		}
		for j, r := range ranked {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%.4f\n", j+1, r.Name, r.Weight)
		}
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "score: write table")
	}
	return nil
}

func writeScoreSummary(w io.Writer, res *pipeline.Result) error {
	d := res.Diagnostics
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "\n--- Summary ---\n")
	_, _ = fmt.Fprintf(tw, "Run:\t%s\n", res.RunID)
	_, _ = fmt.Fprintf(tw, "Regions scored:\t%d\n", d.Regions)
	_, _ = fmt.Fprintf(tw, "Income matched:\t%d\n", d.Matched)
	_, _ = fmt.Fprintf(tw, "Unmatched records:\t%d\n", len(d.UnmatchedRecords))
	_, _ = fmt.Fprintf(tw, "Match conflicts:\t%d\n", len(d.Conflicts))
	_, _ = fmt.Fprintf(tw, "Dropped values:\t%d\n", len(d.DroppedValues))
	_, _ = fmt.Fprintf(tw, "Missing geometry:\t%d\n", len(d.MissingGeometry))
	if len(d.MissingSources) > 0 {
		_, _ = fmt.Fprintf(tw, "Missing point sets:\t%s\n", strings.Join(d.MissingSources, ", "))
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "score: write summary")
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
