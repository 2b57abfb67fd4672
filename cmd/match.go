package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geomarketing-cli/internal/matcher"
)

var matchCmd = &cobra.Command{
	Use:   "match <name>",
	Short: "Show how a free-text name resolves against the municipality list",
	Long: `Scores a name against every configured municipality and prints the best
candidates, marking the one the merge would accept at the current threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.Int("limit", 5, "number of candidates to show")
	f.Int("threshold", 0, "match threshold (overrides matcher.threshold)")
	f.String("scorer", "", "similarity backend (overrides matcher.scorer)")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if v, _ := cmd.Flags().GetInt("threshold"); v > 0 {
		cfg.Matcher.Threshold = v
	}
	if v, _ := cmd.Flags().GetString("scorer"); v != "" {
		cfg.Matcher.Scorer = v
	}
	if err := cfg.Validate("match"); err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := matcher.ScorerByName(cfg.Matcher.Scorer)
	if err != nil {
		return err
	}

	regions, err := newLoader(cfg).Regions(ctx, cfg.Data)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(regions))
	for _, r := range regions {
		names = append(names, r.Name)
	}
	m := matcher.NewMatcher(names, matcher.WithThreshold(cfg.Matcher.Threshold), matcher.WithScorer(s))

	return writeMatch(os.Stdout, m, args[0], limit)
}

func writeMatch(w io.Writer, m *matcher.Matcher, query string, limit int) error {
	result, err := m.Match(query)
	if err != nil {
		return eris.Wrap(err, "match")
	}
	best, found, err := m.Best(query)
	if err != nil {
		return eris.Wrap(err, "match")
	}
	ranked, err := m.Rank(query, limit)
	if err != nil {
		return eris.Wrap(err, "match")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SCORE\tCANDIDATE\tACCEPTED")
	for _, c := range ranked {
		accepted := ""
		if result.Matched() && c.Index == best.Index {
			accepted = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", c.Score, c.Name, accepted)
	}
	switch {
	case !found:
		_, _ = fmt.Fprintln(tw, "\nno candidates")
	case !result.Matched():
		_, _ = fmt.Fprintf(tw, "\nno match at threshold %d (closest: %s, score %d)\n", m.Threshold(), best.Name, best.Score)
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "match: write table")
	}
	return nil
}
