// Command reviewctl aggregates score exports and ranks platform entries from
// local files, without a server or database.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/okian/reviewrank/internal/adapters/intake"
	service "github.com/okian/reviewrank/internal/app"
	"github.com/okian/reviewrank/internal/domain/aggregate"
	"github.com/okian/reviewrank/internal/domain/duplicates"
	"github.com/okian/reviewrank/internal/domain/leaderboard"
	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/normalize"
	"github.com/okian/reviewrank/internal/testexports"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type aggregateFlags struct {
	scoreSet   string
	aliases    string
	format     string
	partitions int
	threshold  float64
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "reviewctl",
		Short: "Aggregate reviewer score exports and rank platform entries",
		Long: `reviewctl runs the scoring engine over local files.

  reviewctl aggregate scores.csv --score-set "Eligibility Shortlisting"
  reviewctl summary scores.json
  reviewctl score entries.json --limit 20
  reviewctl generate --apps 500 --seed 7 > synthetic.csv

Use "-" as FILE to read standard input.`,
		SilenceUsage: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)

	root.AddCommand(newAggregateCmd(false), newAggregateCmd(true), newScoreCmd(), newGenerateCmd())
	return root
}

func newAggregateCmd(summaryOnly bool) *cobra.Command {
	var f aggregateFlags
	cmd := &cobra.Command{
		Use:   "aggregate FILE",
		Short: "Aggregate a CSV or JSON score export into per-application and per-reviewer results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runAggregate(cmd.Context(), cmd.InOrStdin(), args[0], f)
			if err != nil {
				return err
			}
			if summaryOnly {
				return writeJSON(cmd.OutOrStdout(), report.Summary)
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	if summaryOnly {
		cmd.Use = "summary FILE"
		cmd.Short = "Print only the summary statistics of a score export"
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.scoreSet, "score-set", "s", "", "Score set name for rows that carry none")
	flags.StringVarP(&f.aliases, "aliases", "a", "", "YAML file overriding column aliases")
	flags.StringVarP(&f.format, "format", "f", "", "Input format (csv|json), detected when empty")
	flags.IntVarP(&f.partitions, "partitions", "p", runtime.NumCPU(), "Aggregation fan-out")
	flags.Float64Var(&f.threshold, "duplicate-threshold", duplicates.DefaultThreshold, "Title similarity reported as a duplicate")
	return cmd
}

func runAggregate(ctx context.Context, stdin io.Reader, path string, f aggregateFlags) (service.AggregateReport, error) {
	n := normalize.New()
	if f.aliases != "" {
		table, err := normalize.LoadAliasFile(f.aliases)
		if err != nil {
			return service.AggregateReport{}, err
		}
		n = normalize.New(normalize.WithAliases(table))
	}

	records, err := readRecords(stdin, path, intake.Format(f.format))
	if err != nil {
		return service.AggregateReport{}, err
	}

	rows := n.Rows(records)
	if f.scoreSet != "" {
		for i := range rows {
			if rows[i].ScoreSetName == "" {
				rows[i].ScoreSetName = f.scoreSet
			}
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	data, err := aggregate.ComputeConcurrent(ctx, rows, f.partitions)
	if err != nil {
		return service.AggregateReport{}, err
	}
	pairs := duplicates.Detect(duplicates.FromApps(data.Apps), f.threshold)
	if pairs == nil {
		pairs = []duplicates.Pair{}
	}
	return service.AggregateReport{AggregatedData: data, Duplicates: pairs}, nil
}

func newScoreCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "score FILE",
		Short: "Rank a JSON array of grant platform entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := open(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			var entries []model.PlatformEntry
			if err := json.NewDecoder(r).Decode(&entries); err != nil {
				return fmt.Errorf("decode platform entries: %w", err)
			}
			ranked := leaderboard.Rank(leaderboard.BuildEntries(entries))
			if limit > 0 && limit < len(ranked) {
				ranked = ranked[:limit]
			}
			return writeJSON(cmd.OutOrStdout(), ranked)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Print only the first N entries")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cfg := testexports.DefaultConfig()
	var format string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic score export for load tests and demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records := testexports.Generate(cfg)
			switch intake.Format(format) {
			case intake.FormatCSV:
				return testexports.WriteCSV(cmd.OutOrStdout(), records)
			case intake.FormatJSON:
				return writeJSON(cmd.OutOrStdout(), records)
			default:
				return fmt.Errorf("%w: %q", intake.ErrUnsupportedFormat, format)
			}
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flags.IntVar(&cfg.Apps, "apps", cfg.Apps, "Applications to generate")
	flags.IntVar(&cfg.Reviewers, "reviewers", cfg.Reviewers, "Reviewer pool size")
	flags.IntVar(&cfg.ReviewersPerApp, "reviewers-per-app", cfg.ReviewersPerApp, "Reviewers scoring each application")
	flags.StringSliceVar(&cfg.Criteria, "criteria", cfg.Criteria, "Scoring criteria")
	flags.StringSliceVar(&cfg.Categories, "categories", cfg.Categories, "Categories assigned round robin")
	flags.StringVarP(&cfg.ScoreSet, "score-set", "s", cfg.ScoreSet, "Score set name")
	flags.IntVar(&cfg.DuplicateEvery, "duplicate-every", 0, "Resubmit the previous title every N applications")
	flags.IntVar(&cfg.BlankReviewerEvery, "blank-reviewer-every", 0, "Drop the reviewer email every N rows")
	flags.StringVarP(&format, "format", "f", string(intake.FormatCSV), "Output format (csv|json)")
	return cmd
}

func readRecords(stdin io.Reader, path string, format intake.Format) ([]map[string]any, error) {
	r, closeFn, err := open(stdin, path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	br := bufio.NewReader(r)
	if format == "" {
		head, _ := br.Peek(512)
		format = intake.DetectFormat("", filepath.Base(path), head)
	}
	return intake.Read(br, format)
}

func open(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
