package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/projectmerge/internal/pipeline"
	"github.com/sells-group/projectmerge/internal/store"
	"github.com/sells-group/projectmerge/pkg/geocode"
)

var (
	mergeCanonical   string
	mergeOutput      string
	mergeDryRun      bool
	mergeMetricsFile string
)

var mergeCmd = &cobra.Command{
	Use:   "merge [flags] <input>...",
	Short: "Merge agency files into the canonical dataset",
	Long: `Merge one or more agency files into the canonical dataset.

Each input is a path whose file name selects its schema (for example
epa_projects.csv), or "schema:path" to name the schema explicitly
(for example doe:investments.xlsx).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := applyMergeFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// A dry run leaves the ledger and the geocode cache untouched.
		var st store.Store
		if !mergeDryRun {
			var err error
			st, err = initStore(ctx)
			if err != nil {
				return eris.Wrap(err, "merge: init store")
			}
			defer st.Close() //nolint:errcheck
		}

		var rev geocode.Reverser
		if cfg.Enrich.Enabled {
			gc := initGeocoder(st)
			zap.L().Debug("geocode providers", zap.Strings("providers", gc.Providers()))
			rev = gc
		}

		p := pipeline.New(cfg, st, rev, nil)
		res, err := p.Run(ctx, pipeline.Request{
			Canonical:  mergeCanonical,
			Inputs:     args,
			OutputPath: mergeOutput,
			DryRun:     mergeDryRun,
		})

		if mergeMetricsFile != "" && !mergeDryRun {
			if werr := p.Metrics().WriteTextfile(mergeMetricsFile); werr != nil {
				zap.L().Warn("failed to write metrics file", zap.String("path", mergeMetricsFile), zap.Error(werr))
			}
		}
		if err != nil {
			return eris.Wrap(err, "merge")
		}

		if err := pipeline.WriteTable(os.Stdout, res.Run.Files, res.Run.Totals); err != nil {
			return err
		}
		for _, path := range res.Run.Outputs {
			zap.L().Info("wrote output", zap.String("path", path))
		}
		return nil
	},
}

// applyMergeFlags overrides config values with flags the user set.
func applyMergeFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("confidence-threshold") {
		v, err := flags.GetInt("confidence-threshold")
		if err != nil {
			return eris.Wrap(err, "merge: confidence-threshold")
		}
		cfg.Dedup.DuplicateThreshold = v
	}
	if flags.Changed("review-threshold") {
		v, err := flags.GetInt("review-threshold")
		if err != nil {
			return eris.Wrap(err, "merge: review-threshold")
		}
		cfg.Dedup.ReviewThreshold = v
	}
	if flags.Changed("require-coordinates") {
		v, err := flags.GetBool("require-coordinates")
		if err != nil {
			return eris.Wrap(err, "merge: require-coordinates")
		}
		cfg.Output.RequireCoordinates = v
	}
	if flags.Changed("no-enrich") {
		v, err := flags.GetBool("no-enrich")
		if err != nil {
			return eris.Wrap(err, "merge: no-enrich")
		}
		cfg.Enrich.Enabled = !v
	}
	if flags.Changed("output-dir") {
		v, err := flags.GetString("output-dir")
		if err != nil {
			return eris.Wrap(err, "merge: output-dir")
		}
		cfg.Output.Dir = v
	}
	return nil
}

func init() {
	mergeCmd.Flags().StringVar(&mergeCanonical, "canonical", "", "canonical dataset file (required)")
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "updated canonical file (default <output-dir>/<canonical>-merged.csv)")
	mergeCmd.Flags().String("output-dir", "", "directory for the review file and summary")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "score and classify without writing anything")
	mergeCmd.Flags().Int("confidence-threshold", 80, "score at or above which a row is a duplicate")
	mergeCmd.Flags().Int("review-threshold", 40, "score at or above which a row needs review")
	mergeCmd.Flags().Bool("require-coordinates", false, "drop new records that have no coordinates")
	mergeCmd.Flags().Bool("no-enrich", false, "skip reverse geocoding of new records")
	mergeCmd.Flags().StringVar(&mergeMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	_ = mergeCmd.MarkFlagRequired("canonical")
	rootCmd.AddCommand(mergeCmd)
}
