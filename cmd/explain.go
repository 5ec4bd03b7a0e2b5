package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/projectmerge/internal/pipeline"
)

var explainCanonical string

var explainCmd = &cobra.Command{
	Use:   "explain <input> <row>",
	Short: "Show how one input row scores against the canonical dataset",
	Long:  "Normalizes a single row (1-based, header excluded) and prints its best match, the per-criterion scores and the ranked candidates. Nothing is written.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, err := strconv.Atoi(args[1])
		if err != nil {
			return eris.Wrapf(err, "explain: invalid row %q", args[1])
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		p := pipeline.New(cfg, nil, nil, nil)
		ex, err := p.Explain(cmd.Context(), explainCanonical, args[0], row)
		if err != nil {
			return eris.Wrap(err, "explain")
		}
		formatExplanation(os.Stdout, ex)
		return nil
	},
}

func init() {
	explainCmd.Flags().StringVar(&explainCanonical, "canonical", "", "canonical dataset file (required)")
	_ = explainCmd.MarkFlagRequired("canonical")
	rootCmd.AddCommand(explainCmd)
}

// formatExplanation writes a match explanation to out.
func formatExplanation(out io.Writer, ex *pipeline.Explanation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Incoming:\t%s\n", ex.Incoming.Name)
	_, _ = fmt.Fprintf(w, "Outcome:\t%s\n", ex.Outcome)
	_, _ = fmt.Fprintf(w, "Candidates:\t%d (%s)\n", ex.Result.Candidates, ex.Result.Path)

	best := ex.Result.Best
	if best == nil {
		_, _ = fmt.Fprintln(w, "Best match:\tnone")
		_ = w.Flush()
		return
	}
	bd := best.Breakdown
	_, _ = fmt.Fprintf(w, "Best match:\t%s %s\n", best.Candidate.ID, best.Candidate.Name)
	_, _ = fmt.Fprintf(w, "Score:\t%d\n", best.Score)
	_, _ = fmt.Fprintf(w, "  Geographic:\t%d\n", bd.Geo)
	_, _ = fmt.Fprintf(w, "  State:\t%d\n", bd.State)
	_, _ = fmt.Fprintf(w, "  Funding source:\t%d\n", bd.FundingSource)
	_, _ = fmt.Fprintf(w, "  Name:\t%d\n", bd.Name)
	_, _ = fmt.Fprintf(w, "  Description:\t%d\n", bd.Description)
	_, _ = fmt.Fprintf(w, "  Amount:\t%d\n", bd.Amount)
	_, _ = fmt.Fprintf(w, "  Agency:\t%d\n", bd.Agency)
	if bd.HasDistance() {
		_, _ = fmt.Fprintf(w, "Distance:\t%.2f km\n", bd.DistanceKm)
	}
	for _, r := range bd.Reasons {
		_, _ = fmt.Fprintf(w, "Reason:\t%s\n", r)
	}
	_ = w.Flush()

	if len(ex.Result.Top) > 1 {
		_, _ = fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "RANK\tID\tSCORE\tNAME")
		for i, p := range ex.Result.Top {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, p.Candidate.ID, p.Score, p.Candidate.Name)
		}
		_ = tw.Flush()
	}
}
