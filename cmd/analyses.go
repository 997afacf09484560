package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealbrief/internal/model"
	"github.com/sells-group/dealbrief/internal/store"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Inspect saved analyses",
	Long:  "Commands for listing, viewing, and summarizing stored deal analyses and their feedback accuracy.",
}

// -- analyses list --

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analyses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		query, _ := cmd.Flags().GetString("query")
		typeID, _ := cmd.Flags().GetString("type")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.AnalysisFilter{
			Query:    query,
			TypeID:   typeID,
			DateFrom: from,
			DateTo:   to,
			Limit:    limit,
		}

		analyses, err := st.SearchAnalyses(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "analyses list")
		}

		if len(analyses) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses found.")
			return nil
		}

		formatAnalysesList(os.Stdout, analyses)
		return nil
	},
}

// -- analyses show --

var analysesShowCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Show one analysis in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		a, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "analyses show")
		}
		if a == nil {
			return eris.Errorf("analysis not found: %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	},
}

// -- analyses stats --

var analysesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-type feedback accuracy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stats, err := st.FeedbackStats(ctx)
		if err != nil {
			return eris.Wrap(err, "analyses stats")
		}

		if len(stats) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses recorded.")
			return nil
		}

		formatFeedbackStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	analysesListCmd.Flags().String("query", "", "filter by deal name or deal ID substring")
	analysesListCmd.Flags().String("type", "", "filter by analysis type ID")
	analysesListCmd.Flags().String("from", "", "earliest created date (YYYY-MM-DD)")
	analysesListCmd.Flags().String("to", "", "latest created date (YYYY-MM-DD)")
	analysesListCmd.Flags().Int("limit", 50, "max number of analyses to display")

	analysesCmd.AddCommand(analysesListCmd)
	analysesCmd.AddCommand(analysesShowCmd)
	analysesCmd.AddCommand(analysesStatsCmd)
	rootCmd.AddCommand(analysesCmd)
}

// formatAnalysesList writes a tabular list of analyses to w.
func formatAnalysesList(out io.Writer, analyses []model.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDEAL\tTYPE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-------")

	for _, a := range analyses {
		deal := a.DealName
		if deal == "" {
			deal = a.DealID
		}
		if len(deal) > 30 {
			deal = deal[:27] + "..."
		}

		typeName := a.TypeName
		if typeName == "" {
			typeName = a.Type
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.ID,
			deal,
			typeName,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatFeedbackStats writes per-type accuracy stats to w.
func formatFeedbackStats(out io.Writer, stats []model.FeedbackStat) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tANALYSES\tSECTIONS\tNEGATIVE\tACCURACY")
	_, _ = fmt.Fprintln(w, "----\t--------\t--------\t--------\t--------")

	for _, s := range stats {
		name := s.Name
		if name == "" {
			name = s.TypeID
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d%%\n",
			name,
			s.AnalysisCount,
			s.TotalSections,
			s.NegativeFeedback,
			s.Accuracy,
		)
	}
	_ = w.Flush()
}
