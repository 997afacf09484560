package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealbrief/internal/model"
	"github.com/sells-group/dealbrief/internal/registry"
	"github.com/sells-group/dealbrief/pkg/notion"
)

var typesSeedFile string

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Manage the analysis-type catalog",
	Long:  "Commands for listing the stored analysis types and refreshing them from the YAML seed file or the team's Notion database.",
}

// -- types list --

var typesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active analysis types",
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

		types, err := st.ListAnalysisTypes(ctx)
		if err != nil {
			return eris.Wrap(err, "types list")
		}

		if len(types) == 0 {
			fmt.Fprintln(os.Stderr, "No analysis types found. Seed with 'dealbrief types seed --file <path>'.")
			return nil
		}

		formatTypesList(os.Stdout, types)
		return nil
	},
}

// -- types seed --

var typesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert analysis types from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		types, err := registry.LoadSeedFile(typesSeedFile)
		if err != nil {
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

		n, err := st.SeedAnalysisTypes(ctx, types)
		if err != nil {
			return eris.Wrap(err, "seed analysis types")
		}

		zap.L().Info("analysis types seeded",
			zap.Int("count", n),
			zap.String("file", typesSeedFile))
		return nil
	},
}

// -- types sync --

var typesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull active analysis types from Notion into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("sync", "store"); err != nil {
			return err
		}

		nc := notion.NewClient(cfg.Notion.Token)
		types, err := registry.SyncFromNotion(ctx, nc, cfg.Notion.TypesDB)
		if err != nil {
			return err
		}
		if len(types) == 0 {
			fmt.Fprintln(os.Stderr, "No active analysis types in the Notion database.")
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		n, err := st.SeedAnalysisTypes(ctx, types)
		if err != nil {
			return eris.Wrap(err, "seed analysis types")
		}

		zap.L().Info("analysis types synced from notion",
			zap.Int("count", n),
			zap.String("database", cfg.Notion.TypesDB))
		return nil
	},
}

func init() {
	typesSeedCmd.Flags().StringVar(&typesSeedFile, "file", "", "YAML seed file (required)")
	_ = typesSeedCmd.MarkFlagRequired("file")

	typesCmd.AddCommand(typesListCmd)
	typesCmd.AddCommand(typesSeedCmd)
	typesCmd.AddCommand(typesSyncCmd)
	rootCmd.AddCommand(typesCmd)
}

// formatTypesList writes a tabular list of analysis types to w.
func formatTypesList(out io.Writer, types []model.AnalysisType) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tVERSION\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t-------")

	for _, typ := range types {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			typ.ID,
			typ.Name,
			typ.Version,
			typ.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
