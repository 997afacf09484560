package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealbrief/internal/registry"
)

var migrateSeedFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store migrations",
	Long:  "Creates or updates the analysis_types, analyses, and feedback tables. With --seed, also upserts analysis types from a YAML file.",
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
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))

		if migrateSeedFile == "" {
			return nil
		}

		types, err := registry.LoadSeedFile(migrateSeedFile)
		if err != nil {
			return err
		}
		n, err := st.SeedAnalysisTypes(ctx, types)
		if err != nil {
			return eris.Wrap(err, "seed analysis types")
		}
		zap.L().Info("analysis types seeded",
			zap.Int("count", n),
			zap.String("file", migrateSeedFile))
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSeedFile, "seed", "", "YAML file of analysis types to upsert after migrating")
	rootCmd.AddCommand(migrateCmd)
}
