package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealbrief/internal/analysis"
	"github.com/sells-group/dealbrief/internal/api"
	"github.com/sells-group/dealbrief/internal/brief"
	anthropicpkg "github.com/sells-group/dealbrief/pkg/anthropic"
	"github.com/sells-group/dealbrief/pkg/hubspot"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
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

		crm := hubspot.NewClient(cfg.Hubspot.Token,
			hubspot.WithBaseURL(cfg.Hubspot.BaseURL),
			hubspot.WithRateLimit(cfg.Hubspot.RateLimit))
		runner := analysis.NewRunner(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := api.NewServer(st, brief.NewBuilder(crm), runner, port, cfg.Server.AllowedOrigins)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
