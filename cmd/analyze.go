package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealbrief/internal/analysis"
	"github.com/sells-group/dealbrief/internal/brief"
	"github.com/sells-group/dealbrief/internal/model"
	anthropicpkg "github.com/sells-group/dealbrief/pkg/anthropic"
	"github.com/sells-group/dealbrief/pkg/hubspot"
)

var (
	analyzeDealID  string
	analyzeTypeID  string
	analyzeSave    bool
	analyzeDocOnly bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis type against one deal",
	Long:  "Builds the deal's analysis document from HubSpot and runs it through the requested analysis type. --document-only prints the assembled document without calling the model.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if analyzeDocOnly {
			if err := cfg.Validate("brief"); err != nil {
				return err
			}
		} else {
			if analyzeTypeID == "" {
				return eris.New("--type is required unless --document-only")
			}
			if err := cfg.Validate("analyze", "store"); err != nil {
				return err
			}
		}

		crm := hubspot.NewClient(cfg.Hubspot.Token,
			hubspot.WithBaseURL(cfg.Hubspot.BaseURL),
			hubspot.WithRateLimit(cfg.Hubspot.RateLimit))
		builder := brief.NewBuilder(crm)

		if analyzeDocOnly {
			res, err := builder.Build(ctx, analyzeDealID)
			if err != nil {
				return eris.Wrap(err, "build deal document")
			}
			fmt.Println(res.Document)
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		typ, err := st.GetAnalysisType(ctx, analyzeTypeID)
		if err != nil {
			return eris.Wrap(err, "load analysis type")
		}
		if typ == nil {
			return eris.Errorf("unknown analysis type: %s", analyzeTypeID)
		}

		res, err := builder.Build(ctx, analyzeDealID)
		if err != nil {
			return eris.Wrap(err, "build deal document")
		}

		runner := analysis.NewRunner(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
		run, err := runner.Analyze(ctx, res.Document, typ)
		if err != nil {
			return eris.Wrap(err, "run analysis")
		}

		a := &model.Analysis{
			ID:            analysis.NewAnalysisID(analyzeDealID, typ.ID),
			DealID:        analyzeDealID,
			DealName:      res.Deal.Name,
			Type:          typ.ID,
			UserInput:     res.Document,
			SystemPrompt:  typ.SystemPrompt,
			FullResponse:  run.Response,
			PromptVersion: typ.Version,
			Metadata: map[string]any{
				"model":         runner.Model(),
				"input_tokens":  run.Usage.InputTokens,
				"output_tokens": run.Usage.OutputTokens,
			},
			CreatedAt: time.Now().UTC(),
		}

		if analyzeSave {
			if err := st.SaveAnalysis(ctx, a); err != nil {
				return eris.Wrap(err, "save analysis")
			}
			zap.L().Info("analysis saved", zap.String("analysis_id", a.ID))
		}

		out := struct {
			AnalysisID string          `json:"analysis_id"`
			DealID     string          `json:"deal_id"`
			DealName   string          `json:"deal_name"`
			Type       string          `json:"analysis_type"`
			Sections   []model.Section `json:"sections"`
			Saved      bool            `json:"saved"`
			CreatedAt  time.Time       `json:"created_at"`
		}{
			AnalysisID: a.ID,
			DealID:     a.DealID,
			DealName:   a.DealName,
			Type:       a.Type,
			Sections:   analysis.ParseSections(run.Response),
			Saved:      analyzeSave,
			CreatedAt:  a.CreatedAt,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDealID, "deal", "", "HubSpot deal ID (required)")
	analyzeCmd.Flags().StringVar(&analyzeTypeID, "type", "", "analysis type ID")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the analysis to the store")
	analyzeCmd.Flags().BoolVar(&analyzeDocOnly, "document-only", false, "print the assembled document and skip the model call")
	_ = analyzeCmd.MarkFlagRequired("deal")
	rootCmd.AddCommand(analyzeCmd)
}
