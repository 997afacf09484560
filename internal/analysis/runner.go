// Package analysis runs Claude over assembled deal documents and splits
// the markdown responses into reviewable sections.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealbrief/internal/model"
	"github.com/sells-group/dealbrief/pkg/anthropic"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// DefaultMaxTokens caps the response length of a single analysis.
const DefaultMaxTokens = 4096

const userPreamble = "Analyze the following HubSpot deal:\n\n"

// Result holds one completed analysis call.
type Result struct {
	Response string
	Usage    anthropic.TokenUsage
}

// Runner executes analysis types against deal documents.
type Runner struct {
	ai        anthropic.Client
	model     string
	maxTokens int
}

// NewRunner creates a Runner. Zero values fall back to DefaultModel and
// DefaultMaxTokens.
func NewRunner(ai anthropic.Client, model string, maxTokens int) *Runner {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Runner{ai: ai, model: model, maxTokens: maxTokens}
}

// Model returns the model the runner sends requests with.
func (r *Runner) Model() string {
	return r.model
}

// Analyze sends the document to Claude under the analysis type's system
// prompt and returns the full response text with token usage. Exactly
// one model call is made; retry policy belongs to the caller.
func (r *Runner) Analyze(ctx context.Context, document string, typ *model.AnalysisType) (*Result, error) {
	resp, err := r.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.model,
		MaxTokens: int64(r.maxTokens),
		System:    anthropic.BuildCachedSystemBlocks(typ.SystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: userPreamble + document},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: run %s", typ.ID)
	}

	text := resp.Text()
	if text == "" {
		return nil, eris.Errorf("analysis: empty response for type %s", typ.ID)
	}

	resp.Usage.LogCost(r.model, "deal_analysis")
	zap.L().Info("analysis: complete",
		zap.String("analysis_type", typ.ID),
		zap.Int("response_bytes", len(text)),
	)

	return &Result{Response: text, Usage: resp.Usage}, nil
}

// NewAnalysisID builds the persisted identifier for one analysis run.
// The UTC second-resolution timestamp keeps re-runs of the same deal
// and type distinct.
func NewAnalysisID(dealID, typeID string) string {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05")
	return fmt.Sprintf("deal_%s_%s_%s", dealID, typeID, ts)
}
