// Package store persists analysis types, analyses, and reviewer
// feedback behind a backend-agnostic interface.
package store

import (
	"context"

	"github.com/sells-group/dealbrief/internal/model"
)

// AnalysisFilter specifies criteria for searching analyses. Zero values
// mean "any".
type AnalysisFilter struct {
	Query    string `json:"q,omitempty"`         // substring of deal name (case-insensitive) or deal ID
	TypeID   string `json:"model,omitempty"`     // exact analysis type
	DateFrom string `json:"date_from,omitempty"` // YYYY-MM-DD, inclusive
	DateTo   string `json:"date_to,omitempty"`   // YYYY-MM-DD, inclusive
	Limit    int    `json:"limit,omitempty"`     // default 100
}

// Store defines the persistence interface shared by the Postgres and
// SQLite backends.
type Store interface {
	// Analysis types
	ListAnalysisTypes(ctx context.Context) ([]model.AnalysisType, error)
	GetAnalysisType(ctx context.Context, typeID string) (*model.AnalysisType, error)
	SeedAnalysisTypes(ctx context.Context, types []model.AnalysisType) (int, error)

	// Analyses
	SaveAnalysis(ctx context.Context, a *model.Analysis) error
	GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error)
	SearchAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error)

	// Feedback
	SaveFeedback(ctx context.Context, f *model.Feedback) error
	FeedbackStats(ctx context.Context) ([]model.FeedbackStat, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
