package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealbrief/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetAnalysisType(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT type_id, name, description, system_prompt, version, metadata FROM analysis_types WHERE type_id = \$1 AND is_active = TRUE`).
		WithArgs("risk_assessment").
		WillReturnRows(pgxmock.NewRows([]string{"type_id", "name", "description", "system_prompt", "version", "metadata"}).
			AddRow("risk_assessment", "Risk Assessment", "Scores deal risk", "You are a deal risk analyst.", 3, []byte(`{"team":"revops"}`)))

	at, err := s.GetAnalysisType(context.Background(), "risk_assessment")
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, "risk_assessment", at.ID)
	assert.Equal(t, "Risk Assessment", at.Name)
	assert.Equal(t, 3, at.Version)
	assert.True(t, at.Active)
	assert.Equal(t, "revops", at.Metadata["team"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAnalysisType_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT type_id, name, description, system_prompt, version, metadata FROM analysis_types`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	at, err := s.GetAnalysisType(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, at)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAnalysisTypes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT type_id, name, description, system_prompt, version, metadata\s+FROM analysis_types WHERE is_active = TRUE ORDER BY type_id`).
		WillReturnRows(pgxmock.NewRows([]string{"type_id", "name", "description", "system_prompt", "version", "metadata"}).
			AddRow("comp_analysis", "Comp Analysis", "", "Compare against peers.", 1, nil).
			AddRow("risk_assessment", "Risk Assessment", "", "Assess risk.", 2, nil))

	types, err := s.ListAnalysisTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "comp_analysis", types[0].ID)
	assert.Equal(t, "risk_assessment", types[1].ID)
	assert.Nil(t, types[0].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SeedAnalysisTypes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(type_id\) DO UPDATE`).
		WithArgs("risk_assessment", "Risk Assessment", "Scores deal risk", "Assess risk.", []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`ON CONFLICT \(type_id\) DO UPDATE`).
		WithArgs("comp_analysis", "Comp Analysis", "", "Compare.", []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := s.SeedAnalysisTypes(context.Background(), []model.AnalysisType{
		{ID: "risk_assessment", Name: "Risk Assessment", Description: "Scores deal risk", SystemPrompt: "Assess risk."},
		{ID: "comp_analysis", Name: "Comp Analysis", SystemPrompt: "Compare."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analyses`).
		WithArgs("deal_9001_risk_assessment_2025-01-12T15:14:37", "9001", "Acme Renewal", "risk_assessment",
			"# Deal Analysis: Acme Renewal", "Assess risk.", "## Summary\nGood.", 3, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := &model.Analysis{
		ID:            "deal_9001_risk_assessment_2025-01-12T15:14:37",
		DealID:        "9001",
		DealName:      "Acme Renewal",
		Type:          "risk_assessment",
		UserInput:     "# Deal Analysis: Acme Renewal",
		SystemPrompt:  "Assess risk.",
		FullResponse:  "## Summary\nGood.",
		PromptVersion: 3,
	}
	err := s.SaveAnalysis(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, a.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2025, 1, 12, 15, 14, 37, 0, time.UTC)

	mock.ExpectQuery(`FROM analyses a\s+LEFT JOIN analysis_types t`).
		WithArgs("deal_9001_risk_assessment_2025-01-12T15:14:37").
		WillReturnRows(pgxmock.NewRows([]string{"analysis_id", "deal_id", "deal_name", "analysis_type", "name", "user_input", "system_prompt", "full_response", "prompt_version", "metadata", "created_at"}).
			AddRow("deal_9001_risk_assessment_2025-01-12T15:14:37", "9001", "Acme Renewal", "risk_assessment", "Risk Assessment",
				"doc", "prompt", "## Summary\nGood.", 3, []byte(`{"model":"claude-sonnet-4-20250514"}`), created))

	a, err := s.GetAnalysis(context.Background(), "deal_9001_risk_assessment_2025-01-12T15:14:37")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "9001", a.DealID)
	assert.Equal(t, "Risk Assessment", a.TypeName)
	assert.Equal(t, "## Summary\nGood.", a.FullResponse)
	assert.Equal(t, created, a.CreatedAt)
	assert.Equal(t, "claude-sonnet-4-20250514", a.Metadata["model"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAnalysis_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM analyses a`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	a, err := s.GetAnalysis(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchAnalyses_AllFilters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`LOWER\(a\.deal_name\) LIKE LOWER\(\$1\)`).
		WithArgs("%acme%", "%acme%", "risk_assessment", "2025-01-01", "2025-01-31", 10).
		WillReturnRows(pgxmock.NewRows([]string{"analysis_id", "deal_id", "deal_name", "analysis_type", "name", "full_response", "created_at"}).
			AddRow("a2", "9001", "Acme Renewal", "risk_assessment", "Risk Assessment", "## B", time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)).
			AddRow("a1", "9001", "Acme Renewal", "risk_assessment", "Risk Assessment", "## A", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)))

	got, err := s.SearchAnalyses(context.Background(), AnalysisFilter{
		Query:    "acme",
		TypeID:   "risk_assessment",
		DateFrom: "2025-01-01",
		DateTo:   "2025-01-31",
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ID)
	assert.Equal(t, "a1", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchAnalyses_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY a\.created_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{"analysis_id", "deal_id", "deal_name", "analysis_type", "name", "full_response", "created_at"}))

	got, err := s.SearchAnalyses(context.Background(), AnalysisFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveFeedback(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("a1", "section_1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO feedback`).
		WithArgs("a1", "section_1", "Summary", "down", "too vague", "", 1, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveFeedback(context.Background(), &model.Feedback{
		AnalysisID:   "a1",
		SectionID:    "section_1",
		SectionTitle: "Summary",
		Rating:       model.FeedbackDown,
		Reason:       "too vague",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveFeedback_DuplicateIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("a1", "section_1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.SaveFeedback(context.Background(), &model.Feedback{
		AnalysisID: "a1",
		SectionID:  "section_1",
		Rating:     model.FeedbackUp,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FeedbackStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT a\.analysis_id, a\.analysis_type`).
		WillReturnRows(pgxmock.NewRows([]string{"analysis_id", "analysis_type", "name", "full_response"}).
			AddRow("a1", "risk_assessment", "Risk Assessment", "## A\ntext\n## B\nmore").
			AddRow("a2", "risk_assessment", "Risk Assessment", "## A\nx").
			AddRow("a3", "comp_analysis", "Comp Analysis", "no headings here"))
	mock.ExpectQuery(`WHERE feedback = 'down' AND section_id != 'overall'`).
		WillReturnRows(pgxmock.NewRows([]string{"analysis_id", "count"}).AddRow("a1", 1))

	stats, err := s.FeedbackStats(context.Background())
	require.NoError(t, err)

	// The section-less analysis contributes nothing.
	require.Len(t, stats, 1)
	assert.Equal(t, "risk_assessment", stats[0].TypeID)
	assert.Equal(t, "Risk Assessment", stats[0].Name)
	assert.Equal(t, 3, stats[0].TotalSections)
	assert.Equal(t, 1, stats[0].NegativeFeedback)
	assert.Equal(t, 2, stats[0].AnalysisCount)
	assert.Equal(t, 67, stats[0].Accuracy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS analysis_types`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
