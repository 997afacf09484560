package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealbrief/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs
// local and offline use; the schema mirrors the Postgres one.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analysis_types (
	type_id       TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL,
	is_active     INTEGER NOT NULL DEFAULT 1,
	version       INTEGER NOT NULL DEFAULT 1,
	metadata      TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analyses (
	analysis_id    TEXT PRIMARY KEY,
	deal_id        TEXT NOT NULL,
	deal_name      TEXT NOT NULL DEFAULT '',
	analysis_type  TEXT NOT NULL,
	user_input     TEXT NOT NULL DEFAULT '',
	system_prompt  TEXT NOT NULL DEFAULT '',
	full_response  TEXT NOT NULL,
	prompt_version INTEGER NOT NULL DEFAULT 1,
	metadata       TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS feedback (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id     TEXT NOT NULL,
	section_id      TEXT NOT NULL,
	section_title   TEXT NOT NULL DEFAULT '',
	feedback        TEXT NOT NULL,
	feedback_reason TEXT,
	user_correction TEXT,
	prompt_version  INTEGER NOT NULL DEFAULT 1,
	metadata        TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (analysis_id, section_id)
);

CREATE INDEX IF NOT EXISTS idx_analyses_deal_id ON analyses(deal_id);
CREATE INDEX IF NOT EXISTS idx_analyses_type ON analyses(analysis_type);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_analysis_id ON feedback(analysis_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListAnalysisTypes(ctx context.Context) ([]model.AnalysisType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type_id, name, description, system_prompt, version, metadata
		 FROM analysis_types WHERE is_active = 1 ORDER BY type_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analysis types")
	}
	defer rows.Close()

	var types []model.AnalysisType
	for rows.Next() {
		at, err := scanSQLiteAnalysisType(rows.Scan)
		if err != nil {
			return nil, err
		}
		types = append(types, *at)
	}
	return types, eris.Wrap(rows.Err(), "sqlite: list analysis types iterate")
}

func (s *SQLiteStore) GetAnalysisType(ctx context.Context, typeID string) (*model.AnalysisType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT type_id, name, description, system_prompt, version, metadata
		 FROM analysis_types WHERE type_id = ? AND is_active = 1`,
		typeID,
	)
	at, err := scanSQLiteAnalysisType(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis type %s", typeID)
	}
	return at, nil
}

func scanSQLiteAnalysisType(scan func(...any) error) (*model.AnalysisType, error) {
	var at model.AnalysisType
	var metadataJSON sql.NullString

	if err := scan(&at.ID, &at.Name, &at.Description, &at.SystemPrompt, &at.Version, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan analysis type")
	}
	at.Active = true
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &at.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal type metadata")
		}
	}
	return &at, nil
}

func (s *SQLiteStore) SeedAnalysisTypes(ctx context.Context, types []model.AnalysisType) (int, error) {
	seeded := 0
	for _, t := range types {
		metadataJSON, err := marshalMetadata(t.Metadata)
		if err != nil {
			return seeded, eris.Wrapf(err, "sqlite: marshal metadata for %s", t.ID)
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO analysis_types (type_id, name, description, system_prompt, is_active, version, metadata)
			 VALUES (?, ?, ?, ?, 1, 1, ?)
			 ON CONFLICT (type_id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				system_prompt = excluded.system_prompt,
				metadata = excluded.metadata,
				version = version + 1,
				updated_at = datetime('now')`,
			t.ID, t.Name, t.Description, t.SystemPrompt, string(metadataJSON),
		)
		if err != nil {
			return seeded, eris.Wrapf(err, "sqlite: seed analysis type %s", t.ID)
		}
		seeded++
	}

	zap.L().Info("store: analysis types seeded", zap.Int("count", seeded))
	return seeded, nil
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *model.Analysis) error {
	metadataJSON, err := marshalMetadata(a.Metadata)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal metadata for %s", a.ID)
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.PromptVersion <= 0 {
		a.PromptVersion = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (analysis_id, deal_id, deal_name, analysis_type, user_input, system_prompt, full_response, prompt_version, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DealID, a.DealName, a.Type, a.UserInput, a.SystemPrompt, a.FullResponse, a.PromptVersion, string(metadataJSON), a.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save analysis %s", a.ID)
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error) {
	var a model.Analysis
	var metadataJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT a.analysis_id, a.deal_id, a.deal_name, a.analysis_type, COALESCE(t.name, a.analysis_type), a.user_input, a.system_prompt, a.full_response, a.prompt_version, a.metadata, a.created_at
		 FROM analyses a
		 LEFT JOIN analysis_types t ON a.analysis_type = t.type_id
		 WHERE a.analysis_id = ?`,
		analysisID,
	).Scan(&a.ID, &a.DealID, &a.DealName, &a.Type, &a.TypeName, &a.UserInput, &a.SystemPrompt, &a.FullResponse, &a.PromptVersion, &metadataJSON, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", analysisID)
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal analysis metadata")
		}
	}
	return &a, nil
}

func (s *SQLiteStore) SearchAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `SELECT a.analysis_id, a.deal_id, a.deal_name, a.analysis_type, COALESCE(t.name, a.analysis_type), a.full_response, a.created_at
		 FROM analyses a
		 LEFT JOIN analysis_types t ON a.analysis_type = t.type_id
		 WHERE 1=1`
	var args []any

	if filter.Query != "" {
		query += ` AND (LOWER(a.deal_name) LIKE LOWER(?) OR a.deal_id LIKE ?)`
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern, pattern)
	}
	if filter.TypeID != "" {
		query += ` AND a.analysis_type = ?`
		args = append(args, filter.TypeID)
	}
	// created_at text always begins YYYY-MM-DD, whatever the driver's
	// full encoding; the date filters compare that prefix.
	if filter.DateFrom != "" {
		query += ` AND substr(a.created_at, 1, 10) >= ?`
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		query += ` AND substr(a.created_at, 1, 10) <= ?`
		args = append(args, filter.DateTo)
	}
	query += ` ORDER BY a.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search analyses")
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		var a model.Analysis
		if err := rows.Scan(&a.ID, &a.DealID, &a.DealName, &a.Type, &a.TypeName, &a.FullResponse, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		analyses = append(analyses, a)
	}
	return analyses, eris.Wrap(rows.Err(), "sqlite: search analyses iterate")
}

func (s *SQLiteStore) SaveFeedback(ctx context.Context, f *model.Feedback) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE analysis_id = ? AND section_id = ?`,
		f.AnalysisID, f.SectionID,
	).Scan(&exists)
	if err != nil {
		return eris.Wrap(err, "sqlite: check feedback")
	}
	if exists > 0 {
		// One verdict per section; later submissions are dropped.
		zap.L().Debug("store: feedback already recorded",
			zap.String("analysis_id", f.AnalysisID),
			zap.String("section_id", f.SectionID),
		)
		return nil
	}

	metadataJSON, err := marshalMetadata(f.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal feedback metadata")
	}
	if f.PromptVersion <= 0 {
		f.PromptVersion = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (analysis_id, section_id, section_title, feedback, feedback_reason, user_correction, prompt_version, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (analysis_id, section_id) DO NOTHING`,
		f.AnalysisID, f.SectionID, f.SectionTitle, string(f.Rating), f.Reason, f.Correction, f.PromptVersion, string(metadataJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save feedback")
}

func (s *SQLiteStore) FeedbackStats(ctx context.Context) ([]model.FeedbackStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.analysis_id, a.analysis_type, COALESCE(t.name, a.analysis_type), a.full_response
		 FROM analyses a
		 LEFT JOIN analysis_types t ON a.analysis_type = t.type_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats analyses")
	}
	defer rows.Close()

	var stat []statRow
	for rows.Next() {
		var r statRow
		if err := rows.Scan(&r.AnalysisID, &r.TypeID, &r.TypeName, &r.FullResponse); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats row")
		}
		stat = append(stat, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats analyses iterate")
	}

	negRows, err := s.db.QueryContext(ctx,
		`SELECT analysis_id, COUNT(*) FROM feedback WHERE feedback = 'down' AND section_id != 'overall' GROUP BY analysis_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats feedback")
	}
	defer negRows.Close()

	negatives := map[string]int{}
	for negRows.Next() {
		var analysisID string
		var count int
		if err := negRows.Scan(&analysisID, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feedback count")
		}
		negatives[analysisID] = count
	}
	if err := negRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats feedback iterate")
	}

	return aggregateFeedbackStats(stat, negatives), nil
}
