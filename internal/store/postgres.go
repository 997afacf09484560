package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealbrief/internal/db"
	"github.com/sells-group/dealbrief/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_analysis_type": `SELECT type_id, name, description, system_prompt, version, metadata FROM analysis_types WHERE type_id = $1 AND is_active = TRUE`,
	"insert_analysis":   `INSERT INTO analyses (analysis_id, deal_id, deal_name, analysis_type, user_input, system_prompt, full_response, prompt_version, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"feedback_exists":   `SELECT EXISTS (SELECT 1 FROM feedback WHERE analysis_id = $1 AND section_id = $2)`,
	"insert_feedback":   `INSERT INTO feedback (analysis_id, section_id, section_title, feedback, feedback_reason, user_correction, prompt_version, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (analysis_id, section_id) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analysis_types (
	type_id       TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	version       INTEGER NOT NULL DEFAULT 1,
	metadata      JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
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
	metadata       JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback (
	id              BIGSERIAL PRIMARY KEY,
	analysis_id     TEXT NOT NULL,
	section_id      TEXT NOT NULL,
	section_title   TEXT NOT NULL DEFAULT '',
	feedback        TEXT NOT NULL,
	feedback_reason TEXT,
	user_correction TEXT,
	prompt_version  INTEGER NOT NULL DEFAULT 1,
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (analysis_id, section_id)
);

CREATE INDEX IF NOT EXISTS idx_analysis_types_active ON analysis_types(is_active);
CREATE INDEX IF NOT EXISTS idx_analyses_deal_id ON analyses(deal_id);
CREATE INDEX IF NOT EXISTS idx_analyses_type ON analyses(analysis_type);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_feedback_analysis_id ON feedback(analysis_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListAnalysisTypes(ctx context.Context) ([]model.AnalysisType, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type_id, name, description, system_prompt, version, metadata
		 FROM analysis_types WHERE is_active = TRUE ORDER BY type_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analysis types")
	}
	defer rows.Close()

	var types []model.AnalysisType
	for rows.Next() {
		at, err := scanAnalysisType(rows.Scan)
		if err != nil {
			return nil, err
		}
		types = append(types, *at)
	}
	return types, eris.Wrap(rows.Err(), "postgres: list analysis types iterate")
}

func (s *PostgresStore) GetAnalysisType(ctx context.Context, typeID string) (*model.AnalysisType, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT type_id, name, description, system_prompt, version, metadata FROM analysis_types WHERE type_id = $1 AND is_active = TRUE`,
		typeID,
	)
	at, err := scanAnalysisType(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis type %s", typeID)
	}
	return at, nil
}

// scanAnalysisType reads one analysis_types row. The caller only ever
// sees active rows, so Active is set unconditionally.
func scanAnalysisType(scan func(...any) error) (*model.AnalysisType, error) {
	var at model.AnalysisType
	var metadataJSON []byte

	if err := scan(&at.ID, &at.Name, &at.Description, &at.SystemPrompt, &at.Version, &metadataJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan analysis type")
	}
	at.Active = true
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &at.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal type metadata")
		}
	}
	return &at, nil
}

func (s *PostgresStore) SeedAnalysisTypes(ctx context.Context, types []model.AnalysisType) (int, error) {
	seeded := 0
	for _, t := range types {
		metadataJSON, err := marshalMetadata(t.Metadata)
		if err != nil {
			return seeded, eris.Wrapf(err, "postgres: marshal metadata for %s", t.ID)
		}

		_, err = s.pool.Exec(ctx,
			`INSERT INTO analysis_types (type_id, name, description, system_prompt, is_active, version, metadata)
			 VALUES ($1, $2, $3, $4, TRUE, 1, $5)
			 ON CONFLICT (type_id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				system_prompt = EXCLUDED.system_prompt,
				metadata = EXCLUDED.metadata,
				version = analysis_types.version + 1,
				updated_at = now()`,
			t.ID, t.Name, t.Description, t.SystemPrompt, metadataJSON,
		)
		if err != nil {
			return seeded, eris.Wrapf(err, "postgres: seed analysis type %s", t.ID)
		}
		seeded++
	}

	zap.L().Info("store: analysis types seeded", zap.Int("count", seeded))
	return seeded, nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *model.Analysis) error {
	metadataJSON, err := marshalMetadata(a.Metadata)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal metadata for %s", a.ID)
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.PromptVersion <= 0 {
		a.PromptVersion = 1
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (analysis_id, deal_id, deal_name, analysis_type, user_input, system_prompt, full_response, prompt_version, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.DealID, a.DealName, a.Type, a.UserInput, a.SystemPrompt, a.FullResponse, a.PromptVersion, metadataJSON, a.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save analysis %s", a.ID)
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error) {
	var a model.Analysis
	var metadataJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT a.analysis_id, a.deal_id, a.deal_name, a.analysis_type, COALESCE(t.name, a.analysis_type), a.user_input, a.system_prompt, a.full_response, a.prompt_version, a.metadata, a.created_at
		 FROM analyses a
		 LEFT JOIN analysis_types t ON a.analysis_type = t.type_id
		 WHERE a.analysis_id = $1`,
		analysisID,
	).Scan(&a.ID, &a.DealID, &a.DealName, &a.Type, &a.TypeName, &a.UserInput, &a.SystemPrompt, &a.FullResponse, &a.PromptVersion, &metadataJSON, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", analysisID)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal analysis metadata")
		}
	}
	return &a, nil
}

func (s *PostgresStore) SearchAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `SELECT a.analysis_id, a.deal_id, a.deal_name, a.analysis_type, COALESCE(t.name, a.analysis_type), a.full_response, a.created_at
		 FROM analyses a
		 LEFT JOIN analysis_types t ON a.analysis_type = t.type_id
		 WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND (LOWER(a.deal_name) LIKE LOWER($%d) OR a.deal_id LIKE $%d)`, argIdx, argIdx+1)
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern, pattern)
		argIdx += 2
	}
	if filter.TypeID != "" {
		query += fmt.Sprintf(` AND a.analysis_type = $%d`, argIdx)
		args = append(args, filter.TypeID)
		argIdx++
	}
	if filter.DateFrom != "" {
		query += fmt.Sprintf(` AND a.created_at::date >= $%d`, argIdx)
		args = append(args, filter.DateFrom)
		argIdx++
	}
	if filter.DateTo != "" {
		query += fmt.Sprintf(` AND a.created_at::date <= $%d`, argIdx)
		args = append(args, filter.DateTo)
		argIdx++
	}
	query += ` ORDER BY a.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search analyses")
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		var a model.Analysis
		if err := rows.Scan(&a.ID, &a.DealID, &a.DealName, &a.Type, &a.TypeName, &a.FullResponse, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		analyses = append(analyses, a)
	}
	return analyses, eris.Wrap(rows.Err(), "postgres: search analyses iterate")
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, f *model.Feedback) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM feedback WHERE analysis_id = $1 AND section_id = $2)`,
		f.AnalysisID, f.SectionID,
	).Scan(&exists)
	if err != nil {
		return eris.Wrap(err, "postgres: check feedback")
	}
	if exists {
		// One verdict per section; later submissions are dropped.
		zap.L().Debug("store: feedback already recorded",
			zap.String("analysis_id", f.AnalysisID),
			zap.String("section_id", f.SectionID),
		)
		return nil
	}

	metadataJSON, err := marshalMetadata(f.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal feedback metadata")
	}
	if f.PromptVersion <= 0 {
		f.PromptVersion = 1
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO feedback (analysis_id, section_id, section_title, feedback, feedback_reason, user_correction, prompt_version, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (analysis_id, section_id) DO NOTHING`,
		f.AnalysisID, f.SectionID, f.SectionTitle, string(f.Rating), f.Reason, f.Correction, f.PromptVersion, metadataJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save feedback")
}

func (s *PostgresStore) FeedbackStats(ctx context.Context) ([]model.FeedbackStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.analysis_id, a.analysis_type, COALESCE(t.name, a.analysis_type), a.full_response
		 FROM analyses a
		 LEFT JOIN analysis_types t ON a.analysis_type = t.type_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats analyses")
	}
	defer rows.Close()

	var stat []statRow
	for rows.Next() {
		var r statRow
		if err := rows.Scan(&r.AnalysisID, &r.TypeID, &r.TypeName, &r.FullResponse); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats row")
		}
		stat = append(stat, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: stats analyses iterate")
	}

	negRows, err := s.pool.Query(ctx,
		`SELECT analysis_id, COUNT(*) FROM feedback WHERE feedback = 'down' AND section_id != 'overall' GROUP BY analysis_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats feedback")
	}
	defer negRows.Close()

	negatives := map[string]int{}
	for negRows.Next() {
		var analysisID string
		var count int
		if err := negRows.Scan(&analysisID, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feedback count")
		}
		negatives[analysisID] = count
	}
	if err := negRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: stats feedback iterate")
	}

	return aggregateFeedbackStats(stat, negatives), nil
}
