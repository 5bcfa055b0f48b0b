package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-cli/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the operations issued on every poll attempt.
var preparedStatements = map[string]string{
	"insert_analysis":   `INSERT INTO analyses (id, session_id, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_progress":   `UPDATE analyses SET progress = $1, updated_at = $2 WHERE id = $3 AND status IN ($4, $5)`,
	"get_analysis":      `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`,
	"complete_analysis": `UPDATE analyses SET status = $1, profile = $2, error = $3, error_kind = $4, updated_at = $5 WHERE id = $6 AND status IN ($7, $8)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	session_id TEXT NOT NULL,
	request    JSONB NOT NULL,
	handle     JSONB,
	status     TEXT NOT NULL DEFAULT 'initiating',
	progress   JSONB NOT NULL DEFAULT '{}'::jsonb,
	profile    JSONB,
	error      TEXT NOT NULL DEFAULT '',
	error_kind TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_session_id ON analyses(session_id);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
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

func (s *PostgresStore) CreateAnalysis(ctx context.Context, sessionID string, req model.AnalysisRequest) (*model.Analysis, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, session_id, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sessionID, reqJSON, string(model.AnalysisStatusInitiating), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert analysis")
	}

	return &model.Analysis{
		ID:        id,
		SessionID: sessionID,
		Request:   req,
		Status:    model.AnalysisStatusInitiating,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) SetAnalysisHandle(ctx context.Context, id string, handle model.JobHandle) error {
	handleJSON, err := json.Marshal(handle)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal handle")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET handle = $1, status = $2, updated_at = $3 WHERE id = $4 AND status IN ($5, $6)`,
		append([]any{handleJSON, string(model.AnalysisStatusPolling), time.Now().UTC(), id}, activeStatuses...)...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set handle %s", id)
	}
	return s.checkGuarded(ctx, tag, id)
}

func (s *PostgresStore) UpdateAnalysisProgress(ctx context.Context, id string, progress model.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET progress = $1, updated_at = $2 WHERE id = $3 AND status IN ($4, $5)`,
		append([]any{progressJSON, time.Now().UTC(), id}, activeStatuses...)...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update progress %s", id)
	}
	return s.checkGuarded(ctx, tag, id)
}

func (s *PostgresStore) CompleteAnalysis(ctx context.Context, id string, result *model.AnalysisResult) error {
	if !result.Status.Terminal() {
		return eris.Errorf("postgres: complete analysis %s: status %q is not terminal", id, result.Status)
	}
	var profileJSON []byte
	if len(result.Profile) > 0 {
		b, err := json.Marshal(result.Profile)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal profile")
		}
		profileJSON = b
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET status = $1, profile = $2, error = $3, error_kind = $4, updated_at = $5 WHERE id = $6 AND status IN ($7, $8)`,
		append([]any{string(result.Status), profileJSON, result.Error, result.ErrorKind, time.Now().UTC(), id}, activeStatuses...)...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete analysis %s", id)
	}
	return s.checkGuarded(ctx, tag, id)
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1`,
		id,
	)
	a, err := scanPgAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", id)
	}
	return a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(` AND session_id = $%d`, argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, defaultLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []model.Analysis
	for rows.Next() {
		a, err := scanPgAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) checkGuarded(ctx context.Context, tag pgconn.CommandTag, id string) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM analyses WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "analysis %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lookup analysis %s", id)
	}
	return eris.Wrapf(ErrTerminal, "analysis %s is %s", id, status)
}

func scanPgAnalysis(row pgx.Row) (*model.Analysis, error) {
	var a model.Analysis
	var reqJSON, progressJSON []byte
	var handleJSON, profileJSON *[]byte

	err := row.Scan(&a.ID, &a.SessionID, &reqJSON, &handleJSON, &a.Status, &progressJSON,
		&profileJSON, &a.Error, &a.ErrorKind, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeAnalysisJSON(&a, reqJSON, derefBytes(handleJSON), progressJSON, derefBytes(profileJSON)); err != nil {
		return nil, err
	}
	return &a, nil
}

func derefBytes(b *[]byte) []byte {
	if b == nil {
		return nil
	}
	return *b
}
