package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/profile-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	request    TEXT NOT NULL,
	handle     TEXT,
	status     TEXT NOT NULL DEFAULT 'initiating',
	progress   TEXT NOT NULL DEFAULT '{}',
	profile    TEXT,
	error      TEXT NOT NULL DEFAULT '',
	error_kind TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analyses_session_id ON analyses(session_id);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

const analysisColumns = `id, session_id, request, handle, status, progress, profile, error, error_kind, created_at, updated_at`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, sessionID string, req model.AnalysisRequest) (*model.Analysis, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, session_id, request, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sessionID, string(reqJSON), string(model.AnalysisStatusInitiating), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert analysis")
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

func (s *SQLiteStore) SetAnalysisHandle(ctx context.Context, id string, handle model.JobHandle) error {
	handleJSON, err := json.Marshal(handle)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal handle")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET handle = ?, status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		append([]any{string(handleJSON), string(model.AnalysisStatusPolling), time.Now().UTC(), id}, activeStatuses...)...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set handle %s", id)
	}
	return s.checkGuarded(ctx, res, id)
}

func (s *SQLiteStore) UpdateAnalysisProgress(ctx context.Context, id string, progress model.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET progress = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		append([]any{string(progressJSON), time.Now().UTC(), id}, activeStatuses...)...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update progress %s", id)
	}
	return s.checkGuarded(ctx, res, id)
}

func (s *SQLiteStore) CompleteAnalysis(ctx context.Context, id string, result *model.AnalysisResult) error {
	if !result.Status.Terminal() {
		return eris.Errorf("sqlite: complete analysis %s: status %q is not terminal", id, result.Status)
	}
	profileJSON, err := marshalProfile(result.Profile)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET status = ?, profile = ?, error = ?, error_kind = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		append([]any{string(result.Status), profileJSON, result.Error, result.ErrorKind, time.Now().UTC(), id}, activeStatuses...)...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete analysis %s", id)
	}
	return s.checkGuarded(ctx, res, id)
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`,
		id,
	)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE 1=1`
	var args []any

	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, defaultLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

// checkGuarded distinguishes a missing analysis from one that is already
// terminal when a guarded update touched no rows.
func (s *SQLiteStore) checkGuarded(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM analyses WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "analysis %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: lookup analysis %s", id)
	}
	return eris.Wrapf(ErrTerminal, "analysis %s is %s", id, status)
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (*model.Analysis, error) {
	var a model.Analysis
	var reqJSON, progressJSON string
	var handleJSON, profileJSON sql.NullString

	err := row.Scan(&a.ID, &a.SessionID, &reqJSON, &handleJSON, &a.Status, &progressJSON,
		&profileJSON, &a.Error, &a.ErrorKind, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeAnalysisJSON(&a, []byte(reqJSON), nullBytes(handleJSON), []byte(progressJSON), nullBytes(profileJSON)); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullBytes(ns sql.NullString) []byte {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}

// decodeAnalysisJSON fills the JSON-encoded columns of a. Nil handle and
// profile mean the column is NULL.
func decodeAnalysisJSON(a *model.Analysis, req, handle, progress, profile []byte) error {
	if err := json.Unmarshal(req, &a.Request); err != nil {
		return eris.Wrap(err, "unmarshal request")
	}
	if len(handle) > 0 {
		a.Handle = &model.JobHandle{}
		if err := json.Unmarshal(handle, a.Handle); err != nil {
			return eris.Wrap(err, "unmarshal handle")
		}
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &a.Progress); err != nil {
			return eris.Wrap(err, "unmarshal progress")
		}
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &a.Profile); err != nil {
			return eris.Wrap(err, "unmarshal profile")
		}
	}
	return nil
}

// marshalProfile returns nil for an empty profile so the column stays NULL.
func marshalProfile(p model.CompanyProfile) (any, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
