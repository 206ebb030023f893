package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lexdraft/lexdraft/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS agent_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		session_id TEXT,
		user_id TEXT,
		success INTEGER NOT NULL,
		error TEXT,
		tool_calls INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_runs_created ON agent_runs(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveRun appends one run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.RunRecord) error {
	query := `
	INSERT INTO agent_runs (agent_id, session_id, user_id, success, error, tool_calls, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	success := 0
	if run.Success {
		success = 1
	}
	res, err := s.db.ExecContext(ctx, query,
		run.AgentID, run.SessionID, run.UserID, success,
		run.Error, run.ToolCalls, run.Duration, run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	return nil
}

// ListRuns returns the most recent run records, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, agent_id, session_id, user_id, success, error, tool_calls, duration_ms, created_at
	FROM agent_runs ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		var sessionID, userID, runErr sql.NullString
		var success int
		var createdAt int64
		if err := rows.Scan(
			&run.ID, &run.AgentID, &sessionID, &userID,
			&success, &runErr, &run.ToolCalls, &run.Duration, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.SessionID = sessionID.String
		run.UserID = userID.String
		run.Error = runErr.String
		run.Success = success != 0
		run.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
