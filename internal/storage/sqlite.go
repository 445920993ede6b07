package storage

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_login DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interview_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		interview_type TEXT NOT NULL,
		questions_json TEXT NOT NULL,
		total_score INTEGER,
		total_time INTEGER,
		questions_answered INTEGER,
		categories_json TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_created ON interview_sessions(user_id, created_at);

	CREATE TABLE IF NOT EXISTS interview_responses (
		session_id TEXT NOT NULL REFERENCES interview_sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		question_index INTEGER NOT NULL,
		question TEXT NOT NULL,
		audio_ref TEXT,
		score INTEGER,
		feedback TEXT,
		skipped BOOLEAN NOT NULL DEFAULT 0,
		timed_out BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
`

type SQLiteRepository struct {
	*sqlRepository
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY between the recorder and auth writes.
	db.SetMaxOpenConns(1)

	repo, err := newSQLRepository(db, dialect{
		name:            "sqlite",
		schema:          sqliteSchema,
		uniqueViolation: sqliteUniqueViolation,
	})
	if err != nil {
		return nil, err
	}
	return &SQLiteRepository{repo}, nil
}

func sqliteUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
