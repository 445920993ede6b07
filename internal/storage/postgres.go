package storage

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		last_login TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interview_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		interview_type TEXT NOT NULL,
		questions_json JSONB NOT NULL,
		total_score INTEGER,
		total_time INTEGER,
		questions_answered INTEGER,
		categories_json JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
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
		skipped BOOLEAN NOT NULL DEFAULT FALSE,
		timed_out BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
`

type PostgresRepository struct {
	*sqlRepository
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	repo, err := newSQLRepository(db, dialect{
		name:            "postgres",
		schema:          postgresSchema,
		numbered:        true,
		uniqueViolation: postgresUniqueViolation,
	})
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{repo}, nil
}

func postgresUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}
