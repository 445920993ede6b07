package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/summary"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name            string
	schema          string
	numbered        bool // $1-style placeholders
	uniqueViolation func(error) bool
}

// sqlRepository implements Repository over database/sql. Queries are written
// with ? placeholders and rebound for the dialect.
type sqlRepository struct {
	db *sql.DB
	d  dialect
}

func newSQLRepository(db *sql.DB, d dialect) (*sqlRepository, error) {
	r := &sqlRepository{db: db, d: d}
	if err := r.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s tables: %w", d.name, err)
	}
	return r, nil
}

func (r *sqlRepository) createTables() error {
	_, err := r.db.Exec(r.d.schema)
	return err
}

func (r *sqlRepository) rebind(query string) string {
	if !r.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *sqlRepository) CreateSession(ctx context.Context, record *SessionRecord) (string, error) {
	questionsJSON, err := json.Marshal(record.Questions)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO interview_sessions (id, user_id, interview_type, questions_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		record.ID,
		record.UserID,
		string(record.InterviewType),
		string(questionsJSON),
		record.CreatedAt.UTC(),
	)
	if err != nil {
		if r.d.uniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", err
	}

	return record.ID, nil
}

func (r *sqlRepository) AppendResponse(ctx context.Context, sessionID, userID string, resp domain.Response) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.ownedBy(ctx, tx, sessionID, userID); err != nil {
		return err
	}

	var next int
	err = tx.QueryRowContext(ctx,
		r.rebind(`SELECT COALESCE(MAX(seq), -1) + 1 FROM interview_responses WHERE session_id = ?`),
		sessionID,
	).Scan(&next)
	if err != nil {
		return err
	}

	var score sql.NullInt64
	if resp.Score != nil {
		score = sql.NullInt64{Int64: int64(*resp.Score), Valid: true}
	}

	query := `
		INSERT INTO interview_responses
			(session_id, seq, question_index, question, audio_ref, score, feedback, skipped, timed_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, r.rebind(query),
		sessionID,
		next,
		resp.QuestionIndex,
		resp.QuestionText,
		resp.AudioRef,
		score,
		resp.Feedback,
		resp.Skipped,
		resp.TimedOut,
		resp.Timestamp.UTC(),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sqlRepository) CompleteSession(ctx context.Context, sessionID, userID string, o summary.Overall, completedAt time.Time) error {
	categoriesJSON, err := json.Marshal(o.Categories)
	if err != nil {
		return err
	}

	query := `
		UPDATE interview_sessions
		SET total_score = ?, total_time = ?, questions_answered = ?, categories_json = ?, completed_at = ?
		WHERE id = ? AND user_id = ?
	`
	res, err := r.db.ExecContext(ctx, r.rebind(query),
		o.OverallScore,
		o.ElapsedSeconds,
		o.QuestionsAnswered,
		string(categoriesJSON),
		completedAt.UTC(),
		sessionID,
		userID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlRepository) ListSessions(ctx context.Context, userID string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}

	query := `
		SELECT id, user_id, interview_type, questions_json, total_score, total_time,
			questions_answered, categories_json, created_at, completed_at
		FROM interview_sessions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, limit)
	if err != nil {
		return nil, err
	}
	records, err := r.scanSessions(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Responses, err = r.responses(ctx, records[i].ID, false)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (r *sqlRepository) GetSession(ctx context.Context, sessionID, userID string) (*SessionRecord, error) {
	query := `
		SELECT id, user_id, interview_type, questions_json, total_score, total_time,
			questions_answered, categories_json, created_at, completed_at
		FROM interview_sessions
		WHERE id = ? AND user_id = ?
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), sessionID, userID)
	if err != nil {
		return nil, err
	}
	records, err := r.scanSessions(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	record := records[0]
	record.Responses, err = r.responses(ctx, record.ID, true)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *sqlRepository) responses(ctx context.Context, sessionID string, withAudio bool) ([]domain.Response, error) {
	query := `
		SELECT question_index, question, audio_ref, score, feedback, skipped, timed_out, created_at
		FROM interview_responses
		WHERE session_id = ?
		ORDER BY seq
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Response{}
	for rows.Next() {
		var (
			resp     domain.Response
			audioRef sql.NullString
			score    sql.NullInt64
			feedback sql.NullString
		)
		err := rows.Scan(
			&resp.QuestionIndex,
			&resp.QuestionText,
			&audioRef,
			&score,
			&feedback,
			&resp.Skipped,
			&resp.TimedOut,
			&resp.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		if withAudio {
			resp.AudioRef = audioRef.String
		}
		if score.Valid {
			v := int(score.Int64)
			resp.Score = &v
		}
		resp.Feedback = feedback.String
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (r *sqlRepository) scanSessions(rows *sql.Rows) ([]SessionRecord, error) {
	var records []SessionRecord

	for rows.Next() {
		var (
			record         SessionRecord
			interviewType  string
			questionsJSON  []byte
			categoriesJSON []byte
			totalScore     sql.NullInt64
			totalTime      sql.NullInt64
			answered       sql.NullInt64
			completedAt    sql.NullTime
		)

		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&interviewType,
			&questionsJSON,
			&totalScore,
			&totalTime,
			&answered,
			&categoriesJSON,
			&record.CreatedAt,
			&completedAt,
		)
		if err != nil {
			return nil, err
		}

		record.InterviewType = domain.InterviewType(interviewType)
		if err := json.Unmarshal(questionsJSON, &record.Questions); err != nil {
			return nil, err
		}
		if len(categoriesJSON) > 0 {
			if err := json.Unmarshal(categoriesJSON, &record.Categories); err != nil {
				return nil, err
			}
		}
		record.TotalScore = nullableInt(totalScore)
		record.TotalTime = nullableInt(totalTime)
		record.QuestionsAnswered = nullableInt(answered)
		if completedAt.Valid {
			t := completedAt.Time
			record.CompletedAt = &t
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *sqlRepository) ownedBy(ctx context.Context, tx *sql.Tx, sessionID, userID string) error {
	var n int
	err := tx.QueryRowContext(ctx,
		r.rebind(`SELECT COUNT(*) FROM interview_sessions WHERE id = ? AND user_id = ?`),
		sessionID, userID,
	).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlRepository) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.CreatedAt.UTC(),
		u.LastLogin.UTC(),
	)
	if err != nil && r.d.uniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *sqlRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx, `WHERE email = ?`, email)
}

func (r *sqlRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, `WHERE id = ?`, id)
}

func (r *sqlRepository) getUser(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, first_name, last_name, created_at, last_login
		FROM users ` + where

	var u User
	err := r.db.QueryRowContext(ctx, r.rebind(query), arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.CreatedAt,
		&u.LastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *sqlRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE users SET last_login = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlRepository) Close() error {
	return r.db.Close()
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
