package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, interview_id, research_id, user_id, status, mode,
	participant_name, participant_email, session_token, started_at, ended_at,
	last_activity_at, completed, global_context_snapshot,
	research_context_snapshot, persona_id, prompt_id, compiled_prompt_hash`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	err := row.Scan(
		&s.ID, &s.InterviewID, &s.ResearchID, &s.UserID, &s.Status, &s.Mode,
		&s.ParticipantName, &s.ParticipantEmail, &s.SessionToken, &s.StartedAt,
		&s.EndedAt, &s.LastActivityAt, &s.Completed, &s.GlobalContextSnapshot,
		&s.ResearchContextSnapshot, &s.PersonaID, &s.PromptID, &s.CompiledPromptHash,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, interview_id, research_id, user_id, status, mode,
		   participant_name, participant_email, session_token, started_at,
		   last_activity_at, global_context_snapshot, research_context_snapshot,
		   persona_id, prompt_id)
		 VALUES ($1, $2, $3, $4, 'active', $5, $6, $7, $8, $9, $9, $10, $11, $12, $13)
		 RETURNING `+sessionColumns,
		input.ID, input.InterviewID, input.ResearchID, input.UserID, input.Mode,
		input.ParticipantName, input.ParticipantEmail, input.SessionToken,
		input.StartedAt, input.GlobalContextSnapshot, input.ResearchContextSnapshot,
		input.PersonaID, input.PromptID)
	return scanSession(row)
}

func (r *PostgresRepository) GetSessionByToken(ctx context.Context, token string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_token = $1`, token)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *PostgresRepository) GetSessionByID(ctx context.Context, id string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// UpdateSessionPartial applies the present fields under the session's row
// lock. The lock serializes the participant-facing and maintenance completion
// paths, so exactly one of two concurrent completed=true requests observes
// the false->true flip and increments the owner aggregate; both commit, both
// see completed=true afterwards.
func (r *PostgresRepository) UpdateSessionPartial(ctx context.Context, input repository.UpdateSessionInput) (*repository.Session, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var userID string
	var prevCompleted bool
	err = tx.QueryRow(ctx,
		`SELECT user_id, completed FROM sessions WHERE id = $1 FOR UPDATE`,
		input.SessionID).Scan(&userID, &prevCompleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	row := tx.QueryRow(ctx,
		`UPDATE sessions SET
		   status = COALESCE($2::session_status, status),
		   ended_at = COALESCE($3::timestamptz, ended_at),
		   completed = completed OR COALESCE($4::boolean, FALSE),
		   last_activity_at = GREATEST(last_activity_at, COALESCE($5::timestamptz, last_activity_at)),
		   compiled_prompt_hash = COALESCE($6::text, compiled_prompt_hash)
		 WHERE id = $1
		 RETURNING `+sessionColumns,
		input.SessionID, input.Status, input.EndedAt, input.Completed,
		input.LastActivityAt, input.CompiledPromptHash)
	s, err := scanSession(row)
	if err != nil {
		return nil, false, err
	}

	firstCompletion := !prevCompleted && s.Completed
	if firstCompletion {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET completed_sessions_count = completed_sessions_count + 1 WHERE id = $1`,
			userID); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return s, firstCompletion, nil
}

var sessionOrderColumns = map[repository.SessionSortKey]string{
	repository.SessionSortStartedAt: "started_at",
	repository.SessionSortDuration:  "COALESCE(EXTRACT(EPOCH FROM (ended_at - started_at)), 0)",
	repository.SessionSortStatus:    "status",
	repository.SessionSortMode:      "mode",
}

func (r *PostgresRepository) ListSessionsByInterview(ctx context.Context, input repository.ListSessionsInput) ([]repository.Session, int, error) {
	orderColumn, ok := sessionOrderColumns[input.SortKey]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort key %q", input.SortKey)
	}
	direction := "ASC"
	if input.Descending {
		direction = "DESC"
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`, COUNT(*) OVER () AS total
		 FROM sessions
		 WHERE interview_id = $1 AND user_id = $2
		   AND ($3 = '' OR participant_name ILIKE '%' || $3 || '%'
		        OR COALESCE(participant_email, '') ILIKE '%' || $3 || '%')
		 ORDER BY `+orderColumn+` `+direction+`, id ASC
		 LIMIT $4 OFFSET $5`,
		input.InterviewID, input.UserID, input.Search, input.Limit, input.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []repository.Session
	var total int
	for rows.Next() {
		var s repository.Session
		if err := rows.Scan(
			&s.ID, &s.InterviewID, &s.ResearchID, &s.UserID, &s.Status, &s.Mode,
			&s.ParticipantName, &s.ParticipantEmail, &s.SessionToken, &s.StartedAt,
			&s.EndedAt, &s.LastActivityAt, &s.Completed, &s.GlobalContextSnapshot,
			&s.ResearchContextSnapshot, &s.PersonaID, &s.PromptID, &s.CompiledPromptHash,
			&total,
		); err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, rows.Err()
}

func (r *PostgresRepository) ListStaleActiveSessions(ctx context.Context, olderThan time.Time) ([]repository.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE status = 'active' AND last_activity_at < $1
		 ORDER BY last_activity_at ASC`,
		olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []repository.Session
	for rows.Next() {
		var s repository.Session
		if err := rows.Scan(
			&s.ID, &s.InterviewID, &s.ResearchID, &s.UserID, &s.Status, &s.Mode,
			&s.ParticipantName, &s.ParticipantEmail, &s.SessionToken, &s.StartedAt,
			&s.EndedAt, &s.LastActivityAt, &s.Completed, &s.GlobalContextSnapshot,
			&s.ResearchContextSnapshot, &s.PersonaID, &s.PromptID, &s.CompiledPromptHash,
		); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, userID, sessionID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
