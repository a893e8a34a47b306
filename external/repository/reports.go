package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

const reportColumns = `id, session_id, summary, key_quotes, pains, opportunities,
	review, interview_completed, created_at, updated_at`

func scanReport(row pgx.Row) (*repository.InterviewReport, error) {
	var rep repository.InterviewReport
	err := row.Scan(&rep.ID, &rep.SessionID, &rep.Summary, &rep.KeyQuotes,
		&rep.Pains, &rep.Opportunities, &rep.Review, &rep.InterviewCompleted,
		&rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// UpsertReport is a full replace keyed by session id: a second write leaves
// only the second payload.
func (r *PostgresRepository) UpsertReport(ctx context.Context, input repository.UpsertReportInput) (*repository.InterviewReport, error) {
	var review any
	if len(input.Review) > 0 {
		review = input.Review
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO interview_reports (session_id, summary, key_quotes, pains, opportunities, review, interview_completed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id) DO UPDATE SET
		   summary = EXCLUDED.summary,
		   key_quotes = EXCLUDED.key_quotes,
		   pains = EXCLUDED.pains,
		   opportunities = EXCLUDED.opportunities,
		   review = EXCLUDED.review,
		   interview_completed = EXCLUDED.interview_completed,
		   updated_at = NOW()
		 RETURNING `+reportColumns,
		input.SessionID, input.Summary, input.KeyQuotes, input.Pains,
		input.Opportunities, review, input.InterviewCompleted)
	return scanReport(row)
}

func (r *PostgresRepository) GetReportBySessionID(ctx context.Context, sessionID string) (*repository.InterviewReport, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM interview_reports WHERE session_id = $1`, sessionID)
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}
