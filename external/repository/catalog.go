package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

// FindActivePublishedInterview joins the interview with its research brief
// and its owner's company profile in one read. The result is only ever fed
// to the snapshot builder at creation time; sessions never follow these rows
// afterwards.
func (r *PostgresRepository) FindActivePublishedInterview(ctx context.Context, slug string) (*repository.PublishedInterview, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT i.id, i.research_id, i.user_id, i.slug, i.public_title,
		        i.interview_length_min, i.tone, i.prompt_id,
		        u.company_name, u.company_description, u.industry,
		        u.target_audience, u.products,
		        rs.goal, rs.hypotheses, rs.questions, rs.custom_instructions
		 FROM interviews i
		 JOIN researches rs ON rs.id = i.research_id
		 JOIN users u ON u.id = i.user_id
		 WHERE i.slug = $1 AND i.active`,
		slug)
	var pi repository.PublishedInterview
	err := row.Scan(&pi.ID, &pi.ResearchID, &pi.UserID, &pi.Slug, &pi.PublicTitle,
		&pi.InterviewLengthMin, &pi.Tone, &pi.PromptID,
		&pi.CompanyName, &pi.CompanyDescription, &pi.Industry,
		&pi.TargetAudience, &pi.Products,
		&pi.ResearchGoal, &pi.Hypotheses, &pi.Questions, &pi.CustomInstructions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pi, nil
}

func (r *PostgresRepository) FindOwnerByAPIKey(ctx context.Context, apiKey string) (*repository.Owner, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, completed_sessions_count FROM users WHERE api_key = $1`, apiKey)
	var o repository.Owner
	err := row.Scan(&o.ID, &o.Email, &o.CompletedSessionsCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ReconcileOwnerUsage raises the stored aggregate to the true count of
// completed sessions, never lowering it. The counter is an optimization; the
// count of completed sessions is the authoritative fact.
func (r *PostgresRepository) ReconcileOwnerUsage(ctx context.Context, userID string) (*repository.Owner, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var trueCount int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND completed`,
		userID).Scan(&trueCount); err != nil {
		return nil, err
	}

	var o repository.Owner
	err = tx.QueryRow(ctx,
		`UPDATE users SET completed_sessions_count = GREATEST(completed_sessions_count, $2)
		 WHERE id = $1
		 RETURNING id, email, completed_sessions_count`,
		userID, trueCount).Scan(&o.ID, &o.Email, &o.CompletedSessionsCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &o, nil
}
