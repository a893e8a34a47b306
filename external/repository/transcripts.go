package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

// InsertSegments writes the batch and bumps the session's last_activity_at in
// one transaction. The guard UPDATE doubles as the status check: zero rows
// means the session is no longer active and nothing is inserted. The bump is
// monotonic so a delayed append cannot move the liveness signal backwards.
func (r *PostgresRepository) InsertSegments(ctx context.Context, sessionID string, at time.Time, segments []repository.InsertSegmentInput) (time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback(ctx)

	var lastActivityAt time.Time
	err = tx.QueryRow(ctx,
		`UPDATE sessions SET last_activity_at = GREATEST(last_activity_at, $2)
		 WHERE id = $1 AND status = 'active'
		 RETURNING last_activity_at`,
		sessionID, at).Scan(&lastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, repository.ErrSessionNotActive
	}
	if err != nil {
		return time.Time{}, err
	}

	batch := &pgx.Batch{}
	for _, seg := range segments {
		var metadata any
		if len(seg.Metadata) > 0 {
			metadata = seg.Metadata
		}
		batch.Queue(
			`INSERT INTO transcript_segments (session_id, role, text, start_sec, end_sec, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sessionID, seg.Role, seg.Text, seg.StartSec, seg.EndSec, metadata, at)
	}
	br := tx.SendBatch(ctx, batch)
	for range segments {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return time.Time{}, err
		}
	}
	if err := br.Close(); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}
	return lastActivityAt, nil
}

func (r *PostgresRepository) ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]repository.TranscriptSegment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, role, text, start_sec, end_sec, metadata, created_at
		 FROM transcript_segments
		 WHERE session_id = $1
		 ORDER BY created_at ASC, seq ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []repository.TranscriptSegment
	for rows.Next() {
		var seg repository.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Role, &seg.Text,
			&seg.StartSec, &seg.EndSec, &seg.Metadata, &seg.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, seg)
	}
	return list, rows.Err()
}
