package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrSessionNotActive is returned by InsertSegments when the session left the
// active status between the caller's check and the transactional write.
var ErrSessionNotActive = errors.New("session is not active")

type CreateSessionInput struct {
	ID                      string
	InterviewID             string
	ResearchID              string
	UserID                  string
	Mode                    SessionMode
	ParticipantName         string
	ParticipantEmail        *string
	SessionToken            string
	StartedAt               time.Time
	GlobalContextSnapshot   json.RawMessage
	ResearchContextSnapshot json.RawMessage
	PersonaID               string
	PromptID                string
}

// UpdateSessionInput is a partial update: nil fields are left untouched.
// Completed is one-way; a false value never clears a stored true.
type UpdateSessionInput struct {
	SessionID          string
	Status             *SessionStatus
	EndedAt            *time.Time
	Completed          *bool
	LastActivityAt     *time.Time
	CompiledPromptHash *string
}

type InsertSegmentInput struct {
	Role     string
	Text     string
	StartSec *float64
	EndSec   *float64
	Metadata json.RawMessage
}

type SessionSortKey string

const (
	SessionSortStartedAt SessionSortKey = "startedAt"
	SessionSortDuration  SessionSortKey = "duration"
	SessionSortStatus    SessionSortKey = "status"
	SessionSortMode      SessionSortKey = "mode"
)

type ListSessionsInput struct {
	InterviewID string
	UserID      string
	Search      string
	SortKey     SessionSortKey
	Descending  bool
	Limit       int
	Offset      int
}

type UpsertReportInput struct {
	SessionID          string
	Summary            string
	KeyQuotes          json.RawMessage
	Pains              json.RawMessage
	Opportunities      json.RawMessage
	Review             json.RawMessage
	InterviewCompleted bool
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	// UpdateSessionPartial applies the present fields and, when the update
	// flips completed false->true, increments the owner's aggregate in the
	// same transaction. The bool reports that first-time flip, decided under
	// the session's row lock. Returns a nil session when no session matches.
	UpdateSessionPartial(ctx context.Context, input UpdateSessionInput) (*Session, bool, error)
	ListSessionsByInterview(ctx context.Context, input ListSessionsInput) ([]Session, int, error)
	ListStaleActiveSessions(ctx context.Context, olderThan time.Time) ([]Session, error)
	DeleteSession(ctx context.Context, userID, sessionID string) (bool, error)
}

type TranscriptRepository interface {
	// InsertSegments appends the batch and bumps the session's
	// last_activity_at in one transaction. Fails with ErrSessionNotActive
	// unless the session status is exactly active.
	InsertSegments(ctx context.Context, sessionID string, at time.Time, segments []InsertSegmentInput) (time.Time, error)
	ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]TranscriptSegment, error)
}

type ReportRepository interface {
	UpsertReport(ctx context.Context, input UpsertReportInput) (*InterviewReport, error)
	GetReportBySessionID(ctx context.Context, sessionID string) (*InterviewReport, error)
}

type CatalogRepository interface {
	// FindActivePublishedInterview returns nil when the slug is unknown or
	// the interview is not active.
	FindActivePublishedInterview(ctx context.Context, slug string) (*PublishedInterview, error)
	FindOwnerByAPIKey(ctx context.Context, apiKey string) (*Owner, error)
	// ReconcileOwnerUsage raises the stored aggregate to the true count of
	// completed sessions when the stored value lags behind, never lowering
	// it, and returns the reconciled owner record.
	ReconcileOwnerUsage(ctx context.Context, userID string) (*Owner, error)
}

type Repository interface {
	SessionRepository
	TranscriptRepository
	ReportRepository
	CatalogRepository
}
