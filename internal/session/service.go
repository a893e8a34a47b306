package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VladimirHumeniuk/custiq-backend/internal/apperr"
	"github.com/VladimirHumeniuk/custiq-backend/internal/config"
	"github.com/VladimirHumeniuk/custiq-backend/internal/metrics"
	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

const (
	maxRoleLength         = 32
	staleMinMinutes       = 5
	staleMaxMinutes       = 60
	defaultPageSize       = 20
	emptyJSONArray        = "[]"
	maxParticipantNameLen = 255
)

// Service is the session lifecycle engine. It holds no per-session state;
// everything lives in the repository between requests.
type Service struct {
	cfg  *config.Config
	repo repository.Repository
	now  func() time.Time
}

func NewService(cfg *config.Config, repo repository.Repository) *Service {
	return &Service{cfg: cfg, repo: repo, now: time.Now}
}

type CreateSessionRequest struct {
	Slug             string
	ParticipantName  string
	ParticipantEmail string
	Mode             string
}

type CreateSessionResponse struct {
	SessionID          string
	SessionToken       string
	PublicTitle        string
	InterviewLengthMin int
	Mode               repository.SessionMode
	ParticipantName    string
	ParticipantEmail   *string
}

// CreateSession starts a run against an active published interview. The
// interview's configuration is frozen into the session here and never read
// again from the catalog.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error) {
	slug := strings.TrimSpace(req.Slug)
	name := strings.TrimSpace(req.ParticipantName)
	email := strings.TrimSpace(req.ParticipantEmail)
	if slug == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "slug is required")
	}
	if name == "" || len(name) > maxParticipantNameLen {
		return nil, apperr.New(apperr.KindInvalidRequest, "participantName is required")
	}
	mode := repository.SessionMode(req.Mode)
	if mode != repository.SessionModeText && mode != repository.SessionModeVoice {
		return nil, apperr.New(apperr.KindInvalidRequest, "mode must be \"text\" or \"voice\"")
	}

	pi, err := s.repo.FindActivePublishedInterview(ctx, slug)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to look up interview", err)
	}
	if pi == nil {
		return nil, apperr.New(apperr.KindNotFound, "interview not found or not active")
	}

	global, research, err := buildSnapshots(pi)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to build context snapshots", err)
	}
	token, err := newSessionToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create session", err)
	}

	var emailPtr *string
	if email != "" {
		emailPtr = &email
	}
	created, err := s.repo.CreateSession(ctx, repository.CreateSessionInput{
		ID:                      uuid.NewString(),
		InterviewID:             pi.ID,
		ResearchID:              pi.ResearchID,
		UserID:                  pi.UserID,
		Mode:                    mode,
		ParticipantName:         name,
		ParticipantEmail:        emailPtr,
		SessionToken:            token,
		StartedAt:               s.now(),
		GlobalContextSnapshot:   global,
		ResearchContextSnapshot: research,
		PersonaID:               derivePersonaID(pi.Tone),
		PromptID:                pi.PromptID,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create session", err)
	}
	metrics.SessionsStarted.Inc()
	slog.Info("session created", "session_id", created.ID, "interview_id", pi.ID, "mode", mode, "persona_id", created.PersonaID)

	return &CreateSessionResponse{
		SessionID:          created.ID,
		SessionToken:       created.SessionToken,
		PublicTitle:        pi.PublicTitle,
		InterviewLengthMin: pi.InterviewLengthMin,
		Mode:               created.Mode,
		ParticipantName:    created.ParticipantName,
		ParticipantEmail:   created.ParticipantEmail,
	}, nil
}

// View is a session together with its ordered transcript.
type View struct {
	Session  *repository.Session
	Segments []repository.TranscriptSegment
}

func (s *Service) GetView(ctx context.Context, token, id string) (*View, error) {
	sess, err := s.Resolve(ctx, token, id)
	if err != nil {
		return nil, err
	}
	return s.viewOf(ctx, sess)
}

func (s *Service) viewOf(ctx context.Context, sess *repository.Session) (*View, error) {
	segments, err := s.repo.ListSegmentsBySessionID(ctx, sess.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list transcript segments", err)
	}
	return &View{Session: sess, Segments: segments}, nil
}

// SegmentInput carries one raw segment from the caller. Offsets arrive as
// decoded JSON values; anything non-numeric is stored as absent.
type SegmentInput struct {
	Role     string
	Text     string
	StartSec any
	EndSec   any
	Metadata json.RawMessage
}

// AppendSegments validates and appends a transcript batch. The batch insert
// and the last-activity bump commit atomically; the bump is the liveness
// signal the staleness sweep reads.
func (s *Service) AppendSegments(ctx context.Context, token, id string, batch []SegmentInput) error {
	if len(batch) == 0 {
		return apperr.New(apperr.KindInvalidRequest, "segments must be a non-empty list")
	}
	sess, err := s.Resolve(ctx, token, id)
	if err != nil {
		return err
	}
	if sess.Status != repository.SessionStatusActive {
		return apperr.New(apperr.KindInvalidState, "session is not active")
	}

	inputs := make([]repository.InsertSegmentInput, 0, len(batch))
	for _, seg := range batch {
		role := seg.Role
		if len(role) > maxRoleLength {
			role = role[:maxRoleLength]
		}
		inputs = append(inputs, repository.InsertSegmentInput{
			Role:     role,
			Text:     seg.Text,
			StartSec: coerceSeconds(seg.StartSec),
			EndSec:   coerceSeconds(seg.EndSec),
			Metadata: seg.Metadata,
		})
	}

	if _, err := s.repo.InsertSegments(ctx, sess.ID, s.now(), inputs); err != nil {
		if err == repository.ErrSessionNotActive {
			return apperr.New(apperr.KindInvalidState, "session is not active")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to append transcript segments", err)
	}
	metrics.SegmentsAppended.Add(float64(len(inputs)))
	return nil
}

func coerceSeconds(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// PatchRequest is the single mutation entry point for session state. Absent
// fields are untouched. Completed is one-way false->true.
type PatchRequest struct {
	Status             *string
	EndedAt            *time.Time
	Completed          *bool
	LastActivityAt     *time.Time
	CompiledPromptHash *string
}

// Patch applies a partial update to the session with the given id. When the
// request flips completed to true for the first time, the owner's completed
// sessions counter increments in the same store transaction, so a client
// retrying the same request cannot double-count.
func (s *Service) Patch(ctx context.Context, id string, req PatchRequest) (*repository.Session, error) {
	input := repository.UpdateSessionInput{
		SessionID:          id,
		EndedAt:            req.EndedAt,
		Completed:          req.Completed,
		LastActivityAt:     req.LastActivityAt,
		CompiledPromptHash: req.CompiledPromptHash,
	}
	if req.Status != nil {
		status := repository.SessionStatus(*req.Status)
		switch status {
		case repository.SessionStatusActive, repository.SessionStatusCompleted, repository.SessionStatusAbandoned:
			input.Status = &status
		default:
			return nil, apperr.New(apperr.KindInvalidRequest, "unknown session status")
		}
	}
	if req.Completed != nil && *req.Completed {
		if input.Status == nil {
			completedStatus := repository.SessionStatusCompleted
			input.Status = &completedStatus
		}
		if input.EndedAt == nil {
			endedAt := s.now()
			input.EndedAt = &endedAt
		}
	}

	updated, firstCompletion, err := s.repo.UpdateSessionPartial(ctx, input)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update session", err)
	}
	if updated == nil {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	if firstCompletion {
		metrics.SessionsCompleted.Inc()
		slog.Info("session completed", "session_id", updated.ID, "user_id", updated.UserID)
	}
	return updated, nil
}

// PatchByToken is the participant-facing patch path: the session is resolved
// by credential first, then mutated through the same entry point.
func (s *Service) PatchByToken(ctx context.Context, token, id string, req PatchRequest) (*repository.Session, error) {
	if token == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "session token is required")
	}
	sess, err := s.Resolve(ctx, token, id)
	if err != nil {
		return nil, err
	}
	return s.Patch(ctx, sess.ID, req)
}

// StaleSessions returns every active session whose last activity is older
// than the given threshold, each with its ordered transcript. The sweep is
// read-only; finalization goes back through Patch.
func (s *Service) StaleSessions(ctx context.Context, minutes int) ([]View, error) {
	if minutes == 0 {
		minutes = s.cfg.StaleDefaultMinutes
	}
	if minutes < staleMinMinutes {
		minutes = staleMinMinutes
	}
	if minutes > staleMaxMinutes {
		minutes = staleMaxMinutes
	}
	olderThan := s.now().Add(-time.Duration(minutes) * time.Minute)

	sessions, err := s.repo.ListStaleActiveSessions(ctx, olderThan)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list stale sessions", err)
	}
	views := make([]View, 0, len(sessions))
	for i := range sessions {
		v, err := s.viewOf(ctx, &sessions[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

type ReportRequest struct {
	SessionID     string
	Summary       string
	KeyQuotes     json.RawMessage
	Pains         json.RawMessage
	Opportunities json.RawMessage
	Review        json.RawMessage
	Completed     *bool
}

// UpsertReport stores the analysis artifact for a session, replacing any
// previous one. Re-analysis supersedes stale output rather than merging.
func (s *Service) UpsertReport(ctx context.Context, req ReportRequest) (*repository.InterviewReport, error) {
	if strings.TrimSpace(req.Summary) == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "summary is required")
	}
	sess, err := s.repo.GetSessionByID(ctx, req.SessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to look up session", err)
	}
	if sess == nil {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}

	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	report, err := s.repo.UpsertReport(ctx, repository.UpsertReportInput{
		SessionID:          req.SessionID,
		Summary:            req.Summary,
		KeyQuotes:          defaultJSONArray(req.KeyQuotes),
		Pains:              defaultJSONArray(req.Pains),
		Opportunities:      defaultJSONArray(req.Opportunities),
		Review:             req.Review,
		InterviewCompleted: completed,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to store report", err)
	}
	metrics.ReportsUpserted.Inc()
	return report, nil
}

func defaultJSONArray(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(emptyJSONArray)
	}
	return raw
}

type ListOptions struct {
	Page       int
	PerPage    int
	SortKey    string
	Descending bool
	Search     string
}

// ListSessions returns one owner's sessions for an interview, paginated and
// sorted, with text search over participant identity fields.
func (s *Service) ListSessions(ctx context.Context, userID, interviewID string, opts ListOptions) ([]repository.Session, int, error) {
	if interviewID == "" {
		return nil, 0, apperr.New(apperr.KindInvalidRequest, "interview id is required")
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = defaultPageSize
	}
	if opts.PerPage > s.cfg.SessionListMaxPageSize {
		opts.PerPage = s.cfg.SessionListMaxPageSize
	}
	sortKey := repository.SessionSortStartedAt
	switch repository.SessionSortKey(opts.SortKey) {
	case repository.SessionSortStartedAt, repository.SessionSortDuration, repository.SessionSortStatus, repository.SessionSortMode:
		sortKey = repository.SessionSortKey(opts.SortKey)
	case "":
	default:
		return nil, 0, apperr.New(apperr.KindInvalidRequest, "unknown sort key")
	}

	sessions, total, err := s.repo.ListSessionsByInterview(ctx, repository.ListSessionsInput{
		InterviewID: interviewID,
		UserID:      userID,
		Search:      strings.TrimSpace(opts.Search),
		SortKey:     sortKey,
		Descending:  opts.Descending,
		Limit:       opts.PerPage,
		Offset:      (opts.Page - 1) * opts.PerPage,
	})
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "failed to list sessions", err)
	}
	return sessions, total, nil
}

// GetOwnedView resolves a session by id and verifies ownership. A session
// belonging to someone else reads as not found rather than forbidden, so ids
// do not leak existence.
func (s *Service) GetOwnedView(ctx context.Context, userID, sessionID string) (*View, error) {
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.viewOf(ctx, sess)
}

func (s *Service) ownedSession(ctx context.Context, userID, sessionID string) (*repository.Session, error) {
	sess, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to look up session", err)
	}
	if sess == nil || sess.UserID != userID {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	return sess, nil
}

// ReportView is a stored report together with the session's transcript.
type ReportView struct {
	Report   *repository.InterviewReport
	Segments []repository.TranscriptSegment
}

func (s *Service) GetOwnedReport(ctx context.Context, userID, sessionID string) (*ReportView, error) {
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	report, err := s.repo.GetReportBySessionID(ctx, sess.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to look up report", err)
	}
	if report == nil {
		return nil, apperr.New(apperr.KindNotFound, "report not found")
	}
	segments, err := s.repo.ListSegmentsBySessionID(ctx, sess.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list transcript segments", err)
	}
	return &ReportView{Report: report, Segments: segments}, nil
}

// DeleteSession removes an owned session; the store cascades the transcript
// and report rows.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) error {
	deleted, err := s.repo.DeleteSession(ctx, userID, sessionID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete session", err)
	}
	if !deleted {
		return apperr.New(apperr.KindNotFound, "session not found")
	}
	slog.Info("session deleted", "session_id", sessionID, "user_id", userID)
	return nil
}

// Usage returns the owner record with its completed-sessions aggregate
// reconciled upward against the true count.
func (s *Service) Usage(ctx context.Context, userID string) (*repository.Owner, error) {
	owner, err := s.repo.ReconcileOwnerUsage(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to read usage", err)
	}
	if owner == nil {
		return nil, apperr.New(apperr.KindNotFound, "owner not found")
	}
	return owner, nil
}

// AuthenticateOwner resolves a bearer API key to an owner record.
func (s *Service) AuthenticateOwner(ctx context.Context, apiKey string) (*repository.Owner, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "missing credentials")
	}
	owner, err := s.repo.FindOwnerByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to verify credentials", err)
	}
	if owner == nil {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}
	return owner, nil
}
