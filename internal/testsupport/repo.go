// Package testsupport provides an in-memory Repository with the same
// observable semantics as the Postgres adapter, for package tests.
package testsupport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

type FakeRepository struct {
	mu         sync.Mutex
	sessions   map[string]*repository.Session
	segments   map[string][]repository.TranscriptSegment
	reports    map[string]*repository.InterviewReport
	owners     map[string]*repository.Owner
	apiKeys    map[string]string
	interviews map[string]*repository.PublishedInterview
	seq        int

	// Failure injection: when set, the named method returns this error.
	Err map[string]error
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		sessions:   make(map[string]*repository.Session),
		segments:   make(map[string][]repository.TranscriptSegment),
		reports:    make(map[string]*repository.InterviewReport),
		owners:     make(map[string]*repository.Owner),
		apiKeys:    make(map[string]string),
		interviews: make(map[string]*repository.PublishedInterview),
		Err:        make(map[string]error),
	}
}

func (f *FakeRepository) AddInterview(pi repository.PublishedInterview) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interviews[pi.Slug] = &pi
}

func (f *FakeRepository) AddOwner(o repository.Owner, apiKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[o.ID] = &o
	if apiKey != "" {
		f.apiKeys[apiKey] = o.ID
	}
}

// SetLastActivity backdates a session's liveness signal, for staleness tests.
func (f *FakeRepository) SetLastActivity(sessionID string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		s.LastActivityAt = at
	}
}

func (f *FakeRepository) OwnerCount(ownerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.owners[ownerID]; ok {
		return o.CompletedSessionsCount
	}
	return 0
}

func copySession(s *repository.Session) *repository.Session {
	cp := *s
	return &cp
}

func (f *FakeRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	if err := f.Err["CreateSession"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &repository.Session{
		ID:                      input.ID,
		InterviewID:             input.InterviewID,
		ResearchID:              input.ResearchID,
		UserID:                  input.UserID,
		Status:                  repository.SessionStatusActive,
		Mode:                    input.Mode,
		ParticipantName:         input.ParticipantName,
		ParticipantEmail:        input.ParticipantEmail,
		SessionToken:            input.SessionToken,
		StartedAt:               input.StartedAt,
		LastActivityAt:          input.StartedAt,
		GlobalContextSnapshot:   input.GlobalContextSnapshot,
		ResearchContextSnapshot: input.ResearchContextSnapshot,
		PersonaID:               input.PersonaID,
		PromptID:                input.PromptID,
	}
	f.sessions[s.ID] = s
	return copySession(s), nil
}

func (f *FakeRepository) GetSessionByToken(_ context.Context, token string) (*repository.Session, error) {
	if err := f.Err["GetSessionByToken"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SessionToken == token {
			return copySession(s), nil
		}
	}
	return nil, nil
}

func (f *FakeRepository) GetSessionByID(_ context.Context, id string) (*repository.Session, error) {
	if err := f.Err["GetSessionByID"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		return copySession(s), nil
	}
	return nil, nil
}

func (f *FakeRepository) UpdateSessionPartial(_ context.Context, input repository.UpdateSessionInput) (*repository.Session, bool, error) {
	if err := f.Err["UpdateSessionPartial"]; err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[input.SessionID]
	if !ok {
		return nil, false, nil
	}
	prevCompleted := s.Completed
	if input.Status != nil {
		s.Status = *input.Status
	}
	if input.EndedAt != nil {
		s.EndedAt = input.EndedAt
	}
	if input.Completed != nil && *input.Completed {
		s.Completed = true
	}
	if input.LastActivityAt != nil && input.LastActivityAt.After(s.LastActivityAt) {
		s.LastActivityAt = *input.LastActivityAt
	}
	if input.CompiledPromptHash != nil {
		s.CompiledPromptHash = input.CompiledPromptHash
	}
	firstCompletion := !prevCompleted && s.Completed
	if firstCompletion {
		if o, ok := f.owners[s.UserID]; ok {
			o.CompletedSessionsCount++
		}
	}
	return copySession(s), firstCompletion, nil
}

func (f *FakeRepository) ListSessionsByInterview(_ context.Context, input repository.ListSessionsInput) ([]repository.Session, int, error) {
	if err := f.Err["ListSessionsByInterview"]; err != nil {
		return nil, 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []repository.Session
	search := strings.ToLower(input.Search)
	for _, s := range f.sessions {
		if s.InterviewID != input.InterviewID || s.UserID != input.UserID {
			continue
		}
		if search != "" {
			email := ""
			if s.ParticipantEmail != nil {
				email = *s.ParticipantEmail
			}
			if !strings.Contains(strings.ToLower(s.ParticipantName), search) &&
				!strings.Contains(strings.ToLower(email), search) {
				continue
			}
		}
		matched = append(matched, *copySession(s))
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less bool
		switch input.SortKey {
		case repository.SessionSortDuration:
			less = sessionDuration(a) < sessionDuration(b)
		case repository.SessionSortStatus:
			less = a.Status < b.Status
		case repository.SessionSortMode:
			less = a.Mode < b.Mode
		default:
			less = a.StartedAt.Before(b.StartedAt)
		}
		if input.Descending {
			return !less
		}
		return less
	})
	total := len(matched)
	if input.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[input.Offset:]
	if input.Limit < len(matched) {
		matched = matched[:input.Limit]
	}
	return matched, total, nil
}

func sessionDuration(s repository.Session) time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

func (f *FakeRepository) ListStaleActiveSessions(_ context.Context, olderThan time.Time) ([]repository.Session, error) {
	if err := f.Err["ListStaleActiveSessions"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []repository.Session
	for _, s := range f.sessions {
		if s.Status == repository.SessionStatusActive && s.LastActivityAt.Before(olderThan) {
			stale = append(stale, *copySession(s))
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].LastActivityAt.Before(stale[j].LastActivityAt)
	})
	return stale, nil
}

func (f *FakeRepository) DeleteSession(_ context.Context, userID, sessionID string) (bool, error) {
	if err := f.Err["DeleteSession"]; err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return false, nil
	}
	delete(f.sessions, sessionID)
	delete(f.segments, sessionID)
	delete(f.reports, sessionID)
	return true, nil
}

func (f *FakeRepository) InsertSegments(_ context.Context, sessionID string, at time.Time, segments []repository.InsertSegmentInput) (time.Time, error) {
	if err := f.Err["InsertSegments"]; err != nil {
		return time.Time{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.Status != repository.SessionStatusActive {
		return time.Time{}, repository.ErrSessionNotActive
	}
	if at.After(s.LastActivityAt) {
		s.LastActivityAt = at
	}
	for _, seg := range segments {
		f.seq++
		f.segments[sessionID] = append(f.segments[sessionID], repository.TranscriptSegment{
			ID:        fmt.Sprintf("seg-%d", f.seq),
			SessionID: sessionID,
			Role:      seg.Role,
			Text:      seg.Text,
			StartSec:  seg.StartSec,
			EndSec:    seg.EndSec,
			Metadata:  seg.Metadata,
			CreatedAt: at,
		})
	}
	return s.LastActivityAt, nil
}

func (f *FakeRepository) ListSegmentsBySessionID(_ context.Context, sessionID string) ([]repository.TranscriptSegment, error) {
	if err := f.Err["ListSegmentsBySessionID"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.TranscriptSegment(nil), f.segments[sessionID]...), nil
}

func (f *FakeRepository) UpsertReport(_ context.Context, input repository.UpsertReportInput) (*repository.InterviewReport, error) {
	if err := f.Err["UpsertReport"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	existing, ok := f.reports[input.SessionID]
	rep := &repository.InterviewReport{
		ID:                 fmt.Sprintf("report-%s", input.SessionID),
		SessionID:          input.SessionID,
		Summary:            input.Summary,
		KeyQuotes:          input.KeyQuotes,
		Pains:              input.Pains,
		Opportunities:      input.Opportunities,
		Review:             input.Review,
		InterviewCompleted: input.InterviewCompleted,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if ok {
		rep.ID = existing.ID
		rep.CreatedAt = existing.CreatedAt
	}
	f.reports[input.SessionID] = rep
	cp := *rep
	return &cp, nil
}

func (f *FakeRepository) GetReportBySessionID(_ context.Context, sessionID string) (*repository.InterviewReport, error) {
	if err := f.Err["GetReportBySessionID"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if rep, ok := f.reports[sessionID]; ok {
		cp := *rep
		return &cp, nil
	}
	return nil, nil
}

func (f *FakeRepository) FindActivePublishedInterview(_ context.Context, slug string) (*repository.PublishedInterview, error) {
	if err := f.Err["FindActivePublishedInterview"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pi, ok := f.interviews[slug]; ok {
		cp := *pi
		return &cp, nil
	}
	return nil, nil
}

func (f *FakeRepository) FindOwnerByAPIKey(_ context.Context, apiKey string) (*repository.Owner, error) {
	if err := f.Err["FindOwnerByAPIKey"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.apiKeys[apiKey]
	if !ok {
		return nil, nil
	}
	cp := *f.owners[id]
	return &cp, nil
}

func (f *FakeRepository) ReconcileOwnerUsage(_ context.Context, userID string) (*repository.Owner, error) {
	if err := f.Err["ReconcileOwnerUsage"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[userID]
	if !ok {
		return nil, nil
	}
	trueCount := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.Completed {
			trueCount++
		}
	}
	if trueCount > o.CompletedSessionsCount {
		o.CompletedSessionsCount = trueCount
	}
	cp := *o
	return &cp, nil
}
