package repository

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

type SessionMode string

const (
	SessionModeText  SessionMode = "text"
	SessionModeVoice SessionMode = "voice"
)

// Session is one participant's run through a published interview. The two
// context snapshots are captured once at creation and never rewritten.
type Session struct {
	ID                      string
	InterviewID             string
	ResearchID              string
	UserID                  string
	Status                  SessionStatus
	Mode                    SessionMode
	ParticipantName         string
	ParticipantEmail        *string
	SessionToken            string
	StartedAt               time.Time
	EndedAt                 *time.Time
	LastActivityAt          time.Time
	Completed               bool
	GlobalContextSnapshot   json.RawMessage
	ResearchContextSnapshot json.RawMessage
	PersonaID               string
	PromptID                string
	CompiledPromptHash      *string
}

type TranscriptSegment struct {
	ID        string
	SessionID string
	Role      string
	Text      string
	StartSec  *float64
	EndSec    *float64
	Metadata  json.RawMessage
	CreatedAt time.Time
}

type InterviewReport struct {
	ID                 string
	SessionID          string
	Summary            string
	KeyQuotes          json.RawMessage
	Pains              json.RawMessage
	Opportunities      json.RawMessage
	Review             json.RawMessage
	InterviewCompleted bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Owner is the researcher user owning interviews and sessions.
// CompletedSessionsCount is a denormalized aggregate; the authoritative fact
// is the count of that user's sessions with completed=true.
type Owner struct {
	ID                     string
	Email                  string
	CompletedSessionsCount int
}

// PublishedInterview is the creation-time join of an active interview with
// its research brief and its owner's company profile. It exists only as
// input to the snapshot builder; sessions never reference it afterwards.
type PublishedInterview struct {
	ID                 string
	ResearchID         string
	UserID             string
	Slug               string
	PublicTitle        string
	InterviewLengthMin int
	Tone               string
	PromptID           string

	CompanyName        string
	CompanyDescription string
	Industry           string
	TargetAudience     string
	Products           []string

	ResearchGoal       string
	Hypotheses         []string
	Questions          []string
	CustomInstructions string
}
