package httpapi

import (
	"encoding/json"
	"time"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
	"github.com/VladimirHumeniuk/custiq-backend/internal/session"
)

type sessionJSON struct {
	ID                      string          `json:"id"`
	InterviewID             string          `json:"interviewId"`
	ResearchID              string          `json:"researchId"`
	Status                  string          `json:"status"`
	Mode                    string          `json:"mode"`
	ParticipantName         string          `json:"participantName"`
	ParticipantEmail        *string         `json:"participantEmail,omitempty"`
	StartedAt               time.Time       `json:"startedAt"`
	EndedAt                 *time.Time      `json:"endedAt,omitempty"`
	LastActivityAt          time.Time       `json:"lastActivityAt"`
	Completed               bool            `json:"completed"`
	GlobalContextSnapshot   json.RawMessage `json:"globalContextSnapshot,omitempty"`
	ResearchContextSnapshot json.RawMessage `json:"researchContextSnapshot,omitempty"`
	PersonaID               string          `json:"personaId"`
	CompiledPromptHash      *string         `json:"compiledPromptHash,omitempty"`
}

type segmentJSON struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Text      string          `json:"text"`
	StartSec  *float64        `json:"startSec,omitempty"`
	EndSec    *float64        `json:"endSec,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type reportJSON struct {
	ID                 string          `json:"id"`
	SessionID          string          `json:"sessionId"`
	Summary            string          `json:"summary"`
	KeyQuotes          json.RawMessage `json:"keyQuotes"`
	Pains              json.RawMessage `json:"pains"`
	Opportunities      json.RawMessage `json:"opportunities"`
	Review             json.RawMessage `json:"review,omitempty"`
	InterviewCompleted bool            `json:"interviewCompleted"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// withSnapshots controls whether the frozen context records are echoed back.
// Participant views carry them (the interview client replays against them);
// owner list views stay lean.
func toSessionJSON(s *repository.Session, withSnapshots bool) sessionJSON {
	out := sessionJSON{
		ID:                 s.ID,
		InterviewID:        s.InterviewID,
		ResearchID:         s.ResearchID,
		Status:             string(s.Status),
		Mode:               string(s.Mode),
		ParticipantName:    s.ParticipantName,
		ParticipantEmail:   s.ParticipantEmail,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		LastActivityAt:     s.LastActivityAt,
		Completed:          s.Completed,
		PersonaID:          s.PersonaID,
		CompiledPromptHash: s.CompiledPromptHash,
	}
	if withSnapshots {
		out.GlobalContextSnapshot = s.GlobalContextSnapshot
		out.ResearchContextSnapshot = s.ResearchContextSnapshot
	}
	return out
}

func toSegmentJSONs(segments []repository.TranscriptSegment) []segmentJSON {
	out := make([]segmentJSON, 0, len(segments))
	for _, seg := range segments {
		out = append(out, segmentJSON{
			ID:        seg.ID,
			Role:      seg.Role,
			Text:      seg.Text,
			StartSec:  seg.StartSec,
			EndSec:    seg.EndSec,
			Metadata:  seg.Metadata,
			CreatedAt: seg.CreatedAt,
		})
	}
	return out
}

func toReportJSON(rep *repository.InterviewReport) reportJSON {
	return reportJSON{
		ID:                 rep.ID,
		SessionID:          rep.SessionID,
		Summary:            rep.Summary,
		KeyQuotes:          rep.KeyQuotes,
		Pains:              rep.Pains,
		Opportunities:      rep.Opportunities,
		Review:             rep.Review,
		InterviewCompleted: rep.InterviewCompleted,
		CreatedAt:          rep.CreatedAt,
		UpdatedAt:          rep.UpdatedAt,
	}
}

type viewJSON struct {
	Session    sessionJSON   `json:"session"`
	Transcript []segmentJSON `json:"transcript"`
}

func toViewJSON(v *session.View, withSnapshots bool) viewJSON {
	return viewJSON{
		Session:    toSessionJSON(v.Session, withSnapshots),
		Transcript: toSegmentJSONs(v.Segments),
	}
}
