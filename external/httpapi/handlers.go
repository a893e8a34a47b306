package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/VladimirHumeniuk/custiq-backend/internal/apperr"
	"github.com/VladimirHumeniuk/custiq-backend/internal/session"
)

type createSessionRequest struct {
	Slug             string `json:"slug"`
	ParticipantName  string `json:"participantName"`
	ParticipantEmail string `json:"participantEmail"`
	Mode             string `json:"mode"`
}

type createSessionResponse struct {
	SessionID        string  `json:"sessionId"`
	SessionToken     string  `json:"sessionToken"`
	PublicTitle      string  `json:"publicTitle"`
	InterviewLength  int     `json:"interviewLength"`
	Mode             string  `json:"mode"`
	ParticipantName  string  `json:"participantName"`
	ParticipantEmail *string `json:"participantEmail,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSONRequest(w, r, &req); err != nil {
		return
	}
	resp, err := s.svc.CreateSession(r.Context(), session.CreateSessionRequest{
		Slug:             req.Slug,
		ParticipantName:  req.ParticipantName,
		ParticipantEmail: req.ParticipantEmail,
		Mode:             req.Mode,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:        resp.SessionID,
		SessionToken:     resp.SessionToken,
		PublicTitle:      resp.PublicTitle,
		InterviewLength:  resp.InterviewLengthMin,
		Mode:             string(resp.Mode),
		ParticipantName:  resp.ParticipantName,
		ParticipantEmail: resp.ParticipantEmail,
	})
}

// participantCredentials pulls the token from the query string or the
// X-Session-Token header, and the optional session id from the query string.
func participantCredentials(r *http.Request) (token, id string) {
	token = r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Session-Token")
	}
	return token, r.URL.Query().Get("id")
}

func (s *Server) handleGetCurrentSession(w http.ResponseWriter, r *http.Request) {
	token, id := participantCredentials(r)
	if token == "" {
		writeAppError(w, apperr.New(apperr.KindUnauthorized, "session token is required"))
		return
	}
	view, err := s.svc.GetView(r.Context(), token, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewJSON(view, true))
}

type segmentPayload struct {
	Role     string          `json:"role"`
	Text     string          `json:"text"`
	StartSec any             `json:"startSec"`
	EndSec   any             `json:"endSec"`
	Metadata json.RawMessage `json:"metadata"`
}

type appendSegmentsRequest struct {
	Token    string           `json:"token"`
	ID       string           `json:"id"`
	Segments []segmentPayload `json:"segments"`
}

func (s *Server) handleAppendSegments(w http.ResponseWriter, r *http.Request) {
	var req appendSegmentsRequest
	if err := decodeJSONRequest(w, r, &req); err != nil {
		return
	}
	token, id := req.Token, req.ID
	if token == "" {
		token = r.Header.Get("X-Session-Token")
	}
	if token == "" {
		writeAppError(w, apperr.New(apperr.KindUnauthorized, "session token is required"))
		return
	}

	batch := make([]session.SegmentInput, 0, len(req.Segments))
	for _, seg := range req.Segments {
		batch = append(batch, session.SegmentInput{
			Role:     seg.Role,
			Text:     seg.Text,
			StartSec: seg.StartSec,
			EndSec:   seg.EndSec,
			Metadata: seg.Metadata,
		})
	}
	if err := s.svc.AppendSegments(r.Context(), token, id, batch); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type patchSessionRequest struct {
	Token              string     `json:"token"`
	ID                 string     `json:"id"`
	Status             *string    `json:"status"`
	EndedAt            *time.Time `json:"endedAt"`
	Completed          *bool      `json:"completed"`
	LastActivityAt     *time.Time `json:"lastActivityAt"`
	CompiledPromptHash *string    `json:"compiledPromptHash"`
}

func (s *Server) handlePatchCurrentSession(w http.ResponseWriter, r *http.Request) {
	var req patchSessionRequest
	if err := decodeJSONRequest(w, r, &req); err != nil {
		return
	}
	token := req.Token
	if token == "" {
		token = r.Header.Get("X-Session-Token")
	}
	_, err := s.svc.PatchByToken(r.Context(), token, req.ID, session.PatchRequest{
		Status:             req.Status,
		EndedAt:            req.EndedAt,
		Completed:          req.Completed,
		LastActivityAt:     req.LastActivityAt,
		CompiledPromptHash: req.CompiledPromptHash,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func decodeJSONRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(r.Body, dst); err != nil {
		writeAppError(w, apperr.New(apperr.KindInvalidRequest, err.Error()))
		return err
	}
	return nil
}
