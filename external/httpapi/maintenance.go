package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/VladimirHumeniuk/custiq-backend/internal/apperr"
	"github.com/VladimirHumeniuk/custiq-backend/internal/session"
)

// The maintenance surface serves the external finalization job: it discovers
// stale sessions, closes them out through the same patch entry point as
// participants, and attaches analysis reports.

func (s *Server) handleStaleSessions(w http.ResponseWriter, r *http.Request) {
	minutes := 0
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeAppError(w, apperr.New(apperr.KindInvalidRequest, "minutes must be an integer"))
			return
		}
		minutes = parsed
	}
	views, err := s.svc.StaleSessions(r.Context(), minutes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	list := make([]viewJSON, 0, len(views))
	for i := range views {
		list = append(list, toViewJSON(&views[i], true))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleMaintenancePatch(w http.ResponseWriter, r *http.Request) {
	var req patchSessionRequest
	if err := decodeJSONRequest(w, r, &req); err != nil {
		return
	}
	_, err := s.svc.Patch(r.Context(), r.PathValue("id"), session.PatchRequest{
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

type upsertReportRequest struct {
	Summary            string          `json:"summary"`
	KeyQuotes          json.RawMessage `json:"keyQuotes"`
	Pains              json.RawMessage `json:"pains"`
	Opportunities      json.RawMessage `json:"opportunities"`
	Review             json.RawMessage `json:"review"`
	InterviewCompleted *bool           `json:"interviewCompleted"`
}

func (s *Server) handleMaintenanceReport(w http.ResponseWriter, r *http.Request) {
	var req upsertReportRequest
	if err := decodeJSONRequest(w, r, &req); err != nil {
		return
	}
	report, err := s.svc.UpsertReport(r.Context(), session.ReportRequest{
		SessionID:     r.PathValue("id"),
		Summary:       req.Summary,
		KeyQuotes:     req.KeyQuotes,
		Pains:         req.Pains,
		Opportunities: req.Opportunities,
		Review:        req.Review,
		Completed:     req.InterviewCompleted,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"report": toReportJSON(report),
	})
}
