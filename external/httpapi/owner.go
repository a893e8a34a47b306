package httpapi

import (
	"net/http"
	"strconv"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
	"github.com/VladimirHumeniuk/custiq-backend/internal/session"
)

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request, owner *repository.Owner) {
	reconciled, err := s.svc.Usage(r.Context(), owner.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":                 reconciled.ID,
		"email":                  reconciled.Email,
		"completedSessionsCount": reconciled.CompletedSessionsCount,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, owner *repository.Owner) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))

	sessions, total, err := s.svc.ListSessions(r.Context(), owner.ID, r.PathValue("interviewID"), session.ListOptions{
		Page:       page,
		PerPage:    perPage,
		SortKey:    q.Get("sortBy"),
		Descending: q.Get("order") == "desc",
		Search:     q.Get("search"),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	list := make([]sessionJSON, 0, len(sessions))
	for i := range sessions {
		list = append(list, toSessionJSON(&sessions[i], false))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": list,
		"total":    total,
	})
}

func (s *Server) handleGetOwnedSession(w http.ResponseWriter, r *http.Request, owner *repository.Owner) {
	view, err := s.svc.GetOwnedView(r.Context(), owner.ID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewJSON(view, true))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, owner *repository.Owner) {
	if err := s.svc.DeleteSession(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetOwnedReport(w http.ResponseWriter, r *http.Request, owner *repository.Owner) {
	view, err := s.svc.GetOwnedReport(r.Context(), owner.ID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":     toReportJSON(view.Report),
		"transcript": toSegmentJSONs(view.Segments),
	})
}
