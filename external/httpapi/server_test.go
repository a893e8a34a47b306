package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/VladimirHumeniuk/custiq-backend/internal/config"
	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
	"github.com/VladimirHumeniuk/custiq-backend/internal/session"
	"github.com/VladimirHumeniuk/custiq-backend/internal/testsupport"
)

const (
	testMaintenanceSecret = "maintenance-secret"
	testOwnerAPIKey       = "owner-api-key"
)

func newTestHandler(t *testing.T) (http.Handler, *testsupport.FakeRepository) {
	t.Helper()
	cfg := &config.Config{
		Env:                    "development",
		DatabaseURL:            "postgres://test",
		HTTPListenAddr:         ":0",
		MaintenanceAPISecret:   testMaintenanceSecret,
		StaleDefaultMinutes:    30,
		SessionListMaxPageSize: 100,
	}
	repo := testsupport.NewFakeRepository()
	repo.AddOwner(repository.Owner{ID: "owner-1", Email: "owner@acme.test"}, testOwnerAPIKey)
	repo.AddInterview(repository.PublishedInterview{
		ID:                 "interview-1",
		ResearchID:         "research-1",
		UserID:             "owner-1",
		Slug:               "abc12345",
		PublicTitle:        "Churn interview",
		InterviewLengthMin: 15,
		Tone:               "conversational",
	})
	svc := session.NewService(cfg, repo)
	return NewServer(cfg, svc).Handler(), repo
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("response body is not valid JSON: %v: %s", err, rec.Body.String())
	}
}

func createTestSession(t *testing.T, h http.Handler) (id, token string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{
		"slug":            "abc12345",
		"participantName": "Alex",
		"mode":            "text",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionID       string `json:"sessionId"`
		SessionToken    string `json:"sessionToken"`
		PublicTitle     string `json:"publicTitle"`
		InterviewLength int    `json:"interviewLength"`
	}
	decodeBody(t, rec, &resp)
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(resp.SessionToken) {
		t.Fatalf("token is not 64 hex chars: %q", resp.SessionToken)
	}
	if resp.PublicTitle != "Churn interview" || resp.InterviewLength != 15 {
		t.Fatalf("interview metadata missing from response: %+v", resp)
	}
	return resp.SessionID, resp.SessionToken
}

func TestParticipantFlow(t *testing.T) {
	h, repo := newTestHandler(t)
	_, token := createTestSession(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/sessions/current/segments", map[string]any{
		"token":    token,
		"segments": []map[string]any{{"role": "user", "text": "hello"}},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("append: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/current?token="+token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get current: status %d: %s", rec.Code, rec.Body.String())
	}
	var view struct {
		Session struct {
			StartedAt      time.Time `json:"startedAt"`
			LastActivityAt time.Time `json:"lastActivityAt"`
		} `json:"session"`
		Transcript []struct {
			Text string `json:"text"`
		} `json:"transcript"`
	}
	decodeBody(t, rec, &view)
	if len(view.Transcript) != 1 || view.Transcript[0].Text != "hello" {
		t.Fatalf("unexpected transcript: %+v", view.Transcript)
	}
	if view.Session.LastActivityAt.Before(view.Session.StartedAt) {
		t.Fatal("lastActivityAt older than startedAt")
	}

	// Completing twice increments the owner aggregate exactly once.
	for i := 0; i < 2; i++ {
		rec = doJSON(t, h, http.MethodPatch, "/api/sessions/current", map[string]any{
			"token":     token,
			"completed": true,
		}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("patch %d: status %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	if got := repo.OwnerCount("owner-1"); got != 1 {
		t.Fatalf("owner counter = %d, want 1", got)
	}

	// No appends to a completed session.
	rec = doJSON(t, h, http.MethodPost, "/api/sessions/current/segments", map[string]any{
		"token":    token,
		"segments": []map[string]any{{"role": "user", "text": "late"}},
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("append after completion: status %d, want 409", rec.Code)
	}
}

func TestCreateSession_Errors(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{
		"slug": "unknown-slug", "participantName": "Alex", "mode": "text",
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown slug: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{
		"slug": "abc12345", "mode": "text",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name: status %d, want 400", rec.Code)
	}
}

func TestResolveMismatchIsForbidden(t *testing.T) {
	h, _ := newTestHandler(t)
	idA, _ := createTestSession(t, h)
	_, tokenB := createTestSession(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/current?token="+tokenB+"x&id="+idA, nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("token/id mismatch: status %d, want 403", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "forbidden" {
		t.Fatalf("unexpected error kind: %q", body.Error)
	}

	// The participant surface never resolves by bare id; that path belongs
	// to the authenticated owner routes.
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/current?id="+idA, nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("id-only participant fetch: status %d, want 401", rec.Code)
	}
}

func TestOwnerSurface(t *testing.T) {
	h, _ := newTestHandler(t)
	id, _ := createTestSession(t, h)
	auth := map[string]string{"Authorization": "Bearer " + testOwnerAPIKey}

	rec := doJSON(t, h, http.MethodGet, "/api/interviews/interview-1/sessions", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/interviews/interview-1/sessions?search=alex", nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d: %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
		Total int `json:"total"`
	}
	decodeBody(t, rec, &list)
	if list.Total != 1 || list.Sessions[0].ID != id {
		t.Fatalf("unexpected list result: %+v", list)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/usage", nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("usage: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+id, nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id, nil, auth)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted session fetch: status %d, want 404", rec.Code)
	}
}

func TestMaintenanceSurface(t *testing.T) {
	h, repo := newTestHandler(t)
	id, _ := createTestSession(t, h)
	auth := map[string]string{"Authorization": "Bearer " + testMaintenanceSecret}

	rec := doJSON(t, h, http.MethodGet, "/api/maintenance/sessions/stale", nil,
		map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status %d, want 401", rec.Code)
	}

	repo.SetLastActivity(id, time.Now().Add(-2*time.Hour))
	rec = doJSON(t, h, http.MethodGet, "/api/maintenance/sessions/stale?minutes=45", nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("stale list: status %d: %s", rec.Code, rec.Body.String())
	}
	var stale struct {
		Sessions []struct {
			Session struct {
				ID string `json:"id"`
			} `json:"session"`
			Transcript []any `json:"transcript"`
		} `json:"sessions"`
	}
	decodeBody(t, rec, &stale)
	if len(stale.Sessions) != 1 || stale.Sessions[0].Session.ID != id {
		t.Fatalf("unexpected stale sessions: %+v", stale)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/maintenance/sessions/stale?minutes=soon", nil, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad minutes: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/maintenance/sessions/"+id, map[string]any{
		"status":    "abandoned",
		"endedAt":   time.Now().UTC(),
		"completed": false,
	}, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("maintenance patch: status %d: %s", rec.Code, rec.Body.String())
	}
	if repo.OwnerCount("owner-1") != 0 {
		t.Fatal("abandonment must not increment the completion counter")
	}

	rec = doJSON(t, h, http.MethodPut, "/api/maintenance/sessions/"+id+"/report", map[string]any{
		"summary":   "short interview",
		"keyQuotes": []string{"it was fine"},
	}, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("report upsert: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/report", nil,
		map[string]string{"Authorization": "Bearer " + testOwnerAPIKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner report fetch: status %d: %s", rec.Code, rec.Body.String())
	}
	var report struct {
		Report struct {
			Summary string `json:"summary"`
		} `json:"report"`
	}
	decodeBody(t, rec, &report)
	if report.Report.Summary != "short interview" {
		t.Fatalf("unexpected report summary: %q", report.Report.Summary)
	}
}
