package session

import (
	"encoding/json"
	"testing"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

func TestDerivePersonaID(t *testing.T) {
	cases := []struct {
		tone string
		want string
	}{
		{"warm and Conversational", PersonaConversational},
		{"strictly PROFESSIONAL", PersonaProfessional},
		{"empathetic listener", PersonaEmpathetic},
		// Containment is evaluated in order; conversational wins.
		{"conversational but professional", PersonaConversational},
		{"", PersonaProfessional},
		{"sarcastic", PersonaProfessional},
	}
	for _, tc := range cases {
		if got := derivePersonaID(tc.tone); got != tc.want {
			t.Errorf("derivePersonaID(%q) = %q, want %q", tc.tone, got, tc.want)
		}
	}
}

func TestBuildSnapshots_NormalizesAbsentFields(t *testing.T) {
	pi := &repository.PublishedInterview{
		CompanyName:  "Acme",
		ResearchGoal: "understand churn",
		// Everything else left zero: no nulls may appear in the output.
	}
	global, research, err := buildSnapshots(pi)
	if err != nil {
		t.Fatalf("buildSnapshots failed: %v", err)
	}

	var g map[string]any
	if err := json.Unmarshal(global, &g); err != nil {
		t.Fatalf("global snapshot is not valid JSON: %v", err)
	}
	for key, val := range g {
		if val == nil {
			t.Errorf("global snapshot field %q is null", key)
		}
	}
	if _, ok := g["products"].([]any); !ok {
		t.Fatalf("products is not a list: %v", g["products"])
	}

	var r map[string]any
	if err := json.Unmarshal(research, &r); err != nil {
		t.Fatalf("research snapshot is not valid JSON: %v", err)
	}
	for key, val := range r {
		if val == nil {
			t.Errorf("research snapshot field %q is null", key)
		}
	}
	if r["researchGoal"] != "understand churn" {
		t.Fatalf("research goal not carried: %v", r["researchGoal"])
	}
}

func TestNewSessionToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := newSessionToken()
		if err != nil {
			t.Fatalf("token generation failed: %v", err)
		}
		if len(tok) != 64 {
			t.Fatalf("token length %d, want 64", len(tok))
		}
		if seen[tok] {
			t.Fatal("token reissued")
		}
		seen[tok] = true
	}
}
