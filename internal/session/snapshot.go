package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
)

// GlobalContext is the company-profile half of a session's frozen
// configuration. Fields are never null: absent text normalizes to "" and
// absent collections to [].
type GlobalContext struct {
	CompanyName        string   `json:"companyName"`
	CompanyDescription string   `json:"companyDescription"`
	Industry           string   `json:"industry"`
	TargetAudience     string   `json:"targetAudience"`
	Products           []string `json:"products"`
}

// ResearchContext is the research-brief half.
type ResearchContext struct {
	ResearchGoal       string   `json:"researchGoal"`
	Hypotheses         []string `json:"hypotheses"`
	Questions          []string `json:"questions"`
	CustomInstructions string   `json:"customInstructions"`
}

// buildSnapshots freezes the published interview's configuration into the two
// per-session JSON records. Called exactly once, at session creation; the
// results are stored verbatim and never regenerated, so later edits to the
// company profile or research brief cannot reach sessions already created.
func buildSnapshots(pi *repository.PublishedInterview) (global, research json.RawMessage, err error) {
	g := GlobalContext{
		CompanyName:        pi.CompanyName,
		CompanyDescription: pi.CompanyDescription,
		Industry:           pi.Industry,
		TargetAudience:     pi.TargetAudience,
		Products:           emptyIfNil(pi.Products),
	}
	r := ResearchContext{
		ResearchGoal:       pi.ResearchGoal,
		Hypotheses:         emptyIfNil(pi.Hypotheses),
		Questions:          emptyIfNil(pi.Questions),
		CustomInstructions: pi.CustomInstructions,
	}
	global, err = json.Marshal(g)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal global context snapshot: %w", err)
	}
	research, err = json.Marshal(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal research context snapshot: %w", err)
	}
	return global, research, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const (
	PersonaConversational = "conversational"
	PersonaProfessional   = "professional"
	PersonaEmpathetic     = "empathetic"
)

// derivePersonaID maps the interview's configured tone onto a persona by
// keyword containment, evaluated in order, case-insensitive.
func derivePersonaID(tone string) string {
	t := strings.ToLower(tone)
	switch {
	case strings.Contains(t, "conversational"):
		return PersonaConversational
	case strings.Contains(t, "professional"):
		return PersonaProfessional
	case strings.Contains(t, "empathetic"):
		return PersonaEmpathetic
	default:
		return PersonaProfessional
	}
}
