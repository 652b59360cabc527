package research

import "github.com/tmcfarland/casepilot/internal/courtlistener"

// Case is a normalized CourtListener search hit, augmented with a relevance
// score and reason by the scoring step.
type Case = courtlistener.Case

// AnalysisRecord is the analyzer's structured extraction. All six lists are
// always present; a failed extraction yields the full empty record, never a
// partial one.
type AnalysisRecord struct {
	Facts          []string `json:"facts"`
	Jurisdictions  []string `json:"jurisdictions"`
	Parties        []string `json:"parties"`
	LegalIssues    []string `json:"legal_issues"`
	CausesOfAction []string `json:"causes_of_action"`
	PenalCodes     []string `json:"penal_codes"`
}

// EmptyAnalysis returns the default record with six empty, non-nil lists so
// it always serializes as arrays.
func EmptyAnalysis() AnalysisRecord {
	return AnalysisRecord{
		Facts:          []string{},
		Jurisdictions:  []string{},
		Parties:        []string{},
		LegalIssues:    []string{},
		CausesOfAction: []string{},
		PenalCodes:     []string{},
	}
}

const (
	StatusClarifying = "clarifying"
	StatusResults    = "results"
)

// ChatResult is the outcome of one full pipeline run over the accumulated
// session text. Status is either StatusClarifying (Questions set) or
// StatusResults (everything else set).
type ChatResult struct {
	Status    string
	Questions []string
	Summary   string
	Analysis  AnalysisRecord
	Cases     []Case
	Keywords  string
}

// CaseScore is one relevance assessment from the scorer.
type CaseScore struct {
	Score  int
	Reason string
}

const (
	// neutralScore stands in when the scorer's output cannot be parsed. The
	// midpoint keeps a single bad response from sinking or topping a case.
	neutralScore       = 50
	neutralScoreReason = "Parsing error"
)
