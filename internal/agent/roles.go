package agent

import (
	"strings"

	"github.com/tmcfarland/casepilot/internal/llm"
)

// NoQuestionsMarker is the clarifier's control signal. The chat pipeline
// proceeds only when this literal appears somewhere in the clarifier's
// output; the match is a case-insensitive substring check, not equality.
const NoQuestionsMarker = "NO QUESTIONS NEEDED"

// NeedsClarification reports whether the clarifier output should interrupt
// the pipeline for another user turn.
func NeedsClarification(raw string) bool {
	return !strings.Contains(strings.ToUpper(raw), NoQuestionsMarker)
}

const (
	clarifierRole = "You are a legal paralegal. Ask up to 3 clarifying questions " +
		"ONLY about missing essential legal facts. " +
		"If enough info exists, reply EXACTLY: NO QUESTIONS NEEDED."

	analyzerRole = "You analyze legal text and extract structured information. " +
		"Return JSON strictly:\n" +
		"{\n" +
		"  \"facts\": [],\n" +
		"  \"jurisdictions\": [],\n" +
		"  \"parties\": [],\n" +
		"  \"legal_issues\": [],\n" +
		"  \"causes_of_action\": [],\n" +
		"  \"penal_codes\": []\n" +
		"}"

	summarizerRole = "You summarize legal situations concisely and factually."

	queryGeneratorRole = "You output EXACTLY 5 legal search keywords (no numbering, no extra text)."

	scorerRole = "You evaluate relevance of cases. Return JSON only:\n" +
		"{\"score\": <0-100>, \"reason\": \"<1 sentence>\"}"

	drafterRole = "You draft legal memos/briefs using facts, issues, and cases. " +
		"Write professionally, structured, concise."
)

func NewClarifier(client llm.ChatClient, model string) *Agent {
	return New("clarifier", clarifierRole, model, client)
}

func NewAnalyzer(client llm.ChatClient, model string) *Agent {
	return New("analyzer", analyzerRole, model, client)
}

func NewSummarizer(client llm.ChatClient, model string) *Agent {
	return New("summarizer", summarizerRole, model, client)
}

func NewQueryGenerator(client llm.ChatClient, model string) *Agent {
	return New("query_generator", queryGeneratorRole, model, client)
}

func NewScorer(client llm.ChatClient, model string) *Agent {
	return New("scorer", scorerRole, model, client)
}

func NewDrafter(client llm.ChatClient, model string) *Agent {
	return New("drafter", drafterRole, model, client)
}
