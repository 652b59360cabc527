// Package research chains the legal research pipeline: clarify the intake
// text, extract structured facts, summarize, derive search keywords, fetch
// candidate case law, score each hit, and draft memos from the accumulated
// session context. No step raises past the orchestrator: every LLM-consuming
// step degrades to a typed default and a failed search degrades to a single
// error-as-data case so the pipeline always completes.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/tmcfarland/casepilot/internal/agent"
	"github.com/tmcfarland/casepilot/internal/courtlistener"
	"github.com/tmcfarland/casepilot/internal/jsonextract"
	"github.com/tmcfarland/casepilot/internal/llm"
)

// Searcher is the external case-search capability.
type Searcher interface {
	Search(ctx context.Context, q courtlistener.Query) ([]courtlistener.Case, error)
}

const defaultScoreWorkers = 4

type Config struct {
	Chat     llm.ChatClient
	Searcher Searcher
	// Model overrides the default completion model for all agents.
	Model string
	// ScoreWorkers bounds the concurrent fan-out while scoring search hits.
	ScoreWorkers int
}

// Orchestrator owns one instance of each agent plus the search client.
// Construct a fresh one per request: agent transcripts are step-to-step
// memory within a single pipeline execution, never across requests.
type Orchestrator struct {
	chat         llm.ChatClient
	model        string
	scoreWorkers int

	clarifier  *agent.Agent
	analyzer   *agent.Agent
	summarizer *agent.Agent
	queryGen   *agent.Agent
	scorer     *agent.Agent
	drafter    *agent.Agent
	searcher   Searcher
}

func New(cfg Config) *Orchestrator {
	workers := cfg.ScoreWorkers
	if workers <= 0 {
		workers = defaultScoreWorkers
	}
	return &Orchestrator{
		chat:         cfg.Chat,
		model:        cfg.Model,
		scoreWorkers: workers,
		clarifier:    agent.NewClarifier(cfg.Chat, cfg.Model),
		analyzer:     agent.NewAnalyzer(cfg.Chat, cfg.Model),
		summarizer:   agent.NewSummarizer(cfg.Chat, cfg.Model),
		queryGen:     agent.NewQueryGenerator(cfg.Chat, cfg.Model),
		scorer:       agent.NewScorer(cfg.Chat, cfg.Model),
		drafter:      agent.NewDrafter(cfg.Chat, cfg.Model),
		searcher:     cfg.Searcher,
	}
}

// Clarify asks for missing-fact questions about the case description.
func (o *Orchestrator) Clarify(ctx context.Context, text string) string {
	return o.clarifier.Ask(ctx, "Case description:\n"+text)
}

// Analyze extracts the six-list analysis record. Unparseable output or a
// record missing any of the six keys yields the full empty default.
func (o *Orchestrator) Analyze(ctx context.Context, text string) AnalysisRecord {
	raw := o.analyzer.Ask(ctx, text)
	rec, err := parseAnalysis(raw)
	if err != nil {
		log.Printf("casepilot analyze_fallback err=%q", err.Error())
		return EmptyAnalysis()
	}
	return rec
}

func parseAnalysis(raw string) (AnalysisRecord, error) {
	var loose map[string]any
	if err := jsonextract.Unmarshal(raw, &loose); err != nil {
		return AnalysisRecord{}, err
	}
	rec := EmptyAnalysis()
	for key, dst := range map[string]*[]string{
		"facts":            &rec.Facts,
		"jurisdictions":    &rec.Jurisdictions,
		"parties":          &rec.Parties,
		"legal_issues":     &rec.LegalIssues,
		"causes_of_action": &rec.CausesOfAction,
		"penal_codes":      &rec.PenalCodes,
	} {
		v, ok := loose[key]
		if !ok {
			return AnalysisRecord{}, fmt.Errorf("analysis missing key %q", key)
		}
		arr, ok := v.([]any)
		if !ok {
			return AnalysisRecord{}, fmt.Errorf("analysis key %q is not a list", key)
		}
		*dst = stringList(arr)
	}
	return rec, nil
}

func stringList(arr []any) []string {
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Summarize returns the summarizer's text verbatim.
func (o *Orchestrator) Summarize(ctx context.Context, text string) string {
	return o.summarizer.Ask(ctx, text)
}

// GenerateQuery folds the summary and serialized analysis into one prompt
// and returns the raw keyword text. The "exactly five keywords" contract is
// prompt wording only; callers treat the result as an opaque query string.
func (o *Orchestrator) GenerateQuery(ctx context.Context, summary string, analysis AnalysisRecord) string {
	blob, _ := json.Marshal(analysis)
	prompt := fmt.Sprintf("Summary:\n%s\nAnalysis:\n%s", summary, string(blob))
	return o.queryGen.Ask(ctx, prompt)
}

// SearchCases runs the query against CourtListener. A transport failure
// becomes a one-element result whose title signals the error, so the
// pipeline keeps flowing.
func (o *Orchestrator) SearchCases(ctx context.Context, q courtlistener.Query) []courtlistener.Case {
	cases, err := o.searcher.Search(ctx, q)
	if err != nil {
		log.Printf("casepilot search_degraded err=%q", err.Error())
		return []courtlistener.Case{{
			Title:   "CourtListener error",
			Snippet: err.Error(),
		}}
	}
	return cases
}

// ScoreCase rates one case against the summary. The score is clamped into
// [0,100]; any parse failure yields the neutral default.
func (o *Orchestrator) ScoreCase(ctx context.Context, summary string, c courtlistener.Case) CaseScore {
	return scoreWith(ctx, o.scorer, summary, c)
}

func scoreWith(ctx context.Context, scorer *agent.Agent, summary string, c courtlistener.Case) CaseScore {
	prompt := fmt.Sprintf("Summary:\n%s\n\nCase Title: %s\nSnippet: %s\n\nReturn JSON.", summary, c.Title, c.Snippet)
	raw := scorer.Ask(ctx, prompt)

	// Reason is a pointer so an absent key is distinguishable from an empty
	// string; both score and reason must be present for the answer to count.
	var parsed struct {
		Score  any     `json:"score"`
		Reason *string `json:"reason"`
	}
	if err := jsonextract.Unmarshal(raw, &parsed); err != nil {
		return CaseScore{Score: neutralScore, Reason: neutralScoreReason}
	}
	score, ok := numericScore(parsed.Score)
	if !ok || parsed.Reason == nil {
		return CaseScore{Score: neutralScore, Reason: neutralScoreReason}
	}
	return CaseScore{Score: clampScore(score), Reason: *parsed.Reason}
}

// numericScore tolerates models that quote the score as a string.
func numericScore(v any) (int, bool) {
	switch s := v.(type) {
	case float64:
		return int(s), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Draft serializes the full session context and asks the drafter for a
// document of the requested type.
func (o *Orchestrator) Draft(ctx context.Context, sessionContext any, docType string) string {
	if strings.TrimSpace(docType) == "" {
		docType = "memo"
	}
	blob, _ := json.MarshalIndent(sessionContext, "", "  ")
	prompt := fmt.Sprintf("Draft a %s using:\n%s", docType, string(blob))
	return o.drafter.Ask(ctx, prompt)
}
