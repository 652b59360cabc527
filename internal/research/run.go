package research

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tmcfarland/casepilot/internal/agent"
	"github.com/tmcfarland/casepilot/internal/courtlistener"
)

// RunChat executes the full pipeline over the accumulated session text.
// It stops early with StatusClarifying when the clarifier still has
// questions; otherwise it carries the text through analysis, summary,
// keyword generation, search, scoring, and ranking.
func (o *Orchestrator) RunChat(ctx context.Context, text string) ChatResult {
	clarification := o.Clarify(ctx, text)
	if agent.NeedsClarification(clarification) {
		return ChatResult{
			Status:    StatusClarifying,
			Questions: strings.Split(clarification, "\n"),
		}
	}

	analysis := o.Analyze(ctx, text)
	summary := o.Summarize(ctx, text)
	keywords := o.GenerateQuery(ctx, summary, analysis)

	cases := o.SearchCases(ctx, courtlistener.Query{Text: keywords})
	o.scoreAll(ctx, summary, cases)

	// Stable sort: equal scores keep their original search-result order.
	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].RelevanceScore > cases[j].RelevanceScore
	})

	return ChatResult{
		Status:   StatusResults,
		Summary:  summary,
		Analysis: analysis,
		Cases:    cases,
		Keywords: keywords,
	}
}

// scoreAll rates every case with a bounded concurrent fan-out, writing each
// result back by index so the pre-sort order stays deterministic. Workers
// carry their own scorer agent; scoring prompts are independent, so shared
// transcript replay buys nothing and would race.
func (o *Orchestrator) scoreAll(ctx context.Context, summary string, cases []courtlistener.Case) {
	if len(cases) == 0 {
		return
	}
	workers := o.scoreWorkers
	if workers > len(cases) {
		workers = len(cases)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			scorer := agent.NewScorer(o.chat, o.model)
			for i := range indexes {
				result := scoreWith(ctx, scorer, summary, cases[i])
				cases[i].RelevanceScore = result.Score
				cases[i].RelevanceReason = result.Reason
			}
		}()
	}
	for i := range cases {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
}
