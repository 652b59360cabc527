// Package agent wraps one role-bound model invocation with its own
// transcript of prior answers.
package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tmcfarland/casepilot/internal/llm"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "google/gemma-3-27b-it:free"

// Agent holds a fixed role prompt and replays its own prior answers as
// assistant turns on every ask. The transcript only spans one pipeline
// execution: orchestrators build fresh agents per request.
type Agent struct {
	name       string
	role       string
	model      string
	client     llm.ChatClient
	transcript []string
}

func New(name, role, model string, client llm.ChatClient) *Agent {
	if model == "" {
		model = DefaultModel
	}
	return &Agent{name: name, role: role, model: model, client: client}
}

func (a *Agent) Name() string { return a.name }

// Ask sends prompt to the model behind the agent's role. It never returns an
// error: a chat failure yields a sentinel string embedding the agent name,
// and the transcript is left untouched so a later ask is unaffected.
func (a *Agent) Ask(ctx context.Context, prompt string) string {
	messages := make([]llm.Message, 0, len(a.transcript)+2)
	messages = append(messages, llm.Message{Role: "system", Content: a.role})
	for _, answer := range a.transcript {
		messages = append(messages, llm.Message{Role: "assistant", Content: answer})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	start := time.Now()
	answer, err := a.client.Chat(ctx, a.model, messages)
	if err != nil {
		log.Printf("casepilot agent_error agent=%s elapsed_ms=%d err=%q", a.name, time.Since(start).Milliseconds(), err.Error())
		return fmt.Sprintf("[Agent %s Error: %v]", a.name, err)
	}
	a.transcript = append(a.transcript, answer)
	return answer
}
