// Package contextstore keeps per-session conversation state behind a small
// key-value capability, so the request layer can swap the default in-memory
// map for a real datastore.
package contextstore

import (
	"github.com/tmcfarland/casepilot/internal/courtlistener"
	"github.com/tmcfarland/casepilot/internal/research"
)

// SessionContext is the accumulated state for one conversation. Text grows
// append-only across uploads and chat turns; the other fields hold the
// latest pipeline outputs.
type SessionContext struct {
	Text     string                  `json:"text"`
	Analysis research.AnalysisRecord `json:"analysis"`
	Summary  string                  `json:"summary"`
	Cases    []courtlistener.Case    `json:"cases"`
	Queries  []string                `json:"queries"`
}

// NewSessionContext returns the empty default shape.
func NewSessionContext() SessionContext {
	return SessionContext{
		Analysis: research.EmptyAnalysis(),
		Cases:    []courtlistener.Case{},
		Queries:  []string{},
	}
}

// AppendText adds a chunk to the accumulated text, separated by a blank
// line, matching how chat turns and uploads concatenate.
func (sc *SessionContext) AppendText(chunk string) {
	sc.Text += "\n\n" + chunk
}

// Store is the session-context capability. Get reports whether the session
// exists; Update applies fn to the stored context (creating the default
// shape first) under a lock scoped to that session, so two racing requests
// for the same session cannot lose updates.
type Store interface {
	Get(id string) (SessionContext, bool, error)
	Put(id string, sc SessionContext) error
	Update(id string, fn func(*SessionContext)) (SessionContext, error)
}
