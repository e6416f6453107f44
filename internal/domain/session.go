// Package domain contains core domain types for the Synapses assistant.
package domain

import (
	"time"
)

// SessionState identifies where a user's PDI cycle currently is.
// The zero value is StateIdle, so a freshly created Session is inert.
type SessionState int

const (
	// StateIdle means no cycle is active; only the start trigger does anything.
	StateIdle SessionState = iota
	// StateQuestioning means the questionnaire is in progress.
	StateQuestioning
	// StateAwaitingCompetencies means a diagnosis was delivered and the user
	// still has to pick two competencies for the development plan.
	StateAwaitingCompetencies
)

// String returns a log-friendly name for the state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQuestioning:
		return "questioning"
	case StateAwaitingCompetencies:
		return "awaiting_competencies"
	default:
		return "unknown"
	}
}

// Session holds the in-memory conversation state for one user.
// Step and Answers are only meaningful while State != StateIdle.
type Session struct {
	UserID       string
	State        SessionState
	Step         int
	Answers      map[string]string
	Diagnosis    string
	UserEmail    string
	UserName     string
	LastActivity time.Time
}

// BeginCycle resets the session for a new questionnaire cycle, capturing the
// identity fields that every outbound call in this cycle will reuse.
func (s *Session) BeginCycle(email, name string, now time.Time) {
	s.State = StateQuestioning
	s.Step = 0
	s.Answers = make(map[string]string)
	s.Diagnosis = ""
	s.UserEmail = email
	s.UserName = name
	s.LastActivity = now
}

// EndCycle returns the session to the inert state. Collected answers and the
// diagnosis are dropped; the next start trigger begins from scratch.
func (s *Session) EndCycle() {
	s.State = StateIdle
	s.Step = 0
	s.Answers = nil
	s.Diagnosis = ""
}

// Active reports whether a cycle is in progress.
func (s *Session) Active() bool {
	return s.State != StateIdle
}
