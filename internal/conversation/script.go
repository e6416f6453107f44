// Package conversation implements the PDI questionnaire flow: the fixed
// question script, the per-user session store and the state machine that
// drives one cycle from start trigger to development plan.
package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/mindsight/synapses/internal/domain"
)

// ErrOutOfRange is returned when a question index is past the script end.
var ErrOutOfRange = errors.New("question index out of range")

// Entry pairs a canonical answer key with its question text.
type Entry struct {
	Key      string
	Question string
}

// Script is the fixed ordered questionnaire. The order is significant: later
// prompt templates reference earlier answers by key.
type Script struct {
	entries []Entry
}

// DefaultScript returns the four-question PDI script.
func DefaultScript() *Script {
	return &Script{entries: []Entry{
		{domain.FactStrengths, "Aponte resumidamente seus principais pontos fortes:"},
		{domain.FactDevelopmentAreas, "Resumidamente, em quais pontos você precisa se desenvolver?"},
		{domain.FactObjectives, "Quais são seus principais objetivos de carreira (6–12 meses)?"},
		{domain.FactTasks, "Descreva suas tarefas mais importantes. Onde tem mais facilidade e mais dificuldade?"},
	}}
}

// Len returns the number of questions.
func (s *Script) Len() int {
	return len(s.entries)
}

// EntryAt returns the script entry at index i.
func (s *Script) EntryAt(i int) (Entry, error) {
	if i < 0 || i >= len(s.entries) {
		return Entry{}, ErrOutOfRange
	}
	return s.entries[i], nil
}

// QuestionAt returns the question text at index i.
func (s *Script) QuestionAt(i int) (string, error) {
	e, err := s.EntryAt(i)
	if err != nil {
		return "", err
	}
	return e.Question, nil
}

// NextPending returns the index of the first question whose key is absent or
// empty in answers, or Len() when every question is answered.
func (s *Script) NextPending(answers map[string]string) int {
	for i, e := range s.entries {
		if strings.TrimSpace(answers[e.Key]) == "" {
			return i
		}
	}
	return len(s.entries)
}

// Prefill seeds answers from stored facts that are still inside the refresh
// window, letting a returning user skip questions already on file. The task
// description is deliberately never pre-filled: it anchors the plan to the
// person's current day-to-day and must come from them every cycle.
func (s *Script) Prefill(answers map[string]string, facts map[string]string, dates map[string]*time.Time, fresh func(*time.Time) bool) {
	for _, e := range s.entries {
		if e.Key == domain.FactTasks {
			continue
		}
		v := strings.TrimSpace(facts[e.Key])
		if v == "" || !fresh(dates[e.Key]) {
			continue
		}
		answers[e.Key] = v
	}
}
