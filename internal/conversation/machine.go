package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mindsight/synapses/internal/assistant"
	"github.com/mindsight/synapses/internal/domain"
	"github.com/mindsight/synapses/internal/normalize"
	"github.com/mindsight/synapses/internal/profile"
)

// Fixed conversational texts. Like the prompt templates these are
// user-facing contract strings.
const (
	fallbackReply = "Escolha uma opção válida."

	competenciesReprompt = "Digite DUAS competências separadas por ponto e vírgula (ex.: Comunicação; Planejamento)."

	competenciesInstruction = "\n\nAgora, com o diagnóstico feito, escolha DUAS habilidades/competências para desenvolver neste ciclo " +
		"(separe por ponto e vírgula). Ex.: Comunicação; Pragmatismo"
)

// Aggregator is the profile side the machine consumes.
type Aggregator interface {
	Aggregate(ctx context.Context, email string) profile.Snapshot
	Fresh(date *time.Time) bool
}

// Inbound is one user message with its identity fields. Handlers substitute
// configured defaults before calling the machine, so fields are never empty
// by accident.
type Inbound struct {
	Text      string
	UserID    string
	UserName  string
	UserEmail string
}

// Machine orchestrates the session lifecycle: start, questionnaire advance,
// diagnosis, competency capture, plan generation, reset. It is the single
// place where collaborator failures become degraded conversational text; no
// failure below it ever aborts a turn.
type Machine struct {
	store   *Store
	script  *Script
	agg     Aggregator
	gateway assistant.Gateway
	now     func() time.Time
}

// NewMachine wires the state machine with its collaborators.
func NewMachine(store *Store, script *Script, agg Aggregator, gateway assistant.Gateway) *Machine {
	return &Machine{
		store:   store,
		script:  script,
		agg:     agg,
		gateway: gateway,
		now:     time.Now,
	}
}

// IsStartTrigger reports whether text matches the cycle start trigger,
// insensitive to case, accents and stray punctuation.
func IsStartTrigger(text string) bool {
	n := normalize.Fold(text)
	return n == "1" || n == "pdi" ||
		strings.Contains(n, "montar pdi") || strings.Contains(n, "monte pdi")
}

// Respond processes one inbound message and returns the conversational
// reply. The per-user session lock is held for the whole turn, so a user's
// messages are handled strictly in order; other users are unaffected.
func (m *Machine) Respond(ctx context.Context, in Inbound) string {
	sess, release, ok := m.store.Get(in.UserID)
	if !ok {
		if !IsStartTrigger(in.Text) {
			// No active flow and no trigger: reply without creating a session.
			return fallbackReply
		}
		sess, release = m.store.Acquire(in.UserID)
	}
	defer release()

	sess.LastActivity = m.now()

	switch sess.State {
	case domain.StateAwaitingCompetencies:
		// Evaluated before the start trigger: while a diagnosis is pending a
		// competency choice, "pdi" is just another competency answer attempt.
		return m.captureCompetencies(ctx, sess, in.Text)
	case domain.StateQuestioning:
		return m.recordAnswer(ctx, sess, in.Text)
	default:
		if IsStartTrigger(in.Text) {
			return m.startCycle(ctx, sess, in)
		}
		return fallbackReply
	}
}

// startCycle aggregates the profile, greets through the assistant, seeds the
// questionnaire from fresh stored facts and asks the first pending question.
func (m *Machine) startCycle(ctx context.Context, sess *domain.Session, in Inbound) string {
	snap := m.agg.Aggregate(ctx, in.UserEmail)
	rendered := profile.RenderContext(in.UserEmail, in.UserName, snap)

	intro, err := m.gateway.Dispatch(ctx, IntroPrompt(rendered), in.UserID, in.UserName, in.UserEmail)
	if err != nil {
		slog.Warn("intro dispatch failed", "user_id", in.UserID, "error", err)
		intro = assistantPlaceholder(err)
	}

	sess.BeginCycle(in.UserEmail, in.UserName, m.now())
	m.script.Prefill(sess.Answers, snap.Facts, snap.Dates, m.agg.Fresh)
	sess.Step = m.script.NextPending(sess.Answers)

	slog.Info("cycle started", "user_id", sess.UserID, "prefilled_step", sess.Step)

	if sess.Step < m.script.Len() {
		q, _ := m.script.QuestionAt(sess.Step)
		return intro + storageWarning(snap) + "\n\nVamos começar. " + q
	}

	// Every answer came pre-filled from storage: skip straight to the
	// diagnosis instead of re-asking answered questions.
	return intro + storageWarning(snap) + "\n\n" + m.runDiagnosis(ctx, sess)
}

// recordAnswer stores the free-text answer for the current step and either
// asks the next question or moves into the diagnosis branch.
func (m *Machine) recordAnswer(ctx context.Context, sess *domain.Session, text string) string {
	entry, err := m.script.EntryAt(sess.Step)
	if err != nil {
		// Step past the script means corrupted state; reset rather than wedge.
		slog.Error("session step out of range", "user_id", sess.UserID, "step", sess.Step)
		sess.EndCycle()
		return fallbackReply
	}

	sess.Answers[entry.Key] = strings.TrimSpace(text)
	sess.Step++

	if sess.Step < m.script.Len() {
		q, _ := m.script.QuestionAt(sess.Step)
		return q
	}
	return m.runDiagnosis(ctx, sess)
}

// runDiagnosis composes and dispatches the diagnosis prompt, stores the raw
// reply and asks for the two competencies. Called with all answers collected.
func (m *Machine) runDiagnosis(ctx context.Context, sess *domain.Session) string {
	snap := m.agg.Aggregate(ctx, sess.UserEmail)

	prompt := DiagnosisPrompt(
		snap.Basic.Summary,
		snap.Facts[domain.FactFeedback],
		firstNonEmpty(sess.Answers[domain.FactStrengths], snap.Facts[domain.FactStrengths]),
		firstNonEmpty(sess.Answers[domain.FactDevelopmentAreas], snap.Facts[domain.FactDevelopmentAreas]),
		sess.Answers[domain.FactTasks],
		firstNonEmpty(sess.Answers[domain.FactObjectives], snap.Facts[domain.FactObjectives]),
		snap.History,
		snap.Weekly,
	)

	reply, err := m.gateway.DispatchWithSession(ctx, prompt, m.dailySessionKey(snap.Basic.PersonID, sess.UserID), sess.UserName, sess.UserEmail)
	if err != nil {
		slog.Warn("diagnosis dispatch failed", "user_id", sess.UserID, "error", err)
		reply = assistantPlaceholder(err)
	}

	sess.Diagnosis = reply
	sess.State = domain.StateAwaitingCompetencies

	return "Diagnóstico inicial:\n\n" + reply + storageWarning(snap) + competenciesInstruction
}

// captureCompetencies validates the two-competency answer and, once valid,
// generates the development plan and ends the cycle.
func (m *Machine) captureCompetencies(ctx context.Context, sess *domain.Session, text string) string {
	var tokens []string
	for _, part := range strings.Split(text, ";") {
		if p := strings.TrimSpace(part); p != "" {
			tokens = append(tokens, p)
		}
	}
	if len(tokens) < 2 {
		return competenciesReprompt
	}

	chosen := tokens[0] + "; " + tokens[1]
	sess.Answers[domain.FactCompetencies] = chosen

	snap := m.agg.Aggregate(ctx, sess.UserEmail)
	prompt := PlanPrompt(sess.Diagnosis, sess.Answers[domain.FactTasks], snap.Weekly, chosen)

	reply, err := m.gateway.DispatchWithSession(ctx, prompt, m.dailySessionKey(snap.Basic.PersonID, sess.UserID), sess.UserName, sess.UserEmail)
	if err != nil {
		slog.Warn("plan dispatch failed", "user_id", sess.UserID, "error", err)
		reply = assistantPlaceholder(err)
	}

	slog.Info("cycle completed", "user_id", sess.UserID, "competencies", chosen)
	sess.EndCycle()

	return reply + storageWarning(snap)
}

// dailySessionKey pins assistant continuity to one key per person per day for
// the diagnosis and plan calls.
func (m *Machine) dailySessionKey(personID, userID string) string {
	id := personID
	if id == "" {
		id = userID
	}
	return id + ":" + m.now().UTC().Format("2006-01-02")
}

// assistantPlaceholder is the single mapping from gateway failures to the
// degraded reply text embedded in the conversation.
func assistantPlaceholder(err error) string {
	if errors.Is(err, assistant.ErrNotConfigured) {
		return "(Assistente não configurado) Defina FLOWISE_PREDICTION_URL ou FLOWISE_URL + FLOWISE_CHATFLOW_ID."
	}
	return fmt.Sprintf("(Assistente indisponível) %v", err)
}

// storageWarning is the single mapping from aggregation failures to the
// warning suffix appended to replies.
func storageWarning(snap profile.Snapshot) string {
	if snap.OK {
		return ""
	}
	return "\n\n(Aviso: " + snap.Diagnostic + ")"
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
