// Package profile aggregates stored attributes about a person into the
// context block fed to the assistant.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mindsight/synapses/internal/config"
	"github.com/mindsight/synapses/internal/domain"
	"github.com/mindsight/synapses/internal/normalize"
	"github.com/mindsight/synapses/internal/store"
)

// Snapshot is the result of one aggregation pass. It is rebuilt on demand for
// every outbound prompt and never cached across conversation turns.
type Snapshot struct {
	// Facts maps canonical category labels to their freshest description.
	// Every canonical category is present; stale or missing ones are "".
	Facts map[string]string
	// Dates holds the recording date per category, nil when unknown.
	Dates map[string]*time.Time

	// OK is false when the tagged-facts query failed; Diagnostic then carries
	// a human-readable reason that is appended to the conversational reply.
	OK         bool
	Diagnostic string

	Basic   domain.Profile
	History string
	Weekly  string
}

// Aggregator gathers a person's stored attributes from the repository.
type Aggregator struct {
	repo    store.Repository
	windows config.WindowConfig
	now     func() time.Time
}

// New creates an Aggregator reading through repo with the given freshness
// windows.
func New(repo store.Repository, windows config.WindowConfig) *Aggregator {
	return &Aggregator{repo: repo, windows: windows, now: time.Now}
}

// Aggregate builds a fresh Snapshot for email. Storage failures degrade:
// the fact query failing flips OK and fills Diagnostic, the auxiliary reads
// failing leave their fields zero. The conversation is never blocked.
func (a *Aggregator) Aggregate(ctx context.Context, email string) Snapshot {
	snap := Snapshot{
		Facts: make(map[string]string),
		Dates: make(map[string]*time.Time),
		OK:    true,
	}
	for _, cat := range domain.FactCategories() {
		snap.Facts[cat] = ""
		snap.Dates[cat] = nil
	}

	facts, err := a.repo.LatestFacts(ctx, email, a.windows.MaxDays())
	if err != nil {
		snap.OK = false
		snap.Diagnostic = fmt.Sprintf("Erro ao consultar o banco de dados: %v", err)
	} else {
		a.fillFacts(&snap, facts)
	}

	if basic, err := a.repo.BasicProfile(ctx, email); err != nil {
		slog.Warn("basic profile read failed", "email", email, "error", err)
	} else if basic != nil {
		snap.Basic = *basic
	}

	if history, err := a.repo.InteractionHistory(ctx, email, a.windows.EvaluationSummaryDays); err != nil {
		slog.Warn("interaction history read failed", "email", email, "error", err)
	} else {
		snap.History = history
	}

	if weekly, err := a.repo.WeeklySummaries(ctx, email, a.windows.FactDays); err != nil {
		slog.Warn("weekly summaries read failed", "email", email, "error", err)
	} else {
		snap.Weekly = weekly
	}

	return snap
}

// fillFacts keeps the freshest description per canonical category. A fact is
// discarded when older than its category window or the global refresh cutoff.
// Matching is by folded label so storage-side accent or punctuation drift
// does not break it.
func (a *Aggregator) fillFacts(snap *Snapshot, facts []domain.Fact) {
	canonical := make(map[string]string, len(snap.Facts))
	for cat := range snap.Facts {
		canonical[normalize.Fold(cat)] = cat
	}

	now := a.now().UTC()
	for _, f := range facts {
		cat, ok := canonical[normalize.Fold(f.Category)]
		if !ok {
			continue
		}
		if f.Date != nil {
			age := int(now.Sub(*f.Date).Hours() / 24)
			if age > a.categoryWindow(cat) || age > a.windows.RefreshDays {
				continue
			}
		}
		if f.Description == "" {
			continue
		}
		snap.Facts[cat] = f.Description
		snap.Dates[cat] = f.Date
	}
}

func (a *Aggregator) categoryWindow(category string) int {
	if category == domain.FactEvaluationSummary {
		return a.windows.EvaluationSummaryDays
	}
	return a.windows.FactDays
}

// Fresh reports whether a fact date is inside the refresh window, i.e. still
// good enough to pre-fill a questionnaire answer. Undated facts are not fresh.
func (a *Aggregator) Fresh(date *time.Time) bool {
	if date == nil {
		return false
	}
	return a.now().UTC().Sub(*date) <= time.Duration(a.windows.RefreshDays)*24*time.Hour
}

// RenderContext renders a Snapshot into the labeled context block sent to the
// assistant. The order is fixed: identity fields, fact categories, interaction
// history, weekly summaries. Identical inputs produce byte-identical output.
func RenderContext(email, name string, snap Snapshot) string {
	lines := []string{"email: " + email, "nome: " + name}

	if snap.Basic.PersonID != "" {
		lines = append(lines, "id_pessoa: "+snap.Basic.PersonID)
	}
	if snap.Basic.Role != "" {
		lines = append(lines, "cargo: "+snap.Basic.Role)
	}
	if snap.Basic.Summary != "" {
		lines = append(lines, "resumo_pessoa: "+snap.Basic.Summary)
	}

	for _, cat := range domain.FactCategories() {
		if v := strings.TrimSpace(snap.Facts[cat]); v != "" {
			lines = append(lines, cat+": "+v)
		}
	}

	if snap.History != "" {
		lines = append(lines, "historico_bot: "+snap.History)
	}
	if snap.Weekly != "" {
		lines = append(lines, "resumos_semanais:", snap.Weekly)
	}

	if len(lines) <= 2 {
		lines = append(lines, "(sem dados válidos no intervalo configurado)")
	}

	return strings.Join(lines, "\n")
}
