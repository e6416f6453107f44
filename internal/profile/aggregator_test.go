package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mindsight/synapses/internal/config"
	"github.com/mindsight/synapses/internal/domain"
)

type fakeRepo struct {
	facts    []domain.Fact
	factsErr error
	basic    *domain.Profile
	history  string
	weekly   string
}

func (f *fakeRepo) BasicProfile(ctx context.Context, email string) (*domain.Profile, error) {
	return f.basic, nil
}

func (f *fakeRepo) InteractionHistory(ctx context.Context, email string, days int) (string, error) {
	return f.history, nil
}

func (f *fakeRepo) WeeklySummaries(ctx context.Context, email string, days int) (string, error) {
	return f.weekly, nil
}

func (f *fakeRepo) LatestFacts(ctx context.Context, email string, maxAgeDays int) ([]domain.Fact, error) {
	return f.facts, f.factsErr
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

func testWindows() config.WindowConfig {
	return config.WindowConfig{EvaluationSummaryDays: 30, FactDays: 90, RefreshDays: 180}
}

func daysAgo(n int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, -n)
	return &t
}

func TestAggregate_FreshnessWindows(t *testing.T) {
	repo := &fakeRepo{facts: []domain.Fact{
		{Category: "tags pontos fortes", Description: "comunicação", Date: daysAgo(10)},
		{Category: "resumo avd", Description: "avaliação recente", Date: daysAgo(45)},
		{Category: "objetivos de carreira", Description: "liderar time", Date: daysAgo(120)},
	}}
	a := New(repo, testWindows())

	snap := a.Aggregate(context.Background(), "ana@x.com")
	if !snap.OK {
		t.Fatalf("Expected OK snapshot, got diagnostic %q", snap.Diagnostic)
	}
	if snap.Facts[domain.FactStrengths] != "comunicação" {
		t.Errorf("Expected strengths fact kept, got %q", snap.Facts[domain.FactStrengths])
	}
	// 45 days is past the shorter resumo-avd window.
	if snap.Facts[domain.FactEvaluationSummary] != "" {
		t.Errorf("Expected stale evaluation summary discarded, got %q", snap.Facts[domain.FactEvaluationSummary])
	}
	// 120 days is past the 90-day category window even though inside the
	// 180-day refresh cutoff.
	if snap.Facts[domain.FactObjectives] != "" {
		t.Errorf("Expected stale objectives discarded, got %q", snap.Facts[domain.FactObjectives])
	}
}

func TestAggregate_LabelDrift(t *testing.T) {
	repo := &fakeRepo{facts: []domain.Fact{
		{Category: "Tags Pontos Fortes", Description: "resiliência", Date: daysAgo(1)},
		{Category: "tarefas cargo autoavaliacao", Description: "planilhas e reuniões", Date: daysAgo(1)},
		{Category: "categoria desconhecida", Description: "ignorada", Date: daysAgo(1)},
	}}
	a := New(repo, testWindows())

	snap := a.Aggregate(context.Background(), "ana@x.com")
	if snap.Facts[domain.FactStrengths] != "resiliência" {
		t.Errorf("Case drift should still match: %q", snap.Facts[domain.FactStrengths])
	}
	if snap.Facts[domain.FactTasks] != "planilhas e reuniões" {
		t.Errorf("Accent drift should still match: %q", snap.Facts[domain.FactTasks])
	}
	for cat, v := range snap.Facts {
		if v == "ignorada" {
			t.Errorf("Unknown label leaked into category %q", cat)
		}
	}
}

func TestAggregate_StorageFailure(t *testing.T) {
	repo := &fakeRepo{factsErr: errors.New("disk on fire")}
	a := New(repo, testWindows())

	snap := a.Aggregate(context.Background(), "ana@x.com")
	if snap.OK {
		t.Error("Expected OK=false on storage failure")
	}
	if !strings.Contains(snap.Diagnostic, "disk on fire") {
		t.Errorf("Diagnostic should carry the cause, got %q", snap.Diagnostic)
	}
	for cat, v := range snap.Facts {
		if v != "" {
			t.Errorf("Expected empty fact for %q, got %q", cat, v)
		}
	}
}

func TestFresh(t *testing.T) {
	a := New(&fakeRepo{}, testWindows())
	if a.Fresh(nil) {
		t.Error("Undated facts must not count as fresh")
	}
	if !a.Fresh(daysAgo(10)) {
		t.Error("10-day-old fact should be fresh")
	}
	if a.Fresh(daysAgo(200)) {
		t.Error("200-day-old fact should not be fresh")
	}
}

func TestRenderContext_OrderAndIdempotence(t *testing.T) {
	snap := Snapshot{
		Facts: map[string]string{
			domain.FactStrengths:  "comunicação",
			domain.FactObjectives: "liderar time",
		},
		Basic:   domain.Profile{Summary: "perfil analítico", Role: "Analista", PersonID: "77"},
		History: "data: 2026-08-01 - resumo: conversa",
		Weekly:  "resumo da semana 01/08/2026 - sprint",
	}
	for _, cat := range domain.FactCategories() {
		if _, ok := snap.Facts[cat]; !ok {
			snap.Facts[cat] = ""
		}
	}

	got := RenderContext("ana@x.com", "Ana", snap)
	want := strings.Join([]string{
		"email: ana@x.com",
		"nome: Ana",
		"id_pessoa: 77",
		"cargo: Analista",
		"resumo_pessoa: perfil analítico",
		"tags pontos fortes: comunicação",
		"objetivos de carreira: liderar time",
		"historico_bot: data: 2026-08-01 - resumo: conversa",
		"resumos_semanais:",
		"resumo da semana 01/08/2026 - sprint",
	}, "\n")
	if got != want {
		t.Errorf("RenderContext mismatch:\n got: %q\nwant: %q", got, want)
	}

	if again := RenderContext("ana@x.com", "Ana", snap); again != got {
		t.Error("RenderContext is not idempotent for identical inputs")
	}
}

func TestRenderContext_NoData(t *testing.T) {
	snap := Snapshot{Facts: map[string]string{}}
	got := RenderContext("ana@x.com", "Ana", snap)
	if !strings.Contains(got, "(sem dados válidos no intervalo configurado)") {
		t.Errorf("Expected no-data marker, got %q", got)
	}
}
