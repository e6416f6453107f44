package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mindsight/synapses/internal/config"
	"github.com/mindsight/synapses/internal/conversation"
	"github.com/mindsight/synapses/internal/domain"
	"github.com/mindsight/synapses/internal/profile"
)

type stubResponder struct {
	lastIn conversation.Inbound
	reply  string
}

func (s *stubResponder) Respond(_ context.Context, in conversation.Inbound) string {
	s.lastIn = in
	return s.reply
}

type stubProfiles struct {
	snap profile.Snapshot
}

func (s *stubProfiles) Aggregate(_ context.Context, _ string) profile.Snapshot {
	return s.snap
}

type stubRepo struct {
	pingErr error
}

func (s *stubRepo) BasicProfile(context.Context, string) (*domain.Profile, error) { return nil, nil }
func (s *stubRepo) InteractionHistory(context.Context, string, int) (string, error) {
	return "", nil
}
func (s *stubRepo) WeeklySummaries(context.Context, string, int) (string, error) { return "", nil }
func (s *stubRepo) LatestFacts(context.Context, string, int) ([]domain.Fact, error) {
	return nil, nil
}
func (s *stubRepo) Ping(context.Context) error { return s.pingErr }
func (s *stubRepo) Close() error               { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Port:   "8000",
		DBPath: "ignored",
		Assistant: config.AssistantConfig{
			PredictionURL: "http://assistant.local/api/v1/prediction/abc",
		},
		Windows: config.WindowConfig{
			EvaluationSummaryDays: 30,
			FactDays:              90,
			RefreshDays:           180,
		},
		SessionTTL:       time.Hour,
		DefaultUserID:    "131",
		DefaultUserName:  "Visitante",
		DefaultUserEmail: "padrao@example.com",
	}
}

func newTestHandler(responder *stubResponder, profiles *stubProfiles, repo *stubRepo) (*Handler, chi.Router) {
	if responder == nil {
		responder = &stubResponder{reply: "ok"}
	}
	if profiles == nil {
		profiles = &stubProfiles{}
	}
	if repo == nil {
		repo = &stubRepo{}
	}
	h := NewHandler(responder, profiles, repo, conversation.NewStore(), testConfig())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func TestMessage_ForwardsIdentityAndReturnsReply(t *testing.T) {
	responder := &stubResponder{reply: "Vamos começar."}
	_, r := newTestHandler(responder, nil, nil)

	body := `{"text":"pdi","user_id":"42","user_name":"Ana","user_email":"ana@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["reply"] != "Vamos começar." {
		t.Errorf("reply = %q", resp["reply"])
	}
	if responder.lastIn.UserID != "42" || responder.lastIn.UserName != "Ana" || responder.lastIn.UserEmail != "ana@example.com" {
		t.Errorf("inbound identity = %+v", responder.lastIn)
	}
	if responder.lastIn.Text != "pdi" {
		t.Errorf("inbound text = %q", responder.lastIn.Text)
	}
}

func TestMessage_MalformedBodyFallsBackToDefaults(t *testing.T) {
	responder := &stubResponder{reply: "Escolha uma opção válida."}
	_, r := newTestHandler(responder, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if responder.lastIn.UserID != "131" {
		t.Errorf("user id = %q, want default 131", responder.lastIn.UserID)
	}
	if responder.lastIn.UserName != "Visitante" {
		t.Errorf("user name = %q, want default Visitante", responder.lastIn.UserName)
	}
	if responder.lastIn.Text != "" {
		t.Errorf("text = %q, want empty", responder.lastIn.Text)
	}
}

func TestMessage_MissingFieldsGetDefaults(t *testing.T) {
	responder := &stubResponder{reply: "ok"}
	_, r := newTestHandler(responder, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":"oi"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if responder.lastIn.UserEmail != "padrao@example.com" {
		t.Errorf("user email = %q, want default", responder.lastIn.UserEmail)
	}
	if responder.lastIn.Text != "oi" {
		t.Errorf("text = %q", responder.lastIn.Text)
	}
}

func TestWidget_RendersIdentity(t *testing.T) {
	_, r := newTestHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?user_id=7&user_name=Bia&user_email=bia@example.com", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "Bia") {
		t.Errorf("page does not carry the user name")
	}
	if !strings.Contains(page, "bia@example.com") {
		t.Errorf("page does not carry the user email")
	}
}

func TestProfile_ReportsSnapshot(t *testing.T) {
	when := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	snap := profile.Snapshot{
		Facts: map[string]string{domain.FactStrengths: "comunicação"},
		Dates: map[string]*time.Time{domain.FactStrengths: &when},
		OK:    true,
		Basic: domain.Profile{Summary: "resumo", Role: "analista", PersonID: "77"},
	}
	_, r := newTestHandler(nil, &stubProfiles{snap: snap}, nil)

	req := httptest.NewRequest(http.MethodGet, "/profile?email=ana@example.com", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp struct {
		OK     bool              `json:"ok"`
		Msg    string            `json:"msg"`
		Email  string            `json:"email"`
		Perfil map[string]string `json:"perfil"`
		Datas  map[string]string `json:"datas"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Msg != "ok" {
		t.Errorf("ok = %v msg = %q", resp.OK, resp.Msg)
	}
	if resp.Email != "ana@example.com" {
		t.Errorf("email = %q", resp.Email)
	}
	if resp.Perfil["cargo"] != "analista" || resp.Perfil["id"] != "77" {
		t.Errorf("perfil = %+v", resp.Perfil)
	}
	if resp.Datas[domain.FactStrengths] != "2026-05-10T00:00:00Z" {
		t.Errorf("datas = %+v", resp.Datas)
	}
}

func TestProfile_StorageFailureSurfacesDiagnostic(t *testing.T) {
	snap := profile.Snapshot{
		Facts:      map[string]string{},
		Dates:      map[string]*time.Time{},
		OK:         false,
		Diagnostic: "Erro ao consultar o banco de dados: disk I/O error",
	}
	_, r := newTestHandler(nil, &stubProfiles{snap: snap}, nil)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["ok"] != false {
		t.Errorf("ok = %v, want false", resp["ok"])
	}
	if msg, _ := resp["msg"].(string); !strings.Contains(msg, "disk I/O error") {
		t.Errorf("msg = %q", msg)
	}
	if resp["email"] != "padrao@example.com" {
		t.Errorf("email = %v, want the configured default", resp["email"])
	}
}

func TestDiag_ReportsConfigurationAndHealth(t *testing.T) {
	_, r := newTestHandler(nil, nil, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/diag", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp struct {
		AssistantConfigured bool           `json:"assistant_configured"`
		EffectiveURL        string         `json:"effective_url"`
		DBOK                bool           `json:"db_ok"`
		Sessions            int            `json:"sessions"`
		Deltas              map[string]int `json:"deltas"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.AssistantConfigured {
		t.Error("assistant should be reported as configured")
	}
	if resp.EffectiveURL != "http://assistant.local/api/v1/prediction/abc" {
		t.Errorf("effective_url = %q", resp.EffectiveURL)
	}
	if !resp.DBOK {
		t.Error("db_ok should be true")
	}
	if resp.Deltas["DELTA_TEMPO"] != 90 || resp.Deltas["TEMPO_ATUALIZACAO"] != 180 {
		t.Errorf("deltas = %+v", resp.Deltas)
	}
}

func TestDiag_PingFailure(t *testing.T) {
	_, r := newTestHandler(nil, nil, &stubRepo{pingErr: context.DeadlineExceeded})

	req := httptest.NewRequest(http.MethodGet, "/diag", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["db_ok"] != false {
		t.Errorf("db_ok = %v, want false", resp["db_ok"])
	}
	if msg, _ := resp["db_msg"].(string); msg == "ok" || msg == "" {
		t.Errorf("db_msg = %q, want the ping error", msg)
	}
}

func TestJSONHelper(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"status": "created"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "created" {
		t.Errorf("body = %+v", body)
	}
}
