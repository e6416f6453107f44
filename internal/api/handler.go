// Package api provides HTTP handlers for the Synapses API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mindsight/synapses/internal/config"
	"github.com/mindsight/synapses/internal/conversation"
	"github.com/mindsight/synapses/internal/profile"
	"github.com/mindsight/synapses/internal/store"
	"github.com/mindsight/synapses/web"
)

// maxRequestBodySize caps inbound message bodies (1MB).
const maxRequestBodySize = 1 << 20

// Responder produces the conversational reply for one inbound message.
type Responder interface {
	Respond(ctx context.Context, in conversation.Inbound) string
}

// ProfileReader exposes the aggregation snapshot for diagnostics.
type ProfileReader interface {
	Aggregate(ctx context.Context, email string) profile.Snapshot
}

// Handler serves the chat API and its diagnostic endpoints.
type Handler struct {
	responder Responder
	profiles  ProfileReader
	repo      store.Repository
	sessions  *conversation.Store
	cfg       *config.Config
}

// NewHandler creates a Handler with its dependencies.
func NewHandler(responder Responder, profiles ProfileReader, repo store.Repository, sessions *conversation.Store, cfg *config.Config) *Handler {
	return &Handler{
		responder: responder,
		profiles:  profiles,
		repo:      repo,
		sessions:  sessions,
		cfg:       cfg,
	}
}

// RegisterRoutes mounts all handler routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Widget)
	r.Post("/api/message", h.Message)
	r.Get("/profile", h.Profile)
	r.Get("/diag", h.Diag)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type messageRequest struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// Message handles one chat turn. The response is always HTTP 200 with a
// reply field; failures upstream are already folded into the reply text.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	// A malformed body falls back to the configured defaults, mirroring the
	// degrade-and-continue policy of the rest of the flow.
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		req = messageRequest{}
	}

	in := conversation.Inbound{
		Text:      req.Text,
		UserID:    valueOr(req.UserID, h.cfg.DefaultUserID),
		UserName:  valueOr(req.UserName, h.cfg.DefaultUserName),
		UserEmail: valueOr(req.UserEmail, h.cfg.DefaultUserEmail),
	}

	reply := h.responder.Respond(r.Context(), in)
	JSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// Widget serves the embedded chat page with the identity passed by the host.
func (h *Handler) Widget(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := web.WidgetData{
		UserID:    valueOr(q.Get("user_id"), h.cfg.DefaultUserID),
		UserName:  valueOr(q.Get("user_name"), h.cfg.DefaultUserName),
		UserEmail: valueOr(q.Get("user_email"), h.cfg.DefaultUserEmail),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := web.RenderWidget(w, data); err != nil {
		Error(w, http.StatusInternalServerError, "failed to render widget")
	}
}

// Profile dumps the aggregation snapshot for an email. Diagnostic endpoint.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	email := valueOr(r.URL.Query().Get("email"), h.cfg.DefaultUserEmail)
	snap := h.profiles.Aggregate(r.Context(), email)

	msg := snap.Diagnostic
	if snap.OK {
		msg = "ok"
	}

	dates := make(map[string]*string, len(snap.Dates))
	for cat, d := range snap.Dates {
		if d == nil {
			dates[cat] = nil
			continue
		}
		s := d.UTC().Format(time.RFC3339)
		dates[cat] = &s
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"ok":    snap.OK,
		"msg":   msg,
		"email": email,
		"perfil": map[string]string{
			"resumo_pessoa":   snap.Basic.Summary,
			"cargo":           snap.Basic.Role,
			"id":              snap.Basic.PersonID,
			"historico_bot":   snap.History,
			"resumos_semanal": snap.Weekly,
		},
		"valores": snap.Facts,
		"datas":   dates,
	})
}

// Diag reports effective configuration and storage health.
func (h *Handler) Diag(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	dbMsg := "ok"
	if err := h.repo.Ping(r.Context()); err != nil {
		dbOK = false
		dbMsg = err.Error()
	}

	endpoint := h.cfg.Assistant.Endpoint()
	JSON(w, http.StatusOK, map[string]interface{}{
		"assistant_configured": endpoint != "",
		"effective_url":        endpoint,
		"db_ok":                dbOK,
		"db_msg":               dbMsg,
		"sessions":             h.sessions.Len(),
		"deltas": map[string]int{
			"DELTA_TEMPO_RESUMO": h.cfg.Windows.EvaluationSummaryDays,
			"DELTA_TEMPO":        h.cfg.Windows.FactDays,
			"TEMPO_ATUALIZACAO":  h.cfg.Windows.RefreshDays,
		},
	})
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
