// Package assistant provides the HTTP gateway to the Flowise-compatible
// orchestration service that generates the conversational replies.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mindsight/synapses/internal/config"
)

// ErrNotConfigured is returned when neither a prediction URL nor a base
// URL + chatflow id is configured.
var ErrNotConfigured = errors.New("assistant service not configured")

// Gateway dispatches a composed prompt and returns the assistant's text.
// Failures come back as errors; turning them into conversational placeholder
// text is the caller's job.
type Gateway interface {
	// Dispatch sends a prompt using the user id as the session key.
	Dispatch(ctx context.Context, prompt, userID, userName, userEmail string) (string, error)

	// DispatchWithSession sends a prompt under an explicit session key
	// (used with "<personID>:<date>" keys to pin daily continuity).
	DispatchWithSession(ctx context.Context, prompt, sessionID, userName, userEmail string) (string, error)
}

const (
	defaultTimeout    = 60 * time.Second
	sessionTimeout    = 90 * time.Second
	sessionRetryLimit = 3
	bodyExcerptLimit  = 240
	replyExcerptLimit = 500
)

// Client is the HTTP implementation of Gateway. Retries and timeouts live
// here; callers treat the assistant as fails-soft.
type Client struct {
	cfg  config.AssistantConfig
	http *http.Client
}

// NewClient creates a gateway client for the configured service.
func NewClient(cfg config.AssistantConfig) *Client {
	return &Client{cfg: cfg, http: &http.Client{}}
}

// url resolves the prediction endpoint.
func (c *Client) url() (string, error) {
	if ep := c.cfg.Endpoint(); ep != "" {
		return ep, nil
	}
	return "", ErrNotConfigured
}

// Dispatch sends a prompt with the default session shape: session key is the
// raw user id and the chatflow receives the full identity vars.
func (c *Client) Dispatch(ctx context.Context, prompt, userID, userName, userEmail string) (string, error) {
	url, err := c.url()
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"question": prompt,
		"overrideConfig": map[string]any{
			"sessionId": userID,
			"vars": map[string]any{
				"userId":     userID,
				"userName":   userName,
				"userEmail":  userEmail,
				"currentUrl": "",
				"userRole":   "authenticated",
			},
		},
	}

	return c.post(ctx, url, payload, defaultTimeout)
}

// DispatchWithSession sends a prompt under an explicit session key, retrying
// up to three times with a longer timeout after the first attempt.
func (c *Client) DispatchWithSession(ctx context.Context, prompt, sessionID, userName, userEmail string) (string, error) {
	url, err := c.url()
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"question": prompt,
		"overrideConfig": map[string]any{
			"sessionId": sessionID,
			"vars": map[string]any{
				"userName":  userName,
				"userEmail": userEmail,
			},
		},
		"responseMode": "blocking",
	}

	var lastErr error
	for attempt := 0; attempt < sessionRetryLimit; attempt++ {
		timeout := sessionTimeout
		if attempt > 0 {
			timeout = 120 * time.Second
		}
		reply, err := c.post(ctx, url, payload, timeout)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		slog.Warn("assistant dispatch attempt failed", "attempt", attempt+1, "session_id", sessionID, "error", err)
	}
	return "", lastErr
}

func (c *Client) post(ctx context.Context, url string, payload map[string]any, timeout time.Duration) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read assistant response: %w", err)
	}
	text := strings.TrimSpace(string(raw))

	slog.Debug("assistant response", "url", url, "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorExcerpt(text))
	}

	return extractReply(text), nil
}

// extractReply pulls the assistant text out of a prediction response. The
// service answers with JSON carrying one of text/message/data; anything else
// is returned raw, capped.
func extractReply(body string) string {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(body), &decoded); err == nil {
		for _, key := range []string{"text", "message", "data"} {
			if v, ok := decoded[key]; ok && v != nil {
				if s, ok := v.(string); ok {
					return s
				}
				if encoded, err := json.Marshal(v); err == nil {
					return string(encoded)
				}
			}
		}
	}
	if body == "" {
		return ""
	}
	return excerpt(body, replyExcerptLimit)
}

// errorExcerpt extracts the service's error message from a failure body.
func errorExcerpt(body string) string {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(body), &decoded); err == nil {
		for _, key := range []string{"message", "error", "text", "detail"} {
			if s, ok := decoded[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if body == "" {
		return "sem corpo"
	}
	return excerpt(body, bodyExcerptLimit)
}

func excerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
