// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string

	// DBPath is the main profile database; WeeklyDBPath holds the weekly
	// report summaries and may be empty, which disables that source.
	DBPath       string
	WeeklyDBPath string
	// FactTable overrides discovery of the tagged-facts table.
	FactTable string

	Assistant AssistantConfig
	Windows   WindowConfig

	// SessionTTL is how long an untouched conversation session stays resident
	// before the janitor evicts it.
	SessionTTL time.Duration

	DefaultUserID    string
	DefaultUserName  string
	DefaultUserEmail string
}

// AssistantConfig locates the Flowise-compatible orchestration service.
// Either PredictionURL or BaseURL+ChatflowID must be set for the assistant to
// be reachable; with neither, replies degrade to a placeholder.
type AssistantConfig struct {
	BaseURL       string
	ChatflowID    string
	PredictionURL string
}

// WindowConfig holds the freshness windows, in days.
type WindowConfig struct {
	// EvaluationSummaryDays bounds the "resumo avd" category and the
	// interaction-history lookback (DELTA_TEMPO_RESUMO).
	EvaluationSummaryDays int
	// FactDays bounds every other fact category and the weekly-report
	// lookback (DELTA_TEMPO).
	FactDays int
	// RefreshDays is the global hard cutoff and the answer pre-fill window
	// (TEMPO_ATUALIZACAO).
	RefreshDays int
}

// Endpoint resolves the effective prediction URL, preferring the explicit
// override. Returns "" when the assistant is not configured.
func (a AssistantConfig) Endpoint() string {
	if a.PredictionURL != "" {
		return a.PredictionURL
	}
	if a.BaseURL != "" && a.ChatflowID != "" {
		return strings.TrimRight(a.BaseURL, "/") + "/api/v1/prediction/" + a.ChatflowID
	}
	return ""
}

// MaxDays returns the widest window, used as the storage-side age filter.
func (w WindowConfig) MaxDays() int {
	m := w.EvaluationSummaryDays
	if w.FactDays > m {
		m = w.FactDays
	}
	if w.RefreshDays > m {
		m = w.RefreshDays
	}
	return m
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8000"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/synapses.db"),
		WeeklyDBPath: getEnv("WEEKLY_DB_PATH", ""),
		FactTable:    getEnv("DB_TABLE", ""),
		Assistant: AssistantConfig{
			BaseURL:       getEnv("FLOWISE_URL", ""),
			ChatflowID:    getEnv("FLOWISE_CHATFLOW_ID", ""),
			PredictionURL: getEnv("FLOWISE_PREDICTION_URL", ""),
		},
		Windows: WindowConfig{
			EvaluationSummaryDays: getEnvInt("DELTA_TEMPO_RESUMO", 30),
			FactDays:              getEnvInt("DELTA_TEMPO", 90),
			RefreshDays:           getEnvInt("TEMPO_ATUALIZACAO", 180),
		},
		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_MINUTES", 1440)) * time.Minute,
		DefaultUserID:    getEnv("DEFAULT_USER_ID", "131"),
		DefaultUserName:  getEnv("DEFAULT_USER_NAME", "Visitante"),
		DefaultUserEmail: getEnv("DEFAULT_USER_EMAIL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Windows.EvaluationSummaryDays <= 0 {
		return fmt.Errorf("DELTA_TEMPO_RESUMO must be > 0")
	}
	if c.Windows.FactDays <= 0 {
		return fmt.Errorf("DELTA_TEMPO must be > 0")
	}
	if c.Windows.RefreshDays <= 0 {
		return fmt.Errorf("TEMPO_ATUALIZACAO must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
