// Package store provides read access to the people-analytics databases.
package store

import (
	"context"

	"github.com/mindsight/synapses/internal/domain"
)

// Repository defines the read-only queries the profile aggregator consumes.
// Every method returns an error instead of panicking or swallowing failures;
// callers are expected to degrade, never to abort the conversation.
type Repository interface {
	// BasicProfile retrieves the person record for an email.
	// Returns nil without error when the person is unknown.
	BasicProfile(ctx context.Context, email string) (*domain.Profile, error)

	// InteractionHistory renders the most recent assistant interactions
	// (up to 5, newest first, within the given window in days) as a single
	// "data: <date> - resumo: <text>" line joined with "; ".
	InteractionHistory(ctx context.Context, email string, days int) (string, error)

	// WeeklySummaries renders the weekly report summaries within the window
	// as newline-joined "resumo da semana <date> - <text>" lines. Returns ""
	// when the weekly database is not configured or holds nothing.
	WeeklySummaries(ctx context.Context, email string, days int) (string, error)

	// LatestFacts returns the most recent row per tagged category label for
	// an email, pre-filtered to rows no older than maxAgeDays. Labels are
	// returned trimmed and lowercased; finer normalization is the caller's
	// concern.
	LatestFacts(ctx context.Context, email string, maxAgeDays int) ([]domain.Fact, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connections.
	Close() error
}
