package storage

import (
	"context"
	"errors"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/anomaly"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory)
// and makes testing the reconcile service straightforward.
type Repository interface {
	HistoryRepository
	MatchRepository
	AnomalyRepository
	RunRepository

	// SaveRunResults stores matches, anomalies and histories atomically
	SaveRunResults(ctx context.Context, runID string, results RunResults) error

	Close() error
}

// HistoryRepository persists learned supplier histories
type HistoryRepository interface {
	// LoadHistories returns every stored supplier history keyed by supplier key
	LoadHistories(ctx context.Context) (history.Histories, error)

	// SaveHistories upserts the given histories; others are left alone
	SaveHistories(ctx context.Context, histories history.Histories) error
}

// MatchRepository records the pairings produced by a run
type MatchRepository interface {
	// SaveMatches stores matches under runID
	SaveMatches(ctx context.Context, runID string, matches []MatchRecord) error

	// ListMatches returns the matches of a run, in insertion order
	ListMatches(ctx context.Context, runID string) ([]MatchRecord, error)
}

// AnomalyRepository stores the open anomaly list
type AnomalyRepository interface {
	// ReplaceOpenAnomalies drops every unresolved anomaly and stores the
	// given ones, so the open list always reflects the latest detection
	ReplaceOpenAnomalies(ctx context.Context, runID string, anomalies []anomaly.Anomaly) error

	// ListOpenAnomalies returns unresolved anomalies, most severe first
	ListOpenAnomalies(ctx context.Context) ([]anomaly.Anomaly, error)

	// ResolveAnomaly marks an anomaly handled; it survives later replacements
	ResolveAnomaly(ctx context.Context, id string) error
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// StartRun records the start of a run and returns its id
	StartRun(ctx context.Context, asOf time.Time, dryRun bool) (string, error)

	// CompleteRun records the outcome counts of a finished run
	CompleteRun(ctx context.Context, runID string, summary RunSummary) error

	// FailRun records why a run stopped
	FailRun(ctx context.Context, runID string, cause error) error

	// GetRun retrieves a run by id
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns returns recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
