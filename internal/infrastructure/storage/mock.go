package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/anomaly"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/history"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu        sync.Mutex
	histories history.Histories
	matches   map[string][]MatchRecord
	anomalies []storedAnomaly
	runs      map[string]*Run
	runOrder  []string
	nextMatch int64

	// Hooks for test assertions
	SaveHistoriesCalled  bool
	SaveMatchesCalled    bool
	ReplaceCalled        bool
	SaveRunResultsCalled bool

	// Error injection for testing error paths
	LoadHistoriesErr error
	SaveHistoriesErr error
	SaveMatchesErr   error
	ReplaceErr       error
	StartRunErr      error
	CompleteRunErr   error
}

type storedAnomaly struct {
	anomaly.Anomaly
	runID    string
	resolved bool
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		histories: make(history.Histories),
		matches:   make(map[string][]MatchRecord),
		runs:      make(map[string]*Run),
		nextMatch: 1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// LoadHistories returns a copy of the stored histories
func (m *MockRepository) LoadHistories(_ context.Context) (history.Histories, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadHistoriesErr != nil {
		return nil, m.LoadHistoriesErr
	}
	return maps.Clone(m.histories), nil
}

// SaveHistories upserts histories
func (m *MockRepository) SaveHistories(_ context.Context, histories history.Histories) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveHistoriesCalled = true
	if m.SaveHistoriesErr != nil {
		return m.SaveHistoriesErr
	}
	m.saveHistories(histories)
	return nil
}

func (m *MockRepository) saveHistories(histories history.Histories) {
	for k, v := range histories {
		m.histories[k] = v
	}
}

// SaveMatches appends matches under runID
func (m *MockRepository) SaveMatches(_ context.Context, runID string, matches []MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveMatchesCalled = true
	if m.SaveMatchesErr != nil {
		return m.SaveMatchesErr
	}
	m.saveMatches(runID, matches)
	return nil
}

func (m *MockRepository) saveMatches(runID string, matches []MatchRecord) {
	for _, rec := range matches {
		rec.ID = m.nextMatch
		rec.RunID = runID
		rec.CreatedAt = time.Now().UTC()
		m.nextMatch++
		m.matches[runID] = append(m.matches[runID], rec)
	}
}

// SaveRunResults stores all three parts or, when any injected error is
// set, none of them
func (m *MockRepository) SaveRunResults(_ context.Context, runID string, results RunResults) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveRunResultsCalled = true

	switch {
	case m.SaveMatchesErr != nil:
		return fmt.Errorf("save matches: %w", m.SaveMatchesErr)
	case m.ReplaceErr != nil:
		return fmt.Errorf("save anomalies: %w", m.ReplaceErr)
	case m.SaveHistoriesErr != nil:
		return fmt.Errorf("save supplier histories: %w", m.SaveHistoriesErr)
	}

	m.saveMatches(runID, results.Matches)
	m.replaceOpenAnomalies(runID, results.Anomalies)
	m.saveHistories(results.Histories)
	return nil
}

// ListMatches returns the matches saved under runID
func (m *MockRepository) ListMatches(_ context.Context, runID string) ([]MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.matches[runID]), nil
}

// ReplaceOpenAnomalies drops unresolved anomalies and stores the new ones
func (m *MockRepository) ReplaceOpenAnomalies(_ context.Context, runID string, anomalies []anomaly.Anomaly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceCalled = true
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.replaceOpenAnomalies(runID, anomalies)
	return nil
}

func (m *MockRepository) replaceOpenAnomalies(runID string, anomalies []anomaly.Anomaly) {
	kept := m.anomalies[:0]
	for _, a := range m.anomalies {
		if a.resolved {
			kept = append(kept, a)
		}
	}
	for _, a := range anomalies {
		kept = append(kept, storedAnomaly{Anomaly: a, runID: runID})
	}
	m.anomalies = kept
}

// ListOpenAnomalies returns unresolved anomalies in insertion order
func (m *MockRepository) ListOpenAnomalies(_ context.Context) ([]anomaly.Anomaly, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []anomaly.Anomaly
	for _, a := range m.anomalies {
		if !a.resolved {
			out = append(out, a.Anomaly)
		}
	}
	return out, nil
}

// ResolveAnomaly marks an open anomaly handled
func (m *MockRepository) ResolveAnomaly(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.anomalies {
		if m.anomalies[i].ID == id && !m.anomalies[i].resolved {
			m.anomalies[i].resolved = true
			return nil
		}
	}
	return fmt.Errorf("open anomaly %s: %w", id, ErrNotFound)
}

// StartRun records a running run
func (m *MockRepository) StartRun(_ context.Context, asOf time.Time, dryRun bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartRunErr != nil {
		return "", m.StartRunErr
	}
	id := uuid.NewString()
	m.runs[id] = &Run{ID: id, StartedAt: time.Now().UTC(), AsOf: asOf, DryRun: dryRun, Status: RunRunning}
	m.runOrder = append(m.runOrder, id)
	return id, nil
}

// CompleteRun records a run's outcome counts
func (m *MockRepository) CompleteRun(_ context.Context, runID string, summary RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = RunCompleted
	run.Summary = summary
	return nil
}

// FailRun records why a run stopped
func (m *MockRepository) FailRun(_ context.Context, runID string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = RunFailed
	if cause != nil {
		run.ErrorMessage = cause.Error()
	}
	return nil
}

// GetRun retrieves a run by id
func (m *MockRepository) GetRun(_ context.Context, runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns runs newest first
func (m *MockRepository) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []Run
	for i := len(m.runOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) == limit {
			break
		}
		runs = append(runs, *m.runs[m.runOrder[i]])
	}
	return runs, nil
}
