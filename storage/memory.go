package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samuelfneumann/godreamer/dreamer"
)

var errNotInitialized = errors.New("store is not initialized")

type optimCheckpoint struct {
	step  int
	state dreamer.OptimState
}

// MemoryStore is a Store which keeps all records in memory
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]Run
	diagnostics map[string][]DiagnosticsRecord
	returns     map[string]map[int]float64
	optim       map[string]optimCheckpoint
}

// NewMemoryStore returns a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init initializes the store, discarding any records it holds
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]Run)
	s.diagnostics = make(map[string][]DiagnosticsRecord)
	s.returns = make(map[string]map[int]float64)
	s.optim = make(map[string]optimCheckpoint)
	return nil
}

// CreateRun creates and stores a new run with a random ID
func (s *MemoryStore) CreateRun(_ context.Context, name string, seed uint64,
	config []byte) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return Run{}, errNotInitialized
	}
	run := Run{
		ID:      uuid.NewString(),
		Name:    name,
		Seed:    seed,
		Config:  append([]byte(nil), config...),
		Created: time.Now().UTC(),
	}
	s.runs[run.ID] = run
	return run, nil
}

// GetRun returns the run with the given ID
func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// AppendDiagnostics appends diagnostics records to a run
func (s *MemoryStore) AppendDiagnostics(_ context.Context, runID string,
	records []DiagnosticsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRun(runID); err != nil {
		return err
	}
	s.diagnostics[runID] = append(s.diagnostics[runID], records...)
	return nil
}

// GetDiagnostics returns the diagnostics records of a run in the order
// they were appended
func (s *MemoryStore) GetDiagnostics(_ context.Context,
	runID string) ([]DiagnosticsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]DiagnosticsRecord(nil), s.diagnostics[runID]...), nil
}

// AppendReturn stores the return of an episode of a run
func (s *MemoryStore) AppendReturn(_ context.Context, runID string,
	episode int, ret float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRun(runID); err != nil {
		return err
	}
	if s.returns[runID] == nil {
		s.returns[runID] = make(map[int]float64)
	}
	s.returns[runID][episode] = ret
	return nil
}

// GetReturns returns the episodic returns of a run ordered by episode
func (s *MemoryStore) GetReturns(_ context.Context,
	runID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	episodes := make([]int, 0, len(s.returns[runID]))
	for episode := range s.returns[runID] {
		episodes = append(episodes, episode)
	}
	sort.Ints(episodes)

	returns := make([]float64, len(episodes))
	for i, episode := range episodes {
		returns[i] = s.returns[runID][episode]
	}
	return returns, nil
}

// SaveOptimState stores a solver state checkpoint of a run, replacing
// any earlier checkpoint
func (s *MemoryStore) SaveOptimState(_ context.Context, runID string,
	step int, state dreamer.OptimState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRun(runID); err != nil {
		return err
	}
	s.optim[runID] = optimCheckpoint{step, dreamer.OptimState{
		Model: append([]byte(nil), state.Model...),
		Actor: append([]byte(nil), state.Actor...),
		Value: append([]byte(nil), state.Value...),
	}}
	return nil
}

// LatestOptimState returns the last solver state checkpoint of a run
// and the step at which it was taken
func (s *MemoryStore) LatestOptimState(_ context.Context,
	runID string) (int, dreamer.OptimState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checkpoint, ok := s.optim[runID]
	return checkpoint.step, checkpoint.state, ok, nil
}

// checkRun returns an error if runID does not name a stored run. The
// caller must hold the lock.
func (s *MemoryStore) checkRun(runID string) error {
	if !s.initialized {
		return errNotInitialized
	}
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}
