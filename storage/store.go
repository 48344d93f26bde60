// Package storage persists the records of training runs: the runs
// themselves, per-step training diagnostics, episodic returns, and
// solver state checkpoints.
package storage

import (
	"context"
	"time"

	"github.com/samuelfneumann/godreamer/dreamer"
)

// Run describes a single training run
type Run struct {
	ID      string
	Name    string
	Seed    uint64
	Config  []byte // JSON encoded trainer configuration
	Created time.Time
}

// DiagnosticsRecord holds the diagnostics of one optimization step.
// Step is the environment step at which training was triggered and
// Index is the position of the optimization step within that call.
type DiagnosticsRecord struct {
	Step  int
	Index int
	dreamer.Diagnostics
}

// Store defines persistence operations for training runs
type Store interface {
	Init(ctx context.Context) error
	CreateRun(ctx context.Context, name string, seed uint64,
		config []byte) (Run, error)
	GetRun(ctx context.Context, id string) (Run, bool, error)
	AppendDiagnostics(ctx context.Context, runID string,
		records []DiagnosticsRecord) error
	GetDiagnostics(ctx context.Context, runID string) ([]DiagnosticsRecord,
		error)
	AppendReturn(ctx context.Context, runID string, episode int,
		ret float64) error
	GetReturns(ctx context.Context, runID string) ([]float64, error)
	SaveOptimState(ctx context.Context, runID string, step int,
		state dreamer.OptimState) error
	LatestOptimState(ctx context.Context, runID string) (int,
		dreamer.OptimState, bool, error)
}
