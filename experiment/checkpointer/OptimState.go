package checkpointer

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/godreamer/dreamer"
	"github.com/samuelfneumann/godreamer/storage"
	ts "github.com/samuelfneumann/godreamer/timestep"
)

// OptimStater is a trainer whose solver state can be checkpointed
type OptimStater interface {
	OptimStateDict() (dreamer.OptimState, error)
}

// optimState checkpoints the solver state of a trainer to a store every
// N steps
type optimState struct {
	ctx      context.Context
	interval int
	steps    int
	trainer  OptimStater
	store    storage.Store
	runID    string
}

// NewOptimState returns a checkpointer that writes the solver state of
// trainer to the run runID of store every n steps
func NewOptimState(ctx context.Context, n int, trainer OptimStater,
	store storage.Store, runID string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newOptimState: interval must be positive, "+
			"have %d", n)
	}
	return &optimState{
		ctx:      ctx,
		interval: n,
		trainer:  trainer,
		store:    store,
		runID:    runID,
	}, nil
}

// Checkpoint writes the trainer's solver state to the store if a
// multiple of n steps have passed
func (o *optimState) Checkpoint(ts.TimeStep) error {
	o.steps++
	if o.steps%o.interval != 0 {
		return nil
	}

	state, err := o.trainer.OptimStateDict()
	if err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	if err := o.store.SaveOptimState(o.ctx, o.runID, o.steps, state); err != nil {
		return fmt.Errorf("checkpoint: could not store solver state: %v", err)
	}
	return nil
}

// Restore loads the latest solver state checkpoint of run runID from
// store, returning the step it was taken at and whether a checkpoint
// existed
func Restore(ctx context.Context, store storage.Store,
	runID string) (int, *dreamer.OptimState, error) {
	step, state, ok, err := store.LatestOptimState(ctx, runID)
	if err != nil {
		return 0, nil, fmt.Errorf("restore: %v", err)
	}
	if !ok {
		return 0, nil, nil
	}
	return step, &state, nil
}
