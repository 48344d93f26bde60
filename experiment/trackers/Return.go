// Package trackers implements Trackers of agent performance and
// training progress
package trackers

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/godreamer/experiment/tracker"
	"github.com/samuelfneumann/godreamer/storage"
	ts "github.com/samuelfneumann/godreamer/timestep"
)

// Return tracks and saves the episodic return in an experiment. When
// an environment returns a TimeStep, this Tracker will extract the
// reward and accumulate the return for each episode in the experiment.
// Returns are saved to a file when Save is called and, if the Tracker
// has a store, written to the store as each episode ends.
//
// Note: If an environment is wrapped by some environment wrapper
// which modifies rewards, then this Tracker tracks the modified rewards
// returned by the wrapped environment.
//
// Note: An episode must finish for this Tracker to save its data.
// If the last episode in an experiment does not finish, that episode's
// return will not be saved.
type Return struct {
	lastTimeStep   int
	currentReturn  float64
	episodeReturns []float64
	filename       string

	ctx   context.Context
	store storage.Store
	runID string
}

// NewReturn creates and returns a new *Return Tracker saving to
// filename. If filename is empty, Save is a no-op.
func NewReturn(filename string) *Return {
	return &Return{
		lastTimeStep: -1,
		filename:     filename,
	}
}

// NewStoredReturn creates and returns a new *Return Tracker which also
// writes each episodic return to the run runID of store
func NewStoredReturn(ctx context.Context, filename string, store storage.Store,
	runID string) *Return {
	r := NewReturn(filename)
	r.ctx, r.store, r.runID = ctx, store, runID
	return r
}

// Track tracks the rewards seen on a timestep. By calling this method
// on every timestep, the Tracker will store all rewards seen in the
// episode, and save the cumulative reward for that episode as the
// episodic return. When a new episode starts, this method will
// automatically detect this and start accumulating the rewards for this
// new episode separately from the rewards seen on previous episodes.
//
// Track returns an error if it is called for non-sequential timesteps
func (r *Return) Track(step ts.TimeStep) error {
	// Ensure that Track is called on sequential timesteps
	if r.lastTimeStep+1 != step.Number {
		return fmt.Errorf("track: last two timesteps tracked are not "+
			"sequential: timestep %v --> timestep %v were tracked",
			r.lastTimeStep, step.Number)
	}

	r.currentReturn += step.Reward
	if !step.Last() {
		r.lastTimeStep = step.Number
		return nil
	}

	// Episode has ended, save the return and begin tracking the
	// return for a new episode
	ret := r.currentReturn
	r.episodeReturns = append(r.episodeReturns, ret)
	r.currentReturn = 0.0
	r.lastTimeStep = -1

	if r.store != nil {
		episode := len(r.episodeReturns) - 1
		if err := r.store.AppendReturn(r.ctx, r.runID, episode, ret); err != nil {
			return fmt.Errorf("track: could not store return: %v", err)
		}
	}
	return nil
}

// Returns returns the returns of all finished episodes
func (r *Return) Returns() []float64 {
	return append([]float64(nil), r.episodeReturns...)
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	if r.filename == "" {
		return nil
	}
	return tracker.SaveData(r.filename, r.episodeReturns)
}
