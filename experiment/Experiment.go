// Package experiment implements functionality for running an experiment
package experiment

import (
	"github.com/samuelfneumann/godreamer/experiment/tracker"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments send each environment TimeStep to Trackers, which decide
// what data to keep, and save that data when Save is called. The Run()
// method runs all episodes until the maximum timestep limit is reached.
// The RunEpisode() method runs a single episode.
type Experiment interface {
	Run() error

	// RunEpisode returns whether or not the step limit was reached
	RunEpisode() (bool, error)

	// Save all tracked data
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running) experiment.
	// Useful if you want to track data only after a specified event.
	Register(t tracker.Tracker)
}
