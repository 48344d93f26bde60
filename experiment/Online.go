package experiment

import (
	"fmt"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godreamer/agent"
	env "github.com/samuelfneumann/godreamer/environment"
	"github.com/samuelfneumann/godreamer/experiment/checkpointer"
	"github.com/samuelfneumann/godreamer/experiment/tracker"
	ts "github.com/samuelfneumann/godreamer/timestep"
)

// Online is an Experiment that runs an agent online. Each timestep is
// sent to the trackers and checkpointers after the agent has observed
// it and updated.
type Online struct {
	env.Environment
	agent.Agent
	maxSteps      uint
	currentSteps  uint
	episodes      int
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for.
func NewOnline(e env.Environment, a agent.Agent, steps uint,
	t []tracker.Tracker, c []checkpointer.Checkpointer) *Online {
	return &Online{
		Environment:   e,
		Agent:         a,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
	}
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment and returns
// whether or not the step limit of the experiment has been reached
func (o *Online) RunEpisode() (bool, error) {
	step, err := o.Environment.Reset()
	if err != nil {
		return true, fmt.Errorf("runEpisode: could not reset environment: %v",
			err)
	}
	if err := o.Agent.ObserveFirst(step); err != nil {
		return true, fmt.Errorf("runEpisode: %v", err)
	}
	if err := o.track(step); err != nil {
		return true, err
	}

	ret := 0.0
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		// Select action, step in environment
		action := o.Agent.SelectAction(step)
		step, _, err = o.Environment.Step(action)
		if err != nil {
			return true, fmt.Errorf("runEpisode: could not step "+
				"environment: %v", err)
		}
		ret += step.Reward

		// Observe the timestep and step the agent
		if err := o.Agent.Observe(action, step); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.Agent.Step(); err != nil {
			return true, fmt.Errorf("runEpisode: %w", err)
		}

		if err := o.track(step); err != nil {
			return true, err
		}
		if err := o.checkpoint(step); err != nil {
			return true, err
		}
	}
	o.Agent.EndEpisode()

	if step.Last() {
		o.episodes++
		log.Successf("episode %d: return %.3f  steps %d  total steps %d",
			o.episodes, ret, step.Number, o.currentSteps)
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	for ended := false; !ended; {
		var err error
		if ended, err = o.RunEpisode(); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	return nil
}

// Evaluate runs episodes episodes on e with the agent in evaluation
// mode and returns their returns. The agent is returned to its previous
// mode afterwards. Evaluation steps do not count towards the step
// limit of the experiment and are not tracked.
func (o *Online) Evaluate(e env.Environment, episodes,
	maxSteps int) ([]float64, error) {
	if !o.Agent.IsEval() {
		o.Agent.Eval()
		defer o.Agent.Train()
	}

	returns := make([]float64, episodes)
	for i := range returns {
		step, err := e.Reset()
		if err != nil {
			return nil, fmt.Errorf("evaluate: could not reset environment: %v",
				err)
		}
		if err := o.Agent.ObserveFirst(step); err != nil {
			return nil, fmt.Errorf("evaluate: %v", err)
		}

		for n := 0; !step.Last() && n < maxSteps; n++ {
			action := o.Agent.SelectAction(step)
			if step, _, err = e.Step(action); err != nil {
				return nil, fmt.Errorf("evaluate: could not step "+
					"environment: %v", err)
			}
			if err := o.Agent.Observe(action, step); err != nil {
				return nil, fmt.Errorf("evaluate: %v", err)
			}
			returns[i] += step.Reward
		}
		o.Agent.EndEpisode()
	}
	return returns, nil
}

// Steps returns the number of steps taken so far
func (o *Online) Steps() uint {
	return o.currentSteps
}

// Save saves all the data cached by the Trackers
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// track sends the current timestep to each tracker
func (o *Online) track(t ts.TimeStep) error {
	for _, tr := range o.trackers {
		if err := tr.Track(t); err != nil {
			return fmt.Errorf("track: %v", err)
		}
	}
	return nil
}

// checkpoint sends the current timestep to each checkpointer
func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return fmt.Errorf("checkpoint: %v", err)
		}
	}
	return nil
}
