// Package wrappers provides environment wrappers which change the way
// agents interact with an environment
package wrappers

import (
	"fmt"

	env "github.com/samuelfneumann/godreamer/environment"
	ts "github.com/samuelfneumann/godreamer/timestep"
	"gonum.org/v1/gonum/mat"
)

// ActionRepeat repeats each action of the agent for a fixed number of
// environmental steps. The returned TimeStep holds the last observation
// and the sum of the rewards seen while repeating the action. Repeating
// stops early if the episode ends.
//
// TimeSteps returned by ActionRepeat are numbered by agent steps, not
// environmental steps.
type ActionRepeat struct {
	env.Environment
	repeats int

	currentTimeStep ts.TimeStep
}

// NewActionRepeat returns a new ActionRepeat environment wrapper
func NewActionRepeat(e env.Environment, repeats int) (*ActionRepeat, error) {
	if repeats <= 0 {
		return nil, fmt.Errorf("newActionRepeat: repeats must be positive, "+
			"have %d", repeats)
	}
	return &ActionRepeat{
		Environment: e,
		repeats:     repeats,
	}, nil
}

// Reset resets the environment to some starting state
func (a *ActionRepeat) Reset() (ts.TimeStep, error) {
	step, err := a.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}
	a.currentTimeStep = step
	return step, nil
}

// Step takes repeats environmental steps with action
func (a *ActionRepeat) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	var step ts.TimeStep
	var last bool
	var err error

	reward := 0.0
	for i := 0; i < a.repeats; i++ {
		step, last, err = a.Environment.Step(action)
		if err != nil {
			return ts.TimeStep{}, true, err
		}
		reward += step.Reward
		if last {
			break
		}
	}

	step.Reward = reward
	step.Number = a.currentTimeStep.Number + 1
	a.currentTimeStep = step

	return step, last, nil
}

// Repeats returns the number of times each action is repeated
func (a *ActionRepeat) Repeats() int {
	return a.repeats
}
