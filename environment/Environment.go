// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"github.com/samuelfneumann/godreamer/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Ender determines when episodes end. If an episode should end, End
// sets the StepType of the timestep to timestep.Last and returns true.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some
// environment. Rewards and goals are functions of the underlying state
// of the environment, which may differ from what the agent observes.
type Task interface {
	Starter
	Ender
	GetReward(state, action, nextState mat.Vector) float64
	AtGoal(state mat.Vector) bool
	Min() float64 // Minimum possible reward
	Max() float64 // Maximum possible reward
}

// Environment implements a simulated environment, which includes a
// Task to complete
type Environment interface {
	Reset() (timestep.TimeStep, error)
	Step(action *mat.VecDense) (timestep.TimeStep, bool, error)
	RewardSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}

// RewardSpec returns the reward specification of a Task
func RewardSpec(t Task) Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{t.Min()})
	upperBound := mat.NewVecDense(1, []float64{t.Max()})

	return NewSpec(shape, Reward, lowerBound, upperBound, Continuous)
}
