// Package pointmass implements a point mass which must be pushed to a
// goal in a walled, two-dimensional arena. The agent observes only
// rendered grayscale frames of the arena.
package pointmass

import (
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/samuelfneumann/godreamer/environment"
	"github.com/samuelfneumann/godreamer/timestep"
	"github.com/samuelfneumann/godreamer/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Physical constants
const (
	PositionBound float64 = 1.0 // +/- Position bounds
	SpeedBound    float64 = 0.5 // +/- Speed bounds
	ForceBound    float64 = 1.0 // +/- Action bounds

	ActionDims int = 2
	StateDims  int = 4 // x, y, x velocity, y velocity

	dt   float64 = 0.1
	Mass float64 = 0.5

	agentRadius float64 = 0.15
	goalRadius  float64 = 0.2
)

// PointMass implements a point mass environment. The underlying state
// is the position and velocity of the point mass. Actions are the
// two-dimensional force applied to the point mass and are clipped to
// [-ForceBound, ForceBound]. The point mass stops at the walls of the
// arena [-PositionBound, PositionBound]^2.
//
// Observations are size x size grayscale frames flattened in row-major
// order with pixel intensities in [0, 255]. The point mass is drawn in
// white and the goal of the task, if it has one, in gray.
//
// PointMass implements the environment.Environment interface
type PointMass struct {
	environment.Task
	state    *mat.VecDense
	lastStep timestep.TimeStep
	discount float64
	size     int

	positionBounds r1.Interval
	speedBounds    r1.Interval
	forceBounds    r1.Interval
}

// New creates and returns a new PointMass environment rendering frames
// of size x size pixels
func New(t environment.Task, discount float64, size int) (*PointMass,
	timestep.TimeStep, error) {
	if size <= 0 {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: frame size must "+
			"be positive, have %d", size)
	}
	p := &PointMass{
		Task:           t,
		discount:       discount,
		size:           size,
		positionBounds: r1.Interval{Min: -PositionBound, Max: PositionBound},
		speedBounds:    r1.Interval{Min: -SpeedBound, Max: SpeedBound},
		forceBounds:    r1.Interval{Min: -ForceBound, Max: ForceBound},
	}

	step, err := p.Reset()
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return p, step, nil
}

// Reset resets the environment and returns a starting state drawn from
// the Starter
func (p *PointMass) Reset() (timestep.TimeStep, error) {
	start := p.Start()
	if start.Len() != StateDims {
		return timestep.TimeStep{}, fmt.Errorf("reset: starting state must "+
			"have %d features, have %d", StateDims, start.Len())
	}
	state := mat.VecDenseCopyOf(start)
	for i := 0; i < 2; i++ {
		state.SetVec(i, floatutils.ClipInterval(state.AtVec(i), p.positionBounds))
		state.SetVec(i+2, floatutils.ClipInterval(state.AtVec(i+2), p.speedBounds))
	}
	p.state = state

	p.lastStep = timestep.New(timestep.First, 0, p.discount, p.Render(), 0)
	return p.lastStep, nil
}

// Step takes one environmental step given action and returns the next
// timestep and whether or not the episode has ended
func (p *PointMass) Step(action *mat.VecDense) (timestep.TimeStep, bool,
	error) {
	if action.Len() != ActionDims {
		return timestep.TimeStep{}, false, fmt.Errorf("step: actions "+
			"should be %d-dimensional, have %d", ActionDims, action.Len())
	}

	next := p.nextState(action)
	reward := p.GetReward(p.state, action, next)
	p.state = next

	step := timestep.New(timestep.Mid, reward, p.discount, p.Render(),
		p.lastStep.Number+1)
	if p.AtGoal(next) {
		step.StepType = timestep.Last
	}
	p.End(&step)

	p.lastStep = step
	return step, step.Last(), nil
}

// nextState computes the state reached by applying a force to the
// point mass
func (p *PointMass) nextState(action mat.Vector) *mat.VecDense {
	next := mat.NewVecDense(StateDims, nil)
	for i := 0; i < 2; i++ {
		force := floatutils.ClipInterval(action.AtVec(i), p.forceBounds)
		speed := floatutils.ClipInterval(p.state.AtVec(i+2)+force/Mass*dt, p.speedBounds)
		position := p.state.AtVec(i) + speed*dt

		// The point mass stops at the walls
		if position < p.positionBounds.Min || position > p.positionBounds.Max {
			position = floatutils.ClipInterval(position, p.positionBounds)
			speed = 0
		}
		next.SetVec(i, position)
		next.SetVec(i+2, speed)
	}
	return next
}

// State returns a copy of the underlying state of the environment
func (p *PointMass) State() *mat.VecDense {
	return mat.VecDenseCopyOf(p.state)
}

// LastTimeStep returns the last TimeStep that occurred in the
// environment
func (p *PointMass) LastTimeStep() timestep.TimeStep {
	return p.lastStep
}

// Render draws the current state of the environment and returns it as
// a flattened grayscale frame
func (p *PointMass) Render() *mat.VecDense {
	dc := gg.NewContext(p.size, p.size)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	scale := float64(p.size) / (p.positionBounds.Max - p.positionBounds.Min)
	toPixel := func(x, y float64) (float64, float64) {
		return (x - p.positionBounds.Min) * scale,
			(p.positionBounds.Max - y) * scale
	}

	if goal, ok := p.Task.(interface{ Goal() (float64, float64) }); ok {
		x, y := toPixel(goal.Goal())
		dc.DrawCircle(x, y, math.Max(goalRadius*scale, 0.5))
		dc.SetRGB(0.5, 0.5, 0.5)
		dc.Fill()
	}

	x, y := toPixel(p.state.AtVec(0), p.state.AtVec(1))
	dc.DrawCircle(x, y, math.Max(agentRadius*scale, 0.5))
	dc.SetRGB(1, 1, 1)
	dc.Fill()

	img := dc.Image()
	frame := make([]float64, p.size*p.size)
	for row := 0; row < p.size; row++ {
		for col := 0; col < p.size; col++ {
			gray := color.GrayModel.Convert(img.At(col, row)).(color.Gray)
			frame[row*p.size+col] = float64(gray.Y)
		}
	}
	return mat.NewVecDense(len(frame), frame)
}

// RewardSpec returns the reward specification of the environment
func (p *PointMass) RewardSpec() environment.Spec {
	return environment.RewardSpec(p.Task)
}

// DiscountSpec returns the discount specification of the environment
func (p *PointMass) DiscountSpec() environment.Spec {
	return environment.Bounded(environment.Discount, 1, p.discount,
		p.discount, environment.Continuous)
}

// ObservationSpec returns the observation specification of the
// environment
func (p *PointMass) ObservationSpec() environment.Spec {
	return environment.Bounded(environment.Observation, p.size*p.size, 0,
		255, environment.Discrete)
}

// ActionSpec returns the action specification of the environment
func (p *PointMass) ActionSpec() environment.Spec {
	return environment.Bounded(environment.Action, ActionDims,
		p.forceBounds.Min, p.forceBounds.Max, environment.Continuous)
}

// String converts the environment to a string representation
func (p *PointMass) String() string {
	str := "PointMass  |  position: %v  |  velocity: %v\n"
	position := p.state.RawVector().Data[:2]
	velocity := p.state.RawVector().Data[2:]

	return fmt.Sprintf(str, position, velocity)
}
