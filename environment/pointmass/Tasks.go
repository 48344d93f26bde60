package pointmass

import (
	"math"

	"github.com/samuelfneumann/godreamer/environment"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Reach implements a task where the agent must push the point mass to
// a goal position. Rewards are the negative distance from the point
// mass to the goal. Episodes end when the point mass reaches the goal
// or after a maximum number of steps.
type Reach struct {
	environment.Starter
	environment.Ender
	goalX, goalY float64
}

// NewReach creates and returns a new Reach task with its goal at
// (goalX, goalY)
func NewReach(s environment.Starter, goalX, goalY float64,
	maxSteps int) *Reach {
	ender := environment.NewStepLimit(maxSteps)
	return &Reach{s, ender, goalX, goalY}
}

// NewUniformStarter returns a starter which places the point mass at
// rest uniformly in the arena
func NewUniformStarter(seed uint64) environment.Starter {
	bounds := []r1.Interval{
		{Min: -PositionBound, Max: PositionBound},
		{Min: -PositionBound, Max: PositionBound},
		{Min: 0, Max: 0},
		{Min: 0, Max: 0},
	}
	return environment.NewUniformStarter(bounds, seed)
}

// Goal returns the position of the goal
func (r *Reach) Goal() (float64, float64) {
	return r.goalX, r.goalY
}

// GetReward returns the reward for transitioning to nextState
func (r *Reach) GetReward(_, _, nextState mat.Vector) float64 {
	return -r.distance(nextState)
}

// AtGoal determines whether or not the point mass is at the goal
func (r *Reach) AtGoal(state mat.Vector) bool {
	return r.distance(state) <= goalRadius
}

// Min returns the minimum possible reward
func (r *Reach) Min() float64 {
	return -2 * math.Sqrt2 * PositionBound
}

// Max returns the maximum possible reward
func (r *Reach) Max() float64 {
	return 0.0
}

func (r *Reach) distance(state mat.Vector) float64 {
	return math.Hypot(state.AtVec(0)-r.goalX, state.AtVec(1)-r.goalY)
}
