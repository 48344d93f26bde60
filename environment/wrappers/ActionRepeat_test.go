package wrappers

import (
	"testing"

	env "github.com/samuelfneumann/godreamer/environment"
	ts "github.com/samuelfneumann/godreamer/timestep"
	"gonum.org/v1/gonum/mat"
)

// counter is an environment whose reward is the number of the step
// and whose episodes end after a fixed number of steps
type counter struct {
	steps int
	limit int
}

func (c *counter) Reset() (ts.TimeStep, error) {
	c.steps = 0
	return ts.New(ts.First, 0, 1, mat.NewVecDense(1, nil), 0), nil
}

func (c *counter) Step(*mat.VecDense) (ts.TimeStep, bool, error) {
	c.steps++
	obs := mat.NewVecDense(1, []float64{float64(c.steps)})
	step := ts.New(ts.Mid, float64(c.steps), 1, obs, c.steps)
	if c.steps >= c.limit {
		step.StepType = ts.Last
	}
	return step, step.Last(), nil
}

func (c *counter) RewardSpec() env.Spec {
	return env.Bounded(env.Reward, 1, 0, 100, env.Continuous)
}

func (c *counter) DiscountSpec() env.Spec {
	return env.Bounded(env.Discount, 1, 1, 1, env.Continuous)
}

func (c *counter) ObservationSpec() env.Spec {
	return env.Bounded(env.Observation, 1, 0, 100, env.Continuous)
}

func (c *counter) ActionSpec() env.Spec {
	return env.Bounded(env.Action, 1, -1, 1, env.Continuous)
}

func TestActionRepeat(t *testing.T) {
	wrapped, err := NewActionRepeat(&counter{limit: 5}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrapped.Reset(); err != nil {
		t.Fatal(err)
	}

	action := mat.NewVecDense(1, nil)
	tests := []struct {
		reward float64
		obs    float64
		number int
		last   bool
	}{
		{1 + 2, 2, 1, false},
		{3 + 4, 4, 2, false},
		{5, 5, 3, true}, // The episode ends before the action is repeated
	}

	for i, test := range tests {
		step, last, err := wrapped.Step(action)
		if err != nil {
			t.Fatal(err)
		}
		if step.Reward != test.reward {
			t.Errorf("step %d: reward want(%v), have(%v)", i, test.reward,
				step.Reward)
		}
		if o := step.Observation.AtVec(0); o != test.obs {
			t.Errorf("step %d: observation want(%v), have(%v)", i, test.obs, o)
		}
		if step.Number != test.number {
			t.Errorf("step %d: number want(%v), have(%v)", i, test.number,
				step.Number)
		}
		if last != test.last {
			t.Errorf("step %d: last want(%v), have(%v)", i, test.last, last)
		}
	}
}

func TestNewActionRepeatError(t *testing.T) {
	if _, err := NewActionRepeat(&counter{}, 0); err == nil {
		t.Errorf("newActionRepeat: expected error for zero repeats")
	}
}
