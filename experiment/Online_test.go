package experiment

import (
	"testing"

	env "github.com/samuelfneumann/godreamer/environment"
	"github.com/samuelfneumann/godreamer/experiment/checkpointer"
	"github.com/samuelfneumann/godreamer/experiment/tracker"
	"github.com/samuelfneumann/godreamer/experiment/trackers"
	ts "github.com/samuelfneumann/godreamer/timestep"
	"gonum.org/v1/gonum/mat"
)

// countdown is an environment whose reward is the number of the step
// and whose episodes end after limit steps
type countdown struct {
	steps int
	limit int
}

func (c *countdown) Reset() (ts.TimeStep, error) {
	c.steps = 0
	return ts.New(ts.First, 0, 1, mat.NewVecDense(1, nil), 0), nil
}

func (c *countdown) Step(*mat.VecDense) (ts.TimeStep, bool, error) {
	c.steps++
	obs := mat.NewVecDense(1, []float64{float64(c.steps)})
	step := ts.New(ts.Mid, float64(c.steps), 1, obs, c.steps)
	if c.steps >= c.limit {
		step.StepType = ts.Last
	}
	return step, step.Last(), nil
}

func (c *countdown) RewardSpec() env.Spec {
	return env.Bounded(env.Reward, 1, 0, 100, env.Continuous)
}

func (c *countdown) DiscountSpec() env.Spec {
	return env.Bounded(env.Discount, 1, 1, 1, env.Continuous)
}

func (c *countdown) ObservationSpec() env.Spec {
	return env.Bounded(env.Observation, 1, 0, 100, env.Continuous)
}

func (c *countdown) ActionSpec() env.Spec {
	return env.Bounded(env.Action, 1, -1, 1, env.Continuous)
}

// recorder is an agent which counts the calls made to it
type recorder struct {
	eval bool

	first, observed, steps, ends int
	evalObserved                 int
}

func (r *recorder) SelectAction(ts.TimeStep) *mat.VecDense {
	return mat.NewVecDense(1, nil)
}

func (r *recorder) Eval()        { r.eval = true }
func (r *recorder) Train()       { r.eval = false }
func (r *recorder) IsEval() bool { return r.eval }

func (r *recorder) ObserveFirst(ts.TimeStep) error {
	r.first++
	return nil
}

func (r *recorder) Observe(mat.Vector, ts.TimeStep) error {
	if r.eval {
		r.evalObserved++
	} else {
		r.observed++
	}
	return nil
}

func (r *recorder) Step() error {
	r.steps++
	return nil
}

func (r *recorder) EndEpisode() { r.ends++ }

// calls counts the timesteps it is asked to checkpoint
type calls struct {
	n int
}

func (c *calls) Checkpoint(ts.TimeStep) error {
	c.n++
	return nil
}

func TestOnlineRun(t *testing.T) {
	a := &recorder{}
	returns := trackers.NewReturn("")
	c := &calls{}
	exp := NewOnline(&countdown{limit: 3}, a, 7,
		[]tracker.Tracker{returns}, []checkpointer.Checkpointer{c})

	if err := exp.Run(); err != nil {
		t.Fatal(err)
	}

	if exp.Steps() != 7 {
		t.Errorf("steps: want(7), have(%d)", exp.Steps())
	}
	if a.first != 3 || a.ends != 3 {
		t.Errorf("episodes: want(3) ObserveFirst and EndEpisode calls, "+
			"have(%d, %d)", a.first, a.ends)
	}
	if a.observed != 7 || a.steps != 7 {
		t.Errorf("agent: want(7) Observe and Step calls, have(%d, %d)",
			a.observed, a.steps)
	}
	if c.n != 7 {
		t.Errorf("checkpoint: want(7) calls, have(%d)", c.n)
	}

	// The last episode is cut off by the step limit
	got := returns.Returns()
	if len(got) != 2 || got[0] != 6 || got[1] != 6 {
		t.Errorf("returns: want([6 6]), have(%v)", got)
	}
}

func TestOnlineEvaluate(t *testing.T) {
	a := &recorder{}
	exp := NewOnline(&countdown{limit: 3}, a, 10, nil, nil)

	returns, err := exp.Evaluate(&countdown{limit: 4}, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i, ret := range returns {
		if ret != 1+2+3+4 {
			t.Errorf("episode %d: return want(10), have(%v)", i, ret)
		}
	}
	if a.IsEval() {
		t.Errorf("evaluate: agent left in evaluation mode")
	}
	if a.evalObserved != 8 || a.observed != 0 {
		t.Errorf("evaluate: want(8) observations in evaluation mode and "+
			"(0) in training mode, have(%d, %d)", a.evalObserved, a.observed)
	}
	if a.steps != 0 || exp.Steps() != 0 {
		t.Errorf("evaluate: agent stepped or steps counted")
	}

	// Evaluation stops at the step limit
	returns, err = exp.Evaluate(&countdown{limit: 4}, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if returns[0] != 1+2 {
		t.Errorf("truncated episode: return want(3), have(%v)", returns[0])
	}
}
