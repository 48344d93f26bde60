package dreamer

import (
	"math"
	"testing"

	ts "github.com/samuelfneumann/godreamer/timestep"
	"gonum.org/v1/gonum/mat"
)

func observation(v float64) *mat.VecDense {
	obs := make([]float64, testObsSize)
	for i := range obs {
		obs[i] = math.Mod(v*float64(i+1), 256)
	}
	return mat.NewVecDense(testObsSize, obs)
}

func newTestAgent(t *testing.T, cfg Config) *Agent {
	t.Helper()
	a, err := NewAgent(newTestDreamer(t, cfg, 12), 13)
	if err != nil {
		t.Fatalf("newagent: %v", err)
	}
	return a
}

func TestAgentTraining(t *testing.T) {
	cfg := testConfig()
	a := newTestAgent(t, cfg)

	step := ts.New(ts.First, 0, 1, observation(1), 0)
	if err := a.ObserveFirst(step); err != nil {
		t.Fatal(err)
	}

	trained := 0
	for i := 1; i <= cfg.Prefill; i++ {
		action := a.SelectAction(step)
		if action.Len() != testActionSize {
			t.Fatalf("selectaction: want(%d) dims, have(%d)", testActionSize,
				action.Len())
		}
		for j := 0; j < action.Len(); j++ {
			if v := action.AtVec(j); v < -1 || v > 1 {
				t.Errorf("selectaction: action %v outside [-1, 1]", v)
			}
		}

		step = ts.New(ts.Mid, float64(i%3), 1, observation(float64(i)), i)
		if err := a.Observe(action, step); err != nil {
			t.Fatal(err)
		}
		if err := a.Step(); err != nil {
			t.Fatal(err)
		}
		if a.Info().Len() > 0 {
			trained++
			if a.Steps() != cfg.Prefill {
				t.Errorf("step: trained at step %d, want %d", a.Steps(),
					cfg.Prefill)
			}
			if a.Info().Len() != cfg.TrainSteps {
				t.Errorf("step: want(%d) optimization steps, have(%d)",
					cfg.TrainSteps, a.Info().Len())
			}
		}
	}

	if trained != 1 {
		t.Errorf("step: want(1) training call, have(%d)", trained)
	}
	if a.Steps() != cfg.Prefill {
		t.Errorf("steps: want(%d), have(%d)", cfg.Prefill, a.Steps())
	}
}

func TestAgentEval(t *testing.T) {
	cfg := testConfig()
	a := newTestAgent(t, cfg)
	a.Eval()
	if !a.IsEval() {
		t.Fatalf("eval: agent not in evaluation mode")
	}

	first := ts.New(ts.First, 0, 1, observation(3), 0)
	var actions []*mat.VecDense
	for i := 0; i < 2; i++ {
		if err := a.ObserveFirst(first); err != nil {
			t.Fatal(err)
		}
		actions = append(actions, a.SelectAction(first))
	}
	if !mat.Equal(actions[0], actions[1]) {
		t.Errorf("eval: greedy actions from the same state differ: %v, %v",
			mat.Formatted(actions[0].T()), mat.Formatted(actions[1].T()))
	}

	// Evaluation steps are not stored
	next := ts.New(ts.Last, 1, 1, observation(4), 1)
	if err := a.Observe(actions[0], next); err != nil {
		t.Fatal(err)
	}
	if err := a.Step(); err != nil {
		t.Fatal(err)
	}
	if a.Steps() != 0 {
		t.Errorf("eval: observed %d training steps", a.Steps())
	}

	a.Train()
	if a.IsEval() {
		t.Errorf("train: agent still in evaluation mode")
	}
}

func TestAgentExplAmount(t *testing.T) {
	cfg := testConfig()
	cfg.ExplAmount = 0.3
	cfg.ExplDecay = 100
	cfg.ExplMin = 0.1
	a := newTestAgent(t, cfg)

	if got := a.ExplAmount(); got != 0.3 {
		t.Errorf("explamount: want(0.3), have(%v)", got)
	}
	a.itr = 10
	if got := a.ExplAmount(); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("explamount: want(0.2), have(%v)", got)
	}
	a.itr = 50
	if got := a.ExplAmount(); got != 0.1 {
		t.Errorf("explamount: want(0.1), have(%v)", got)
	}
}

func TestAgentObserveErrors(t *testing.T) {
	a := newTestAgent(t, testConfig())

	step := ts.New(ts.Mid, 0, 1, observation(1), 1)
	action := mat.NewVecDense(testActionSize, nil)
	if err := a.Observe(action, step); err == nil {
		t.Errorf("observe: expected error before ObserveFirst")
	}

	if err := a.ObserveFirst(ts.New(ts.First, 0, 1, observation(2), 0)); err != nil {
		t.Fatal(err)
	}
	if err := a.Observe(mat.NewVecDense(3, nil), step); err == nil {
		t.Errorf("observe: expected error for wrong action size")
	}
	if err := a.ObserveFirst(ts.New(ts.First, 0, 1, mat.NewVecDense(3, nil),
		0)); err == nil {
		t.Errorf("observefirst: expected error for wrong observation size")
	}
}
