package pointmass

import (
	"math"
	"testing"

	"github.com/samuelfneumann/godreamer/environment"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// fixedStarter starts the point mass at rest at a fixed position
func fixedStarter(x, y float64) environment.Starter {
	bounds := []r1.Interval{{Min: x, Max: x}, {Min: y, Max: y}, {}, {}}
	return environment.NewUniformStarter(bounds, 0)
}

func TestRender(t *testing.T) {
	const size = 16
	task := NewReach(fixedStarter(-0.5, 0.5), 0.5, -0.5, 10)
	env, step, err := New(task, 0.99, size)
	if err != nil {
		t.Fatal(err)
	}

	if !step.First() {
		t.Errorf("reset: first step should be of type First")
	}
	if step.Observation.Len() != size*size {
		t.Fatalf("render: want(%d) pixels, have(%d)", size*size,
			step.Observation.Len())
	}

	// Point mass in the top left quadrant, goal in the bottom right
	pixel := func(row, col int) float64 {
		return step.Observation.AtVec(row*size + col)
	}
	if v := pixel(4, 4); v < 200 {
		t.Errorf("render: point mass pixel want(>200), have(%v)", v)
	}
	if v := pixel(12, 12); v < 100 || v > 150 {
		t.Errorf("render: goal pixel want(~128), have(%v)", v)
	}
	if pixel(0, 15) != 0 {
		t.Errorf("render: background pixel want(0), have(%v)", pixel(0, 15))
	}

	if spec := env.ObservationSpec(); spec.Len() != size*size {
		t.Errorf("observation spec: want(%d), have(%d)", size*size,
			spec.Len())
	}
}

func TestStep(t *testing.T) {
	task := NewReach(fixedStarter(0, 0), 0.9, 0, 100)
	env, _, err := New(task, 0.99, 8)
	if err != nil {
		t.Fatal(err)
	}

	// Push to the right until the goal is reached
	push := mat.NewVecDense(ActionDims, []float64{5, 0})
	prevDist := 0.9
	for i := 1; ; i++ {
		step, last, err := env.Step(push)
		if err != nil {
			t.Fatal(err)
		}
		if step.Number != i {
			t.Errorf("step: want number %d, have %d", i, step.Number)
		}

		state := env.State()
		if v := state.AtVec(2); v > SpeedBound {
			t.Errorf("step: speed %v exceeds bound", v)
		}
		dist := math.Abs(0.9 - state.AtVec(0))
		if math.Abs(step.Reward+dist) > 1e-12 {
			t.Errorf("step: reward want(%v), have(%v)", -dist, step.Reward)
		}
		if dist > prevDist {
			t.Errorf("step: moved away from the goal")
		}
		prevDist = dist

		if last {
			if !task.AtGoal(state) {
				t.Errorf("step: episode ended away from the goal")
			}
			break
		}
		if i > 50 {
			t.Fatalf("step: goal never reached")
		}
	}
}

func TestStepLimitAndWalls(t *testing.T) {
	task := NewReach(fixedStarter(0.95, 0), -0.9, 0, 5)
	env, _, err := New(task, 0.99, 8)
	if err != nil {
		t.Fatal(err)
	}

	push := mat.NewVecDense(ActionDims, []float64{1, 0})
	var last bool
	for i := 0; i < 5; i++ {
		if _, last, err = env.Step(push); err != nil {
			t.Fatal(err)
		}
		if x := env.State().AtVec(0); x > PositionBound {
			t.Errorf("step: position %v outside the arena", x)
		}
	}
	if !last {
		t.Errorf("step: episode should end at the step limit")
	}

	if _, _, err := env.Step(mat.NewVecDense(3, nil)); err == nil {
		t.Errorf("step: expected error for invalid action size")
	}
}
