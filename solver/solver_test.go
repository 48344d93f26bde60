package solver

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// quadratic is the cost Σ (w - target)² over a single learnable vector
type quadratic struct {
	w  *G.Node
	vm G.VM
}

func newQuadratic(t *testing.T, init, target []float64) *quadratic {
	g := G.NewGraph()
	w := G.NewMatrix(g, tensor.Float64, G.WithShape(1, len(init)),
		G.WithName("w"),
		G.WithValue(tensor.New(tensor.WithShape(1, len(init)),
			tensor.WithBacking(append([]float64{}, init...)))))
	targetNode := G.NewMatrix(g, tensor.Float64, G.WithShape(1, len(init)),
		G.WithName("target"),
		G.WithValue(tensor.New(tensor.WithShape(1, len(init)),
			tensor.WithBacking(append([]float64{}, target...)))))

	cost := G.Must(G.Sum(G.Must(G.Square(G.Must(G.Sub(w, targetNode))))))
	if _, err := G.Grad(cost, w); err != nil {
		t.Fatal(err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(w))
	t.Cleanup(func() { vm.Close() })
	return &quadratic{w: w, vm: vm}
}

func (q *quadratic) step(t *testing.T, s G.Solver) {
	if err := q.vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	if err := s.Step([]G.ValueGrad{q.w}); err != nil {
		t.Fatal(err)
	}
	q.vm.Reset()
}

func (q *quadratic) weights() []float64 {
	return append([]float64{}, q.w.Value().Data().([]float64)...)
}

func TestAdamConverges(t *testing.T) {
	target := []float64{3, -1}
	q := newQuadratic(t, []float64{0, 0}, target)

	s, err := NewDefaultAdam(0.1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500; i++ {
		q.step(t, s)
	}

	if !floats.EqualApprox(q.weights(), target, 1e-2) {
		t.Errorf("want(%v) have(%v)", target, q.weights())
	}
}

func TestAdamStateResume(t *testing.T) {
	init, target := []float64{1, 2, 3}, []float64{0, 0, 0}

	// Uninterrupted run
	full := newQuadratic(t, init, target)
	fullSolver, _ := NewDefaultAdam(0.05, 1)
	for i := 0; i < 20; i++ {
		full.step(t, fullSolver)
	}

	// Run interrupted after 10 steps and resumed with a new solver
	part := newQuadratic(t, init, target)
	first, _ := NewDefaultAdam(0.05, 1)
	for i := 0; i < 10; i++ {
		part.step(t, first)
	}
	state, err := first.State()
	if err != nil {
		t.Fatal(err)
	}

	second, _ := NewDefaultAdam(0.05, 1)
	if err := second.LoadState(state); err != nil {
		t.Fatal(err)
	}
	if iter := second.Solver.(*AdamSolver).Iterations(); iter != 10 {
		t.Errorf("iterations: want(10) have(%d)", iter)
	}
	for i := 0; i < 10; i++ {
		part.step(t, second)
	}

	if !floats.EqualApprox(full.weights(), part.weights(), 1e-12) {
		t.Errorf("want(%v) have(%v)", full.weights(), part.weights())
	}
}

func TestAdamStateMismatch(t *testing.T) {
	q := newQuadratic(t, []float64{1}, []float64{0})
	s, _ := NewDefaultAdam(0.1, 1)
	q.step(t, s)

	if err := s.Step([]G.ValueGrad{q.w, q.w}); err == nil {
		t.Error("expected error stepping a different number of parameters")
	}
	if err := s.LoadState([]byte("garbage")); err == nil {
		t.Error("expected error loading invalid state")
	}
}

func TestClipGlobalNorm(t *testing.T) {
	// Gradient of Σ (w - 0)² at w = (3, 4) is (6, 8) with norm 10
	q := newQuadratic(t, []float64{3, 4}, []float64{0, 0})
	if err := q.vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	model := []G.ValueGrad{q.w}

	norm, err := ClipGlobalNorm(model, 100)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(norm-10) > 1e-9 {
		t.Errorf("norm: want(10) have(%v)", norm)
	}
	grad, _ := q.w.Grad()
	if !floats.EqualApprox(grad.Data().([]float64), []float64{6, 8}, 1e-9) {
		t.Errorf("gradient clipped below the threshold: %v", grad.Data())
	}

	if _, err := ClipGlobalNorm(model, 5); err != nil {
		t.Fatal(err)
	}
	after, err := GlobalNorm(model)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(after-5) > 1e-5 {
		t.Errorf("clipped norm: want(5) have(%v)", after)
	}

	if err := ZeroGrad(model); err != nil {
		t.Fatal(err)
	}
	if after, _ := GlobalNorm(model); after != 0 {
		t.Errorf("norm after ZeroGrad: want(0) have(%v)", after)
	}
	if ok, _ := Finite(model); !ok {
		t.Error("zero gradients reported as non-finite")
	}
}

func TestVanillaState(t *testing.T) {
	s, err := NewVanilla(0.1, 1)
	if err != nil {
		t.Fatal(err)
	}
	state, err := s.State()
	if err != nil || len(state) != 0 {
		t.Errorf("vanilla state: want(empty, nil) have(%v, %v)", state, err)
	}
	if err := s.LoadState(state); err != nil {
		t.Error(err)
	}
}

func TestUnmarshalJSON(t *testing.T) {
	in := `{"Type": "Adam", "Config": {"StepSize": 0.0006, "Epsilon": 1e-4,
		"Beta1": 0.9, "Beta2": 0.999, "Batch": 1}}`

	var s Solver
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatal(err)
	}
	if s.Type != Adam {
		t.Errorf("type: want(%v) have(%v)", Adam, s.Type)
	}
	if _, ok := s.Solver.(*AdamSolver); !ok {
		t.Errorf("solver: want(*AdamSolver) have(%T)", s.Solver)
	}

	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatal(err)
	}
	var again Solver
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatal(err)
	}
	if again.Config != s.Config {
		t.Errorf("want(%v) have(%v)", s.Config, again.Config)
	}

	if err := json.Unmarshal([]byte(`{"Type": "SGDR"}`), &s); err == nil {
		t.Error("expected error for unknown solver type")
	}
}
