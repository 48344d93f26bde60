package network

import (
	"bytes"
	"testing"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func input(g *G.ExprGraph, rows, cols int, data []float64) *G.Node {
	return G.NewMatrix(g, tensor.Float64, G.WithShape(rows, cols),
		G.WithName("input"),
		G.WithValue(tensor.New(tensor.WithShape(rows, cols),
			tensor.WithBacking(data))))
}

func TestMLPFwd(t *testing.T) {
	g := G.NewGraph()
	mlp, err := NewMLP(g, "mlp", 2, []int{3, 1}, []bool{true, false},
		[]*Activation{ReLU(), Identity()}, G.Ones())
	if err != nil {
		t.Fatal(err)
	}

	x := input(g, 2, 2, []float64{1, 2, -3, -4})
	out, err := mlp.Fwd(x)
	if err != nil {
		t.Fatal(err)
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	// Hidden units are relu(x1 + x2) with zero bias, output is their sum
	want := []float64{9, 0}
	have := out.Value().Data().([]float64)
	if !floats.Equal(want, have) {
		t.Errorf("want(%v) have(%v)", want, have)
	}

	if n := len(mlp.Learnables()); n != 3 {
		t.Errorf("learnables: want(3) have(%d)", n)
	}
}

func TestMLPErrors(t *testing.T) {
	g := G.NewGraph()
	if _, err := NewMLP(g, "bad", 2, []int{3}, []bool{true, true},
		[]*Activation{ReLU()}, G.Ones()); err == nil {
		t.Error("expected error for mismatched biases")
	}
	if _, err := NewMLP(g, "bad", 2, []int{3}, []bool{true},
		[]*Activation{}, G.Ones()); err == nil {
		t.Error("expected error for mismatched activations")
	}

	mlp, err := NewLinear(g, "linear", 2, 1, Identity(), G.Ones())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mlp.Fwd(input(g, 1, 3, []float64{1, 2, 3})); err == nil {
		t.Error("expected error for wrong number of features")
	}
	if _, err := mlp.Fwd(input(G.NewGraph(), 1, 2, []float64{1, 2})); err == nil {
		t.Error("expected error for input in another graph")
	}
}

func TestSetCopiesWeights(t *testing.T) {
	src, err := NewMLP(G.NewGraph(), "src", 3, []int{4, 2}, []bool{true, true},
		[]*Activation{TanH(), Identity()}, G.GlorotU(1))
	if err != nil {
		t.Fatal(err)
	}

	clone := src.CloneTo(G.NewGraph())
	if err := Set(clone, src); err != nil {
		t.Fatal(err)
	}

	for i, n := range clone.Learnables() {
		want := src.Learnables()[i].Value().Data().([]float64)
		have := n.Value().Data().([]float64)
		if !floats.Equal(want, have) {
			t.Errorf("learnable %d: want(%v) have(%v)", i, want, have)
		}

		// The copy must not alias the source
		have[0] += 1
		if want[0] == have[0] {
			t.Errorf("learnable %d aliases its source", i)
		}
	}

	other, _ := NewMLP(G.NewGraph(), "other", 3, []int{2}, []bool{true},
		[]*Activation{Identity()}, G.Ones())
	if err := Set(other, src); err == nil {
		t.Error("expected error when setting mismatched architectures")
	}
}

func TestGRU(t *testing.T) {
	g := G.NewGraph()
	cell, err := NewGRU(g, "gru", 2, 3, G.GlorotU(1))
	if err != nil {
		t.Fatal(err)
	}

	x := input(g, 4, 2, []float64{1, 0, 0, 1, -1, 0, 0.5, 0.5})
	h := G.NewMatrix(g, tensor.Float64, G.WithShape(4, 3), G.WithName("h"),
		G.WithInit(G.Zeroes()))

	next, err := cell.Fwd(x, h)
	if err != nil {
		t.Fatal(err)
	}
	if !next.Shape().Eq(tensor.Shape{4, 3}) {
		t.Fatalf("shape: want(4, 3) have(%v)", next.Shape())
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	// A GRU's hidden state is a convex combination of tanh outputs and
	// the previous state, so it stays in (-1, 1)
	for _, v := range next.Value().Data().([]float64) {
		if v <= -1 || v >= 1 {
			t.Errorf("hidden value %v outside (-1, 1)", v)
		}
	}

	if _, err := cell.Fwd(h, h); err == nil {
		t.Error("expected error for wrong input size")
	}
	if n := len(cell.Learnables()); n != 10 {
		t.Errorf("learnables: want(10) have(%d)", n)
	}
}

func TestSaveLoadWeights(t *testing.T) {
	src, _ := NewMLP(G.NewGraph(), "src", 2, []int{2}, []bool{true},
		[]*Activation{Identity()}, G.GlorotN(1))
	cell, _ := NewGRU(src.Graph(), "cell", 2, 2, G.GlorotN(1))

	var buf bytes.Buffer
	if err := SaveWeights(&buf, src, cell); err != nil {
		t.Fatal(err)
	}

	g := G.NewGraph()
	dst, _ := NewMLP(g, "dst", 2, []int{2}, []bool{true},
		[]*Activation{Identity()}, G.Zeroes())
	dstCell, _ := NewGRU(g, "cell", 2, 2, G.Zeroes())
	if err := LoadWeights(&buf, dst, dstCell); err != nil {
		t.Fatal(err)
	}

	srcNodes := Learnables(src, cell)
	for i, n := range Learnables(dst, dstCell) {
		want := srcNodes[i].Value().Data().([]float64)
		have := n.Value().Data().([]float64)
		if !floats.Equal(want, have) {
			t.Errorf("learnable %d: want(%v) have(%v)", i, want, have)
		}
	}
}

func TestActivationText(t *testing.T) {
	for _, act := range []*Activation{
		ReLU(), TanH(), Sigmoid(), Softplus(), ELU(), Identity(), Nil(),
	} {
		text, err := act.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var out Activation
		if err := out.UnmarshalText(text); err != nil {
			t.Fatal(err)
		}
		if out.String() != act.String() {
			t.Errorf("want(%v) have(%v)", act, &out)
		}
	}

	if _, err := ActivationFromString("swish"); err == nil {
		t.Error("expected error for unknown activation")
	}
}
