package op

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func matrix(g *G.ExprGraph, name string, rows, cols int,
	data ...float64) *G.Node {
	return G.NewMatrix(g, tensor.Float64, G.WithShape(rows, cols),
		G.WithName(name),
		G.WithValue(tensor.New(tensor.WithShape(rows, cols),
			tensor.WithBacking(data))))
}

func run(t *testing.T, g *G.ExprGraph) {
	vm := G.NewTapeMachine(g)
	t.Cleanup(func() { vm.Close() })
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}
}

func TestDiagNormalKL(t *testing.T) {
	g := G.NewGraph()
	meanQ := matrix(g, "mq", 2, 1, 0, 0.5)
	stdQ := matrix(g, "sq", 2, 1, 1, 0.3)
	meanP := matrix(g, "mp", 2, 1, 1, 0.5)
	stdP := matrix(g, "sp", 2, 1, 2, 0.3)

	kl, err := DiagNormalKL(meanQ, stdQ, meanP, stdP)
	if err != nil {
		t.Fatal(err)
	}
	run(t, g)

	want := []float64{math.Log(2) + 2.0/8.0 - 0.5, 0}
	have := kl.Value().Data().([]float64)
	for i := range want {
		if math.Abs(want[i]-have[i]) > 1e-9 {
			t.Errorf("row %d: want(%v) have(%v)", i, want[i], have[i])
		}
	}
}

func TestUnitNormalLogProb(t *testing.T) {
	g := G.NewGraph()
	x := matrix(g, "x", 1, 2, 1, 2)
	mean := matrix(g, "mean", 1, 2, 0, 0)

	logProb, err := UnitNormalLogProb(x, mean)
	if err != nil {
		t.Fatal(err)
	}
	run(t, g)

	want := -0.5*5 - math.Log(2*math.Pi)
	have := logProb.Value().Data().([]float64)[0]
	if math.Abs(want-have) > 1e-9 {
		t.Errorf("want(%v) have(%v)", want, have)
	}

	if _, err := UnitNormalLogProb(x, matrix(g, "m", 2, 1, 0, 0)); err == nil {
		t.Error("expected error for mismatched shapes")
	}
}

func TestMaxFloorsScalar(t *testing.T) {
	for _, test := range []struct {
		value, floor, want float64
	}{
		{0.5, 3, 3},
		{4, 3, 4},
		{3, 3, 3},
	} {
		g := G.NewGraph()
		v := G.NewScalar(g, tensor.Float64, G.WithName("v"),
			G.WithValue(test.value))
		floor := G.NewScalar(g, tensor.Float64, G.WithName("floor"),
			G.WithValue(test.floor))

		out, err := Max(v, floor)
		if err != nil {
			t.Fatal(err)
		}
		run(t, g)

		if have := out.Value().Data().(float64); have != test.want {
			t.Errorf("max(%v, %v): want(%v) have(%v)", test.value,
				test.floor, test.want, have)
		}
	}
}
