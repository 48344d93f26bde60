package policy

import (
	"math"
	"testing"

	"github.com/samuelfneumann/godreamer/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestTanhGaussian(t *testing.T) {
	const batch, features, actions = 3, 4, 2

	g := G.NewGraph()
	cfg := Config{
		HiddenSizes: []int{8},
		Activation:  network.ReLU(),
		InitStd:     5,
		MinStd:      1e-4,
		MeanScale:   5,
	}
	p, err := New(g, cfg, features, actions, G.GlorotU(1))
	if err != nil {
		t.Fatal(err)
	}

	feature := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("feature"), G.WithInit(G.GlorotU(1)))
	noise := network.NewNoise(g, "noise", 1, batch, actions, 42)
	if err := noise.Sample(); err != nil {
		t.Fatal(err)
	}

	action, err := p.Fwd(feature, noise.Nodes()[0])
	if err != nil {
		t.Fatal(err)
	}
	mode, err := p.Mode(feature)
	if err != nil {
		t.Fatal(err)
	}
	mean, std, err := p.Distribution(feature)
	if err != nil {
		t.Fatal(err)
	}

	var actionVal, modeVal, meanVal, stdVal G.Value
	G.Read(action, &actionVal)
	G.Read(mode, &modeVal)
	G.Read(mean, &meanVal)
	G.Read(std, &stdVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	for _, a := range actionVal.Data().([]float64) {
		if a <= -1 || a >= 1 {
			t.Errorf("action %v outside (-1, 1)", a)
		}
	}
	for i, m := range meanVal.Data().([]float64) {
		if math.Abs(m) >= cfg.MeanScale {
			t.Errorf("mean %v outside mean scale", m)
		}
		if want := math.Tanh(m); math.Abs(modeVal.Data().([]float64)[i]-want) > 1e-12 {
			t.Errorf("mode: want(%v) have(%v)", want,
				modeVal.Data().([]float64)[i])
		}
	}
	for _, s := range stdVal.Data().([]float64) {
		if s < cfg.MinStd {
			t.Errorf("std %v below minimum", s)
		}
	}

	if _, err := p.Fwd(feature, feature); err == nil {
		t.Error("expected error for mismatched noise shape")
	}
	if n := len(p.Learnables()); n != 6 {
		t.Errorf("learnables: want(6) have(%d)", n)
	}
}

func TestNewErrors(t *testing.T) {
	g := G.NewGraph()
	cfg := DefaultConfig()
	cfg.HiddenSizes = nil
	if _, err := New(g, cfg, 2, 1, G.GlorotU(1)); err == nil {
		t.Error("expected error for no hidden layers")
	}

	cfg = DefaultConfig()
	cfg.InitStd = 0
	if _, err := New(g, cfg, 2, 1, G.GlorotU(1)); err == nil {
		t.Error("expected error for zero initial std")
	}
}
