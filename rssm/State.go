// Package rssm implements a recurrent state-space model: a latent
// dynamics model whose state is split into a deterministic component,
// carried forward by a GRU, and a diagonal Gaussian stochastic
// component.
//
// The model exposes a prior transition, which predicts the next latent
// state from the previous state and an action, and a representation
// (posterior) which corrects the prior using an embedded observation.
// Rollout functions unroll either of these over a sequence by adding
// one copy of the networks' forward pass per step to the graph.
package rssm

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// State is a latent state of a batch of trajectories in a graph. Each
// node has one row per batch element.
type State struct {
	Deter *G.Node
	Stoch *G.Node
	Mean  *G.Node
	Std   *G.Node
}

// Feature returns the concatenation of the deterministic and
// stochastic components of the state.
func (s State) Feature() (*G.Node, error) {
	return G.Concat(1, s.Deter, s.Stoch)
}

// Batch returns the number of batch elements in the state
func (s State) Batch() int {
	return s.Deter.Shape()[0]
}

// InitialState adds a zero latent state for batch trajectories to g.
// The name distinguishes the state's nodes from other nodes of g.
func InitialState(g *G.ExprGraph, name string, batch, deterSize,
	stochSize int) State {
	zeros := func(suffix string, size int) *G.Node {
		return G.NewMatrix(g, tensor.Float64, G.WithShape(batch, size),
			G.WithName(name+suffix), G.WithInit(G.Zeroes()))
	}

	return State{
		Deter: zeros("Deter", deterSize),
		Stoch: zeros("Stoch", stochSize),
		Mean:  zeros("Mean", stochSize),
		Std:   zeros("Std", stochSize),
	}
}

// Let sets the values of the nodes of a state created with
// InitialState, for example to seed a rollout with a state computed
// in another graph. Each slice holds row-major batch x dim data.
func (s State) Let(v StateValue) error {
	pairs := []struct {
		node *G.Node
		data []float64
	}{
		{s.Deter, v.Deter},
		{s.Stoch, v.Stoch},
		{s.Mean, v.Mean},
		{s.Std, v.Std},
	}
	for _, p := range pairs {
		if len(p.data) != p.node.Shape().TotalSize() {
			return fmt.Errorf("let: %v expects %d values, have %d",
				p.node.Name(), p.node.Shape().TotalSize(), len(p.data))
		}
		backing := make([]float64, len(p.data))
		copy(backing, p.data)
		t := tensor.New(tensor.WithShape(p.node.Shape()...),
			tensor.WithBacking(backing))
		if err := G.Let(p.node, t); err != nil {
			return fmt.Errorf("let: %v", err)
		}
	}
	return nil
}

// StateValue holds the values of a State read out of a graph. Each
// slice holds row-major batch x dim data.
type StateValue struct {
	Deter []float64
	Stoch []float64
	Mean  []float64
	Std   []float64
}

// StateReader reads the values of a State's nodes each time their
// graph is run. It must be created before the graph's VM.
type StateReader struct {
	deter, stoch, mean, std G.Value
}

// ReadState adds read operations for each node of s to the graph
func ReadState(s State) *StateReader {
	r := &StateReader{}
	G.Read(s.Deter, &r.deter)
	G.Read(s.Stoch, &r.stoch)
	G.Read(s.Mean, &r.mean)
	G.Read(s.Std, &r.std)
	return r
}

// Value returns copies of the values read during the last run
func (r *StateReader) Value() StateValue {
	return StateValue{
		Deter: Copy(r.deter),
		Stoch: Copy(r.stoch),
		Mean:  Copy(r.mean),
		Std:   Copy(r.std),
	}
}

// Copy returns a copy of the float64 data of v, or nil if v has not
// been computed.
func Copy(v G.Value) []float64 {
	if v == nil {
		return nil
	}
	data := v.Data().([]float64)
	out := make([]float64, len(data))
	copy(out, data)
	return out
}

// Rows returns the rows [start, stop) of the batch of a StateValue
// with the given dimensions.
func (v StateValue) Rows(start, stop, deterSize, stochSize int) StateValue {
	return StateValue{
		Deter: v.Deter[start*deterSize : stop*deterSize],
		Stoch: v.Stoch[start*stochSize : stop*stochSize],
		Mean:  v.Mean[start*stochSize : stop*stochSize],
		Std:   v.Std[start*stochSize : stop*stochSize],
	}
}

// Concat concatenates StateValues along the batch dimension
func Concat(values ...StateValue) StateValue {
	var out StateValue
	for _, v := range values {
		out.Deter = append(out.Deter, v.Deter...)
		out.Stoch = append(out.Stoch, v.Stoch...)
		out.Mean = append(out.Mean, v.Mean...)
		out.Std = append(out.Std, v.Std...)
	}
	return out
}

// Entropy returns the mean entropy of the diagonal Gaussians with
// standard deviations std, which holds row-major batch x dim data.
func Entropy(std []float64, dim int) float64 {
	if dim == 0 || len(std) == 0 {
		return 0
	}
	rows := len(std) / dim

	// H = d/2 (1 + log 2π) + Σ log σ
	total := 0.0
	for _, s := range std {
		total += math.Log(s)
	}
	constant := 0.5 * float64(dim) * (1 + math.Log(2*math.Pi))
	return constant + total/float64(rows)
}
