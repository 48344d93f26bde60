package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// MLP is a multi-layered perceptron whose weights live in a single
// graph. The MLP can be applied to any matrix node in that graph
// with the correct number of features, any number of times.
type MLP struct {
	g      *G.ExprGraph
	name   string
	layers []Layer

	features int
	outputs  int

	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad
}

// NewMLP adds the weights of a new MLP to g. The MLP takes inputs with
// features columns and has len(hiddenSizes) layers. For index i,
// hiddenSizes[i] is the number of units in layer i, biases[i] whether
// layer i has a bias unit, and activations[i] its activation. The last
// element of hiddenSizes is the number of outputs of the MLP.
func NewMLP(g *G.ExprGraph, name string, features int, hiddenSizes []int,
	biases []bool, activations []*Activation, init G.InitWFn) (*MLP, error) {
	if len(hiddenSizes) == 0 {
		return nil, fmt.Errorf("newmlp: %s: at least one layer required",
			name)
	}
	if len(hiddenSizes) != len(activations) {
		msg := "newmlp: %s: invalid number of activations\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, name, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newmlp: %s: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, name, len(hiddenSizes), len(biases))
	}
	if features <= 0 {
		return nil, fmt.Errorf("newmlp: %s: features must be positive", name)
	}

	layers := addfcLayers(g, features, hiddenSizes, biases, activations,
		init, name)

	return &MLP{
		g:           g,
		name:        name,
		layers:      layers,
		features:    features,
		outputs:     hiddenSizes[len(hiddenSizes)-1],
		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
	}, nil
}

// NewLinear adds a single fully connected layer with a bias to g
func NewLinear(g *G.ExprGraph, name string, features, outputs int,
	act *Activation, init G.InitWFn) (*MLP, error) {
	return NewMLP(g, name, features, []int{outputs}, []bool{true},
		[]*Activation{act}, init)
}

// Fwd adds the forward pass of the MLP on input x to the graph. The
// input must be a matrix with one row per sample.
func (m *MLP) Fwd(x *G.Node) (*G.Node, error) {
	if x.Graph() != m.g {
		return nil, fmt.Errorf("fwd: %s: input is not in the MLP's graph",
			m.name)
	}
	if !x.IsMatrix() {
		return nil, fmt.Errorf("fwd: %s: input must be a matrix", m.name)
	}
	if cols := x.Shape()[1]; cols != m.features {
		return nil, fmt.Errorf("fwd: %s: invalid number of features"+
			"\n\twant(%v)\n\thave(%v)", m.name, m.features, cols)
	}

	pred := x
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: %s: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, m.name, i, err)
		}
	}
	return pred, nil
}

// CloneTo clones the MLP into graph g
func (m *MLP) CloneTo(g *G.ExprGraph) *MLP {
	layers := make([]Layer, len(m.layers))
	for i := range m.layers {
		layers[i] = m.layers[i].CloneTo(g)
	}

	return &MLP{
		g:           g,
		name:        m.name,
		layers:      layers,
		features:    m.features,
		outputs:     m.outputs,
		hiddenSizes: m.hiddenSizes,
		biases:      m.biases,
		activations: m.activations,
	}
}

// Graph returns the graph holding the MLP's weights
func (m *MLP) Graph() *G.ExprGraph { return m.g }

// Features returns the number of input features of the MLP
func (m *MLP) Features() int { return m.features }

// Outputs returns the number of outputs of the MLP
func (m *MLP) Outputs() int { return m.outputs }

// Learnables returns the learnable nodes of the MLP
func (m *MLP) Learnables() G.Nodes {
	if m.learnables == nil {
		learnables := make(G.Nodes, 0, 2*len(m.layers))
		for _, l := range m.layers {
			learnables = append(learnables, l.Weights())
			if bias := l.Bias(); bias != nil {
				learnables = append(learnables, bias)
			}
		}
		m.learnables = learnables
	}
	return m.learnables
}

// Model returns the learnable nodes of the MLP as G.ValueGrads
func (m *MLP) Model() []G.ValueGrad {
	if m.model == nil {
		m.model = nodesToModel(m.Learnables())
	}
	return m.model
}
