package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GRU is a gated recurrent unit cell:
//
//	r  = σ(x·Wr + h·Ur + br)
//	z  = σ(x·Wz + h·Uz + bz)
//	n  = tanh(x·Wn + bn + r ⊙ (h·Un + bhn))
//	h' = (1 - z) ⊙ n + z ⊙ h
type GRU struct {
	g      *G.ExprGraph
	name   string
	inputs int
	hidden int

	wr, wz, wn *G.Node
	ur, uz, un *G.Node
	br, bz, bn *G.Node
	bhn        *G.Node

	learnables G.Nodes
	model      []G.ValueGrad
}

// NewGRU adds the weights of a new GRU cell to g
func NewGRU(g *G.ExprGraph, name string, inputs, hidden int,
	init G.InitWFn) (*GRU, error) {
	if inputs <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("newgru: %s: sizes must be positive, have "+
			"inputs=%d hidden=%d", name, inputs, hidden)
	}

	weight := func(rows int, suffix string) *G.Node {
		return G.NewMatrix(g, tensor.Float64, G.WithShape(rows, hidden),
			G.WithName(name+suffix), G.WithInit(init))
	}
	bias := func(suffix string) *G.Node {
		return G.NewMatrix(g, tensor.Float64, G.WithShape(1, hidden),
			G.WithName(name+suffix), G.WithInit(G.Zeroes()))
	}

	return &GRU{
		g:      g,
		name:   name,
		inputs: inputs,
		hidden: hidden,
		wr:     weight(inputs, "Wr"),
		wz:     weight(inputs, "Wz"),
		wn:     weight(inputs, "Wn"),
		ur:     weight(hidden, "Ur"),
		uz:     weight(hidden, "Uz"),
		un:     weight(hidden, "Un"),
		br:     bias("Br"),
		bz:     bias("Bz"),
		bn:     bias("Bn"),
		bhn:    bias("Bhn"),
	}, nil
}

// Fwd adds one step of the GRU to the graph, returning the next hidden
// state given input x (batch x inputs) and hidden state h
// (batch x hidden).
func (c *GRU) Fwd(x, h *G.Node) (*G.Node, error) {
	if x.Shape()[1] != c.inputs {
		return nil, fmt.Errorf("fwd: %s: invalid input size\n\twant(%d)"+
			"\n\thave(%d)", c.name, c.inputs, x.Shape()[1])
	}
	if h.Shape()[1] != c.hidden {
		return nil, fmt.Errorf("fwd: %s: invalid hidden size\n\twant(%d)"+
			"\n\thave(%d)", c.name, c.hidden, h.Shape()[1])
	}
	if x.Shape()[0] != h.Shape()[0] {
		return nil, fmt.Errorf("fwd: %s: batch mismatch between input (%d) "+
			"and hidden state (%d)", c.name, x.Shape()[0], h.Shape()[0])
	}

	gate := func(w, u, b *G.Node) *G.Node {
		xw := G.Must(G.Mul(x, w))
		hu := G.Must(G.Mul(h, u))
		sum := G.Must(G.Add(xw, hu))
		return G.Must(G.BroadcastAdd(sum, b, nil, []byte{0}))
	}

	r := G.Must(G.Sigmoid(gate(c.wr, c.ur, c.br)))
	z := G.Must(G.Sigmoid(gate(c.wz, c.uz, c.bz)))

	hn := G.Must(G.Mul(h, c.un))
	hn = G.Must(G.BroadcastAdd(hn, c.bhn, nil, []byte{0}))
	xn := G.Must(G.Mul(x, c.wn))
	xn = G.Must(G.BroadcastAdd(xn, c.bn, nil, []byte{0}))
	n := G.Must(G.Tanh(G.Must(G.Add(xn, G.Must(G.HadamardProd(r, hn))))))

	// h' = n + z ⊙ (h - n)
	diff := G.Must(G.Sub(h, n))
	return G.Add(n, G.Must(G.HadamardProd(z, diff)))
}

// CloneTo clones the GRU into graph g
func (c *GRU) CloneTo(g *G.ExprGraph) *GRU {
	return &GRU{
		g:      g,
		name:   c.name,
		inputs: c.inputs,
		hidden: c.hidden,
		wr:     c.wr.CloneTo(g),
		wz:     c.wz.CloneTo(g),
		wn:     c.wn.CloneTo(g),
		ur:     c.ur.CloneTo(g),
		uz:     c.uz.CloneTo(g),
		un:     c.un.CloneTo(g),
		br:     c.br.CloneTo(g),
		bz:     c.bz.CloneTo(g),
		bn:     c.bn.CloneTo(g),
		bhn:    c.bhn.CloneTo(g),
	}
}

// Graph returns the graph holding the GRU's weights
func (c *GRU) Graph() *G.ExprGraph { return c.g }

// Hidden returns the size of the GRU's hidden state
func (c *GRU) Hidden() int { return c.hidden }

// Learnables returns the learnable nodes of the GRU
func (c *GRU) Learnables() G.Nodes {
	if c.learnables == nil {
		c.learnables = G.Nodes{
			c.wr, c.wz, c.wn, c.ur, c.uz, c.un, c.br, c.bz, c.bn, c.bhn,
		}
	}
	return c.learnables
}

// Model returns the learnable nodes of the GRU as G.ValueGrads
func (c *GRU) Model() []G.ValueGrad {
	if c.model == nil {
		c.model = nodesToModel(c.Learnables())
	}
	return c.model
}
