package network

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Noise is a sequence of input nodes holding standard normal noise,
// used to draw reparameterized samples inside a graph. The noise is
// resampled with Sample before each run of the graph.
type Noise struct {
	nodes  []*G.Node
	normal distuv.Normal
}

// NewNoise adds steps input nodes of shape rows x cols to g
func NewNoise(g *G.ExprGraph, name string, steps, rows, cols int,
	seed uint64) *Noise {
	nodes := make([]*G.Node, steps)
	for i := range nodes {
		nodes[i] = G.NewMatrix(g, tensor.Float64, G.WithShape(rows, cols),
			G.WithName(fmt.Sprintf("%s%d", name, i)), G.WithInit(G.Zeroes()))
	}

	return &Noise{
		nodes: nodes,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}
}

// Nodes returns the noise nodes
func (n *Noise) Nodes() []*G.Node {
	return n.nodes
}

// Sample fills each noise node with new standard normal samples
func (n *Noise) Sample() error {
	for _, node := range n.nodes {
		data := make([]float64, node.Shape().TotalSize())
		for i := range data {
			data[i] = n.normal.Rand()
		}
		if err := n.let(node, data); err != nil {
			return err
		}
	}
	return nil
}

// Zero sets all noise nodes to zero, so that samples are replaced by
// the means of their distributions
func (n *Noise) Zero() error {
	for _, node := range n.nodes {
		if err := n.let(node, make([]float64, node.Shape().TotalSize())); err != nil {
			return err
		}
	}
	return nil
}

func (n *Noise) let(node *G.Node, data []float64) error {
	t := tensor.New(tensor.WithShape(node.Shape()...), tensor.WithBacking(data))
	if err := G.Let(node, t); err != nil {
		return fmt.Errorf("noise: could not set %v: %v", node.Name(), err)
	}
	return nil
}
