package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer is a single layer of a feed forward neural network
type Layer interface {
	fwd(x *G.Node) (*G.Node, error)
	CloneTo(g *G.ExprGraph) Layer
	Weights() *G.Node
	Bias() *G.Node
	Activation() *Activation
}

// fcLayer implements a fully connected layer: act(xW + b)
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// fwd adds the forward pass of the fcLayer to the graph of x
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	var err error
	if f.weights != nil {
		if x, err = G.Mul(x, f.weights); err != nil {
			return nil, fmt.Errorf("fwd: could not multiply weights: %v", err)
		}
	}
	if f.bias != nil {
		// Broadcast the bias to all samples along the batch dimension
		if x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0}); err != nil {
			return nil, fmt.Errorf("fwd: could not add bias: %v", err)
		}
	}
	return f.act.fwd(x)
}

// CloneTo clones the fcLayer into the graph g. The weights of the
// clone are independent nodes in g holding copies of the original
// weights' values.
func (f *fcLayer) CloneTo(g *G.ExprGraph) Layer {
	var weights, bias *G.Node
	if f.weights != nil {
		weights = f.weights.CloneTo(g)
	}
	if f.bias != nil {
		bias = f.bias.CloneTo(g)
	}
	return &fcLayer{weights: weights, bias: bias, act: f.act}
}

func (f *fcLayer) Weights() *G.Node        { return f.weights }
func (f *fcLayer) Bias() *G.Node           { return f.bias }
func (f *fcLayer) Activation() *Activation { return f.act }

// addfcLayers adds fully connected layers with the given sizes to g.
// For index i, hiddenSizes[i] is the number of units in layer i,
// biases[i] whether that layer has a bias, and activations[i] its
// activation function. Biases are initialized to zero.
func addfcLayers(g *G.ExprGraph, features int, hiddenSizes []int,
	biases []bool, activations []*Activation, init G.InitWFn,
	prefix string) []Layer {
	layers := make([]Layer, 0, len(hiddenSizes))

	in := features
	for i, out := range hiddenSizes {
		weights := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(in, out),
			G.WithName(fmt.Sprintf("%sL%dW", prefix, i)),
			G.WithInit(init),
		)

		var bias *G.Node
		if biases[i] {
			bias = G.NewMatrix(
				g,
				tensor.Float64,
				G.WithShape(1, out),
				G.WithName(fmt.Sprintf("%sL%dB", prefix, i)),
				G.WithInit(G.Zeroes()),
			)
		}

		layers = append(layers, &fcLayer{
			weights: weights,
			bias:    bias,
			act:     activations[i],
		})
		in = out
	}

	return layers
}
