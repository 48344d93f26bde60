// Package network implements the neural network building blocks of
// the world model, actor, and critic.
//
// Networks in this package own their weight nodes in a single
// computational graph but can be applied to any number of input nodes
// in that graph, which shares weights across the time steps of an
// unrolled sequence. To use a network in another graph, it is cloned
// into that graph with CloneTo and kept up to date with Set. Since a
// clone's weights are plain input nodes of its graph, no gradient ever
// flows from one graph into the weights of another.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Module is a collection of learnable weights in a computational graph
type Module interface {
	Graph() *G.ExprGraph
	Learnables() G.Nodes
	Model() []G.ValueGrad
}

// Learnables returns the learnable nodes of all modules in order
func Learnables(modules ...Module) G.Nodes {
	var learnables G.Nodes
	for _, m := range modules {
		learnables = append(learnables, m.Learnables()...)
	}
	return learnables
}

// Model returns the learnable nodes of all modules in order, as
// G.ValueGrads to be stepped by a solver.
func Model(modules ...Module) []G.ValueGrad {
	var model []G.ValueGrad
	for _, m := range modules {
		model = append(model, m.Model()...)
	}
	return model
}

// Set sets the weights of dest to copies of the weights of source.
// Both modules must have the same architecture.
func Set(dest, source Module) error {
	sourceNodes := source.Learnables()
	destNodes := dest.Learnables()
	if len(sourceNodes) != len(destNodes) {
		return fmt.Errorf("set: source has %d learnables, dest has %d",
			len(sourceNodes), len(destNodes))
	}

	for i, destLearnable := range destNodes {
		sourceWeights, ok := sourceNodes[i].Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("set: learnable %v has no dense value",
				sourceNodes[i])
		}
		if !sourceWeights.Shape().Eq(destLearnable.Shape()) {
			return fmt.Errorf("set: shape mismatch for learnable %d"+
				"\n\twant(%v)\n\thave(%v)", i, destLearnable.Shape(),
				sourceWeights.Shape())
		}

		weights := sourceWeights.Clone().(*tensor.Dense)
		if err := G.Let(destLearnable, weights); err != nil {
			return fmt.Errorf("set: could not set learnable %d: %v", i, err)
		}
	}
	return nil
}

// nodesToModel converts learnable nodes to G.ValueGrads
func nodesToModel(nodes G.Nodes) []G.ValueGrad {
	model := make([]G.ValueGrad, len(nodes))
	for i, n := range nodes {
		model[i] = n
	}
	return model
}
