package network

import (
	"encoding/gob"
	"fmt"
	"io"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// weights is the gob representation of a single learnable node
type weights struct {
	Name  string
	Shape []int
	Data  []float64
}

// SaveWeights gob encodes the weights of the modules, in order, to w
func SaveWeights(w io.Writer, modules ...Module) error {
	learnables := Learnables(modules...)
	out := make([]weights, len(learnables))
	for i, node := range learnables {
		data, ok := node.Value().Data().([]float64)
		if !ok {
			return fmt.Errorf("saveweights: node %v does not hold float64 "+
				"data", node.Name())
		}
		backing := make([]float64, len(data))
		copy(backing, data)

		out[i] = weights{
			Name:  node.Name(),
			Shape: append([]int{}, node.Shape()...),
			Data:  backing,
		}
	}

	if err := gob.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("saveweights: could not encode: %v", err)
	}
	return nil
}

// LoadWeights decodes weights written by SaveWeights into the modules,
// which must have the same architectures as the saved modules.
func LoadWeights(r io.Reader, modules ...Module) error {
	var in []weights
	if err := gob.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("loadweights: could not decode: %v", err)
	}

	learnables := Learnables(modules...)
	if len(in) != len(learnables) {
		return fmt.Errorf("loadweights: have %d saved weights for %d "+
			"learnables", len(in), len(learnables))
	}

	for i, node := range learnables {
		shape := tensor.Shape(in[i].Shape)
		if !shape.Eq(node.Shape()) {
			return fmt.Errorf("loadweights: shape mismatch for %v\n\t"+
				"want(%v)\n\thave(%v)", node.Name(), node.Shape(), shape)
		}

		t := tensor.New(tensor.WithShape(in[i].Shape...),
			tensor.WithBacking(in[i].Data))
		if err := G.Let(node, t); err != nil {
			return fmt.Errorf("loadweights: could not set %v: %v",
				node.Name(), err)
		}
	}
	return nil
}
