package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

// data returns the backing data of a parameter's value and gradient
func data(vg G.ValueGrad) (value, grad []float64, err error) {
	value, ok := vg.Value().Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("value does not hold float64 data")
	}

	g, err := vg.Grad()
	if err != nil {
		return nil, nil, fmt.Errorf("could not get gradient: %v", err)
	}
	grad, ok = g.Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("gradient does not hold float64 data")
	}

	if len(grad) != len(value) {
		return nil, nil, fmt.Errorf("gradient has %d elements, value has %d",
			len(grad), len(value))
	}
	return value, grad, nil
}

// GlobalNorm returns the L2 norm of all gradients in model taken
// together.
func GlobalNorm(model []G.ValueGrad) (float64, error) {
	total := 0.0
	for i, vg := range model {
		_, grad, err := data(vg)
		if err != nil {
			return 0, fmt.Errorf("globalnorm: parameter %d: %v", i, err)
		}
		norm := floats.Norm(grad, 2)
		total += norm * norm
	}
	return math.Sqrt(total), nil
}

// ClipGlobalNorm scales all gradients in model so that their global L2
// norm is at most maxNorm. The norm before clipping is returned.
func ClipGlobalNorm(model []G.ValueGrad, maxNorm float64) (float64, error) {
	norm, err := GlobalNorm(model)
	if err != nil {
		return 0, fmt.Errorf("clipglobalnorm: %v", err)
	}

	coef := maxNorm / (norm + 1e-6)
	if coef >= 1 {
		return norm, nil
	}

	for _, vg := range model {
		_, grad, _ := data(vg)
		floats.Scale(coef, grad)
	}
	return norm, nil
}

// ZeroGrad sets all gradients in model to zero
func ZeroGrad(model []G.ValueGrad) error {
	for i, vg := range model {
		g, err := vg.Grad()
		if err != nil {
			return fmt.Errorf("zerograd: parameter %d: %v", i, err)
		}

		switch grad := g.(type) {
		case interface{ Zero() }:
			grad.Zero()
		default:
			d, ok := g.Data().([]float64)
			if !ok {
				return fmt.Errorf("zerograd: parameter %d: cannot zero "+
					"gradient of type %T", i, g)
			}
			for j := range d {
				d[j] = 0
			}
		}
	}
	return nil
}

// Finite returns whether all gradients in model are finite
func Finite(model []G.ValueGrad) (bool, error) {
	for i, vg := range model {
		_, grad, err := data(vg)
		if err != nil {
			return false, fmt.Errorf("finite: parameter %d: %v", i, err)
		}
		for _, v := range grad {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false, nil
			}
		}
	}
	return true, nil
}
