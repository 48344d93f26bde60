package solver

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize float64
	Epsilon  float64 // Smoothing factor
	Beta1    float64
	Beta2    float64
	Batch    int
}

// NewDefaultAdam returns a new Adam Solver with default hyperparameters
func NewDefaultAdam(stepSize float64, batchSize int) (*Solver, error) {
	return NewAdam(stepSize, 1e-8, 0.9, 0.999, batchSize)
}

// NewAdam returns a new Adam Solver
func NewAdam(stepSize, epsilon, beta1, beta2 float64,
	batchSize int) (*Solver, error) {
	return newSolver(Adam, AdamConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Beta1:    beta1,
		Beta2:    beta2,
		Batch:    batchSize,
	})
}

// Create returns a new *AdamSolver as described by the AdamConfig
func (a AdamConfig) Create() G.Solver {
	batch := a.Batch
	if batch <= 0 {
		batch = 1
	}
	return &AdamSolver{
		stepSize: a.StepSize,
		eps:      a.Epsilon,
		beta1:    a.Beta1,
		beta2:    a.Beta2,
		batch:    float64(batch),
	}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}

// AdamState holds the moment estimates of an AdamSolver, one slice per
// parameter in the order the parameters are passed to Step.
type AdamState struct {
	Iter int
	M    [][]float64
	V    [][]float64
}

// AdamSolver implements the Adam solver. Unlike the Gorgonia Adam
// solver, its moment estimates are accessible and can be saved and
// restored.
type AdamSolver struct {
	stepSize float64
	eps      float64
	beta1    float64
	beta2    float64
	batch    float64

	state AdamState
}

// Step performs one Adam update on the values of model in place using
// their gradients.
func (a *AdamSolver) Step(model []G.ValueGrad) error {
	if a.state.M == nil {
		a.state.M = make([][]float64, len(model))
		a.state.V = make([][]float64, len(model))
	}
	if len(a.state.M) != len(model) {
		return fmt.Errorf("step: solver state holds %d parameters, have %d",
			len(a.state.M), len(model))
	}

	a.state.Iter++
	t := float64(a.state.Iter)
	correction1 := 1 - math.Pow(a.beta1, t)
	correction2 := 1 - math.Pow(a.beta2, t)

	for i, vg := range model {
		weights, grad, err := data(vg)
		if err != nil {
			return fmt.Errorf("step: parameter %d: %v", i, err)
		}

		if a.state.M[i] == nil {
			a.state.M[i] = make([]float64, len(weights))
			a.state.V[i] = make([]float64, len(weights))
		}
		m, v := a.state.M[i], a.state.V[i]
		if len(m) != len(weights) {
			return fmt.Errorf("step: parameter %d has %d elements, solver "+
				"state has %d", i, len(weights), len(m))
		}

		for j := range weights {
			g := grad[j] / a.batch
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g

			mHat := m[j] / correction1
			vHat := v[j] / correction2
			weights[j] -= a.stepSize * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
	return nil
}

// Iterations returns the number of steps taken by the solver
func (a *AdamSolver) Iterations() int {
	return a.state.Iter
}

// State gob encodes the solver's moment estimates
func (a *AdamSolver) State() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a.state); err != nil {
		return nil, fmt.Errorf("state: could not encode adam state: %v", err)
	}
	return buf.Bytes(), nil
}

// LoadState restores moment estimates previously returned by State
func (a *AdamSolver) LoadState(state []byte) error {
	var s AdamState
	if err := gob.NewDecoder(bytes.NewReader(state)).Decode(&s); err != nil {
		return fmt.Errorf("loadstate: could not decode adam state: %v", err)
	}
	if len(s.M) != len(s.V) {
		return fmt.Errorf("loadstate: first moment holds %d parameters, "+
			"second moment %d", len(s.M), len(s.V))
	}
	a.state = s
	return nil
}
