package dreamer

import (
	"errors"
	"fmt"
	"math"

	"github.com/samuelfneumann/godreamer/solver"
	G "gorgonia.org/gorgonia"
)

// ErrNonFinite is returned when a loss or gradient is NaN or infinite
var ErrNonFinite = errors.New("non-finite loss")

// phase is the update of one parameter group: a compiled graph, the
// learnables bound to its machine, and the solver that steps them.
type phase struct {
	name   string
	vm     G.VM
	solver *solver.Solver
	model  []G.ValueGrad
	loss   *G.Value

	ran bool
}

// step runs the phase's graph forward and backward, then clips and
// applies the gradients. Gradients are zeroed before the backward pass
// and again after the step, so that no gradient outlives its step.
// The norm of the gradients before clipping is returned. Values read
// from the graph remain valid until reset is called.
func (p *phase) step(clip float64) (float64, error) {
	if p.ran {
		if err := solver.ZeroGrad(p.model); err != nil {
			return 0, fmt.Errorf("%s: %v", p.name, err)
		}
	}

	if err := p.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("%s: could not run graph: %v", p.name, err)
	}
	p.ran = true

	loss := scalar(*p.loss)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, fmt.Errorf("%s: loss %v: %w", p.name, loss, ErrNonFinite)
	}
	finite, err := solver.Finite(p.model)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", p.name, err)
	}
	if !finite {
		return 0, fmt.Errorf("%s: gradient: %w", p.name, ErrNonFinite)
	}

	norm, err := solver.ClipGlobalNorm(p.model, clip)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", p.name, err)
	}
	if err := p.solver.Step(p.model); err != nil {
		return 0, fmt.Errorf("%s: could not step solver: %v", p.name, err)
	}
	if err := solver.ZeroGrad(p.model); err != nil {
		return 0, fmt.Errorf("%s: %v", p.name, err)
	}

	return norm, nil
}

// reset resets the phase's machine for the next run
func (p *phase) reset() {
	p.vm.Reset()
}

// OptimState is the serialized internal state of the three solvers
type OptimState struct {
	Model []byte
	Actor []byte
	Value []byte
}

// OptimStateDict returns the internal state of the model, actor, and
// value solvers
func (d *Dreamer) OptimStateDict() (OptimState, error) {
	var state OptimState
	var err error
	if state.Model, err = d.modelPhase.solver.State(); err != nil {
		return OptimState{}, fmt.Errorf("optimstatedict: model: %v", err)
	}
	if state.Actor, err = d.actorPhase.solver.State(); err != nil {
		return OptimState{}, fmt.Errorf("optimstatedict: actor: %v", err)
	}
	if state.Value, err = d.valuePhase.solver.State(); err != nil {
		return OptimState{}, fmt.Errorf("optimstatedict: value: %v", err)
	}
	return state, nil
}

// LoadOptimStateDict restores solver state returned by OptimStateDict
func (d *Dreamer) LoadOptimStateDict(state OptimState) error {
	if err := d.modelPhase.solver.LoadState(state.Model); err != nil {
		return fmt.Errorf("loadoptimstatedict: model: %v", err)
	}
	if err := d.actorPhase.solver.LoadState(state.Actor); err != nil {
		return fmt.Errorf("loadoptimstatedict: actor: %v", err)
	}
	if err := d.valuePhase.solver.LoadState(state.Value); err != nil {
		return fmt.Errorf("loadoptimstatedict: value: %v", err)
	}
	return nil
}
