// Package solver implements the gradient descent solvers used to train
// each parameter group, wrapped so that they can be JSON serialized
// into configuration files and so that their internal state can be
// saved and restored between runs.
package solver

import (
	"encoding/json"
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
)

// Stateful is a G.Solver whose internal state can be serialized
type Stateful interface {
	G.Solver
	State() ([]byte, error)
	LoadState([]byte) error
}

// Solver wraps a G.Solver so that it can be JSON marshalled and
// unmarshalled.
type Solver struct {
	G.Solver `json:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	solver := Solver{Type: t, Config: c}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// Clone returns a new Solver with the same configuration and fresh
// internal state.
func (s *Solver) Clone() (*Solver, error) {
	return newSolver(s.Type, s.Config)
}

// State returns the serialized internal state of the Solver. Solvers
// without internal state return an empty state.
func (s *Solver) State() ([]byte, error) {
	if stateful, ok := s.Solver.(Stateful); ok {
		return stateful.State()
	}
	if s.Type == Vanilla {
		return []byte{}, nil
	}
	return nil, fmt.Errorf("state: %v solver does not expose its state",
		s.Type)
}

// LoadState restores internal state previously returned by State
func (s *Solver) LoadState(state []byte) error {
	if stateful, ok := s.Solver.(Stateful); ok {
		return stateful.LoadState(state)
	}
	if s.Type == Vanilla {
		return nil
	}
	return fmt.Errorf("loadstate: %v solver does not expose its state",
		s.Type)
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   Type
		Config json.RawMessage
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	var config Config
	switch raw.Type {
	case Adam:
		c := AdamConfig{}
		if err := json.Unmarshal(raw.Config, &c); err != nil {
			return fmt.Errorf("unmarshalJSON: could not decode %v config: %v",
				raw.Type, err)
		}
		config = c
	case Vanilla:
		c := VanillaConfig{}
		if err := json.Unmarshal(raw.Config, &c); err != nil {
			return fmt.Errorf("unmarshalJSON: could not decode %v config: %v",
				raw.Type, err)
		}
		config = c
	default:
		return fmt.Errorf("unmarshalJSON: unknown solver type %q", raw.Type)
	}

	s.Type = raw.Type
	s.Config = config
	s.Solver = config.Create()
	return nil
}

// Config implements a solver configuration and can be used to create
// the solvers it describes.
type Config interface {
	Create() G.Solver

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool
}
