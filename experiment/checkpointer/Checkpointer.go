// Package checkpointer implements Checkpointers, which periodically save
// the state of a training run
package checkpointer

import (
	"io"

	ts "github.com/samuelfneumann/godreamer/timestep"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	Save(io.Writer) error
}

// Checkpointer checkpoints/saves objects based on timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}
