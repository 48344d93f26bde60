package checkpointer

import (
	"fmt"
	"os"

	ts "github.com/samuelfneumann/godreamer/timestep"
)

// nStep implements checkpointing every N steps. Steps are counted over
// all calls to Checkpoint, across episodes.
type nStep struct {
	interval int
	steps    int
	object   Serializable // Object to save

	// filename returns the string filename of the file to save the object
	// in.
	//
	// If each serialized object should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// file1.bin, file2.bin, ..., fileK.bin), then simply use the
	// static function FilenameEnumerator, which will return a function
	// that will enumerate filenames.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n steps.
func NewNStep(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNStep: interval must be positive, have %d",
			n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the Checkpointer's tracked object to a new file if
// a multiple of n steps have passed
func (n *nStep) Checkpoint(ts.TimeStep) error {
	n.steps++
	if n.steps%n.interval != 0 {
		return nil
	}

	file, err := os.Create(n.filename())
	if err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	defer file.Close()

	if err := n.object.Save(file); err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	return nil
}
