package trackers

import (
	"context"
	"fmt"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godreamer/dreamer"
	"github.com/samuelfneumann/godreamer/storage"
	ts "github.com/samuelfneumann/godreamer/timestep"
	"gonum.org/v1/gonum/stat"
)

// Informer is an agent which reports the diagnostics of its last
// training call
type Informer interface {
	// Info returns the diagnostics of the last update, which are empty
	// if the last update did not train
	Info() dreamer.OptInfo

	// Steps returns the number of environment steps observed
	Steps() int
}

// Diagnostics writes the training diagnostics of an agent to a store.
// On each tracked timestep, any diagnostics produced since the last
// tracked timestep are written as one record per optimization step.
type Diagnostics struct {
	ctx    context.Context
	source Informer
	store  storage.Store
	runID  string

	lastStep int
	records  int
}

// NewDiagnostics returns a new Diagnostics tracker writing the
// diagnostics of source to the run runID of store
func NewDiagnostics(ctx context.Context, source Informer, store storage.Store,
	runID string) *Diagnostics {
	return &Diagnostics{
		ctx:      ctx,
		source:   source,
		store:    store,
		runID:    runID,
		lastStep: -1,
	}
}

// Track writes the diagnostics of the source's last update if they have
// not been written yet
func (d *Diagnostics) Track(ts.TimeStep) error {
	info := d.source.Info()
	step := d.source.Steps()
	if info.Len() == 0 || step == d.lastStep {
		return nil
	}
	d.lastStep = step

	records := make([]storage.DiagnosticsRecord, info.Len())
	for i := range records {
		records[i] = storage.DiagnosticsRecord{
			Step:        step,
			Index:       i,
			Diagnostics: info.At(i),
		}
	}
	if err := d.store.AppendDiagnostics(d.ctx, d.runID, records); err != nil {
		return fmt.Errorf("track: could not store diagnostics: %v", err)
	}
	d.records += len(records)

	log.Infof("step %d: loss %.4f  model %.4f  actor %.4f  value %.4f  "+
		"image %.4f  reward %.4f  kl %.4f", step, stat.Mean(info.Loss, nil),
		stat.Mean(info.ModelLoss, nil), stat.Mean(info.ActorLoss, nil),
		stat.Mean(info.ValueLoss, nil), stat.Mean(info.ImageLoss, nil),
		stat.Mean(info.RewardLoss, nil), stat.Mean(info.Divergence, nil))
	return nil
}

// Records returns the number of records written
func (d *Diagnostics) Records() int {
	return d.records
}

// Save does nothing, since records are written as they are tracked
func (d *Diagnostics) Save() error {
	return nil
}
