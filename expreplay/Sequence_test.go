package expreplay

import (
	"testing"
)

// steps returns samples of n steps for a single environment where
// observation, action, and reward at step t all encode t.
func steps(from, n int) *Samples {
	s := &Samples{}
	for t := from; t < from+n; t++ {
		s.Observation = append(s.Observation, []uint8{uint8(t), uint8(t)})
		s.Action = append(s.Action, []float64{float64(t)})
		s.Reward = append(s.Reward, []float64{float64(10 * t)})
		s.Done = append(s.Done, []bool{t%5 == 4})
	}
	return s
}

func newBuffer(t *testing.T, size int, method SelectorType) *Sequence {
	b, err := New(Config{
		Size:            size,
		Envs:            1,
		ObservationSize: 2,
		ActionSize:      1,
		SampleMethod:    method,
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSampleBatchAlignment(t *testing.T) {
	b := newBuffer(t, 100, Uniform)
	if err := b.AppendSamples(steps(0, 30)); err != nil {
		t.Fatal(err)
	}

	const batchSize, batchLength = 8, 5
	batch, err := b.SampleBatch(batchSize, batchLength)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Len() != batchLength+1 {
		t.Fatalf("length: want(%d) have(%d)", batchLength+1, batch.Len())
	}

	for seq := 0; seq < batchSize; seq++ {
		start := int(batch.AllObservation[0][seq*2])
		for i := 0; i < batch.Len(); i++ {
			obs := int(batch.AllObservation[i][seq*2])
			if obs != start+i {
				t.Errorf("sequence %d is not contiguous at %d", seq, i)
			}

			// Actions and rewards lead into the observation
			if a := batch.AllAction[i][seq]; a != float64(obs-1) {
				t.Errorf("action: want(%v) have(%v)", obs-1, a)
			}
			if r := batch.AllReward[i][seq]; r != float64(10*(obs-1)) {
				t.Errorf("reward: want(%v) have(%v)", 10*(obs-1), r)
			}
		}
	}
}

func TestSampleBatchWrapsAround(t *testing.T) {
	b := newBuffer(t, 10, Fifo)
	if err := b.AppendSamples(steps(0, 25)); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 10 {
		t.Fatalf("len: want(10) have(%d)", b.Len())
	}

	// Steps 15 through 24 remain. Sequences of 4 steps need a previous
	// step, so the oldest sequence starts at step 16
	batch, err := b.SampleBatch(7, 3)
	if err != nil {
		t.Fatal(err)
	}
	for seq := 0; seq < 7; seq++ {
		start := int(batch.AllObservation[0][seq*2])
		if start < 16 || start+3 > 24 {
			t.Errorf("sequence %d starting at %d is outside stored steps",
				seq, start)
		}
		for i := 1; i < batch.Len(); i++ {
			if int(batch.AllObservation[i][seq*2]) != start+i {
				t.Errorf("sequence %d straddles the write cursor", seq)
			}
		}
	}

	// Fifo sweeps from the oldest sequence
	if start := batch.AllObservation[0][0]; start != 16 {
		t.Errorf("first fifo sequence: want(16) have(%d)", start)
	}
}

func TestSampleBatchErrors(t *testing.T) {
	b := newBuffer(t, 20, Uniform)

	_, err := b.SampleBatch(2, 3)
	if !IsEmptyBuffer(err) {
		t.Errorf("want empty buffer error, have %v", err)
	}

	if err := b.AppendSamples(steps(0, 4)); err != nil {
		t.Fatal(err)
	}
	_, err = b.SampleBatch(2, 3)
	if !IsInsufficientSamples(err) {
		t.Errorf("want insufficient samples error, have %v", err)
	}

	if err := b.AppendSamples(steps(4, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SampleBatch(2, 3); err != nil {
		t.Errorf("unexpected error with batchLength+2 steps: %v", err)
	}
}

func TestAppendSamplesValidates(t *testing.T) {
	b := newBuffer(t, 20, Uniform)

	bad := steps(0, 3)
	bad.Reward = bad.Reward[:2]
	if err := b.AppendSamples(bad); err == nil {
		t.Error("expected error for inconsistent steps")
	}

	bad = steps(0, 3)
	bad.Observation[1] = []uint8{1}
	if err := b.AppendSamples(bad); err == nil {
		t.Error("expected error for wrong observation size")
	}
	if b.Len() != 0 {
		t.Errorf("invalid samples were partially added: len %d", b.Len())
	}
}

func TestMultipleEnvs(t *testing.T) {
	b, err := New(Config{Size: 10, Envs: 2, ObservationSize: 1,
		ActionSize: 1}, 3)
	if err != nil {
		t.Fatal(err)
	}

	s := &Samples{}
	for step := 0; step < 6; step++ {
		// Environment e observes 100*e + step
		s.Observation = append(s.Observation,
			[]uint8{uint8(step), uint8(100 + step)})
		s.Action = append(s.Action, []float64{float64(step),
			float64(100 + step)})
		s.Reward = append(s.Reward, []float64{0, 1})
		s.Done = append(s.Done, []bool{false, false})
	}
	if err := b.AppendSamples(s); err != nil {
		t.Fatal(err)
	}

	batch, err := b.SampleBatch(16, 2)
	if err != nil {
		t.Fatal(err)
	}
	for seq := 0; seq < 16; seq++ {
		obs := batch.AllObservation[0][seq]
		env := 0
		if obs >= 100 {
			env = 1
		}
		for i := 0; i < batch.Len(); i++ {
			if r := batch.AllReward[i][seq]; r != float64(env) {
				t.Errorf("sequence %d mixes environments", seq)
			}
		}
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(Config{Size: 1, Envs: 1, ObservationSize: 1,
		ActionSize: 1}, 0); err == nil {
		t.Error("expected error for size 1")
	}
	if _, err := New(Config{Size: 10, Envs: 1, ObservationSize: 1,
		ActionSize: 1, SampleMethod: "Prioritized"}, 0); err == nil {
		t.Error("expected error for unknown selector")
	}
}
