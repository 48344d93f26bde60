// Package expreplay implements a sequence experience replay buffer.
//
// The buffer stores the steps of a number of parallel environments in
// a ring buffer over time and samples batches of contiguous sequences.
// Sampled actions and rewards are aligned with the observation they
// lead into: for a sequence starting at step s, AllAction[i] and
// AllReward[i] are the action taken and reward received on the step
// before AllObservation[i] was observed.
package expreplay

import (
	"fmt"
)

// Replay is a sequence replay buffer
type Replay interface {
	// AppendSamples adds new environment steps to the buffer
	AppendSamples(samples *Samples) error

	// SampleBatch samples batchSize sequences of batchLength+1 steps
	SampleBatch(batchSize, batchLength int) (Batch, error)
}

// Samples are environment steps to append to a buffer: one entry per
// time step, each holding the data of all parallel environments in
// row-major order.
type Samples struct {
	Observation [][]uint8   // Envs x ObservationSize per step
	Action      [][]float64 // Action taken from the observation
	Reward      [][]float64 // Reward received after the action
	Done        [][]bool    // Whether the episode ended after the action
}

// Len returns the number of time steps in the samples
func (s *Samples) Len() int {
	return len(s.Observation)
}

// Batch is a batch of sequences sampled from a buffer. Each field has
// one entry per time step of the sequences, holding row-major
// batch x dim data.
type Batch struct {
	AllObservation [][]uint8
	AllAction      [][]float64
	AllReward      [][]float64
	AllDone        [][]bool
}

// Len returns the number of time steps in the batch
func (b Batch) Len() int {
	return len(b.AllObservation)
}

// Config describes a Sequence buffer
type Config struct {
	Size            int // Time steps stored per environment
	Envs            int
	ObservationSize int
	ActionSize      int
	SampleMethod    SelectorType
}

// Create returns the Sequence buffer described by the Config
func (c Config) Create(seed uint64) (*Sequence, error) {
	return New(c, seed)
}

// Sequence is a ring buffer of environment steps over time which
// samples contiguous sequences of steps.
type Sequence struct {
	cfg      Config
	selector Selector

	observation [][]uint8
	action      [][]float64
	reward      [][]float64
	done        [][]bool

	cursor int // Next position to write
	full   bool
}

// New returns a new Sequence buffer
func New(cfg Config, seed uint64) (*Sequence, error) {
	if cfg.Size <= 1 {
		return nil, fmt.Errorf("new: buffer size must be greater than 1, "+
			"have %d", cfg.Size)
	}
	if cfg.Envs <= 0 || cfg.ObservationSize <= 0 || cfg.ActionSize <= 0 {
		return nil, fmt.Errorf("new: Envs, ObservationSize, and ActionSize "+
			"must be positive, have %d, %d, %d", cfg.Envs,
			cfg.ObservationSize, cfg.ActionSize)
	}

	selector, err := NewSelector(cfg.SampleMethod, seed)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &Sequence{
		cfg:         cfg,
		selector:    selector,
		observation: make([][]uint8, cfg.Size),
		action:      make([][]float64, cfg.Size),
		reward:      make([][]float64, cfg.Size),
		done:        make([][]bool, cfg.Size),
	}, nil
}

// Len returns the number of time steps stored in the buffer
func (s *Sequence) Len() int {
	if s.full {
		return s.cfg.Size
	}
	return s.cursor
}

// Capacity returns the maximum number of time steps the buffer stores
func (s *Sequence) Capacity() int {
	return s.cfg.Size
}

// AppendSamples adds the steps in samples to the buffer, overwriting
// the oldest steps once the buffer is full.
func (s *Sequence) AppendSamples(samples *Samples) error {
	steps := samples.Len()
	if len(samples.Action) != steps || len(samples.Reward) != steps ||
		len(samples.Done) != steps {
		return fmt.Errorf("appendsamples: inconsistent number of steps:"+
			"\n\tobservation(%d)\n\taction(%d)\n\treward(%d)\n\tdone(%d)",
			steps, len(samples.Action), len(samples.Reward),
			len(samples.Done))
	}

	envs := s.cfg.Envs
	for t := 0; t < steps; t++ {
		if n := len(samples.Observation[t]); n != envs*s.cfg.ObservationSize {
			return fmt.Errorf("appendsamples: step %d: want %d observation "+
				"values, have %d", t, envs*s.cfg.ObservationSize, n)
		}
		if n := len(samples.Action[t]); n != envs*s.cfg.ActionSize {
			return fmt.Errorf("appendsamples: step %d: want %d action "+
				"values, have %d", t, envs*s.cfg.ActionSize, n)
		}
		if len(samples.Reward[t]) != envs || len(samples.Done[t]) != envs {
			return fmt.Errorf("appendsamples: step %d: want %d rewards and "+
				"dones, have %d and %d", t, envs, len(samples.Reward[t]),
				len(samples.Done[t]))
		}
	}

	for t := 0; t < steps; t++ {
		s.observation[s.cursor] = append([]uint8{}, samples.Observation[t]...)
		s.action[s.cursor] = append([]float64{}, samples.Action[t]...)
		s.reward[s.cursor] = append([]float64{}, samples.Reward[t]...)
		s.done[s.cursor] = append([]bool{}, samples.Done[t]...)

		s.cursor++
		if s.cursor == s.cfg.Size {
			s.cursor = 0
			s.full = true
		}
	}
	return nil
}

// physical returns the ring index of logical position k, where 0 is
// the oldest step in the buffer
func (s *Sequence) physical(k int) int {
	if !s.full {
		return k
	}
	return (s.cursor + k) % s.cfg.Size
}

// SampleBatch samples batchSize sequences of batchLength+1 steps. One
// extra step before each sequence must be stored for its first
// action and reward, so the buffer must hold at least batchLength+2
// steps.
func (s *Sequence) SampleBatch(batchSize, batchLength int) (Batch, error) {
	if batchSize <= 0 || batchLength <= 0 {
		return Batch{}, fmt.Errorf("samplebatch: batch size and length "+
			"must be positive, have %d and %d", batchSize, batchLength)
	}

	stored := s.Len()
	if stored == 0 {
		return Batch{}, &ExpReplayError{Op: "samplebatch", Err: errEmptyBuffer}
	}

	length := batchLength + 1
	low, high := 1, stored-length
	if high < low {
		return Batch{}, &ExpReplayError{
			Op:  "samplebatch",
			Err: errInsufficientSamples,
		}
	}

	envs := s.cfg.Envs
	obsSize, actSize := s.cfg.ObservationSize, s.cfg.ActionSize

	// Choose over (start, env) pairs
	chosen := s.selector.choose(batchSize, 0, (high-low+1)*envs-1)

	batch := Batch{
		AllObservation: make([][]uint8, length),
		AllAction:      make([][]float64, length),
		AllReward:      make([][]float64, length),
		AllDone:        make([][]bool, length),
	}
	for i := 0; i < length; i++ {
		batch.AllObservation[i] = make([]uint8, batchSize*obsSize)
		batch.AllAction[i] = make([]float64, batchSize*actSize)
		batch.AllReward[i] = make([]float64, batchSize)
		batch.AllDone[i] = make([]bool, batchSize)
	}

	for b, c := range chosen {
		start, env := low+c/envs, c%envs
		for i := 0; i < length; i++ {
			obs := s.physical(start + i)
			prev := s.physical(start + i - 1)

			copy(batch.AllObservation[i][b*obsSize:(b+1)*obsSize],
				s.observation[obs][env*obsSize:(env+1)*obsSize])
			copy(batch.AllAction[i][b*actSize:(b+1)*actSize],
				s.action[prev][env*actSize:(env+1)*actSize])
			batch.AllReward[i][b] = s.reward[prev][env]
			batch.AllDone[i][b] = s.done[prev][env]
		}
	}

	return batch, nil
}
