package dreamer

import (
	"fmt"

	"github.com/samuelfneumann/godreamer/initwfn"
	"github.com/samuelfneumann/godreamer/network"
	"github.com/samuelfneumann/godreamer/policy"
	"github.com/samuelfneumann/godreamer/rssm"
	"github.com/samuelfneumann/godreamer/solver"
)

// Config implements a configuration of a Dreamer trainer
type Config struct {
	// Latent dynamics model
	StochSize  int
	DeterSize  int
	HiddenSize int
	MinStd     float64
	EmbedSize  int

	// Hidden layers of the observation encoder and decoder and of the
	// reward and value models
	EncoderHidden []int
	DecoderHidden []int
	RewardHidden  []int
	ValueHidden   []int
	Activation    *network.Activation

	Policy policy.Config

	InitWFn     *initwfn.InitWFn
	ModelSolver *solver.Solver
	ActorSolver *solver.Solver
	ValueSolver *solver.Solver

	// Optimization schedule
	Prefill     int // Environment steps collected before training
	TrainEvery  int // Environment steps between optimize calls
	TrainSteps  int // Inner optimization steps per optimize call
	BatchSize   int
	BatchLength int
	GradClip    float64

	// Imagination
	Discount float64
	Lambda   float64
	Horizon  int

	// KL regularizer
	FreeNats float64
	KLScale  float64

	// Exploration of the behaviour agent
	ExplAmount float64
	ExplDecay  float64 // Steps per unit of linear decay, 0 for none
	ExplMin    float64

	// Video summaries
	VideoEvery    int
	VideoSummaryT int
	VideoSummaryB int

	Verbose bool

	// InitialOptimState, if not nil, is loaded into the solvers when the
	// trainer is constructed
	InitialOptimState *OptimState `json:"-"`
}

// DefaultConfig returns the default Dreamer configuration
func DefaultConfig() Config {
	modelSolver, err := solver.NewDefaultAdam(6e-4, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}
	actorSolver, err := solver.NewDefaultAdam(8e-5, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}
	valueSolver, err := solver.NewDefaultAdam(8e-5, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}

	return Config{
		StochSize:  30,
		DeterSize:  200,
		HiddenSize: 200,
		MinStd:     0.1,
		EmbedSize:  256,

		EncoderHidden: []int{400, 400},
		DecoderHidden: []int{400, 400},
		RewardHidden:  []int{400, 400},
		ValueHidden:   []int{400, 400, 400},
		Activation:    network.ELU(),

		Policy: policy.DefaultConfig(),

		InitWFn:     initwfn.NewGlorotU(1.0),
		ModelSolver: modelSolver,
		ActorSolver: actorSolver,
		ValueSolver: valueSolver,

		Prefill:     5000,
		TrainEvery:  1000,
		TrainSteps:  100,
		BatchSize:   16,
		BatchLength: 50,
		GradClip:    100,

		Discount: 0.99,
		Lambda:   0.95,
		Horizon:  15,

		FreeNats: 3,
		KLScale:  1,

		ExplAmount: 0.3,
		ExplDecay:  0,
		ExplMin:    0,

		VideoEvery:    10,
		VideoSummaryT: 25,
		VideoSummaryB: 4,
	}
}

// Validate checks that the Config is usable
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"StochSize", c.StochSize},
		{"DeterSize", c.DeterSize},
		{"HiddenSize", c.HiddenSize},
		{"EmbedSize", c.EmbedSize},
		{"TrainEvery", c.TrainEvery},
		{"TrainSteps", c.TrainSteps},
		{"BatchSize", c.BatchSize},
		{"BatchLength", c.BatchLength},
		{"VideoEvery", c.VideoEvery},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("validate: %s must be positive, have %d",
				p.name, p.value)
		}
	}

	if c.Horizon < 2 {
		return fmt.Errorf("validate: horizon must be at least 2 to "+
			"compute a return, have %d", c.Horizon)
	}
	if c.Prefill < 0 {
		return fmt.Errorf("validate: Prefill must be non-negative")
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("validate: Lambda must be in [0, 1], have %v",
			c.Lambda)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: Discount must be in [0, 1], have %v",
			c.Discount)
	}
	if c.GradClip <= 0 {
		return fmt.Errorf("validate: GradClip must be positive, have %v",
			c.GradClip)
	}
	if c.FreeNats < 0 || c.KLScale < 0 {
		return fmt.Errorf("validate: FreeNats and KLScale must be "+
			"non-negative, have %v and %v", c.FreeNats, c.KLScale)
	}
	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer")
	}
	if c.ModelSolver == nil || c.ActorSolver == nil || c.ValueSolver == nil {
		return fmt.Errorf("validate: a solver is required for each of the " +
			"model, actor, and value")
	}

	return nil
}

// RSSM returns the configuration of the latent dynamics model for
// actions of size actionSize
func (c Config) RSSM(actionSize int) rssm.Config {
	return rssm.Config{
		StochSize:  c.StochSize,
		DeterSize:  c.DeterSize,
		HiddenSize: c.HiddenSize,
		EmbedSize:  c.EmbedSize,
		ActionSize: actionSize,
		MinStd:     c.MinStd,
		Activation: c.activation(),
	}
}

func (c Config) activation() *network.Activation {
	if c.Activation == nil {
		return network.ELU()
	}
	return c.Activation
}
