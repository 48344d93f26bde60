package dreamer

import (
	"fmt"
	"math"
	"os"

	"github.com/samuelfneumann/godreamer/agent"
	"github.com/samuelfneumann/godreamer/expreplay"
	"github.com/samuelfneumann/godreamer/network"
	"github.com/samuelfneumann/godreamer/policy"
	"github.com/samuelfneumann/godreamer/rssm"
	ts "github.com/samuelfneumann/godreamer/timestep"
	"github.com/samuelfneumann/godreamer/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// behaviour filters the latent state of a single environment online
// and selects actions from it. Its networks are copies of the
// trainer's networks.
type behaviour struct {
	g  *G.ExprGraph
	vm G.VM

	encoder        *network.MLP
	representation *rssm.Representation
	transition     *rssm.Transition
	policy         *policy.TanhGaussian

	observation *G.Node
	prevAction  *G.Node
	prev        rssm.State
	stateNoise  *network.Noise
	actionNoise *network.Noise

	post   *rssm.StateReader
	action G.Value
	mode   G.Value

	state      rssm.StateValue
	lastAction []float64
}

func newBehaviour(nets *networks, obsSize, actionSize int,
	seed uint64) (*behaviour, error) {
	g := G.NewGraph()
	cfg := nets.dynamics.Config()

	b := &behaviour{
		g:              g,
		encoder:        nets.encoder.CloneTo(g),
		representation: nets.dynamics.Representation.CloneTo(g),
		transition:     nets.dynamics.Transition.CloneTo(g),
		policy:         nets.policy.CloneTo(g),
		observation:    input(g, "behaviourObservation", 1, obsSize),
		prevAction:     input(g, "behaviourPrevAction", 1, actionSize),
	}
	b.prev = rssm.InitialState(g, "behaviourPrev", 1, cfg.DeterSize,
		cfg.StochSize)
	b.stateNoise = network.NewNoise(g, "behaviourStateNoise", 1, 1,
		cfg.StochSize, seed)
	b.actionNoise = network.NewNoise(g, "behaviourActionNoise", 1, 1,
		actionSize, seed+1)

	embed, err := b.encoder.Fwd(b.observation)
	if err != nil {
		return nil, fmt.Errorf("newbehaviour: %v", err)
	}
	prior, err := b.transition.Fwd(b.prevAction, b.prev, nil)
	if err != nil {
		return nil, fmt.Errorf("newbehaviour: %v", err)
	}
	post, err := b.representation.Fwd(embed, prior, b.stateNoise.Nodes()[0])
	if err != nil {
		return nil, fmt.Errorf("newbehaviour: %v", err)
	}
	b.post = rssm.ReadState(post)

	feat, err := post.Feature()
	if err != nil {
		return nil, fmt.Errorf("newbehaviour: %v", err)
	}
	action, err := b.policy.Fwd(feat, b.actionNoise.Nodes()[0])
	if err != nil {
		return nil, fmt.Errorf("newbehaviour: %v", err)
	}
	mode, err := b.policy.Mode(feat)
	if err != nil {
		return nil, fmt.Errorf("newbehaviour: %v", err)
	}
	G.Read(action, &b.action)
	G.Read(mode, &b.mode)

	b.vm = G.NewTapeMachine(g)
	b.reset()
	return b, nil
}

// reset resets the latent state and previous action to zero
func (b *behaviour) reset() {
	cfg := b.transition.Config()
	b.state = rssm.StateValue{
		Deter: make([]float64, cfg.DeterSize),
		Stoch: make([]float64, cfg.StochSize),
		Mean:  make([]float64, cfg.StochSize),
		Std:   make([]float64, cfg.StochSize),
	}
	b.lastAction = make([]float64, cfg.ActionSize)
}

// sync copies the trainer's current weights into the behaviour graph
func (b *behaviour) sync(nets *networks) error {
	pairs := []struct{ dest, source network.Module }{
		{b.encoder, nets.encoder},
		{b.representation, nets.dynamics.Representation},
		{b.transition, nets.dynamics.Transition},
		{b.policy, nets.policy},
	}
	for _, p := range pairs {
		if err := network.Set(p.dest, p.source); err != nil {
			return fmt.Errorf("sync: %v", err)
		}
	}
	return nil
}

// selectAction updates the latent state with an observation and
// returns the policy's action. If greedy is true, the posterior mean
// is used as the latent state and the mode of the policy is returned.
func (b *behaviour) selectAction(obs []uint8, greedy bool) ([]float64,
	error) {
	if err := let(b.observation, normalize(obs)); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	if err := let(b.prevAction, b.lastAction); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	if err := b.prev.Let(b.state); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	// Greedy actions are taken from the mean of the posterior
	sample := b.stateNoise.Sample
	if greedy {
		sample = b.stateNoise.Zero
	}
	if err := sample(); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	if err := b.actionNoise.Sample(); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	defer b.vm.Reset()
	if err := b.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	b.state = b.post.Value()
	if greedy {
		return rssm.Copy(b.mode), nil
	}
	return rssm.Copy(b.action), nil
}

var _ agent.Agent = &Agent{}

// Agent acts in a single environment with the policy of a Dreamer
// trainer and trains it on the steps it observes. During training,
// Gaussian exploration noise is added to the policy's actions.
type Agent struct {
	trainer   *Dreamer
	behaviour *behaviour
	explore   distuv.Normal

	obsSize    int
	actionSize int

	// Environment steps observed so far
	itr     int
	samples *expreplay.Samples
	prevObs []uint8
	info    OptInfo

	eval bool
}

// NewAgent returns a new Agent acting with the policy of trainer
func NewAgent(trainer *Dreamer, seed uint64) (*Agent, error) {
	b, err := newBehaviour(trainer.nets, trainer.obsSize, trainer.actionSize,
		seed)
	if err != nil {
		return nil, fmt.Errorf("newagent: %v", err)
	}
	if err := b.sync(trainer.nets); err != nil {
		return nil, fmt.Errorf("newagent: %v", err)
	}

	return &Agent{
		trainer:   trainer,
		behaviour: b,
		explore: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed + 2),
		},
		obsSize:    trainer.obsSize,
		actionSize: trainer.actionSize,
		samples:    &expreplay.Samples{},
	}, nil
}

// Trainer returns the trainer of the agent
func (a *Agent) Trainer() *Dreamer { return a.trainer }

// Eval sets the agent to evaluation mode, in which it takes the mode
// of its policy and does not learn
func (a *Agent) Eval() { a.eval = true }

// Train sets the agent to training mode
func (a *Agent) Train() { a.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (a *Agent) IsEval() bool { return a.eval }

// ExplAmount returns the current standard deviation of the
// exploration noise
func (a *Agent) ExplAmount() float64 {
	cfg := a.trainer.cfg
	amount := cfg.ExplAmount
	if cfg.ExplDecay > 0 {
		amount -= float64(a.itr) / cfg.ExplDecay
	}
	return math.Max(cfg.ExplMin, amount)
}

// SelectAction returns the action to take in the observation of t
func (a *Agent) SelectAction(t ts.TimeStep) *mat.VecDense {
	obs, err := pixels(t.Observation, a.obsSize)
	if err != nil {
		panic(fmt.Sprintf("selectAction: %v", err))
	}
	action, err := a.behaviour.selectAction(obs, a.eval)
	if err != nil {
		panic(fmt.Sprintf("selectAction: %v", err))
	}

	if !a.eval {
		amount := a.ExplAmount()
		for i := range action {
			action[i] += amount * a.explore.Rand()
		}
		floatutils.ClipSlice(action, -1, 1)
	}

	a.behaviour.lastAction = action
	return mat.NewVecDense(len(action), append([]float64{}, action...))
}

// ObserveFirst records the first observation of an episode and resets
// the latent state
func (a *Agent) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)\n",
			t.Number)
	}
	obs, err := pixels(t.Observation, a.obsSize)
	if err != nil {
		return fmt.Errorf("observeFirst: %v", err)
	}

	a.behaviour.reset()
	a.prevObs = obs
	return nil
}

// Observe records that action taken from the previous observation led
// to nextStep
func (a *Agent) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if a.prevObs == nil {
		return fmt.Errorf("observe: no previous observation, ObserveFirst " +
			"must be called at the start of each episode")
	}
	if action.Len() != a.actionSize {
		return fmt.Errorf("observe: invalid action size\n\twant(%d)"+
			"\n\thave(%d)", a.actionSize, action.Len())
	}
	obs, err := pixels(nextStep.Observation, a.obsSize)
	if err != nil {
		return fmt.Errorf("observe: %v", err)
	}

	if !a.eval {
		act := make([]float64, action.Len())
		for i := range act {
			act[i] = action.AtVec(i)
		}
		a.samples.Observation = append(a.samples.Observation, a.prevObs)
		a.samples.Action = append(a.samples.Action, act)
		a.samples.Reward = append(a.samples.Reward,
			[]float64{nextStep.Reward})
		a.samples.Done = append(a.samples.Done, []bool{nextStep.Last()})
		a.itr++
	}

	a.prevObs = obs
	return nil
}

// Step hands the steps observed since the last call to the trainer,
// which trains if it is time to do so. The behaviour policy is updated
// after training.
func (a *Agent) Step() error {
	if a.eval {
		return nil
	}

	samples := a.samples
	if samples.Len() == 0 {
		samples = nil
	}
	info, err := a.trainer.Optimize(a.itr, samples)
	a.samples = &expreplay.Samples{}
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	a.info = info

	if info.Len() > 0 {
		if err := a.behaviour.sync(a.trainer.nets); err != nil {
			return fmt.Errorf("step: %v", err)
		}
	}
	return nil
}

// EndEpisode performs cleanup at the end of an episode
func (a *Agent) EndEpisode() {
	a.prevObs = nil
}

// Info returns the diagnostics of the last call to Step which trained
// the trainer, or an empty OptInfo if the last call did not train
func (a *Agent) Info() OptInfo { return a.info }

// Steps returns the number of training steps observed by the agent
func (a *Agent) Steps() int { return a.itr }

// pixels converts an observation of pixel intensities in [0, 255] to
// bytes
func pixels(obs mat.Vector, size int) ([]uint8, error) {
	if obs == nil || obs.Len() != size {
		return nil, fmt.Errorf("observation must have %d pixels", size)
	}
	out := make([]uint8, size)
	for i := range out {
		out[i] = uint8(math.Round(floatutils.Clip(obs.AtVec(i), 0, 255)))
	}
	return out, nil
}
