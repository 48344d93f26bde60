package rssm

import (
	"fmt"

	"github.com/samuelfneumann/godreamer/network"
	G "gorgonia.org/gorgonia"
)

// gaussianHead predicts the mean and standard deviation of a diagonal
// Gaussian from a hidden layer
type gaussianHead struct {
	hidden *network.MLP
	mean   *network.MLP
	std    *network.MLP
	minStd float64
}

func newGaussianHead(g *G.ExprGraph, name string, features, hidden,
	outputs int, act *network.Activation, minStd float64,
	init G.InitWFn) (*gaussianHead, error) {
	h, err := network.NewLinear(g, name+"Hidden", features, hidden, act, init)
	if err != nil {
		return nil, err
	}
	mean, err := network.NewLinear(g, name+"Mean", hidden, outputs,
		network.Identity(), init)
	if err != nil {
		return nil, err
	}
	std, err := network.NewLinear(g, name+"Std", hidden, outputs,
		network.Softplus(), init)
	if err != nil {
		return nil, err
	}
	return &gaussianHead{hidden: h, mean: mean, std: std, minStd: minStd}, nil
}

// fwd returns the mean and standard deviation predicted from x and a
// sample drawn using the standard normal noise. If noise is nil, the
// sample is the mean.
func (h *gaussianHead) fwd(x, noise *G.Node) (mean, std, sample *G.Node,
	err error) {
	hidden, err := h.hidden.Fwd(x)
	if err != nil {
		return nil, nil, nil, err
	}
	if mean, err = h.mean.Fwd(hidden); err != nil {
		return nil, nil, nil, err
	}
	if std, err = h.std.Fwd(hidden); err != nil {
		return nil, nil, nil, err
	}
	std = G.Must(G.Add(std, G.NewConstant(h.minStd)))

	if noise == nil {
		return mean, std, mean, nil
	}
	if !noise.Shape().Eq(mean.Shape()) {
		return nil, nil, nil, fmt.Errorf("fwd: noise shape %v != sample "+
			"shape %v", noise.Shape(), mean.Shape())
	}
	sample = G.Must(G.Add(mean, G.Must(G.HadamardProd(std, noise))))
	return mean, std, sample, nil
}

func (h *gaussianHead) cloneTo(g *G.ExprGraph) *gaussianHead {
	return &gaussianHead{
		hidden: h.hidden.CloneTo(g),
		mean:   h.mean.CloneTo(g),
		std:    h.std.CloneTo(g),
		minStd: h.minStd,
	}
}

func (h *gaussianHead) modules() []network.Module {
	return []network.Module{h.hidden, h.mean, h.std}
}

// Transition is the prior transition model: it predicts the next
// latent state from the previous latent state and an action without
// observing the environment.
type Transition struct {
	g     *G.ExprGraph
	cfg   Config
	input *network.MLP
	cell  *network.GRU
	prior *gaussianHead

	learnables G.Nodes
}

// NewTransition adds a new transition model to g
func NewTransition(g *G.ExprGraph, cfg Config,
	init G.InitWFn) (*Transition, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("newtransition: %v", err)
	}

	input, err := network.NewLinear(g, "transitionInput",
		cfg.StochSize+cfg.ActionSize, cfg.HiddenSize, cfg.activation(), init)
	if err != nil {
		return nil, fmt.Errorf("newtransition: %v", err)
	}
	cell, err := network.NewGRU(g, "transitionGRU", cfg.HiddenSize,
		cfg.DeterSize, init)
	if err != nil {
		return nil, fmt.Errorf("newtransition: %v", err)
	}
	prior, err := newGaussianHead(g, "transitionPrior", cfg.DeterSize,
		cfg.HiddenSize, cfg.StochSize, cfg.activation(), cfg.MinStd, init)
	if err != nil {
		return nil, fmt.Errorf("newtransition: %v", err)
	}

	return &Transition{g: g, cfg: cfg, input: input, cell: cell,
		prior: prior}, nil
}

// Fwd adds one prior transition to the graph. The noise is standard
// normal noise used to sample the stochastic state; if nil, the
// stochastic state is the mean of the prior.
func (t *Transition) Fwd(action *G.Node, prev State, noise *G.Node) (State,
	error) {
	if action.Shape()[1] != t.cfg.ActionSize {
		return State{}, fmt.Errorf("fwd: invalid action size\n\twant(%d)"+
			"\n\thave(%d)", t.cfg.ActionSize, action.Shape()[1])
	}

	x, err := G.Concat(1, prev.Stoch, action)
	if err != nil {
		return State{}, fmt.Errorf("fwd: could not concatenate stochastic "+
			"state and action: %v", err)
	}
	if x, err = t.input.Fwd(x); err != nil {
		return State{}, fmt.Errorf("fwd: %v", err)
	}

	deter, err := t.cell.Fwd(x, prev.Deter)
	if err != nil {
		return State{}, fmt.Errorf("fwd: %v", err)
	}

	mean, std, stoch, err := t.prior.fwd(deter, noise)
	if err != nil {
		return State{}, fmt.Errorf("fwd: %v", err)
	}

	return State{Deter: deter, Stoch: stoch, Mean: mean, Std: std}, nil
}

// CloneTo clones the transition model into graph g
func (t *Transition) CloneTo(g *G.ExprGraph) *Transition {
	return &Transition{
		g:     g,
		cfg:   t.cfg,
		input: t.input.CloneTo(g),
		cell:  t.cell.CloneTo(g),
		prior: t.prior.cloneTo(g),
	}
}

// Graph returns the graph holding the model's weights
func (t *Transition) Graph() *G.ExprGraph { return t.g }

// Config returns the sizes of the model
func (t *Transition) Config() Config { return t.cfg }

// Learnables returns the learnable nodes of the transition model
func (t *Transition) Learnables() G.Nodes {
	if t.learnables == nil {
		modules := append([]network.Module{t.input, t.cell},
			t.prior.modules()...)
		t.learnables = network.Learnables(modules...)
	}
	return t.learnables
}

// Model returns the learnable nodes as G.ValueGrads
func (t *Transition) Model() []G.ValueGrad {
	model := make([]G.ValueGrad, len(t.Learnables()))
	for i, n := range t.Learnables() {
		model[i] = n
	}
	return model
}

// Representation is the posterior model: it corrects the prior latent
// state using an embedded observation.
type Representation struct {
	g         *G.ExprGraph
	cfg       Config
	posterior *gaussianHead

	learnables G.Nodes
}

// NewRepresentation adds a new representation model to g
func NewRepresentation(g *G.ExprGraph, cfg Config,
	init G.InitWFn) (*Representation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("newrepresentation: %v", err)
	}

	posterior, err := newGaussianHead(g, "representationPosterior",
		cfg.DeterSize+cfg.EmbedSize, cfg.HiddenSize, cfg.StochSize,
		cfg.activation(), cfg.MinStd, init)
	if err != nil {
		return nil, fmt.Errorf("newrepresentation: %v", err)
	}

	return &Representation{g: g, cfg: cfg, posterior: posterior}, nil
}

// Fwd adds the posterior of one step to the graph. The posterior shares
// its deterministic state with the prior.
func (r *Representation) Fwd(embed *G.Node, prior State,
	noise *G.Node) (State, error) {
	if embed.Shape()[1] != r.cfg.EmbedSize {
		return State{}, fmt.Errorf("fwd: invalid embedding size\n\twant(%d)"+
			"\n\thave(%d)", r.cfg.EmbedSize, embed.Shape()[1])
	}

	x, err := G.Concat(1, prior.Deter, embed)
	if err != nil {
		return State{}, fmt.Errorf("fwd: could not concatenate "+
			"deterministic state and embedding: %v", err)
	}

	mean, std, stoch, err := r.posterior.fwd(x, noise)
	if err != nil {
		return State{}, fmt.Errorf("fwd: %v", err)
	}

	return State{Deter: prior.Deter, Stoch: stoch, Mean: mean, Std: std}, nil
}

// CloneTo clones the representation model into graph g
func (r *Representation) CloneTo(g *G.ExprGraph) *Representation {
	return &Representation{g: g, cfg: r.cfg, posterior: r.posterior.cloneTo(g)}
}

// Graph returns the graph holding the model's weights
func (r *Representation) Graph() *G.ExprGraph { return r.g }

// Learnables returns the learnable nodes of the representation model
func (r *Representation) Learnables() G.Nodes {
	if r.learnables == nil {
		r.learnables = network.Learnables(r.posterior.modules()...)
	}
	return r.learnables
}

// Model returns the learnable nodes as G.ValueGrads
func (r *Representation) Model() []G.ValueGrad {
	model := make([]G.ValueGrad, len(r.Learnables()))
	for i, n := range r.Learnables() {
		model[i] = n
	}
	return model
}
