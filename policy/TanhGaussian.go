// Package policy implements the actor used to select actions from
// latent state features.
package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/godreamer/network"
	G "gorgonia.org/gorgonia"
)

// Config describes a TanhGaussian policy
type Config struct {
	HiddenSizes []int
	Activation  *network.Activation

	// InitStd is the standard deviation of the pre-tanh Gaussian when
	// the network's standard deviation output is zero
	InitStd float64
	MinStd  float64

	// MeanScale softly bounds the pre-tanh mean to (-MeanScale,
	// MeanScale)
	MeanScale float64
}

// DefaultConfig returns the default policy configuration
func DefaultConfig() Config {
	return Config{
		HiddenSizes: []int{400, 400, 400, 400},
		Activation:  network.ELU(),
		InitStd:     5,
		MinStd:      1e-4,
		MeanScale:   5,
	}
}

// TanhGaussian is a Gaussian policy whose samples are squashed into
// (-1, 1) by a tanh. Given a network prediction of the mean μ and
// standard deviation σ of the Gaussian, actions are selected by
// sampling ɛ ~ N(0, 1) and computing tanh(μ + σ * ɛ), which allows
// gradients to flow from the action back into the network.
//
//	μ = s * tanh(μ_raw / s)
//	σ = softplus(σ_raw + softplus⁻¹(InitStd)) + MinStd
type TanhGaussian struct {
	g          *G.ExprGraph
	cfg        Config
	actionDims int

	trunk *network.MLP
	mean  *network.MLP
	std   *network.MLP

	learnables G.Nodes
}

// New adds a new TanhGaussian policy to g acting from features of size
// features.
func New(g *G.ExprGraph, cfg Config, features, actionDims int,
	init G.InitWFn) (*TanhGaussian, error) {
	if len(cfg.HiddenSizes) == 0 {
		return nil, fmt.Errorf("new: policy requires at least one hidden " +
			"layer")
	}
	if cfg.InitStd <= 0 {
		return nil, fmt.Errorf("new: InitStd must be positive, have %v",
			cfg.InitStd)
	}
	if cfg.MeanScale <= 0 {
		return nil, fmt.Errorf("new: MeanScale must be positive, have %v",
			cfg.MeanScale)
	}
	act := cfg.Activation
	if act == nil {
		act = network.ELU()
	}

	biases := make([]bool, len(cfg.HiddenSizes))
	activations := make([]*network.Activation, len(cfg.HiddenSizes))
	for i := range biases {
		biases[i] = true
		activations[i] = act
	}

	trunk, err := network.NewMLP(g, "policyTrunk", features, cfg.HiddenSizes,
		biases, activations, init)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	hidden := cfg.HiddenSizes[len(cfg.HiddenSizes)-1]
	mean, err := network.NewLinear(g, "policyMean", hidden, actionDims,
		network.Identity(), init)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	std, err := network.NewLinear(g, "policyStd", hidden, actionDims,
		network.Identity(), init)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &TanhGaussian{
		g:          g,
		cfg:        cfg,
		actionDims: actionDims,
		trunk:      trunk,
		mean:       mean,
		std:        std,
	}, nil
}

// Distribution adds the mean and standard deviation of the pre-tanh
// Gaussian in each state to the graph.
func (p *TanhGaussian) Distribution(feature *G.Node) (mean, std *G.Node,
	err error) {
	hidden, err := p.trunk.Fwd(feature)
	if err != nil {
		return nil, nil, fmt.Errorf("distribution: %v", err)
	}

	rawMean, err := p.mean.Fwd(hidden)
	if err != nil {
		return nil, nil, fmt.Errorf("distribution: %v", err)
	}
	scale := p.cfg.MeanScale
	mean = G.Must(G.HadamardProd(G.NewConstant(1/scale), rawMean))
	mean = G.Must(G.Tanh(mean))
	mean = G.Must(G.HadamardProd(G.NewConstant(scale), mean))

	rawStd, err := p.std.Fwd(hidden)
	if err != nil {
		return nil, nil, fmt.Errorf("distribution: %v", err)
	}
	rawInitStd := math.Log(math.Exp(p.cfg.InitStd) - 1)
	std = G.Must(G.Add(rawStd, G.NewConstant(rawInitStd)))
	std = G.Must(G.Softplus(std))
	std = G.Must(G.Add(std, G.NewConstant(p.cfg.MinStd)))

	return mean, std, nil
}

// Fwd adds action selection in each state to the graph, using the
// standard normal noise to sample from the policy.
func (p *TanhGaussian) Fwd(feature, noise *G.Node) (*G.Node, error) {
	mean, std, err := p.Distribution(feature)
	if err != nil {
		return nil, fmt.Errorf("fwd: %v", err)
	}
	if !noise.Shape().Eq(mean.Shape()) {
		return nil, fmt.Errorf("fwd: noise shape %v != action shape %v",
			noise.Shape(), mean.Shape())
	}

	sample := G.Must(G.Add(mean, G.Must(G.HadamardProd(std, noise))))
	return G.Tanh(sample)
}

// Mode adds the deterministic action tanh(μ) in each state to the graph
func (p *TanhGaussian) Mode(feature *G.Node) (*G.Node, error) {
	mean, _, err := p.Distribution(feature)
	if err != nil {
		return nil, fmt.Errorf("mode: %v", err)
	}
	return G.Tanh(mean)
}

// CloneTo clones the policy into graph g
func (p *TanhGaussian) CloneTo(g *G.ExprGraph) *TanhGaussian {
	return &TanhGaussian{
		g:          g,
		cfg:        p.cfg,
		actionDims: p.actionDims,
		trunk:      p.trunk.CloneTo(g),
		mean:       p.mean.CloneTo(g),
		std:        p.std.CloneTo(g),
	}
}

// ActionDims returns the dimension of actions
func (p *TanhGaussian) ActionDims() int { return p.actionDims }

// Graph returns the graph holding the policy's weights
func (p *TanhGaussian) Graph() *G.ExprGraph { return p.g }

// Learnables returns the learnable nodes of the policy
func (p *TanhGaussian) Learnables() G.Nodes {
	if p.learnables == nil {
		p.learnables = network.Learnables(p.trunk, p.mean, p.std)
	}
	return p.learnables
}

// Model returns the learnable nodes of the policy as G.ValueGrads
func (p *TanhGaussian) Model() []G.ValueGrad {
	return network.Model(p.trunk, p.mean, p.std)
}
