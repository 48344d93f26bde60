package rssm

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Policy selects actions from latent state features
type Policy interface {
	// Fwd returns the action taken from feature using the standard
	// normal noise
	Fwd(feature, noise *G.Node) (*G.Node, error)
}

// Model is the full dynamics model: a prior transition and a posterior
// representation sharing a graph.
type Model struct {
	Transition     *Transition
	Representation *Representation
}

// NewModel adds a new dynamics model to g
func NewModel(g *G.ExprGraph, cfg Config, init G.InitWFn) (*Model, error) {
	transition, err := NewTransition(g, cfg, init)
	if err != nil {
		return nil, fmt.Errorf("newmodel: %v", err)
	}
	representation, err := NewRepresentation(g, cfg, init)
	if err != nil {
		return nil, fmt.Errorf("newmodel: %v", err)
	}
	return &Model{Transition: transition, Representation: representation}, nil
}

// Config returns the sizes of the model
func (m *Model) Config() Config {
	return m.Transition.cfg
}

// InitialState adds a zero latent state for batch trajectories to the
// model's graph.
func (m *Model) InitialState(name string, batch int) State {
	cfg := m.Config()
	return InitialState(m.Transition.Graph(), name, batch, cfg.DeterSize,
		cfg.StochSize)
}

// RolloutRepresentation unrolls the model over steps time steps of
// embedded observations and actions, starting from init. At each step
// the prior is computed from the previous posterior and the action,
// and the posterior corrects it using the embedding. Posterior samples
// are drawn with noise[t]; prior samples are their means.
func (m *Model) RolloutRepresentation(steps int, embed, action,
	noise []*G.Node, init State) (post, prior []State, err error) {
	if len(embed) < steps || len(action) < steps || len(noise) < steps {
		return nil, nil, fmt.Errorf("rolloutrepresentation: need %d steps, "+
			"have embed(%d) action(%d) noise(%d)", steps, len(embed),
			len(action), len(noise))
	}

	post = make([]State, steps)
	prior = make([]State, steps)
	prev := init
	for t := 0; t < steps; t++ {
		prior[t], err = m.Transition.Fwd(action[t], prev, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("rolloutrepresentation: step %d: %v",
				t, err)
		}
		post[t], err = m.Representation.Fwd(embed[t], prior[t], noise[t])
		if err != nil {
			return nil, nil, fmt.Errorf("rolloutrepresentation: step %d: %v",
				t, err)
		}
		prev = post[t]
	}
	return post, prior, nil
}

// RolloutTransition unrolls the prior transition over steps actions
// starting from init, without observing the environment. If noise is
// nil, prior means are used as the stochastic states.
func RolloutTransition(transition *Transition, steps int, action,
	noise []*G.Node, init State) ([]State, error) {
	if len(action) < steps {
		return nil, fmt.Errorf("rollouttransition: need %d actions, have %d",
			steps, len(action))
	}
	if noise != nil && len(noise) < steps {
		return nil, fmt.Errorf("rollouttransition: need %d noise nodes, "+
			"have %d", steps, len(noise))
	}

	states := make([]State, steps)
	prev := init
	for t := 0; t < steps; t++ {
		var n *G.Node
		if noise != nil {
			n = noise[t]
		}
		var err error
		if states[t], err = transition.Fwd(action[t], prev, n); err != nil {
			return nil, fmt.Errorf("rollouttransition: step %d: %v", t, err)
		}
		prev = states[t]
	}
	return states, nil
}

// RolloutPolicy imagines steps transitions starting from init, taking
// actions with policy. At each step the policy acts on the current
// state's features using actionNoise[t], and the prior transition
// samples the next state using stateNoise[t]. The imagined states and
// the actions leading to them are returned; init is not included.
func RolloutPolicy(transition *Transition, steps int, policy Policy,
	init State, actionNoise, stateNoise []*G.Node) ([]State, []*G.Node,
	error) {
	if len(actionNoise) < steps || len(stateNoise) < steps {
		return nil, nil, fmt.Errorf("rolloutpolicy: need %d steps, have "+
			"action noise(%d) state noise(%d)", steps, len(actionNoise),
			len(stateNoise))
	}

	states := make([]State, steps)
	actions := make([]*G.Node, steps)
	state := init
	for t := 0; t < steps; t++ {
		feat, err := state.Feature()
		if err != nil {
			return nil, nil, fmt.Errorf("rolloutpolicy: step %d: %v", t, err)
		}
		if actions[t], err = policy.Fwd(feat, actionNoise[t]); err != nil {
			return nil, nil, fmt.Errorf("rolloutpolicy: step %d: could not "+
				"select action: %v", t, err)
		}
		state, err = transition.Fwd(actions[t], state, stateNoise[t])
		if err != nil {
			return nil, nil, fmt.Errorf("rolloutpolicy: step %d: %v", t, err)
		}
		states[t] = state
	}
	return states, actions, nil
}

// Graph returns the graph holding the model's weights
func (m *Model) Graph() *G.ExprGraph { return m.Transition.Graph() }

// Learnables returns the learnable nodes of the transition and
// representation models
func (m *Model) Learnables() G.Nodes {
	return append(append(G.Nodes{}, m.Transition.Learnables()...),
		m.Representation.Learnables()...)
}

// Model returns the learnable nodes as G.ValueGrads
func (m *Model) Model() []G.ValueGrad {
	return append(m.Transition.Model(), m.Representation.Model()...)
}

// RolloutTransition unrolls the model's prior transition over steps
// actions starting from init.
func (m *Model) RolloutTransition(steps int, action, noise []*G.Node,
	init State) ([]State, error) {
	return RolloutTransition(m.Transition, steps, action, noise, init)
}

// RolloutPolicy imagines steps transitions of the model's prior
// starting from init, taking actions with policy.
func (m *Model) RolloutPolicy(steps int, policy Policy, init State,
	actionNoise, stateNoise []*G.Node) ([]State, []*G.Node, error) {
	return RolloutPolicy(m.Transition, steps, policy, init, actionNoise,
		stateNoise)
}
