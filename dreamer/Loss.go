package dreamer

import (
	"fmt"

	"github.com/samuelfneumann/godreamer/network"
	"github.com/samuelfneumann/godreamer/policy"
	"github.com/samuelfneumann/godreamer/returns"
	"github.com/samuelfneumann/godreamer/rssm"
	"github.com/samuelfneumann/godreamer/utils/op"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// normalize maps pixel intensities in [0, 255] to [-0.5, 0.5]
func normalize(obs []uint8) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = float64(o)/255.0 - 0.5
	}
	return out
}

// let sets the value of an input node to a copy of data
func let(node *G.Node, data []float64) error {
	if len(data) != node.Shape().TotalSize() {
		return fmt.Errorf("let: %v expects %d values, have %d", node.Name(),
			node.Shape().TotalSize(), len(data))
	}
	backing := make([]float64, len(data))
	copy(backing, data)

	t := tensor.New(tensor.WithShape(node.Shape()...),
		tensor.WithBacking(backing))
	if err := G.Let(node, t); err != nil {
		return fmt.Errorf("let: %v", err)
	}
	return nil
}

// input adds a zero-initialized input matrix to g
func input(g *G.ExprGraph, name string, rows, cols int) *G.Node {
	return G.NewMatrix(g, tensor.Float64, G.WithShape(rows, cols),
		G.WithName(name), G.WithInit(G.Zeroes()))
}

// sum returns the sum of scalar nodes
func sum(nodes []*G.Node) *G.Node {
	total := nodes[0]
	for _, n := range nodes[1:] {
		total = G.Must(G.Add(total, n))
	}
	return total
}

// scalar returns the float64 held by a scalar value
func scalar(v G.Value) float64 {
	if v == nil {
		return 0
	}
	switch d := v.Data().(type) {
	case float64:
		return d
	case []float64:
		if len(d) > 0 {
			return d[0]
		}
	}
	return 0
}

// modelGraph computes the world model loss on a batch of sequences:
//
//	L = -E[log p(o | s)] - E[log p(r | s)] + β max(KL(q || p), free nats)
//
// where q is the posterior and p the prior over latent states s. The
// posterior states are read out so that imagination can start from
// them in the actor graph.
type modelGraph struct {
	g     *G.ExprGraph
	vm    G.VM
	steps int
	batch int

	observation []*G.Node
	action      []*G.Node
	reward      []*G.Node
	noise       *network.Noise

	posterior []*rssm.StateReader
	prior     []*rssm.StateReader
	recon     []G.Value

	loss       G.Value
	imageLoss  G.Value
	rewardLoss G.Value
	divergence G.Value

	model []G.ValueGrad
}

// newModelGraph adds the model loss to the graph holding the model
// networks and compiles it
func newModelGraph(nets *networks, cfg Config, obsSize, actionSize int,
	seed uint64) (*modelGraph, error) {
	g := nets.encoder.Graph()
	steps, batch := cfg.BatchLength, cfg.BatchSize

	m := &modelGraph{
		g:           g,
		steps:       steps,
		batch:       batch,
		observation: make([]*G.Node, steps),
		action:      make([]*G.Node, steps),
		reward:      make([]*G.Node, steps),
		posterior:   make([]*rssm.StateReader, steps),
		prior:       make([]*rssm.StateReader, steps),
		recon:       make([]G.Value, steps),
	}
	m.noise = network.NewNoise(g, "posteriorNoise", steps, batch,
		cfg.StochSize, seed)

	embed := make([]*G.Node, steps)
	for t := 0; t < steps; t++ {
		m.observation[t] = input(g, fmt.Sprintf("observation%d", t), batch,
			obsSize)
		m.action[t] = input(g, fmt.Sprintf("action%d", t), batch, actionSize)
		m.reward[t] = input(g, fmt.Sprintf("reward%d", t), batch, 1)

		var err error
		if embed[t], err = nets.encoder.Fwd(m.observation[t]); err != nil {
			return nil, fmt.Errorf("newmodelgraph: could not embed "+
				"observation %d: %v", t, err)
		}
	}

	init := nets.dynamics.InitialState("modelInit", batch)
	post, prior, err := nets.dynamics.RolloutRepresentation(steps, embed,
		m.action, m.noise.Nodes(), init)
	if err != nil {
		return nil, fmt.Errorf("newmodelgraph: %v", err)
	}

	imageLogProb := make([]*G.Node, steps)
	rewardLogProb := make([]*G.Node, steps)
	kl := make([]*G.Node, steps)
	for t := 0; t < steps; t++ {
		m.posterior[t] = rssm.ReadState(post[t])
		m.prior[t] = rssm.ReadState(prior[t])

		feat, err := post[t].Feature()
		if err != nil {
			return nil, fmt.Errorf("newmodelgraph: %v", err)
		}

		recon, err := nets.decoder.Fwd(feat)
		if err != nil {
			return nil, fmt.Errorf("newmodelgraph: could not decode step "+
				"%d: %v", t, err)
		}
		G.Read(recon, &m.recon[t])
		logProb, err := op.UnitNormalLogProb(m.observation[t], recon)
		if err != nil {
			return nil, fmt.Errorf("newmodelgraph: %v", err)
		}
		imageLogProb[t] = G.Must(G.Mean(logProb))

		reward, err := nets.reward.Fwd(feat)
		if err != nil {
			return nil, fmt.Errorf("newmodelgraph: could not predict "+
				"reward at step %d: %v", t, err)
		}
		if logProb, err = op.UnitNormalLogProb(m.reward[t], reward); err != nil {
			return nil, fmt.Errorf("newmodelgraph: %v", err)
		}
		rewardLogProb[t] = G.Must(G.Mean(logProb))

		div, err := op.DiagNormalKL(post[t].Mean, post[t].Std, prior[t].Mean,
			prior[t].Std)
		if err != nil {
			return nil, fmt.Errorf("newmodelgraph: %v", err)
		}
		kl[t] = G.Must(G.Mean(div))
	}

	// Average over time steps; the batch was averaged above
	negMean := G.NewConstant(-1 / float64(steps))
	imageLoss := G.Must(G.HadamardProd(negMean, sum(imageLogProb)))
	rewardLoss := G.Must(G.HadamardProd(negMean, sum(rewardLogProb)))
	divergence := G.Must(G.HadamardProd(G.NewConstant(1/float64(steps)),
		sum(kl)))

	// Below the free nats the KL term is constant and has no gradient
	klLoss, err := op.Max(divergence, G.NewConstant(cfg.FreeNats))
	if err != nil {
		return nil, fmt.Errorf("newmodelgraph: could not floor KL "+
			"divergence: %v", err)
	}
	klLoss = G.Must(G.HadamardProd(G.NewConstant(cfg.KLScale), klLoss))

	loss := G.Must(G.Add(imageLoss, rewardLoss))
	loss = G.Must(G.Add(loss, klLoss))

	G.Read(loss, &m.loss)
	G.Read(imageLoss, &m.imageLoss)
	G.Read(rewardLoss, &m.rewardLoss)
	G.Read(divergence, &m.divergence)

	learnables := network.Learnables(nets.modelModules()...)
	if _, err := G.Grad(loss, learnables...); err != nil {
		return nil, fmt.Errorf("newmodelgraph: could not compute model "+
			"gradient: %v", err)
	}
	m.model = network.Model(nets.modelModules()...)
	m.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))

	return m, nil
}

// setInput sets the observations, actions, and rewards of a shifted
// batch and samples new posterior noise
func (m *modelGraph) setInput(observation [][]uint8, action,
	reward [][]float64) error {
	for t := 0; t < m.steps; t++ {
		if err := let(m.observation[t], normalize(observation[t])); err != nil {
			return fmt.Errorf("setinput: %v", err)
		}
		if err := let(m.action[t], action[t]); err != nil {
			return fmt.Errorf("setinput: %v", err)
		}
		if err := let(m.reward[t], reward[t]); err != nil {
			return fmt.Errorf("setinput: %v", err)
		}
	}
	return m.noise.Sample()
}

// posteriorValue returns the posterior states of the last run with
// time and batch flattened into one batch dimension, row t*B + b
func (m *modelGraph) posteriorValue() rssm.StateValue {
	values := make([]rssm.StateValue, m.steps)
	for t, r := range m.posterior {
		values[t] = r.Value()
	}
	return rssm.Concat(values...)
}

// entropy returns the mean entropy of the prior and posterior of the
// last run
func (m *modelGraph) entropy(stochSize int) (prior, post float64) {
	for t := 0; t < m.steps; t++ {
		prior += rssm.Entropy(m.prior[t].Value().Std, stochSize)
		post += rssm.Entropy(m.posterior[t].Value().Std, stochSize)
	}
	return prior / float64(m.steps), post / float64(m.steps)
}

// actorGraph imagines trajectories from the posterior states of the
// model graph and computes the actor loss, the negative weighted mean of
// the λ-returns of the imagined trajectories. Only the policy is
// trained in this graph: the transition, reward, and value models are
// copies of networks in other graphs.
type actorGraph struct {
	g       *G.ExprGraph
	vm      G.VM
	horizon int

	seed        rssm.State
	transition  *rssm.Transition
	reward      *network.MLP
	value       *network.MLP
	policy      *policy.TanhGaussian
	actionNoise *network.Noise
	stateNoise  *network.Noise

	features []G.Value
	returns  []G.Value
	loss     G.Value

	model []G.ValueGrad
}

// newActorGraph creates the policy and the actor loss in a new graph
// and compiles it
func newActorGraph(nets *networks, cfg Config, actionSize int,
	seed uint64) (*actorGraph, error) {
	g := G.NewGraph()
	rssmCfg := nets.dynamics.Config()
	horizon := cfg.Horizon
	rows := cfg.BatchLength * cfg.BatchSize

	pol, err := policy.New(g, cfg.Policy, rssmCfg.FeatureSize(), actionSize,
		cfg.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("newactorgraph: could not create policy: %v",
			err)
	}
	nets.policy = pol

	a := &actorGraph{
		g:          g,
		horizon:    horizon,
		transition: nets.dynamics.Transition.CloneTo(g),
		reward:     nets.reward.CloneTo(g),
		value:      nets.value.CloneTo(g),
		policy:     pol,
		features:   make([]G.Value, horizon-1),
		returns:    make([]G.Value, horizon-1),
	}
	a.seed = rssm.InitialState(g, "imaginationSeed", rows, rssmCfg.DeterSize,
		rssmCfg.StochSize)
	a.actionNoise = network.NewNoise(g, "actionNoise", horizon, rows,
		actionSize, seed)
	a.stateNoise = network.NewNoise(g, "imaginedStateNoise", horizon, rows,
		rssmCfg.StochSize, seed+1)

	states, _, err := rssm.RolloutPolicy(a.transition, horizon, pol, a.seed,
		a.actionNoise.Nodes(), a.stateNoise.Nodes())
	if err != nil {
		return nil, fmt.Errorf("newactorgraph: %v", err)
	}

	reward := make([]*G.Node, horizon)
	value := make([]*G.Node, horizon)
	for k, state := range states {
		feat, err := state.Feature()
		if err != nil {
			return nil, fmt.Errorf("newactorgraph: %v", err)
		}
		if k < horizon-1 {
			G.Read(feat, &a.features[k])
		}

		if reward[k], err = a.reward.Fwd(feat); err != nil {
			return nil, fmt.Errorf("newactorgraph: could not predict reward "+
				"at step %d: %v", k, err)
		}
		if value[k], err = a.value.Fwd(feat); err != nil {
			return nil, fmt.Errorf("newactorgraph: could not predict value "+
				"at step %d: %v", k, err)
		}
	}

	discount := make([]*G.Node, horizon-1)
	for k := range discount {
		discount[k] = G.NewConstant(cfg.Discount)
	}
	ret, err := returns.LambdaNodes(reward[:horizon-1], value[:horizon-1],
		discount, value[horizon-1], cfg.Lambda)
	if err != nil {
		return nil, fmt.Errorf("newactorgraph: %v", err)
	}

	weights := returns.CumulativeDiscount(cfg.Discount, horizon-1)
	terms := make([]*G.Node, horizon-1)
	for k := range ret {
		G.Read(ret[k], &a.returns[k])
		terms[k] = G.Must(G.HadamardProd(G.NewConstant(weights[k]),
			G.Must(G.Mean(ret[k]))))
	}
	loss := G.Must(G.HadamardProd(G.NewConstant(-1/float64(horizon-1)),
		sum(terms)))
	G.Read(loss, &a.loss)

	if _, err := G.Grad(loss, pol.Learnables()...); err != nil {
		return nil, fmt.Errorf("newactorgraph: could not compute policy "+
			"gradient: %v", err)
	}
	a.model = pol.Model()
	a.vm = G.NewTapeMachine(g, G.BindDualValues(pol.Learnables()...))

	return a, nil
}

// sync copies the current weights of the model networks and the value
// model into the actor graph
func (a *actorGraph) sync(nets *networks) error {
	if err := network.Set(a.transition, nets.dynamics.Transition); err != nil {
		return fmt.Errorf("sync: transition: %v", err)
	}
	if err := network.Set(a.reward, nets.reward); err != nil {
		return fmt.Errorf("sync: reward: %v", err)
	}
	if err := network.Set(a.value, nets.value); err != nil {
		return fmt.Errorf("sync: value: %v", err)
	}
	return nil
}

// setInput seeds imagination with the given latent states and samples
// new action and state noise
func (a *actorGraph) setInput(seed rssm.StateValue) error {
	if err := a.seed.Let(seed); err != nil {
		return fmt.Errorf("setinput: %v", err)
	}
	if err := a.actionNoise.Sample(); err != nil {
		return fmt.Errorf("setinput: %v", err)
	}
	return a.stateNoise.Sample()
}

// targets returns copies of the imagined features and λ-returns of the
// last run, one entry per step of the horizon but the last
func (a *actorGraph) targets() (features, targets [][]float64) {
	features = make([][]float64, len(a.features))
	targets = make([][]float64, len(a.returns))
	for k := range a.features {
		features[k] = rssm.Copy(a.features[k])
		targets[k] = rssm.Copy(a.returns[k])
	}
	return features, targets
}

// valueGraph regresses the value model onto the λ-returns computed in
// the actor graph. Features and returns enter the graph as inputs, so
// the value model cannot influence its own targets.
type valueGraph struct {
	g  *G.ExprGraph
	vm G.VM

	features []*G.Node
	targets  []*G.Node
	loss     G.Value

	model []G.ValueGrad
}

// newValueGraph creates the value model and the value loss in a new
// graph and compiles it
func newValueGraph(nets *networks, cfg Config) (*valueGraph, error) {
	g := G.NewGraph()
	featureSize := nets.dynamics.Config().FeatureSize()
	steps := cfg.Horizon - 1
	rows := cfg.BatchLength * cfg.BatchSize

	value, err := newMLP(g, "value", featureSize, cfg.ValueHidden, 1,
		cfg.activation(), network.Identity(), cfg.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("newvaluegraph: could not create value "+
			"model: %v", err)
	}
	nets.value = value

	v := &valueGraph{
		g:        g,
		features: make([]*G.Node, steps),
		targets:  make([]*G.Node, steps),
	}

	weights := returns.CumulativeDiscount(cfg.Discount, steps)
	terms := make([]*G.Node, steps)
	for k := 0; k < steps; k++ {
		v.features[k] = input(g, fmt.Sprintf("valueFeature%d", k), rows,
			featureSize)
		v.targets[k] = input(g, fmt.Sprintf("valueTarget%d", k), rows, 1)

		pred, err := value.Fwd(v.features[k])
		if err != nil {
			return nil, fmt.Errorf("newvaluegraph: %v", err)
		}
		logProb, err := op.UnitNormalLogProb(v.targets[k], pred)
		if err != nil {
			return nil, fmt.Errorf("newvaluegraph: %v", err)
		}
		terms[k] = G.Must(G.HadamardProd(G.NewConstant(weights[k]),
			G.Must(G.Mean(logProb))))
	}
	loss := G.Must(G.HadamardProd(G.NewConstant(-1/float64(steps)),
		sum(terms)))
	G.Read(loss, &v.loss)

	if _, err := G.Grad(loss, value.Learnables()...); err != nil {
		return nil, fmt.Errorf("newvaluegraph: could not compute value "+
			"gradient: %v", err)
	}
	v.model = value.Model()
	v.vm = G.NewTapeMachine(g, G.BindDualValues(value.Learnables()...))

	return v, nil
}

// setInput sets the imagined features and their return targets
func (v *valueGraph) setInput(features, targets [][]float64) error {
	if len(features) != len(v.features) || len(targets) != len(v.targets) {
		return fmt.Errorf("setinput: want %d steps, have %d features and "+
			"%d targets", len(v.features), len(features), len(targets))
	}
	for k := range v.features {
		if err := let(v.features[k], features[k]); err != nil {
			return fmt.Errorf("setinput: %v", err)
		}
		if err := let(v.targets[k], targets[k]); err != nil {
			return fmt.Errorf("setinput: %v", err)
		}
	}
	return nil
}
