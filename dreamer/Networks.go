package dreamer

import (
	"fmt"

	"github.com/samuelfneumann/godreamer/network"
	"github.com/samuelfneumann/godreamer/policy"
	"github.com/samuelfneumann/godreamer/rssm"
	G "gorgonia.org/gorgonia"
)

// newMLP adds an MLP with the given hidden layers and outputs to g. All
// hidden layers use act and the output layer uses outAct.
func newMLP(g *G.ExprGraph, name string, features int, hidden []int,
	outputs int, act, outAct *network.Activation,
	init G.InitWFn) (*network.MLP, error) {
	sizes := append(append([]int{}, hidden...), outputs)
	biases := make([]bool, len(sizes))
	activations := make([]*network.Activation, len(sizes))
	for i := range sizes {
		biases[i] = true
		activations[i] = act
	}
	activations[len(activations)-1] = outAct

	return network.NewMLP(g, name, features, sizes, biases, activations,
		init)
}

// networks holds the master copy of every network trained by Dreamer.
// The model networks live in the model graph, the policy in the actor
// graph, and the value model in the value graph.
type networks struct {
	encoder  *network.MLP
	decoder  *network.MLP
	reward   *network.MLP
	dynamics *rssm.Model
	policy   *policy.TanhGaussian
	value    *network.MLP
}

// newModelNetworks adds the networks of the world model to g
func newModelNetworks(g *G.ExprGraph, cfg Config, obsSize,
	actionSize int) (*networks, error) {
	init := cfg.InitWFn.InitWFn()
	act := cfg.activation()
	rssmCfg := cfg.RSSM(actionSize)

	encoder, err := newMLP(g, "encoder", obsSize, cfg.EncoderHidden,
		cfg.EmbedSize, act, act, init)
	if err != nil {
		return nil, fmt.Errorf("newmodelnetworks: could not create "+
			"encoder: %v", err)
	}

	dynamics, err := rssm.NewModel(g, rssmCfg, init)
	if err != nil {
		return nil, fmt.Errorf("newmodelnetworks: could not create "+
			"dynamics model: %v", err)
	}

	decoder, err := newMLP(g, "decoder", rssmCfg.FeatureSize(),
		cfg.DecoderHidden, obsSize, act, network.Identity(), init)
	if err != nil {
		return nil, fmt.Errorf("newmodelnetworks: could not create "+
			"decoder: %v", err)
	}

	reward, err := newMLP(g, "reward", rssmCfg.FeatureSize(),
		cfg.RewardHidden, 1, act, network.Identity(), init)
	if err != nil {
		return nil, fmt.Errorf("newmodelnetworks: could not create reward "+
			"model: %v", err)
	}

	return &networks{
		encoder:  encoder,
		decoder:  decoder,
		reward:   reward,
		dynamics: dynamics,
	}, nil
}

// modelModules returns the modules of the model parameter group
func (n *networks) modelModules() []network.Module {
	return []network.Module{
		n.encoder,
		n.dynamics.Transition,
		n.dynamics.Representation,
		n.decoder,
		n.reward,
	}
}

// modules returns every module, in the order weights are saved
func (n *networks) modules() []network.Module {
	return append(n.modelModules(), n.policy, n.value)
}
