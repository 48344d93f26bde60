// Package dreamer implements the training core of Dreamer, a
// model-based reinforcement learning algorithm which learns a latent
// dynamics model from pixel observations and trains a policy and value
// model entirely on trajectories imagined by the dynamics model.
//
// Each optimization step updates three disjoint parameter groups in
// order:
//
//  1. The world model (encoder, dynamics, decoder, and reward model)
//     is trained on sequences sampled from a replay buffer.
//  2. The policy is trained to maximize the λ-returns of trajectories
//     imagined from the world model's posterior states.
//  3. The value model is regressed onto those λ-returns.
//
// Each group lives in its own computational graph. Values cross from
// one graph to the next only by copy, so no group's loss ever produces
// a gradient for another group's weights.
package dreamer

import (
	"fmt"
	"io"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godreamer/expreplay"
	"github.com/samuelfneumann/godreamer/network"
	"github.com/samuelfneumann/godreamer/utils/progressbar"
	G "gorgonia.org/gorgonia"
)

// Dreamer trains the world model, policy, and value model from
// sequences stored in a replay buffer
type Dreamer struct {
	cfg        Config
	replay     expreplay.Replay
	obsSize    int
	actionSize int
	seed       uint64

	nets *networks

	model *modelGraph
	actor *actorGraph
	value *valueGraph
	video *videoGraph

	modelPhase *phase
	actorPhase *phase
	valuePhase *phase

	videoObserver VideoObserver
}

// New returns a new Dreamer trainer for observations of obsSize pixels
// and actions of actionSize dimensions, drawing sequences from replay.
func New(cfg Config, obsSize, actionSize int, replay expreplay.Replay,
	seed uint64) (*Dreamer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if obsSize <= 0 || actionSize <= 0 {
		return nil, fmt.Errorf("new: observation and action sizes must be "+
			"positive, have %d and %d", obsSize, actionSize)
	}
	if replay == nil {
		return nil, fmt.Errorf("new: nil replay buffer")
	}

	modelGraph, nets, err := buildModel(cfg, obsSize, actionSize, seed)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	// The value graph must exist before the actor graph, which holds a
	// copy of the value model
	valueGraph, err := newValueGraph(nets, cfg)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	actorGraph, err := newActorGraph(nets, cfg, actionSize, seed+1)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	modelSolver, err := cfg.ModelSolver.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create model solver: %v", err)
	}
	actorSolver, err := cfg.ActorSolver.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor solver: %v", err)
	}
	valueSolver, err := cfg.ValueSolver.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create value solver: %v", err)
	}

	d := &Dreamer{
		cfg:        cfg,
		replay:     replay,
		obsSize:    obsSize,
		actionSize: actionSize,
		seed:       seed,
		nets:       nets,
		model:      modelGraph,
		actor:      actorGraph,
		value:      valueGraph,
		modelPhase: &phase{
			name:   "model",
			vm:     modelGraph.vm,
			solver: modelSolver,
			model:  modelGraph.model,
			loss:   &modelGraph.loss,
		},
		actorPhase: &phase{
			name:   "actor",
			vm:     actorGraph.vm,
			solver: actorSolver,
			model:  actorGraph.model,
			loss:   &actorGraph.loss,
		},
		valuePhase: &phase{
			name:   "value",
			vm:     valueGraph.vm,
			solver: valueSolver,
			model:  valueGraph.model,
			loss:   &valueGraph.loss,
		},
	}

	if cfg.InitialOptimState != nil {
		if err := d.LoadOptimStateDict(*cfg.InitialOptimState); err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
	}

	return d, nil
}

// buildModel creates the world model networks and their loss in a new
// graph
func buildModel(cfg Config, obsSize, actionSize int,
	seed uint64) (*modelGraph, *networks, error) {
	nets, err := newModelNetworks(G.NewGraph(), cfg, obsSize, actionSize)
	if err != nil {
		return nil, nil, err
	}
	m, err := newModelGraph(nets, cfg, obsSize, actionSize, seed)
	if err != nil {
		return nil, nil, err
	}
	return m, nets, nil
}

// Config returns the configuration of the trainer
func (d *Dreamer) Config() Config { return d.cfg }

// SetVideoObserver sets the observer called with video summaries of
// the world model's predictions. A nil observer disables videos.
func (d *Dreamer) SetVideoObserver(o VideoObserver) {
	d.videoObserver = o
}

// Optimize appends samples to the replay buffer and, once enough
// environment steps have been collected and itr falls on the training
// cadence, takes TrainSteps optimization steps. The returned OptInfo
// holds one entry per optimization step taken and is empty if no
// training was done.
func (d *Dreamer) Optimize(itr int, samples *expreplay.Samples) (OptInfo,
	error) {
	if samples != nil {
		if err := d.replay.AppendSamples(samples); err != nil {
			return OptInfo{}, fmt.Errorf("optimize: could not append "+
				"samples: %v", err)
		}
	}

	if itr < d.cfg.Prefill || itr%d.cfg.TrainEvery != 0 {
		return OptInfo{}, nil
	}

	var bar *progressbar.ManualProgressBar
	if d.cfg.Verbose {
		bar = progressbar.NewManualProgressBar(40, d.cfg.TrainSteps)
		bar.Display()
		defer bar.Close()
	}

	info := newOptInfo(d.cfg.TrainSteps)
	for optItr := 0; optItr < d.cfg.TrainSteps; optItr++ {
		batch, err := d.replay.SampleBatch(d.cfg.BatchSize,
			d.cfg.BatchLength)
		if err != nil {
			return info, fmt.Errorf("optimize: could not sample batch: %v",
				err)
		}
		observation, action, reward, err := d.shift(batch)
		if err != nil {
			return info, fmt.Errorf("optimize: %v", err)
		}

		video := d.videoObserver != nil && optItr == d.cfg.TrainSteps-1 &&
			itr%d.cfg.VideoEvery == 0

		diag, err := d.step(observation, action, reward, video, itr)
		if err != nil {
			return info, fmt.Errorf("optimize: step %d: %w", optItr, err)
		}
		info.append(diag)

		if bar != nil {
			bar.Increment()
		}
	}

	log.Debugf("optimize: itr %d: loss %.4f model %.4f actor %.4f "+
		"value %.4f kl %.4f", itr, mean(info.Loss), mean(info.ModelLoss),
		mean(info.ActorLoss), mean(info.ValueLoss), mean(info.Divergence))

	return info, nil
}

// shift aligns a sampled batch of batchLength+1 steps so that the
// action and reward at index t are those of the transition leaving
// observation t: observation = all[:-1], action = all_action[1:],
// reward = all_reward[1:].
func (d *Dreamer) shift(batch expreplay.Batch) (observation [][]uint8,
	action, reward [][]float64, err error) {
	length := d.cfg.BatchLength + 1
	if len(batch.AllObservation) != length ||
		len(batch.AllAction) != length || len(batch.AllReward) != length {
		return nil, nil, nil, fmt.Errorf("shift: batch must have %d steps, "+
			"have observation(%d) action(%d) reward(%d)", length,
			len(batch.AllObservation), len(batch.AllAction),
			len(batch.AllReward))
	}

	observation = batch.AllObservation[:length-1]
	action = batch.AllAction[1:]
	reward = batch.AllReward[1:]

	b := d.cfg.BatchSize
	for t := range observation {
		if len(observation[t]) != b*d.obsSize {
			return nil, nil, nil, fmt.Errorf("shift: observation %d has %d "+
				"values, want %d", t, len(observation[t]), b*d.obsSize)
		}
		if len(action[t]) != b*d.actionSize {
			return nil, nil, nil, fmt.Errorf("shift: action %d has %d "+
				"values, want %d", t, len(action[t]), b*d.actionSize)
		}
		if len(reward[t]) != b {
			return nil, nil, nil, fmt.Errorf("shift: reward %d has %d "+
				"values, want %d", t, len(reward[t]), b)
		}
	}
	return observation, action, reward, nil
}

// step takes one optimization step of each parameter group in the
// order model, actor, value
func (d *Dreamer) step(observation [][]uint8, action, reward [][]float64,
	video bool, itr int) (Diagnostics, error) {
	// All losses of a step are computed with the weights from before
	// the step
	if err := d.actor.sync(d.nets); err != nil {
		return Diagnostics{}, err
	}

	// World model
	if err := d.model.setInput(observation, action, reward); err != nil {
		return Diagnostics{}, err
	}
	if _, err := d.modelPhase.step(d.cfg.GradClip); err != nil {
		d.modelPhase.reset()
		return Diagnostics{}, err
	}
	posterior := d.model.posteriorValue()
	priorEnt, postEnt := d.model.entropy(d.cfg.StochSize)
	diag := Diagnostics{
		ModelLoss:    scalar(d.model.loss),
		PriorEntropy: priorEnt,
		PostEntropy:  postEnt,
		Divergence:   scalar(d.model.divergence),
		RewardLoss:   scalar(d.model.rewardLoss),
		ImageLoss:    scalar(d.model.imageLoss),
	}
	if video {
		if err := d.writeVideo(observation, action, posterior, itr); err != nil {
			d.modelPhase.reset()
			return Diagnostics{}, err
		}
	}
	d.modelPhase.reset()

	// Actor, imagining from the posterior states
	if err := d.actor.setInput(posterior); err != nil {
		return Diagnostics{}, err
	}
	if _, err := d.actorPhase.step(d.cfg.GradClip); err != nil {
		d.actorPhase.reset()
		return Diagnostics{}, err
	}
	diag.ActorLoss = scalar(d.actor.loss)
	features, targets := d.actor.targets()
	d.actorPhase.reset()

	// Value, regressing onto the imagined returns
	if err := d.value.setInput(features, targets); err != nil {
		return Diagnostics{}, err
	}
	if _, err := d.valuePhase.step(d.cfg.GradClip); err != nil {
		d.valuePhase.reset()
		return Diagnostics{}, err
	}
	diag.ValueLoss = scalar(d.value.loss)
	d.valuePhase.reset()

	diag.Loss = diag.ModelLoss + diag.ActorLoss + diag.ValueLoss
	return diag, nil
}

// Save writes the weights of all networks to w
func (d *Dreamer) Save(w io.Writer) error {
	if err := network.SaveWeights(w, d.nets.modules()...); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load reads weights written by Save into all networks
func (d *Dreamer) Load(r io.Reader) error {
	if err := network.LoadWeights(r, d.nets.modules()...); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	return d.actor.sync(d.nets)
}
