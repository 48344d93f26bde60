package dreamer

import (
	"fmt"

	"github.com/samuelfneumann/godreamer/network"
	"github.com/samuelfneumann/godreamer/rssm"
	G "gorgonia.org/gorgonia"
)

// VideoObserver receives video summaries of the world model. Each
// argument holds one entry per time step of n sequences, with row-major
// n x pixels values in [0, 1]:
//
//   - groundTruth holds the observed frames of every step
//   - reconstruction holds the decoded posterior of the first steps
//   - imagined holds the decoded open-loop prediction of the remaining
//     steps, imagined from the last reconstructed state and the
//     observed actions
//
// step is the iteration passed to Optimize.
type VideoObserver func(groundTruth, reconstruction, imagined [][]float64,
	step int)

// videoGraph decodes open-loop predictions of the prior transition
type videoGraph struct {
	g  *G.ExprGraph
	vm G.VM

	seed       rssm.State
	action     []*G.Node
	transition *rssm.Transition
	decoder    *network.MLP
	images     []G.Value
}

// newVideoGraph creates a graph which predicts steps frames of rows
// sequences from a latent state and a sequence of actions
func newVideoGraph(nets *networks, steps, rows int) (*videoGraph, error) {
	g := G.NewGraph()
	cfg := nets.dynamics.Config()

	v := &videoGraph{
		g:          g,
		action:     make([]*G.Node, steps),
		transition: nets.dynamics.Transition.CloneTo(g),
		decoder:    nets.decoder.CloneTo(g),
		images:     make([]G.Value, steps),
	}
	v.seed = rssm.InitialState(g, "videoSeed", rows, cfg.DeterSize,
		cfg.StochSize)
	for k := range v.action {
		v.action[k] = input(g, fmt.Sprintf("videoAction%d", k), rows,
			cfg.ActionSize)
	}

	states, err := rssm.RolloutTransition(v.transition, steps, v.action, nil,
		v.seed)
	if err != nil {
		return nil, fmt.Errorf("newvideograph: %v", err)
	}
	for k, state := range states {
		feat, err := state.Feature()
		if err != nil {
			return nil, fmt.Errorf("newvideograph: %v", err)
		}
		image, err := v.decoder.Fwd(feat)
		if err != nil {
			return nil, fmt.Errorf("newvideograph: %v", err)
		}
		G.Read(image, &v.images[k])
	}

	v.vm = G.NewTapeMachine(g)
	return v, nil
}

// imagine returns the decoded frames predicted from seed under the
// actions
func (v *videoGraph) imagine(nets *networks, seed rssm.StateValue,
	action [][]float64) ([][]float64, error) {
	if err := network.Set(v.transition, nets.dynamics.Transition); err != nil {
		return nil, fmt.Errorf("imagine: %v", err)
	}
	if err := network.Set(v.decoder, nets.decoder); err != nil {
		return nil, fmt.Errorf("imagine: %v", err)
	}
	if err := v.seed.Let(seed); err != nil {
		return nil, fmt.Errorf("imagine: %v", err)
	}
	for k := range v.action {
		if err := let(v.action[k], action[k]); err != nil {
			return nil, fmt.Errorf("imagine: %v", err)
		}
	}

	defer v.vm.Reset()
	if err := v.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("imagine: %v", err)
	}

	images := make([][]float64, len(v.images))
	for k := range v.images {
		images[k] = rssm.Copy(v.images[k])
	}
	return images, nil
}

// videoSize returns the number of reconstructed steps and sequences of
// a video summary, which are zero if no summary can be made
func (d *Dreamer) videoSize() (context, rows int) {
	context = d.cfg.VideoSummaryT
	if context > d.cfg.BatchLength-1 {
		context = d.cfg.BatchLength - 1
	}
	rows = d.cfg.VideoSummaryB
	if rows > d.cfg.BatchSize {
		rows = d.cfg.BatchSize
	}
	if context <= 0 || rows <= 0 {
		return 0, 0
	}
	return context, rows
}

// writeVideo calls the video observer with the ground truth, the
// reconstruction, and the open-loop prediction of the last model run.
// It must be called before the model graph is reset.
func (d *Dreamer) writeVideo(observation [][]uint8, action [][]float64,
	posterior rssm.StateValue, itr int) error {
	context, rows := d.videoSize()
	if context == 0 {
		return nil
	}
	steps := d.cfg.BatchLength

	if d.video == nil {
		var err error
		if d.video, err = newVideoGraph(d.nets, steps-context, rows); err != nil {
			return fmt.Errorf("writevideo: %v", err)
		}
	}

	// Pixel values are shifted from [-0.5, 0.5] back to [0, 1]
	shift := func(x []float64) []float64 {
		out := make([]float64, rows*d.obsSize)
		for i := range out {
			out[i] = x[i] + 0.5
		}
		return out
	}

	groundTruth := make([][]float64, steps)
	for t := range groundTruth {
		groundTruth[t] = shift(normalize(observation[t]))
	}
	reconstruction := make([][]float64, context)
	for t := range reconstruction {
		reconstruction[t] = shift(d.model.recon[t].Data().([]float64))
	}

	cfg := d.nets.dynamics.Config()
	start := (context - 1) * d.cfg.BatchSize
	seed := posterior.Rows(start, start+rows, cfg.DeterSize, cfg.StochSize)
	actions := make([][]float64, steps-context)
	for k := range actions {
		actions[k] = action[context+k][:rows*d.actionSize]
	}

	imagined, err := d.video.imagine(d.nets, seed, actions)
	if err != nil {
		return fmt.Errorf("writevideo: %v", err)
	}
	for k := range imagined {
		imagined[k] = shift(imagined[k])
	}

	d.videoObserver(groundTruth, reconstruction, imagined, itr)
	return nil
}
