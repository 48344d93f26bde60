package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godreamer/dreamer"
	"github.com/samuelfneumann/godreamer/environment"
	"github.com/samuelfneumann/godreamer/environment/pointmass"
	"github.com/samuelfneumann/godreamer/environment/wrappers"
	"github.com/samuelfneumann/godreamer/experiment"
	"github.com/samuelfneumann/godreamer/experiment/checkpointer"
	"github.com/samuelfneumann/godreamer/experiment/tracker"
	"github.com/samuelfneumann/godreamer/experiment/trackers"
	"github.com/samuelfneumann/godreamer/expreplay"
	"github.com/samuelfneumann/godreamer/storage"
	"github.com/samuelfneumann/godreamer/video"
	"gonum.org/v1/gonum/stat"
)

const (
	actionRepeat    = 2
	episodeSteps    = 500 // Environment steps per episode
	checkpointEvery = 10_000
	evalEpisodes    = 5
	replaySize      = 100_000
	videoScale      = 4
)

type runOptions struct {
	dir        string
	runID      int
	eval       bool
	steps      uint
	configFile string
	storeKind  string
	seed       uint64
	frameSize  int
	verbose    bool
}

// loadConfig returns the default trainer configuration overridden by
// the JSON file filename, if given
func loadConfig(filename string) (dreamer.Config, error) {
	cfg := dreamer.DefaultConfig()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return dreamer.Config{}, fmt.Errorf("loadConfig: %v", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return dreamer.Config{}, fmt.Errorf("loadConfig: could not decode "+
			"%s: %v", filename, err)
	}
	return cfg, nil
}

// newEnvironment returns a point mass reaching task which repeats each
// action
func newEnvironment(frameSize int, seed uint64) (environment.Environment,
	error) {
	task := pointmass.NewReach(pointmass.NewUniformStarter(seed), 0.5, 0.5,
		episodeSteps)
	env, _, err := pointmass.New(task, 0.99, frameSize)
	if err != nil {
		return nil, err
	}
	return wrappers.NewActionRepeat(env, actionRepeat)
}

func run(opts runOptions) error {
	ctx := context.Background()
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return err
	}
	cfg.Verbose = cfg.Verbose || opts.verbose
	cfgJSON, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(opts.dir, "config.json"), cfgJSON,
		0o644); err != nil {
		return err
	}

	env, err := newEnvironment(opts.frameSize, opts.seed)
	if err != nil {
		return fmt.Errorf("run: could not create environment: %v", err)
	}
	obsSize := env.ObservationSpec().Len()
	actionSize := env.ActionSpec().Len()

	// Replay buffer and trainer
	replay, err := expreplay.New(expreplay.Config{
		Size:            replaySize,
		Envs:            1,
		ObservationSize: obsSize,
		ActionSize:      actionSize,
		SampleMethod:    expreplay.Uniform,
	}, opts.seed)
	if err != nil {
		return fmt.Errorf("run: could not create replay buffer: %v", err)
	}
	trainer, err := dreamer.New(cfg, obsSize, actionSize, replay, opts.seed)
	if err != nil {
		return fmt.Errorf("run: could not create trainer: %v", err)
	}

	videos, err := video.NewGIFWriter(filepath.Join(opts.dir, "videos"),
		opts.frameSize, opts.frameSize, videoScale)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	trainer.SetVideoObserver(videos.Observe)

	agent, err := dreamer.NewAgent(trainer, opts.seed+1)
	if err != nil {
		return fmt.Errorf("run: could not create agent: %v", err)
	}

	// Run store
	store, err := storage.NewStore(opts.storeKind,
		filepath.Join(opts.dir, "godreamer.db"))
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("run: could not initialize store: %v", err)
	}
	defer func() {
		if err := storage.CloseIfSupported(store); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not close store: %v\n",
				err)
		}
	}()
	storeRun, err := store.CreateRun(ctx, fmt.Sprintf("dreamer_pointmass_%d",
		opts.runID), opts.seed, cfgJSON)
	if err != nil {
		return fmt.Errorf("run: could not create run: %v", err)
	}
	log.Infof("run %s writing to %s", storeRun.ID, opts.dir)

	// Trackers and checkpointers
	returns := trackers.NewStoredReturn(ctx,
		filepath.Join(opts.dir, "returns.bin"), store, storeRun.ID)
	trackerList := []tracker.Tracker{
		returns,
		trackers.NewEpisodeLength(filepath.Join(opts.dir, "lengths.bin")),
		trackers.NewDiagnostics(ctx, agent, store, storeRun.ID),
	}
	weights, err := checkpointer.NewNStep(checkpointEvery, trainer,
		checkpointer.FilenameEnumerator(0, opts.dir, "weights", ".bin"))
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	optim, err := checkpointer.NewOptimState(ctx, checkpointEvery, trainer,
		store, storeRun.ID)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}

	exp := experiment.NewOnline(env, agent, opts.steps, trackerList,
		[]checkpointer.Checkpointer{weights, optim})
	runErr := exp.Run()
	if err := videos.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not write video: %v\n", err)
	}
	if err := exp.Save(); err != nil {
		return fmt.Errorf("run: %v", err)
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}

	file, err := os.Create(filepath.Join(opts.dir, "weights_final.bin"))
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	defer file.Close()
	if err := trainer.Save(file); err != nil {
		return fmt.Errorf("run: %v", err)
	}
	log.Successf("trained for %d steps over %d episodes", exp.Steps(),
		len(returns.Returns()))

	if !opts.eval {
		return nil
	}
	evalEnv, err := newEnvironment(opts.frameSize, opts.seed+2)
	if err != nil {
		return fmt.Errorf("run: could not create evaluation environment: %v",
			err)
	}
	evalReturns, err := exp.Evaluate(evalEnv, evalEpisodes, episodeSteps)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	log.Successf("evaluation return %.3f over %d episodes",
		stat.Mean(evalReturns, nil), evalEpisodes)
	return nil
}
