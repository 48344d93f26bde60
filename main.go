// Command godreamer trains a Dreamer agent on a point mass reaching
// task from pixels.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// Flags of the root command
var (
	runID      int
	logDir     string
	eval       bool
	steps      uint
	configFile string
	storeKind  string
	seed       uint64
	frameSize  int
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "godreamer",
	Short: "Train a Dreamer agent from pixels",
	Long: `godreamer trains a Dreamer agent, which learns a latent dynamics
model of its environment from pixel observations and learns to act by
imagining trajectories with that model.

Each run writes to the first free run_<i> directory of the log
directory, starting from the given run id:
  - weights checkpoints and the final weights
  - episodic returns and lengths
  - GIF videos of the world model's predictions
  - an SQLite database of diagnostics and solver state (--store sqlite)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, id, err := nextRunDir(logDir, runID)
		if err != nil {
			return err
		}
		return run(runOptions{
			dir:        dir,
			runID:      id,
			eval:       eval,
			steps:      steps,
			configFile: configFile,
			storeKind:  storeKind,
			seed:       seed,
			frameSize:  frameSize,
			verbose:    verbose,
		})
	},
}

func init() {
	defaultLogDir := filepath.Join("data", "local",
		time.Now().Format("20060102"))

	flags := rootCmd.Flags()
	flags.IntVar(&runID, "run-id", 0, "run identifier (logging)")
	flags.StringVar(&logDir, "log-dir", defaultLogDir, "log directory")
	flags.BoolVar(&eval, "eval", false, "evaluate the greedy policy after "+
		"training")
	flags.UintVar(&steps, "steps", 500_000, "environment steps to train for")
	flags.StringVar(&configFile, "config", "", "JSON file overriding the "+
		"default trainer configuration")
	flags.StringVar(&storeKind, "store", "sqlite", "run store backend "+
		"(memory or sqlite)")
	flags.Uint64Var(&seed, "seed", 1, "random seed")
	flags.IntVar(&frameSize, "frame-size", 32, "width and height of "+
		"observed frames")
	flags.BoolVarP(&verbose, "verbose", "v", false, "display training "+
		"progress")
}

// nextRunDir returns the first run_<i> directory in dir which does not
// exist yet, with i starting at id
func nextRunDir(dir string, id int) (string, int, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", 0, err
	}
	for {
		runDir := filepath.Join(dir, fmt.Sprintf("run_%d", id))
		_, err := os.Stat(runDir)
		if os.IsNotExist(err) {
			fmt.Printf("Using run id = %d\n", id)
			return runDir, id, nil
		}
		if err != nil {
			return "", 0, err
		}
		fmt.Printf("run %d already exists.\n", id)
		id++
	}
}
