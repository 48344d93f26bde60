package rssm

import (
	"fmt"

	"github.com/samuelfneumann/godreamer/network"
)

// Config describes the sizes of a recurrent state-space model
type Config struct {
	StochSize  int
	DeterSize  int
	HiddenSize int
	EmbedSize  int
	ActionSize int

	// MinStd is added to the predicted standard deviations of the
	// stochastic state
	MinStd float64

	Activation *network.Activation
}

// DefaultConfig returns the default model sizes for a given embedding
// and action size
func DefaultConfig(embedSize, actionSize int) Config {
	return Config{
		StochSize:  30,
		DeterSize:  200,
		HiddenSize: 200,
		EmbedSize:  embedSize,
		ActionSize: actionSize,
		MinStd:     0.1,
		Activation: network.ELU(),
	}
}

// FeatureSize returns the size of a latent state's feature vector
func (c Config) FeatureSize() int {
	return c.StochSize + c.DeterSize
}

// Validate returns an error if the configuration is not usable
func (c Config) Validate() error {
	sizes := map[string]int{
		"StochSize":  c.StochSize,
		"DeterSize":  c.DeterSize,
		"HiddenSize": c.HiddenSize,
		"EmbedSize":  c.EmbedSize,
		"ActionSize": c.ActionSize,
	}
	for name, size := range sizes {
		if size <= 0 {
			return fmt.Errorf("validate: %s must be positive, have %d", name,
				size)
		}
	}
	if c.MinStd < 0 {
		return fmt.Errorf("validate: MinStd must be non-negative")
	}
	return nil
}

func (c Config) activation() *network.Activation {
	if c.Activation == nil {
		return network.ELU()
	}
	return c.Activation
}
