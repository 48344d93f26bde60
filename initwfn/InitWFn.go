// Package initwfn wraps Gorgonia weight initialization functions so
// that network configurations can be stored in and read from JSON
// configuration files.
package initwfn

import (
	"encoding/json"
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type names a weight initialization scheme
type Type string

// Available weight initialization schemes
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Gaussian Type = "Gaussian"
	Zeroes   Type = "Zeroes"
)

// Config describes a weight initialization scheme and constructs the
// Gorgonia InitWFn it describes.
type Config interface {
	Create() G.InitWFn
	Type() Type
}

// InitWFn is a JSON serializable Gorgonia InitWFn
type InitWFn struct {
	initWFn G.InitWFn
	Type
	Config
}

func newInitWFn(c Config) *InitWFn {
	return &InitWFn{initWFn: c.Create(), Type: c.Type(), Config: c}
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (w *InitWFn) InitWFn() G.InitWFn {
	return w.initWFn
}

func (w *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", w.Type, w.Config)
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (w *InitWFn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   Type
		Config json.RawMessage
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	var config Config
	switch raw.Type {
	case GlorotU:
		c := GlorotUConfig{}
		err := unmarshalIfPresent(raw.Config, &c)
		config = c
		if err != nil {
			return err
		}
	case GlorotN:
		c := GlorotNConfig{}
		err := unmarshalIfPresent(raw.Config, &c)
		config = c
		if err != nil {
			return err
		}
	case HeU:
		c := HeUConfig{}
		err := unmarshalIfPresent(raw.Config, &c)
		config = c
		if err != nil {
			return err
		}
	case HeN:
		c := HeNConfig{}
		err := unmarshalIfPresent(raw.Config, &c)
		config = c
		if err != nil {
			return err
		}
	case Gaussian:
		c := GaussianConfig{}
		err := unmarshalIfPresent(raw.Config, &c)
		config = c
		if err != nil {
			return err
		}
	case Zeroes:
		config = ZeroesConfig{}
	default:
		return fmt.Errorf("unmarshalJSON: unknown InitWFn type %q", raw.Type)
	}

	*w = *newInitWFn(config)
	return nil
}

func unmarshalIfPresent(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshalJSON: could not decode config: %v", err)
	}
	return nil
}

// GlorotUConfig configures Glorot uniform initialization
type GlorotUConfig struct{ Gain float64 }

// NewGlorotU returns a Glorot uniform initializer
func NewGlorotU(gain float64) *InitWFn { return newInitWFn(GlorotUConfig{gain}) }

func (c GlorotUConfig) Type() Type        { return GlorotU }
func (c GlorotUConfig) Create() G.InitWFn { return G.GlorotU(c.Gain) }

// GlorotNConfig configures Glorot normal initialization
type GlorotNConfig struct{ Gain float64 }

// NewGlorotN returns a Glorot normal initializer
func NewGlorotN(gain float64) *InitWFn { return newInitWFn(GlorotNConfig{gain}) }

func (c GlorotNConfig) Type() Type        { return GlorotN }
func (c GlorotNConfig) Create() G.InitWFn { return G.GlorotN(c.Gain) }

// HeUConfig configures He uniform initialization
type HeUConfig struct{ Gain float64 }

// NewHeU returns a He uniform initializer
func NewHeU(gain float64) *InitWFn { return newInitWFn(HeUConfig{gain}) }

func (c HeUConfig) Type() Type        { return HeU }
func (c HeUConfig) Create() G.InitWFn { return G.HeU(c.Gain) }

// HeNConfig configures He normal initialization
type HeNConfig struct{ Gain float64 }

// NewHeN returns a He normal initializer
func NewHeN(gain float64) *InitWFn { return newInitWFn(HeNConfig{gain}) }

func (c HeNConfig) Type() Type        { return HeN }
func (c HeNConfig) Create() G.InitWFn { return G.HeN(c.Gain) }

// GaussianConfig configures initialization from a fixed Gaussian
type GaussianConfig struct{ Mean, StdDev float64 }

// NewGaussian returns an initializer drawing from N(mean, stddev²)
func NewGaussian(mean, stddev float64) *InitWFn {
	return newInitWFn(GaussianConfig{mean, stddev})
}

func (c GaussianConfig) Type() Type        { return Gaussian }
func (c GaussianConfig) Create() G.InitWFn { return G.Gaussian(c.Mean, c.StdDev) }

// ZeroesConfig configures zero initialization
type ZeroesConfig struct{}

// NewZeroes returns an initializer setting all weights to 0
func NewZeroes() *InitWFn { return newInitWFn(ZeroesConfig{}) }

func (c ZeroesConfig) Type() Type        { return Zeroes }
func (c ZeroesConfig) Create() G.InitWFn { return G.Zeroes() }
