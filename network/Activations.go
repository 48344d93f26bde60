package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

type activationType string

const (
	relu     activationType = "relu"
	identity activationType = "identity"
	tanh     activationType = "tanh"
	sigmoid  activationType = "sigmoid"
	softplus activationType = "softplus"
	elu      activationType = "elu"
	nil_     activationType = "nil"
)

// Activation is a named, serializable activation function
type Activation struct {
	activationType
	f func(x *G.Node) (*G.Node, error)
}

func (a *Activation) fwd(x *G.Node) (*G.Node, error) {
	if a == nil || a.f == nil {
		return x, nil
	}
	return a.f(x)
}

// String implements the fmt.Stringer interface
func (a *Activation) String() string {
	return string(a.activationType)
}

// IsIdentity returns whether the Activation is the identity function
func (a *Activation) IsIdentity() bool {
	return a.activationType == identity
}

// IsNil returns whether the Activation is the nil activation
func (a *Activation) IsNil() bool {
	return a == nil || a.activationType == nil_
}

// MarshalText implements the encoding.TextMarshaler interface so that
// activations can appear in JSON configurations.
func (a *Activation) MarshalText() ([]byte, error) {
	return []byte(a.activationType), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (a *Activation) UnmarshalText(text []byte) error {
	act, err := ActivationFromString(string(text))
	if err != nil {
		return err
	}
	*a = *act
	return nil
}

// GobEncode implements the GobEncoder interface
func (a *Activation) GobEncode() ([]byte, error) {
	return []byte(a.activationType), nil
}

// GobDecode implements the GobDecoder interface
func (a *Activation) GobDecode(encoded []byte) error {
	return a.UnmarshalText(encoded)
}

// ActivationFromString returns the Activation with the given name
func ActivationFromString(name string) (*Activation, error) {
	switch activationType(name) {
	case relu:
		return ReLU(), nil
	case identity:
		return Identity(), nil
	case tanh:
		return TanH(), nil
	case sigmoid:
		return Sigmoid(), nil
	case softplus:
		return Softplus(), nil
	case elu:
		return ELU(), nil
	case nil_:
		return Nil(), nil
	default:
		return nil, fmt.Errorf("activationfromstring: illegal Activation "+
			"type %q", name)
	}
}

// Nil returns an *Activation which adds nothing to the graph
func Nil() *Activation {
	return &Activation{activationType: nil_}
}

// Identity returns an identity *Activation
func Identity() *Activation {
	return &Activation{
		activationType: identity,
		f: func(x *G.Node) (*G.Node, error) {
			return x, nil
		},
	}
}

// ReLU returns a ReLU *Activation
func ReLU() *Activation {
	return &Activation{activationType: relu, f: G.Rectify}
}

// TanH returns a tanh *Activation
func TanH() *Activation {
	return &Activation{activationType: tanh, f: G.Tanh}
}

// Sigmoid returns a logistic sigmoid *Activation
func Sigmoid() *Activation {
	return &Activation{activationType: sigmoid, f: G.Sigmoid}
}

// Softplus returns a softplus *Activation
func Softplus() *Activation {
	return &Activation{activationType: softplus, f: G.Softplus}
}

// ELU returns an exponential linear unit *Activation with α = 1.
//
// elu(x) = max(x, 0) + min(exp(x) - 1, 0)
func ELU() *Activation {
	return &Activation{
		activationType: elu,
		f: func(x *G.Node) (*G.Node, error) {
			pos, err := G.Rectify(x)
			if err != nil {
				return nil, err
			}

			// min(exp(x) - 1, 0) = -relu(1 - exp(x))
			one := G.NewConstant(1.0)
			expX, err := G.Exp(x)
			if err != nil {
				return nil, err
			}
			neg, err := G.Sub(one, expX)
			if err != nil {
				return nil, err
			}
			neg, err = G.Rectify(neg)
			if err != nil {
				return nil, err
			}
			return G.Sub(pos, neg)
		},
	}
}
