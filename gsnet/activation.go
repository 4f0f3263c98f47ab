package gsnet

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	G "gorgonia.org/gorgonia"
)

// Activation is an elementwise function applied to a layer's pre-activation.
type Activation func(x *G.Node) (*G.Node, error)

var activations = map[string]Activation{
	"sigmoid":   G.Sigmoid,
	"tanh":      G.Tanh,
	"rectifier": G.Rectify,
	"relu":      G.Rectify,
	"softplus":  G.Softplus,
	"softmax":   softmax,
	"linear":    linear,
	"identity":  linear,
}

func linear(x *G.Node) (*G.Node, error) { return x, nil }

func softmax(x *G.Node) (*G.Node, error) { return G.SoftMax(x) }

// GetActivation looks up an activation by name. Names are case insensitive.
func GetActivation(name string) (Activation, error) {
	if f, ok := activations[strings.ToLower(name)]; ok {
		return f, nil
	}
	return nil, errors.Wrapf(ErrConfig, "unknown activation %q (known: %s)", name, strings.Join(ActivationNames(), ", "))
}

// ActivationNames lists the registered activation names.
func ActivationNames() []string {
	retVal := make([]string, 0, len(activations))
	for k := range activations {
		retVal = append(retVal, k)
	}
	sort.Strings(retVal)
	return retVal
}

func resolveActivation(fn Activation, name, which string) (Activation, error) {
	if fn != nil {
		log.Lvlf3("Using specified activation for %s layer", which)
		return fn, nil
	}
	if name == "" {
		return nil, errors.Wrapf(ErrConfig, "missing a %s activation function", which)
	}
	f, err := GetActivation(name)
	if err != nil {
		return nil, err
	}
	log.Lvlf3("Using %s activation for %s layer", name, which)
	return f, nil
}
