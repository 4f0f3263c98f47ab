package gsnet

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	G "gorgonia.org/gorgonia"
)

// Cost reduces a reconstruction and its target to a scalar.
type Cost func(output, target *G.Node) (*G.Node, error)

var costs = map[string]Cost{
	"binary_crossentropy": BinaryCrossEntropy,
	"mse":                 MeanSquaredError,
	"mae":                 MeanAbsoluteError,
}

// xentEpsilon keeps the logs finite when the visible units saturate.
const xentEpsilon = 1e-6

// BinaryCrossEntropy is mean(-(t*log(o) + (1-t)*log(1-o))). o is squeezed
// into [eps, 1-eps] first.
func BinaryCrossEntropy(output, target *G.Node) (*G.Node, error) {
	var m maebe
	one := G.NewConstant(float32(1))
	eps := G.NewConstant(float32(xentEpsilon))
	scale := G.NewConstant(float32(1 - 2*xentEpsilon))

	o := m.do(func() (*G.Node, error) { return G.HadamardProd(output, scale) })
	o = m.do(func() (*G.Node, error) { return G.Add(o, eps) })
	omy := m.do(func() (*G.Node, error) { return G.Sub(one, target) })
	omo := m.do(func() (*G.Node, error) { return G.Sub(one, o) })
	logO := m.do(func() (*G.Node, error) { return G.Log(o) })
	logOmo := m.do(func() (*G.Node, error) { return G.Log(omo) })

	fst := m.do(func() (*G.Node, error) { return G.HadamardProd(target, logO) })
	snd := m.do(func() (*G.Node, error) { return G.HadamardProd(omy, logOmo) })
	retVal := m.do(func() (*G.Node, error) { return G.Add(fst, snd) })
	retVal = m.do(func() (*G.Node, error) { return G.Mean(retVal) })
	retVal = m.do(func() (*G.Node, error) { return G.Neg(retVal) })
	return retVal, m.err
}

// MeanSquaredError is mean((o-t)^2).
func MeanSquaredError(output, target *G.Node) (*G.Node, error) {
	var m maebe
	diff := m.do(func() (*G.Node, error) { return G.Sub(output, target) })
	diff = m.do(func() (*G.Node, error) { return G.Square(diff) })
	retVal := m.do(func() (*G.Node, error) { return G.Mean(diff) })
	return retVal, m.err
}

// MeanAbsoluteError is mean(|o-t|).
func MeanAbsoluteError(output, target *G.Node) (*G.Node, error) {
	var m maebe
	diff := m.do(func() (*G.Node, error) { return G.Sub(output, target) })
	diff = m.do(func() (*G.Node, error) { return G.Abs(diff) })
	retVal := m.do(func() (*G.Node, error) { return G.Mean(diff) })
	return retVal, m.err
}

// GetCost looks up a cost function by name.
func GetCost(name string) (Cost, error) {
	if f, ok := costs[strings.ToLower(name)]; ok {
		return f, nil
	}
	names := make([]string, 0, len(costs))
	for k := range costs {
		names = append(names, k)
	}
	sort.Strings(names)
	return nil, errors.Wrapf(ErrConfig, "unknown cost function %q (known: %s)", name, strings.Join(names, ", "))
}

func resolveCost(fn Cost, name string) (Cost, error) {
	if fn != nil {
		log.Lvl3("Using specified cost function")
		return fn, nil
	}
	if name == "" {
		return nil, errors.Wrap(ErrConfig, "missing a cost function")
	}
	f, err := GetCost(name)
	if err != nil {
		return nil, err
	}
	log.Lvlf3("Using %s cost function", name)
	return f, nil
}
