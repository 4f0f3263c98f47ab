package gsnet

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

type noiseKind byte

const (
	saltPepperNoise noiseKind = iota
	gaussianNoise
	uniformNoise
)

// feed is a set of input nodes whose values are redrawn before every run of
// the graph. A salt-and-pepper feed has two nodes: the keep mask and the
// salt that replaces the dropped units.
type feed struct {
	kind  noiseKind
	nodes []*G.Node
	vals  []*tensor.Dense
}

// noise owns the seeded random stream of a graph and all of its feeds.
type noise struct {
	src rand.Source

	saltPepper *Param
	sigma      *Param

	feeds []feed
}

func newNoise(seed uint64, saltPepper, sigma *Param) *noise {
	return &noise{
		src:        rand.NewSource(seed),
		saltPepper: saltPepper,
		sigma:      sigma,
	}
}

func (n *noise) input(g *G.ExprGraph, name string, r, c int) (*G.Node, *tensor.Dense) {
	val := zeroes(r, c)
	node := G.NewMatrix(g, Float, G.WithShape(r, c), G.WithName(name), G.WithValue(val))
	return node, val
}

// corruption returns the keep mask and salt of a salt-and-pepper corruption.
// The corrupted input is x*keep + salt.
func (n *noise) corruption(g *G.ExprGraph, name string, r, c int) (keep, salt *G.Node) {
	keep, keepVal := n.input(g, name+"_keep", r, c)
	salt, saltVal := n.input(g, name+"_salt", r, c)
	n.feeds = append(n.feeds, feed{
		kind:  saltPepperNoise,
		nodes: []*G.Node{keep, salt},
		vals:  []*tensor.Dense{keepVal, saltVal},
	})
	return keep, salt
}

func (n *noise) gaussian(g *G.ExprGraph, name string, r, c int) *G.Node {
	node, val := n.input(g, name, r, c)
	n.feeds = append(n.feeds, feed{kind: gaussianNoise, nodes: []*G.Node{node}, vals: []*tensor.Dense{val}})
	return node
}

func (n *noise) uniform(g *G.ExprGraph, name string, r, c int) *G.Node {
	node, val := n.input(g, name, r, c)
	n.feeds = append(n.feeds, feed{kind: uniformNoise, nodes: []*G.Node{node}, vals: []*tensor.Dense{val}})
	return node
}

// draw refills every feed from the random stream and lets the values into
// the graph. Levels are read from the schedule params at call time.
func (n *noise) draw() error {
	for _, f := range n.feeds {
		switch f.kind {
		case saltPepperNoise:
			fillSaltPepper(n.src, n.saltPepper.Get(), f.vals[0].Data().([]float32), f.vals[1].Data().([]float32))
		case gaussianNoise:
			dist := distuv.Normal{Mu: 0, Sigma: n.sigma.Get(), Src: n.src}
			fill(f.vals[0].Data().([]float32), dist.Rand)
		case uniformNoise:
			dist := distuv.Uniform{Min: 0, Max: 1, Src: n.src}
			fill(f.vals[0].Data().([]float32), dist.Rand)
		}
		for i, node := range f.nodes {
			if err := G.Let(node, f.vals[i]); err != nil {
				return errors.Wrapf(err, "unable to let noise into %v", node.Name())
			}
		}
	}
	return nil
}

func fill(a []float32, f func() float64) {
	for i := range a {
		a[i] = float32(f())
	}
}

// fillSaltPepper keeps each unit with probability 1-level. A dropped unit is
// set to 0 or 1 with equal probability.
func fillSaltPepper(src rand.Source, level float64, keep, salt []float32) {
	keeper := distuv.Bernoulli{P: 1 - level, Src: src}
	coin := distuv.Bernoulli{P: 0.5, Src: src}
	for i := range keep {
		keep[i] = float32(keeper.Rand())
		if keep[i] == 0 {
			salt[i] = float32(coin.Rand())
		} else {
			salt[i] = 0
		}
	}
}

// SaltAndPepper returns a corrupted copy of x. Each unit is kept with
// probability 1-level, and otherwise set to 0 or 1 with equal probability.
func SaltAndPepper(src rand.Source, x *tensor.Dense, level float64) (*tensor.Dense, error) {
	data, ok := x.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("expected []float32 backing, got %T", x.Data())
	}
	retVal := x.Clone().(*tensor.Dense)
	out := retVal.Data().([]float32)
	keep := make([]float32, len(data))
	salt := make([]float32, len(data))
	fillSaltPepper(src, level, keep, salt)
	vecf32.Mul(out, keep)
	vecf32.Add(out, salt)
	return retVal, nil
}
