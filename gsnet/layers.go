package gsnet

import (
	"fmt"

	"go.dedis.ch/onet/v3/log"
	G "gorgonia.org/gorgonia"
)

// paramSet is the set of parameter nodes a node was computed from.
type paramSet map[*G.Node]struct{}

func (s paramSet) union(others ...paramSet) paramSet {
	retVal := make(paramSet, len(s))
	for k := range s {
		retVal[k] = struct{}{}
	}
	for _, o := range others {
		for k := range o {
			retVal[k] = struct{}{}
		}
	}
	return retVal
}

// walker assembles walkbacks of layer updates for one chain of a graph.
//
// A hidden state is a slice [h0 ... hK]. Every pass returns a new slice; the
// slice handed in is never written to.
type walker struct {
	maebe
	g    *G.ExprGraph
	name string

	weights, biases []*G.Node
	wT              []*G.Node
	vis, hid        Activation
	batch           int

	addNoise      bool
	noiselessH1   bool
	inputSampling bool
	noise         *noise

	step  int       // walkbacks done so far
	chain []*G.Node // p(X) after every walkback
	deps  map[*G.Node]paramSet
}

func (w *walker) transposed(i int) *G.Node {
	if w.wT == nil {
		w.wT = make([]*G.Node, len(w.weights))
	}
	if w.wT[i] == nil {
		w.wT[i] = w.transpose(w.weights[i])
	}
	return w.wT[i]
}

func (w *walker) nodeName(kind string, i int) string {
	return fmt.Sprintf("%s_%s_w%d_h%d", w.name, kind, w.step, i)
}

// walkback is a full update: odd layers then even layers.
func (w *walker) walkback(h []*G.Node) []*G.Node {
	log.Lvlf4("%s walkback %d: odd layer updates", w.name, w.step)
	h = w.updateOdd(h)
	log.Lvlf4("%s walkback %d: even layer updates", w.name, w.step)
	h = w.updateEven(h)
	w.step++
	return h
}

// walkbackReverse updates the even layers first so that the visible layer is
// recomputed from the existing hidden context.
func (w *walker) walkbackReverse(h []*G.Node) []*G.Node {
	log.Lvlf4("%s walkback %d: even layer updates", w.name, w.step)
	h = w.updateEven(h)
	log.Lvlf4("%s walkback %d: odd layer updates", w.name, w.step)
	h = w.updateOdd(h)
	w.step++
	return h
}

func (w *walker) updateOdd(h []*G.Node) []*G.Node {
	retVal := make([]*G.Node, len(h))
	copy(retVal, h)
	for i := 1; i < len(h); i += 2 {
		retVal[i] = w.updateLayer(h, i)
	}
	return retVal
}

func (w *walker) updateEven(h []*G.Node) []*G.Node {
	retVal := make([]*G.Node, len(h))
	copy(retVal, h)
	for i := 0; i < len(h); i += 2 {
		retVal[i] = w.updateLayer(h, i)
	}
	return retVal
}

// updateLayer computes the new value of layer i from its neighbours in h.
func (w *walker) updateLayer(h []*G.Node, i int) *G.Node {
	if w.err != nil {
		return nil
	}
	top := len(h) - 1
	deps := paramSet{w.biases[i]: {}}

	var x *G.Node
	switch {
	case i == 0:
		x = w.mul(h[1], w.transposed(0))
		deps = deps.union(w.deps[h[1]], paramSet{w.weights[0]: {}})
	case i == top:
		x = w.mul(h[i-1], w.weights[i-1])
		deps = deps.union(w.deps[h[i-1]], paramSet{w.weights[i-1]: {}})
	default:
		below := w.mul(h[i-1], w.weights[i-1])
		above := w.mul(h[i+1], w.transposed(i))
		x = w.add(above, below)
		deps = deps.union(w.deps[h[i-1]], w.deps[h[i+1]], paramSet{w.weights[i-1]: {}, w.weights[i]: {}})
	}
	x = w.addBias(x, w.biases[i])

	addNoise := w.addNoise
	if i == 1 && w.noiselessH1 {
		addNoise = false
	}

	if i != 0 && addNoise {
		x = w.add(x, w.noise.gaussian(w.g, w.nodeName("pre", i), w.batch, x.Shape()[1]))
	}
	if i == 0 {
		x = w.activate(x, w.vis)
	} else {
		x = w.activate(x, w.hid)
	}
	if i != 0 && addNoise {
		x = w.add(x, w.noise.gaussian(w.g, w.nodeName("post", i), w.batch, x.Shape()[1]))
	}

	if i == 0 && w.err == nil {
		w.chain = append(w.chain, x)
		w.deps[x] = deps

		sampled := x
		if w.inputSampling {
			u := w.noise.uniform(w.g, w.nodeName("sample", i), w.batch, x.Shape()[1])
			sampled = w.lt(u, x)
		}
		if w.addNoise {
			sampled = w.corrupt(sampled, w.nodeName("saltpepper", i))
		}
		x = sampled
	}
	if w.err != nil {
		return nil
	}
	w.deps[x] = deps
	return x
}

// corrupt applies salt-and-pepper masking noise.
func (w *walker) corrupt(x *G.Node, name string) *G.Node {
	if w.err != nil {
		return nil
	}
	keep, salt := w.noise.corruption(w.g, name, w.batch, x.Shape()[1])
	return w.add(w.hadamard(x, keep), salt)
}

// buildGSN runs walkbacks on the visible input x, starting from zero hidden
// layers. It returns the reconstruction after every walkback and the final
// hidden state.
func (w *walker) buildGSN(x *G.Node, sizes []int, walkbacks int) (chain, hiddens []*G.Node) {
	xInit := x
	if w.addNoise {
		xInit = w.corrupt(x, w.name+"_corrupt_X")
	}
	h := make([]*G.Node, 1, len(sizes))
	h[0] = xInit
	for i := 1; i < len(sizes); i++ {
		h = append(h, w.zeroes(fmt.Sprintf("%s_h%d_init", w.name, i), sizes[i]))
	}

	log.Lvlf3("Building the %s GSN graph: %d updates", w.name, walkbacks)
	for k := 0; k < walkbacks; k++ {
		h = w.walkback(h)
	}
	return w.chain, h
}

// buildGSNGivenHiddens runs walkbacks in reverse order from an existing
// hidden state, and sums the reconstruction cost of every step against x.
func (w *walker) buildGSNGivenHiddens(x *G.Node, h []*G.Node, walkbacks int, f Cost) (chain, hiddens []*G.Node, cost, showCost *G.Node) {
	log.Lvlf3("Building the %s GSN graph given hiddens: %d updates", w.name, walkbacks)
	for k := 0; k < walkbacks; k++ {
		h = w.walkbackReverse(h)
	}
	cost, showCost = w.costs(x, f)
	return w.chain, h, cost, showCost
}

// costs returns the summed and the last reconstruction cost of the chain.
func (w *walker) costs(x *G.Node, f Cost) (total, last *G.Node) {
	for _, rx := range w.chain {
		c := w.cost(f, rx, x)
		if total == nil {
			total = c
		} else {
			total = w.add(total, c)
		}
		last = c
	}
	return total, last
}

// connected returns the parameters structurally feeding the chain.
func (w *walker) connected() paramSet {
	retVal := make(paramSet)
	for _, rx := range w.chain {
		retVal = retVal.union(w.deps[rx])
	}
	return retVal
}

func (w *walker) zeroes(name string, width int) *G.Node {
	return G.NewMatrix(w.g, Float, G.WithShape(w.batch, width), G.WithName(name), G.WithValue(zeroes(w.batch, width)))
}
