package gsnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

type maebe struct {
	err error
}

// generic monad... may be useful
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) mul(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Mul(a, b) })
}

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

func (m *maebe) hadamard(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardProd(a, b) })
}

// addBias broadcasts a (1, n) bias row over the batch.
func (m *maebe) addBias(x, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.BroadcastAdd(x, b, nil, []byte{0}) })
}

func (m *maebe) transpose(w *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Transpose(w) })
}

func (m *maebe) activate(x *G.Node, f Activation) *G.Node {
	return m.do(func() (*G.Node, error) { return f(x) })
}

// lt returns 1 where a < b and 0 elsewhere, in the dtype of a.
func (m *maebe) lt(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Lt(a, b, true) })
}

func (m *maebe) cost(f Cost, output, target *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return f(output, target) })
}

func (m *maebe) concat(axis int, ns ...*G.Node) *G.Node {
	if len(ns) == 1 {
		return ns[0]
	}
	return m.do(func() (*G.Node, error) { return G.Concat(axis, ns...) })
}

// cols slices columns [start, end) of a matrix.
func (m *maebe) cols(x *G.Node, start, end int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Slice(x, nil, G.S(start, end)) })
}
