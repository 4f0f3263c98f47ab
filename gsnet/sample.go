package gsnet

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Sampler is a compiled single walkback of a GSN, used to run sampling
// chains. It has its own graph holding a copy of the parameters.
//
// With more than one layer a step takes the full network state [x, h1 ... hK]
// and returns the new state followed by p(X). With a single layer a step
// takes x alone and returns p(X) alone.
type Sampler struct {
	from  *GSN
	g     *G.ExprGraph
	m     G.VM
	noise *noise
	model G.Nodes

	inputs  G.Nodes
	outputs G.Nodes
	vals    []G.Value
}

// NewSampler compiles the sampling transition of d for batchSize chains.
// Noise is on, as it is for the training chain.
func NewSampler(d *GSN, batchSize int) (*Sampler, error) {
	if d.g == nil {
		return nil, ErrNotBuilt
	}
	s := &Sampler{
		from:  d,
		g:     G.NewGraph(),
		noise: newNoise(d.Seed+2, d.saltPepper, d.sigma),
	}
	sizes := d.LayerSizes()

	var weights, biases []*G.Node
	for i, w := range d.weights {
		v := w.Value().(*tensor.Dense).Clone().(*tensor.Dense)
		weights = append(weights, G.NewMatrix(s.g, Float, G.WithShape(v.Shape()...), G.WithName(weightName(i)), G.WithValue(v)))
	}
	for i, b := range d.biases {
		v := b.Value().(*tensor.Dense).Clone().(*tensor.Dense)
		biases = append(biases, G.NewMatrix(s.g, Float, G.WithShape(v.Shape()...), G.WithName(biasName(i)), G.WithValue(v)))
	}
	s.model = append(append(s.model, weights...), biases...)

	state := make([]*G.Node, len(sizes))
	state[0] = G.NewMatrix(s.g, Float, G.WithShape(batchSize, sizes[0]), G.WithName("X_sampling"))
	s.inputs = G.Nodes{state[0]}
	if d.Layers > 1 {
		for i := 1; i < len(sizes); i++ {
			state[i] = G.NewMatrix(s.g, Float, G.WithShape(batchSize, sizes[i]), G.WithName(fmt.Sprintf("H_sampling_%d", i)))
			s.inputs = append(s.inputs, state[i])
		}
	}

	w := &walker{
		g:             s.g,
		name:          "sample",
		weights:       weights,
		biases:        biases,
		vis:           d.vis,
		hid:           d.hid,
		batch:         batchSize,
		addNoise:      true,
		noiselessH1:   d.NoiselessH1,
		inputSampling: d.InputSampling,
		noise:         s.noise,
		deps:          make(map[*G.Node]paramSet),
	}
	out := w.walkback(state)
	if w.err != nil {
		return nil, errors.Wrap(w.err, "building sampling transition")
	}
	if d.Layers > 1 {
		s.outputs = append(s.outputs, out...)
	}
	s.outputs = append(s.outputs, w.chain[len(w.chain)-1])

	s.vals = make([]G.Value, len(s.outputs))
	for i, n := range s.outputs {
		G.Read(n, &s.vals[i])
	}
	s.m = G.NewTapeMachine(s.g)
	return s, nil
}

// Sync copies the current parameters of the GSN the sampler was made from.
func (s *Sampler) Sync() error {
	for i, n := range s.from.Model() {
		if err := copyInto(s.model[i].Value(), n.Value()); err != nil {
			return err
		}
	}
	return nil
}

// Inputs returns the number of tensors a step takes.
func (s *Sampler) Inputs() int { return len(s.inputs) }

// Step runs one walkback.
func (s *Sampler) Step(state ...*tensor.Dense) ([]*tensor.Dense, error) {
	if len(state) != len(s.inputs) {
		return nil, errors.Errorf("expected %d state tensors, got %d", len(s.inputs), len(state))
	}
	for i, n := range s.inputs {
		if !state[i].Shape().Eq(n.Shape()) {
			return nil, errors.Errorf("state %d: expected shape %v, got %v", i, n.Shape(), state[i].Shape())
		}
		if err := G.Let(n, state[i]); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if err := s.noise.draw(); err != nil {
		return nil, err
	}
	s.m.Reset()
	if err := s.m.RunAll(); err != nil {
		return nil, errors.WithStack(err)
	}
	retVal := make([]*tensor.Dense, len(s.vals))
	for i, v := range s.vals {
		retVal[i] = v.(*tensor.Dense).Clone().(*tensor.Dense)
	}
	return retVal, nil
}

// Chain starts from x with zero hidden layers and runs steps walkbacks,
// feeding every step's state into the next. It returns p(X) of every step.
func (s *Sampler) Chain(x *tensor.Dense, steps int) ([]*tensor.Dense, error) {
	state := []*tensor.Dense{x}
	if len(s.inputs) > 1 {
		for _, n := range s.inputs[1:] {
			state = append(state, zeroes(n.Shape()[0], n.Shape()[1]))
		}
	}
	var retVal []*tensor.Dense
	for i := 0; i < steps; i++ {
		out, err := s.Step(state...)
		if err != nil {
			return retVal, err
		}
		px := out[len(out)-1]
		retVal = append(retVal, px)
		if len(s.inputs) > 1 {
			state = out[:len(s.inputs)]
		} else {
			state = []*tensor.Dense{px}
		}
	}
	return retVal, nil
}

// Close implements a closer.
func (s *Sampler) Close() error { return s.m.Close() }
