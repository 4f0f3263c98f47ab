package gsnet

import (
	"bytes"
	"log"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Train is a basic trainer. xs holds batches*BatchSize examples, one per row.
func Train(d *GSN, xs *tensor.Dense, batches, iterations int, solver G.Solver) (costs []float32, err error) {
	rs, err := rows(xs)
	if err != nil {
		return nil, err
	}
	if len(rs) < batches*d.BatchSize {
		return nil, errors.Errorf("expected at least %d examples, got %d", batches*d.BatchSize, len(rs))
	}
	batch := zeroes(d.BatchSize, d.InputSize)
	data := batch.Data().([]float32)
	for i := 0; i < iterations; i++ {
		var cost float32
		for bat := 0; bat < batches; bat++ {
			for r := 0; r < d.BatchSize; r++ {
				copy(data[r*d.InputSize:], rs[bat*d.BatchSize+r])
			}
			var c float32
			if c, err = d.TrainBatch(batch, solver); err != nil {
				return costs, err
			}
			cost += c
		}
		costs = append(costs, cost/float32(batches))
	}
	return costs, nil
}

// Inferencer holds a forward only copy of a *GSN and its VM. By using an
// Inferencer there is no need to build a graph every time a batch size
// differs from the training batch size.
type Inferencer struct {
	d    *GSN
	from *GSN

	buf *bytes.Buffer
}

// Infer takes a *GSN and creates a forward only copy with the given batch
// size. The parameters are copied from d before every run.
func Infer(d *GSN, batchSize int, toLog bool) (*Inferencer, error) {
	if d.g == nil {
		return nil, ErrNotBuilt
	}
	conf := d.Config
	conf.FwdOnly = true
	conf.BatchSize = batchSize
	retVal := &Inferencer{
		d:    New(conf),
		from: d,
		buf:  new(bytes.Buffer),
	}
	if err := retVal.d.Init(); err != nil {
		return nil, err
	}

	if toLog {
		logger := log.New(retVal.buf, "", 0)
		retVal.d.m = G.NewTapeMachine(retVal.d.g,
			G.WithLogger(logger),
			G.WithWatchlist(),
			G.TraceExec(),
			G.WithValueFmt("%+1.1v"),
			G.WithNaNWatch(),
		)
	}
	return retVal, nil
}

// GSN returns the forward only GSN.
func (m *Inferencer) GSN() *GSN { return m.d }

func (m *Inferencer) sync() error {
	m.buf.Reset()
	if err := m.d.copyParams(m.from); err != nil {
		return err
	}
	if m.from.hook == nil {
		return nil
	}
	if m.d.BatchSize == m.from.BatchSize {
		if v := m.from.hook.Value(); v != nil {
			if err := G.Let(m.d.hook, v); err != nil {
				return errors.WithStack(err)
			}
		}
	}
	if m.d.hook.Value() == nil {
		return errors.Errorf("no packed hiddens for a batch of %d: call SetHiddens on the inferencer", m.d.BatchSize)
	}
	return nil
}

// SetHiddens sets the packed hidden state of a hidden-hooked inferencer.
func (m *Inferencer) SetHiddens(packed *tensor.Dense) error { return m.d.SetHiddens(packed) }

// Predict returns the noise free reconstruction of x.
func (m *Inferencer) Predict(x *tensor.Dense) (*tensor.Dense, error) {
	if err := m.sync(); err != nil {
		return nil, err
	}
	return m.d.Predict(x)
}

// Evaluate returns the monitors on x.
func (m *Inferencer) Evaluate(x *tensor.Dense) ([]Monitor, error) {
	if err := m.sync(); err != nil {
		return nil, err
	}
	return m.d.Evaluate(x)
}

// Hiddens returns the packed noise free hidden representation of x.
func (m *Inferencer) Hiddens(x *tensor.Dense) (*tensor.Dense, error) {
	if err := m.sync(); err != nil {
		return nil, err
	}
	if err := m.d.run(x); err != nil {
		return nil, err
	}
	return m.d.packedVal.(*tensor.Dense).Clone().(*tensor.Dense), nil
}

// ExecLog returns the execution log. If Infer was called with toLog = false,
// then it will return an empty string.
func (m *Inferencer) ExecLog() string { return m.buf.String() }

// Close implements a closer, because well, a gorgonia VM is a resource.
func (m *Inferencer) Close() error { return m.d.Close() }
