package gsn

import "gorgonia.org/tensor"

// metaState implements encoding.MetaState.
type metaState struct {
	name       string
	epoch      int
	samples    *tensor.Dense
	h, w       int
	rows, cols int
	caption    string
}

func (ms *metaState) Name() string           { return ms.name }
func (ms *metaState) Epoch() int             { return ms.epoch }
func (ms *metaState) Samples() *tensor.Dense { return ms.samples }
func (ms *metaState) ImageShape() (int, int) { return ms.h, ms.w }
func (ms *metaState) TileShape() (int, int)  { return ms.rows, ms.cols }
func (ms *metaState) Caption() string        { return ms.caption }
