package gsn

import (
	"github.com/gorgonia/gsn/encoding"
	"gorgonia.org/tensor"
)

// Subset names a split of a dataset.
type Subset byte

const (
	Train Subset = iota
	Valid
	Test
)

func (s Subset) String() string {
	switch s {
	case Train:
		return "train"
	case Valid:
		return "valid"
	case Test:
		return "test"
	}
	return "unknown"
}

// Dataset is a source of examples split into subsets. Every example is a
// flat vector of ExampleShape values.
type Dataset interface {
	ExampleShape() int
	Len(s Subset) int

	// Batch returns the examples at the given indices, one per row.
	Batch(s Subset, indices []int) (*tensor.Dense, error)
}

// OutputEncoder encodes the entire meta state as whatever.
//
// An example OutputEncoder is the GifEncoder. Another example would be a logger.
type OutputEncoder interface {
	Encode(ms encoding.MetaState) error
	Flush() error
}

// ExecLogger is anything that can return the execution log.
type ExecLogger interface {
	ExecLog() string
}
