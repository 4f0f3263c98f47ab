// Package encoding holds what output encoders need to know about a training
// run. The encoders themselves live in the subpackages.
package encoding

import "gorgonia.org/tensor"

// MetaState is a snapshot of training at the end of an epoch.
type MetaState interface {
	Name() string // name of the run
	Epoch() int

	// Samples returns the examples to draw, one flattened image per row.
	Samples() *tensor.Dense

	// ImageShape is the height and width of one example.
	ImageShape() (h, w int)

	// TileShape is the number of rows and columns of examples to draw.
	TileShape() (rows, cols int)

	// Caption is a line of text to draw under the samples, for instance the
	// current costs.
	Caption() string
}
