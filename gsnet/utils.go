package gsnet

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

var (
	// ErrConfig is returned for missing or invalid configuration.
	ErrConfig = errors.New("gsn: invalid configuration")

	// ErrNotBuilt is returned when the graph is used before Init.
	ErrNotBuilt = errors.New("gsn: computation graph has not been built")
)

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}

// rows returns the rows of a 2D float32 tensor. The rows share the tensor's
// backing.
func rows(t *tensor.Dense) ([][]float32, error) {
	if t == nil {
		return nil, errors.New("nil tensor")
	}
	if t.Dims() != 2 {
		return nil, errors.Errorf("expected a matrix, got shape %v", t.Shape())
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("expected Float32, got %v", t.Dtype())
	}
	mat, err := native.MatrixF32(t)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return mat, nil
}

func zeroes(r, c int) *tensor.Dense {
	return tensor.New(tensor.WithShape(r, c), tensor.Of(tensor.Float32))
}

// backed is satisfied by both tensors and G.Values.
type backed interface {
	Shape() tensor.Shape
	Data() interface{}
}

// copyInto copies the float32 backing of src into dst. The shapes must hold
// the same number of elements.
func copyInto(dst, src backed) error {
	d, ok := dst.Data().([]float32)
	if !ok {
		return errors.Errorf("expected []float32 backing, got %T", dst.Data())
	}
	s, ok := src.Data().([]float32)
	if !ok {
		return errors.Errorf("expected []float32 backing, got %T", src.Data())
	}
	if len(d) != len(s) {
		return errors.Errorf("size mismatch: %v vs %v", dst.Shape(), src.Shape())
	}
	copy(d, s)
	return nil
}
