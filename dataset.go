package gsn

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// MemDataset is a Dataset held in memory as one matrix per subset. A nil
// subset is empty.
type MemDataset struct {
	width   int
	subsets [3][][]float32
}

// NewMemDataset wraps float32 matrices. The rows are shared, not copied.
func NewMemDataset(train, valid, test *tensor.Dense) (*MemDataset, error) {
	retVal := new(MemDataset)
	for i, t := range []*tensor.Dense{train, valid, test} {
		if t == nil {
			continue
		}
		if t.Dims() != 2 || t.Dtype() != tensor.Float32 {
			return nil, errors.Errorf("%v: expected a Float32 matrix, got %v of %v", Subset(i), t.Shape(), t.Dtype())
		}
		if retVal.width != 0 && t.Shape()[1] != retVal.width {
			return nil, errors.Errorf("%v: expected %d columns, got %d", Subset(i), retVal.width, t.Shape()[1])
		}
		rs, err := native.MatrixF32(t)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		retVal.width = t.Shape()[1]
		retVal.subsets[i] = rs
	}
	if retVal.width == 0 {
		return nil, errors.New("empty dataset")
	}
	return retVal, nil
}

func (d *MemDataset) ExampleShape() int { return d.width }

func (d *MemDataset) Len(s Subset) int {
	if int(s) >= len(d.subsets) {
		return 0
	}
	return len(d.subsets[s])
}

func (d *MemDataset) Batch(s Subset, indices []int) (*tensor.Dense, error) {
	n := d.Len(s)
	backing := make([]float32, 0, len(indices)*d.width)
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, errors.Errorf("%v: index %d out of range [0, %d)", s, i, n)
		}
		backing = append(backing, d.subsets[s][i]...)
	}
	return tensor.New(tensor.WithShape(len(indices), d.width), tensor.WithBacking(backing)), nil
}

// Mean returns the per feature mean of a subset.
func Mean(d Dataset, s Subset, batchSize int) ([]float32, error) {
	n := d.Len(s)
	if n == 0 {
		return nil, errors.Errorf("%v subset is empty", s)
	}
	retVal := make([]float32, d.ExampleShape())
	for _, indices := range sequential(n, batchSize, true) {
		b, err := d.Batch(s, indices)
		if err != nil {
			return nil, err
		}
		rs, err := native.MatrixF32(b)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, r := range rs {
			for j, v := range r {
				retVal[j] += v
			}
		}
	}
	for j := range retVal {
		retVal[j] /= float32(n)
	}
	return retVal, nil
}

// sequential splits [0, n) into batches of size batchSize. The last partial
// batch is kept only if partial is true.
func sequential(n, batchSize int, partial bool) [][]int {
	var retVal [][]int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			if !partial {
				break
			}
			end = n
		}
		indices := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			indices = append(indices, i)
		}
		retVal = append(retVal, indices)
	}
	return retVal
}
