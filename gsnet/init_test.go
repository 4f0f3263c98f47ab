package gsnet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

func TestUniformWeights(t *testing.T) {
	for _, iv := range []Interval{MontrealInterval, GlorotInterval} {
		w := UniformWeights(rand.NewSource(1), 10, 20, iv)
		assert.Equal(t, tensor.Shape{10, 20}, w.Shape())
		b := float32(iv.bound(10, 20))
		var nonzero int
		for _, v := range w.Data().([]float32) {
			assert.True(t, v >= -b && v <= b, "%v outside ±%v", v, b)
			if v != 0 {
				nonzero++
			}
		}
		assert.Equal(t, 200, nonzero)
	}
	assert.InDelta(t, 4*math.Sqrt(0.2), GlorotInterval.bound(10, 20), 1e-12)
}

func TestGaussianWeights(t *testing.T) {
	w := GaussianWeights(rand.NewSource(1), 64, 64, 0.5, 0.1)
	var sum float64
	data := w.Data().([]float32)
	for _, v := range data {
		sum += float64(v)
	}
	assert.InDelta(t, 0.5, sum/float64(len(data)), 0.01)
}

func TestBias(t *testing.T) {
	assert.Equal(t, []float32{0, 0, 0}, Bias(3, 0).Data())
	b := Bias(2, 0.5)
	assert.Equal(t, tensor.Shape{1, 2}, b.Shape())
	assert.Equal(t, []float32{0.5, 0.5}, b.Data())
}
