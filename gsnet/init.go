package gsnet

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// Interval names the bound of a uniform weight initialisation.
type Interval byte

const (
	// MontrealInterval draws from ±sqrt(6/(fanIn+fanOut)).
	MontrealInterval Interval = iota
	// GlorotInterval draws from ±4*sqrt(6/(fanIn+fanOut)), suited to sigmoid units.
	GlorotInterval
)

func (iv Interval) bound(fanIn, fanOut int) float64 {
	b := math.Sqrt(6 / float64(fanIn+fanOut))
	if iv == GlorotInterval {
		b *= 4
	}
	return b
}

// UniformWeights returns a (fanIn, fanOut) matrix drawn uniformly inside the
// interval.
func UniformWeights(src rand.Source, fanIn, fanOut int, iv Interval) *tensor.Dense {
	b := iv.bound(fanIn, fanOut)
	dist := distuv.Uniform{Min: -b, Max: b, Src: src}
	retVal := zeroes(fanIn, fanOut)
	fill(retVal.Data().([]float32), dist.Rand)
	return retVal
}

// GaussianWeights returns a (fanIn, fanOut) matrix drawn from N(mean, std).
func GaussianWeights(src rand.Source, fanIn, fanOut int, mean, std float64) *tensor.Dense {
	dist := distuv.Normal{Mu: mean, Sigma: std, Src: src}
	retVal := zeroes(fanIn, fanOut)
	fill(retVal.Data().([]float32), dist.Rand)
	return retVal
}

// Bias returns a (1, n) row filled with v.
func Bias(n int, v float32) *tensor.Dense {
	retVal := zeroes(1, n)
	if v != 0 {
		data := retVal.Data().([]float32)
		for i := range data {
			data[i] = v
		}
	}
	return retVal
}
