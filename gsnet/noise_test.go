package gsnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestSaltAndPepper(t *testing.T) {
	src := rand.NewSource(1)
	x := zeroes(20, 50)
	data := x.Data().([]float32)
	for i := range data {
		data[i] = 0.5
	}

	same, err := SaltAndPepper(src, x, 0)
	require.NoError(t, err)
	assert.Equal(t, data, same.Data())

	all, err := SaltAndPepper(src, x, 1)
	require.NoError(t, err)
	var ones int
	for _, v := range all.Data().([]float32) {
		if v != 0 && v != 1 {
			t.Fatalf("Expected every unit to be salted. Got %v", v)
		}
		if v == 1 {
			ones++
		}
	}
	// half salt, half pepper
	assert.InDelta(t, 500, ones, 100)

	// x is left alone
	for _, v := range data {
		assert.Equal(t, float32(0.5), v)
	}
}

func TestSaltAndPepperSeeded(t *testing.T) {
	x := zeroes(4, 8)
	a, err := SaltAndPepper(rand.NewSource(42), x, 0.4)
	require.NoError(t, err)
	b, err := SaltAndPepper(rand.NewSource(42), x, 0.4)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())
}

func TestNoiseFeedsFollowParams(t *testing.T) {
	sp := NewParam("sp", 0)
	sigma := NewParam("sigma", 0)
	n := newNoise(1, sp, sigma)

	keep := make([]float32, 100)
	salt := make([]float32, 100)
	fillSaltPepper(n.src, sp.Get(), keep, salt)
	for i := range keep {
		assert.Equal(t, float32(1), keep[i])
		assert.Equal(t, float32(0), salt[i])
	}

	sp.Set(1)
	fillSaltPepper(n.src, sp.Get(), keep, salt)
	for i := range keep {
		assert.Equal(t, float32(0), keep[i])
	}
}
