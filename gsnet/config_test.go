package gsnet

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	if !DefaultConf(784).IsValid() {
		t.Errorf("Expected Default Config to be correct")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
	}{
		{"no input size", func(c *Config) { c.InputSize = 0 }},
		{"no layers", func(c *Config) { c.Layers = 0 }},
		{"no walkbacks", func(c *Config) { c.Walkbacks = 0 }},
		{"no hidden units", func(c *Config) { c.HiddenSize = 0 }},
		{"no batch", func(c *Config) { c.BatchSize = 0 }},
		{"salt and pepper above 1", func(c *Config) { c.InputSaltAndPepper = 1.5 }},
		{"negative sigma", func(c *Config) { c.HiddenAddNoiseSigma = -1 }},
		{"unknown visible activation", func(c *Config) { c.VisibleActivation = "wobbly" }},
		{"unknown hidden activation", func(c *Config) { c.HiddenActivation = "" }},
		{"unknown cost", func(c *Config) { c.CostFunction = "hinge" }},
	}
	for _, c := range cases {
		conf := DefaultConf(16)
		c.modify(&conf)
		err := conf.Validate()
		if assert.Error(t, err, c.name) {
			assert.True(t, errors.Is(err, ErrConfig), "%s: %v", c.name, err)
		}
	}
}

func TestConfigUserFunctions(t *testing.T) {
	conf := DefaultConf(16)
	conf.HiddenActivation = "not registered"
	conf.HiddenActivationFn = linear
	assert.NoError(t, conf.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "gsnconf")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	filename := filepath.Join(dir, "gsn.toml")
	data := []byte(`
hidden_size = 32
layers = 2
walkbacks = 4
hidden_activation = "relu"
add_noise = false
`)
	require.NoError(t, ioutil.WriteFile(filename, data, 0644))

	conf, err := LoadConfig(filename, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, conf.InputSize)
	assert.Equal(t, 32, conf.HiddenSize)
	assert.Equal(t, 2, conf.Layers)
	assert.Equal(t, 4, conf.Walkbacks)
	assert.Equal(t, "relu", conf.HiddenActivation)
	assert.False(t, conf.AddNoise)
	// untouched keys keep their defaults
	assert.Equal(t, 100, conf.BatchSize)
	assert.Equal(t, 0.4, conf.InputSaltAndPepper)
	assert.True(t, conf.IsValid())

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"), 64)
	assert.Error(t, err)
}

func TestLayerSizes(t *testing.T) {
	conf := DefaultConf(10)
	conf.HiddenSize = 4
	conf.Layers = 3
	assert.Equal(t, []int{10, 4, 4, 4}, conf.LayerSizes())
	assert.Equal(t, 8, conf.PackedSize())

	conf.Layers = 1
	assert.Equal(t, []int{10, 4}, conf.LayerSizes())
	assert.Equal(t, 4, conf.PackedSize())
}

var squareFactors = []struct{ n, a, b int }{
	{1, 1, 1},
	{7, 1, 7},
	{12, 3, 4},
	{16, 4, 4},
	{784, 28, 28},
	{3072, 48, 64},
}

func TestClosestToSquareFactors(t *testing.T) {
	for _, c := range squareFactors {
		a, b := ClosestToSquareFactors(c.n)
		if a != c.a || b != c.b {
			t.Errorf("Expected factors of %d to be (%d, %d). Got (%d, %d) instead", c.n, c.a, c.b, a, b)
		}
	}

	conf := DefaultConf(784)
	h, w := conf.ImageShape()
	assert.Equal(t, 28, h)
	assert.Equal(t, 28, w)
	conf.Height, conf.Width = 14, 56
	h, w = conf.ImageShape()
	assert.Equal(t, 14, h)
	assert.Equal(t, 56, w)
}

func TestEnoughWalkbacks(t *testing.T) {
	conf := DefaultConf(4)
	cases := []struct {
		layers, walkbacks int
		ok                bool
	}{
		{1, 1, true},
		{2, 3, false},
		{2, 4, true},
		{3, 5, true},
		{3, 4, false},
	}
	for _, c := range cases {
		conf.Layers, conf.Walkbacks = c.layers, c.walkbacks
		assert.Equal(t, c.ok, conf.enoughWalkbacks(), "layers %d walkbacks %d", c.layers, c.walkbacks)
	}
}
