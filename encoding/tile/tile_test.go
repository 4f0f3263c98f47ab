package tile

import (
	"bytes"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestRaster(t *testing.T) {
	// three 2x2 examples on a 2x2 grid
	x := tensor.New(tensor.WithShape(3, 4), tensor.WithBacking([]float32{
		0, 1, 2, 3,
		1, 1, 1, 1,
		-1, 0, 0, 0.5,
	}))
	o := DefaultOptions(2, 2, 2, 2)
	h, w := o.Size()
	assert.Equal(t, 5, h)
	assert.Equal(t, 5, w)

	img, err := Raster(x, o)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 5, img.Bounds().Dy())

	// first example is scaled to [0, 1]
	assert.Equal(t, uint8(0), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(1, 1).Y)
	// spacing stays black
	assert.Equal(t, uint8(0), img.GrayAt(2, 0).Y)
	// third example starts on the second grid row
	assert.Equal(t, uint8(0), img.GrayAt(0, 3).Y)
	assert.Equal(t, uint8(255), img.GrayAt(1, 4).Y)
	// empty cell
	assert.Equal(t, uint8(0), img.GrayAt(4, 4).Y)

	o.ScaleToUnit = false
	img, err = Raster(x, o)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), img.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(3, 0).Y)
	assert.Equal(t, uint8(128), img.GrayAt(1, 4).Y)
}

func TestRasterBadShape(t *testing.T) {
	x := tensor.New(tensor.WithShape(2, 5), tensor.Of(tensor.Float32))
	_, err := Raster(x, DefaultOptions(2, 2, 1, 2))
	assert.Error(t, err)
	_, err = Raster(x, Options{})
	assert.Error(t, err)
}

func TestStack(t *testing.T) {
	a := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float32{1, 2, 3, 4}))
	b := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float32{10, 20, 30, 40}))
	s, err := Stack(2, a, b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{8, 1}, s.Shape())
	assert.Equal(t, []float32{1, 2, 10, 20, 3, 4, 30, 40}, s.Data())

	_, err = Stack(2, a, tensor.New(tensor.WithShape(2, 2), tensor.Of(tensor.Float32)))
	assert.Error(t, err)
}

func TestUpscaleAndSave(t *testing.T) {
	x := tensor.New(tensor.WithShape(1, 4), tensor.WithBacking([]float32{0, 1, 1, 0}))
	img, err := Raster(x, DefaultOptions(2, 2, 1, 1))
	require.NoError(t, err)

	big := Upscale(img, 3)
	assert.Equal(t, 6, big.Bounds().Dx())
	assert.Equal(t, 6, big.Bounds().Dy())
	assert.Equal(t, img, Upscale(img, 1))

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, big))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, big.Bounds(), decoded.Bounds())

	dir, err := ioutil.TempDir("", "tile")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	filename := filepath.Join(dir, "samples.png")
	require.NoError(t, SavePNG(filename, big))
	_, err = os.Stat(filename)
	assert.NoError(t, err)
}
