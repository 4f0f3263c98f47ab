// Package tile lays out rows of a matrix as a grid of small grayscale images,
// the way filters and samples of image models are usually inspected.
package tile

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
	"gorgonia.org/vecf32"
)

const eps = 1e-8

// Options configure Raster.
type Options struct {
	ImageH, ImageW     int // shape of one example
	Rows, Cols         int // shape of the grid
	SpacingH, SpacingW int // pixels between examples

	// ScaleToUnit rescales every example into [0, 1] before drawing. When
	// false the values are clipped into [0, 1].
	ScaleToUnit bool
}

// DefaultOptions draws h×w examples on a rows×cols grid with a one pixel
// gap, scaling every example to the unit interval.
func DefaultOptions(h, w, rows, cols int) Options {
	return Options{
		ImageH: h, ImageW: w,
		Rows: rows, Cols: cols,
		SpacingH: 1, SpacingW: 1,
		ScaleToUnit: true,
	}
}

// Size returns the size of the image Raster draws.
func (o Options) Size() (h, w int) {
	h = (o.ImageH+o.SpacingH)*o.Rows - o.SpacingH
	w = (o.ImageW+o.SpacingW)*o.Cols - o.SpacingW
	return
}

// Raster draws the rows of x in row major order. x must be a float32 matrix
// whose rows hold ImageH*ImageW values. Grid cells past the last row of x
// are left black, and rows that do not fit the grid are dropped.
func Raster(x *tensor.Dense, o Options) (*image.Gray, error) {
	if o.ImageH <= 0 || o.ImageW <= 0 || o.Rows <= 0 || o.Cols <= 0 {
		return nil, errors.Errorf("invalid tile options %+v", o)
	}
	if x.Dims() != 2 || x.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("expected a Float32 matrix, got %v of %v", x.Shape(), x.Dtype())
	}
	if x.Shape()[1] != o.ImageH*o.ImageW {
		return nil, errors.Errorf("rows of %d values cannot be drawn as %dx%d images", x.Shape()[1], o.ImageH, o.ImageW)
	}
	rs, err := native.MatrixF32(x)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	h, w := o.Size()
	retVal := image.NewGray(image.Rect(0, 0, w, h))
	buf := make([]float32, o.ImageH*o.ImageW)
	for i, r := range rs {
		if i >= o.Rows*o.Cols {
			break
		}
		copy(buf, r)
		if o.ScaleToUnit {
			scaleToUnit(buf)
		}
		top := (i / o.Cols) * (o.ImageH + o.SpacingH)
		left := (i % o.Cols) * (o.ImageW + o.SpacingW)
		for y := 0; y < o.ImageH; y++ {
			for x := 0; x < o.ImageW; x++ {
				retVal.SetGray(left+x, top+y, gray(buf[y*o.ImageW+x]))
			}
		}
	}
	return retVal, nil
}

// scaleToUnit maps a to [0, 1] in place.
func scaleToUnit(a []float32) {
	if len(a) == 0 {
		return
	}
	min := a[vecf32.Argmin(a)]
	vecf32.Trans(a, -min)
	max := a[vecf32.Argmax(a)]
	vecf32.Scale(a, 1/(max+eps))
}

func gray(v float32) color.Gray {
	switch {
	case v <= 0:
		return color.Gray{0}
	case v >= 1:
		return color.Gray{255}
	}
	return color.Gray{uint8(v*255 + 0.5)}
}

// Upscale enlarges img by an integer factor without smoothing.
func Upscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	return transform.Resize(img, b.Dx()*factor, b.Dy()*factor, transform.NearestNeighbor)
}

// WritePNG encodes img as a PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return errors.WithStack(png.Encode(w, img))
}

// SavePNG writes img to filename as a PNG.
func SavePNG(filename string, img image.Image) error {
	return errors.Wrapf(imgio.Save(filename, img, imgio.PNGEncoder()), "saving %v", filename)
}

// Stack interleaves blocks of rows from every matrix: block rows of the
// first, then of the second and so on, until the first matrix runs out. All
// matrices must have the same shape. Stacking (x, noisy x, reconstruction)
// with block equal to the grid width puts each group on its own row.
func Stack(block int, xs ...*tensor.Dense) (*tensor.Dense, error) {
	if len(xs) == 0 {
		return nil, errors.New("nothing to stack")
	}
	if block <= 0 {
		return nil, errors.Errorf("invalid block size %d", block)
	}
	shape := xs[0].Shape()
	all := make([][][]float32, len(xs))
	for i, x := range xs {
		if !x.Shape().Eq(shape) || x.Dims() != 2 || x.Dtype() != tensor.Float32 {
			return nil, errors.Errorf("matrix %d: expected Float32 of shape %v, got %v of %v", i, shape, x.Shape(), x.Dtype())
		}
		rs, err := native.MatrixF32(x)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		all[i] = rs
	}

	n, c := shape[0], shape[1]
	backing := make([]float32, 0, len(xs)*n*c)
	for start := 0; start < n; start += block {
		end := start + block
		if end > n {
			end = n
		}
		for _, rs := range all {
			for _, r := range rs[start:end] {
				backing = append(backing, r...)
			}
		}
	}
	return tensor.New(tensor.WithShape(len(xs)*n, c), tensor.WithBacking(backing)), nil
}
