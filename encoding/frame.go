package encoding

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/gsn/encoding/tile"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi             = 72.0
	fontsize        = 12.0
	lineheight      = 1.2
	dummyLongString = `Epoch 100000`
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

// Palette is 256 levels of gray.
var Palette = func() color.Palette {
	retVal := make(color.Palette, 256)
	for i := range retVal {
		retVal[i] = color.Gray{uint8(i)}
	}
	return retVal
}()

// Framer draws a MetaState as a grid of samples with captions underneath.
// The frame size is fixed by the first MetaState drawn.
type Framer struct {
	H, W  int
	Scale int // samples are enlarged by this factor
	font.Drawer

	maxH, maxW  int
	padH, padW  int
	dy          int
	initialized bool
}

// NewFramer returns a Framer whose frames are at most h×w pixels.
func NewFramer(h, w, scale int) *Framer {
	if scale < 1 {
		scale = 1
	}
	return &Framer{
		H:     -1,
		W:     -1,
		Scale: scale,
		maxH:  h,
		maxW:  w,
		padH:  10,
		padW:  10,
		Drawer: font.Drawer{
			Src: image.White,
		},
	}
}

func (f *Framer) lines(ms MetaState) []string {
	return []string{ms.Name(), fmt.Sprintf("Epoch %d", ms.Epoch()), ms.Caption()}
}

// Frame renders ms.
func (f *Framer) Frame(ms MetaState) (*image.Paletted, error) {
	h, w := ms.ImageShape()
	rows, cols := ms.TileShape()
	samples, err := tile.Raster(ms.Samples(), tile.DefaultOptions(h, w, rows, cols))
	if err != nil {
		return nil, err
	}
	big := tile.Upscale(samples, f.Scale)
	text := f.lines(ms)

	if !f.initialized {
		// lazy init of the frame size
		f.Drawer.Face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		f.dy = int(math.Ceil(fontsize * lineheight * dpi / 72))

		maxW := maxInt(big.Bounds().Dx(), font.MeasureString(f.Face, dummyLongString).Ceil())
		for _, s := range text {
			maxW = maxInt(maxW, font.MeasureString(f.Face, s).Ceil())
		}
		fw := maxW + 2*f.padW
		fh := big.Bounds().Dy() + len(text)*f.dy + 2*f.padH + f.dy/2

		if f.maxW > 0 {
			fw = minInt(fw, f.maxW)
		}
		if f.maxH > 0 {
			fh = minInt(fh, f.maxH)
		}
		f.H, f.W = fh, fw
		f.initialized = true
	}

	im := image.NewPaletted(image.Rect(0, 0, f.W, f.H), Palette)
	draw.Draw(im, im.Bounds(), image.Black, image.ZP, draw.Src)
	draw.Draw(im, big.Bounds().Add(image.Pt(f.padW, f.padH)), big, big.Bounds().Min, draw.Src)

	f.Dst = im
	y := f.padH + big.Bounds().Dy() + f.dy
	for _, s := range text {
		f.Dot = fixed.P(f.padW, y)
		f.DrawString(s)
		y += f.dy
	}
	return im, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
