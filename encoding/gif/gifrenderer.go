package gif

import (
	"image/gif"
	"io"

	"github.com/gorgonia/gsn/encoding"
)

// Encoder is a structure that encodes the samples of every epoch as a frame
// of an animated GIF, according to the gsn.OutputEncoder interface
type Encoder struct {
	*encoding.Framer
	io.Writer

	Delay int // per frame, in 100ths of a second
	out   *gif.GIF
}

// NewGifEncoder with the maximum height and width of a frame, and the factor
// the samples are enlarged by.
func NewGifEncoder(h, w, scale int) *Encoder {
	return &Encoder{
		Framer: encoding.NewFramer(h, w, scale),
		Delay:  50,
		out:    &gif.GIF{LoopCount: 0},
	}
}

// Encode a frame
func (enc *Encoder) Encode(ms encoding.MetaState) error {
	im, err := enc.Frame(ms)
	if err != nil {
		return err
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, enc.Delay)
	return nil
}

// Frames returns the number of frames encoded so far.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error { return gif.EncodeAll(enc.Writer, enc.out) }
