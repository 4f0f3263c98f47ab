package mjpeg

import (
	"bytes"
	"image/jpeg"
	"net/http"

	"github.com/gorgonia/gsn/encoding"
	"github.com/mattn/go-mjpeg"
	"go.dedis.ch/onet/v3/log"
)

// Encoder streams the samples of every epoch as a motion JPEG, according to
// the gsn.OutputEncoder interface. Serve it with net/http to watch training.
type Encoder struct {
	*encoding.Framer

	stream *mjpeg.Stream
	last   []byte
}

func (e *Encoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.stream.ServeHTTP(w, r)
}

// NewEncoder with the maximum height and width of a frame, and the factor
// the samples are enlarged by.
func NewEncoder(h, w, scale int) *Encoder {
	return &Encoder{
		Framer: encoding.NewFramer(h, w, scale),
		stream: mjpeg.NewStream(),
	}
}

// Encode a frame
func (enc *Encoder) Encode(ms encoding.MetaState) error {
	im, err := enc.Frame(ms)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err = jpeg.Encode(&b, im, nil); err != nil {
		log.Error(err)
		return err
	}
	enc.last = b.Bytes()
	if err = enc.stream.Update(enc.last); err != nil {
		log.Error(err)
		return err
	}
	return nil
}

// Last returns the last JPEG frame sent to the stream.
func (enc *Encoder) Last() []byte { return enc.last }

func (enc *Encoder) Flush() error { return nil }
