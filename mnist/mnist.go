// Package mnist reads the MNIST handwritten digits in the IDX format of
// http://yann.lecun.com/exdb/mnist/.
package mnist

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/gorgonia/gsn"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"gorgonia.org/tensor"
)

const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801

	maxImages = 1 << 20
	maxSide   = 256

	// TrainSize is the number of training images kept for training. The
	// rest of the training file is the validation set.
	TrainSize = 50000
)

// File names as distributed. A gzipped file with a ".gz" suffix is read if
// the plain file is missing.
const (
	TrainImages = "train-images-idx3-ubyte"
	TrainLabels = "train-labels-idx1-ubyte"
	TestImages  = "t10k-images-idx3-ubyte"
	TestLabels  = "t10k-labels-idx1-ubyte"
)

// Set is a set of images with their labels.
type Set struct {
	Rows, Cols int
	Images     *tensor.Dense // one image per row, scaled to [0, 1]
	Labels     []int
}

// Load reads the training and test images from dir and splits the training
// images into training and validation sets. With binarize every pixel is
// rounded to 0 or 1.
func Load(dir string, binarize bool) (*gsn.MemDataset, error) {
	return LoadSplit(dir, binarize, TrainSize)
}

// LoadSplit is Load with the first trainSize training images kept for
// training.
func LoadSplit(dir string, binarize bool, trainSize int) (*gsn.MemDataset, error) {
	train, err := ReadSet(filepath.Join(dir, TrainImages), filepath.Join(dir, TrainLabels), binarize)
	if err != nil {
		return nil, err
	}
	test, err := ReadSet(filepath.Join(dir, TestImages), filepath.Join(dir, TestLabels), binarize)
	if err != nil {
		return nil, err
	}
	trainX, validX, err := split(train.Images, trainSize)
	if err != nil {
		return nil, err
	}
	log.Lvlf2("MNIST: %d train, %d valid and %d test images of %dx%d", trainX.Shape()[0], validX.Shape()[0], test.Images.Shape()[0], train.Rows, train.Cols)
	return gsn.NewMemDataset(trainX, validX, test.Images)
}

func split(x *tensor.Dense, n int) (a, b *tensor.Dense, err error) {
	rows, cols := x.Shape()[0], x.Shape()[1]
	if rows <= n {
		return nil, nil, errors.Errorf("expected more than %d images to split off a validation set, got %d", n, rows)
	}
	data := x.Data().([]float32)
	a = tensor.New(tensor.WithShape(n, cols), tensor.WithBacking(data[:n*cols]))
	b = tensor.New(tensor.WithShape(rows-n, cols), tensor.WithBacking(data[n*cols:]))
	return a, b, nil
}

// ReadSet reads an image file and its label file.
func ReadSet(imageFile, labelFile string, binarize bool) (*Set, error) {
	f, err := open(imageFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	retVal := new(Set)
	if retVal.Images, retVal.Rows, retVal.Cols, err = ReadImages(f, binarize); err != nil {
		return nil, errors.Wrap(err, imageFile)
	}

	l, err := open(labelFile)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	if retVal.Labels, err = ReadLabels(l); err != nil {
		return nil, errors.Wrap(err, labelFile)
	}
	if len(retVal.Labels) != retVal.Images.Shape()[0] {
		return nil, errors.Errorf("%d labels for %d images", len(retVal.Labels), retVal.Images.Shape()[0])
	}
	return retVal, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var err error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if e := rc.closers[i].Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func open(filename string) (io.ReadCloser, error) {
	f, err := os.Open(filename)
	if err == nil {
		return f, nil
	}
	gz, gzErr := os.Open(filename + ".gz")
	if gzErr != nil {
		return nil, errors.WithStack(err)
	}
	r, err := gzip.NewReader(gz)
	if err != nil {
		gz.Close()
		return nil, errors.Wrap(err, filename+".gz")
	}
	return &readCloser{Reader: r, closers: []io.Closer{gz, r}}, nil
}

// ReadImages reads an IDX3 image file.
func ReadImages(r io.Reader, binarize bool) (images *tensor.Dense, rows, cols int, err error) {
	br := bufio.NewReader(r)
	var header [4]uint32
	if err = binary.Read(br, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, errors.Wrap(err, "reading image header")
	}
	if header[0] != imageMagic {
		return nil, 0, 0, errors.Errorf("bad image magic number %#x", header[0])
	}
	n, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if n > maxImages || rows > maxSide || cols > maxSide {
		return nil, 0, 0, errors.Errorf("implausible image header: %d images of %dx%d", n, rows, cols)
	}
	pixels := make([]byte, n*rows*cols)
	if _, err = io.ReadFull(br, pixels); err != nil {
		return nil, 0, 0, errors.Wrap(err, "reading pixels")
	}
	backing := make([]float32, len(pixels))
	for i, p := range pixels {
		v := float32(p) / 255
		if binarize {
			if v >= 0.5 {
				v = 1
			} else {
				v = 0
			}
		}
		backing[i] = v
	}
	return tensor.New(tensor.WithShape(n, rows*cols), tensor.WithBacking(backing)), rows, cols, nil
}

// ReadLabels reads an IDX1 label file.
func ReadLabels(r io.Reader) ([]int, error) {
	br := bufio.NewReader(r)
	var header [2]uint32
	if err := binary.Read(br, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "reading label header")
	}
	if header[0] != labelMagic {
		return nil, errors.Errorf("bad label magic number %#x", header[0])
	}
	if header[1] > maxImages {
		return nil, errors.Errorf("implausible label count %d", header[1])
	}
	raw := make([]byte, header[1])
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, errors.Wrap(err, "reading labels")
	}
	retVal := make([]int, len(raw))
	for i, l := range raw {
		retVal[i] = int(l)
	}
	return retVal, nil
}
