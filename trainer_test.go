package gsn

import (
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorgonia/gsn/encoding"
	"github.com/gorgonia/gsn/gsnet"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

type recorder struct {
	states  []encoding.MetaState
	flushed int
}

func (r *recorder) Encode(ms encoding.MetaState) error {
	r.states = append(r.states, ms)
	return nil
}

func (r *recorder) Flush() error {
	r.flushed++
	return nil
}

func binary(src rand.Source, r, c int) *tensor.Dense {
	coin := distuv.Bernoulli{P: 0.3, Src: src}
	backing := make([]float32, r*c)
	for i := range backing {
		backing[i] = float32(coin.Rand())
	}
	return tensor.New(tensor.WithShape(r, c), tensor.WithBacking(backing))
}

func setup(t *testing.T, dir string) (*gsnet.GSN, *MemDataset) {
	conf := gsnet.DefaultConf(16)
	conf.HiddenSize = 8
	conf.Layers = 2
	conf.Walkbacks = 4
	conf.BatchSize = 4
	conf.VisInit = true
	conf.OutputPath = dir
	model := gsnet.New(conf)
	if err := model.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	src := rand.NewSource(1337)
	data, err := NewMemDataset(binary(src, 10, 16), binary(src, 4, 16), binary(src, 6, 16))
	require.NoError(t, err)
	return model, data
}

func TestTrainer(t *testing.T) {
	dir, err := ioutil.TempDir("", "gsntrain")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	model, data := setup(t, dir)
	defer model.Close()

	conf := DefaultTrainConfig()
	conf.Epochs = 3
	conf.SaveFrequency = 2
	conf.Samples = 4
	conf.Shuffle = true
	enc := new(recorder)
	trainer, err := NewTrainer(model, data, conf, enc)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer trainer.Close()

	epochs, err := trainer.Train()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, 3, epochs)
	assert.Equal(t, []int{1, 2, 3}, trainer.Epochs)

	for _, name := range []string{"train_cost", "valid_noisy_recon_cost", "valid_recon_cost", "test_recon_cost"} {
		vals := trainer.History[name]
		require.Len(t, vals, 3, name)
		for _, v := range vals {
			assert.True(t, isFinite(v) && v >= 0, "%v: %v", name, v)
		}
	}

	// the schedules are decayed once per epoch
	assert.InDelta(t, 0.25*math.Pow(0.995, 3), trainer.lr.Get(), 1e-9)
	sp, _ := model.NoiseParams()
	assert.Equal(t, 0.4, sp.Get())

	_, err = os.Stat(filepath.Join(dir, "trained_epoch_2.gob"))
	assert.NoError(t, err)

	require.Len(t, enc.states, 3)
	assert.Equal(t, 1, enc.flushed)
	ms := enc.states[2]
	assert.Equal(t, 3, ms.Epoch())
	assert.Equal(t, "gsn", ms.Name())
	assert.Equal(t, tensor.Shape{12, 16}, ms.Samples().Shape())
	rows, cols := ms.TileShape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 6, cols)
	assert.Contains(t, ms.Caption(), "train_cost")

	png := filepath.Join(dir, "reconstruction.png")
	require.NoError(t, trainer.SaveReconstruction(png, 6, 2))
	_, err = os.Stat(png)
	assert.NoError(t, err)
}

func TestReconstruction(t *testing.T) {
	model, data := setup(t, "")
	defer model.Close()
	trainer, err := NewTrainer(model, data, DefaultTrainConfig(), nil)
	require.NoError(t, err)
	defer trainer.Close()

	stacked, rows, cols, err := trainer.Reconstruction(Test, 100)
	require.NoError(t, err)
	// only 6 test examples: a 2x3 grid of groups of three
	assert.Equal(t, 2, rows)
	assert.Equal(t, 9, cols)
	assert.Equal(t, tensor.Shape{18, 16}, stacked.Shape())

	x, err := data.Batch(Test, []int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, x.Data(), stacked.Data().([]float32)[:3*16])
}

func TestTrainerConfig(t *testing.T) {
	model, data := setup(t, "")
	defer model.Close()

	conf := DefaultTrainConfig()
	conf.Epochs = 0
	_, err := NewTrainer(model, data, conf, nil)
	assert.True(t, errors.Is(err, gsnet.ErrConfig))

	conf = DefaultTrainConfig()
	conf.LRDecay = "sideways"
	_, err = NewTrainer(model, data, conf, nil)
	assert.True(t, errors.Is(err, gsnet.ErrConfig))

	small, err := NewMemDataset(matrix(3, 16, 0), nil, nil)
	require.NoError(t, err)
	_, err = NewTrainer(model, small, DefaultTrainConfig(), nil)
	assert.Error(t, err)

	wide, err := NewMemDataset(matrix(8, 4, 0), nil, nil)
	require.NoError(t, err)
	_, err = NewTrainer(model, wide, DefaultTrainConfig(), nil)
	assert.True(t, errors.Is(err, gsnet.ErrConfig))

	_, err = NewTrainer(gsnet.New(model.Config), data, DefaultTrainConfig(), nil)
	assert.True(t, errors.Is(err, gsnet.ErrNotBuilt))
}

func TestEarlyStop(t *testing.T) {
	tr := &Trainer{conf: TrainConfig{EarlyStopThreshold: 0.5, EarlyStopLength: 2}}
	costs := []float32{1, 0.9, 0.4, 0.3, 0.3}
	var stops []bool
	for _, c := range costs {
		tr.epoch++
		stops = append(stops, tr.earlyStop(c))
	}
	assert.Equal(t, []bool{false, false, false, false, true}, stops)
}

func TestLoadTrainConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "gsntrainconf")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	filename := filepath.Join(dir, "train.toml")
	require.NoError(t, ioutil.WriteFile(filename, []byte("n_epoch = 5\nmomentum = 0.0\nlayers = 2\n"), 0644))
	conf, err := LoadTrainConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, 5, conf.Epochs)
	assert.Equal(t, 0.0, conf.Momentum)
	assert.Equal(t, 0.25, conf.LearningRate)
	assert.NoError(t, conf.Validate())
}
