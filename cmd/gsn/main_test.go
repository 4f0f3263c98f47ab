package main

import (
	"io/ioutil"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorgonia/gsn"
	"github.com/gorgonia/gsn/encoding"
	"github.com/gorgonia/gsn/gsnet"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type state struct{ epoch int }

func (s state) Name() string                { return "test" }
func (s state) Epoch() int                  { return s.epoch }
func (s state) Samples() *tensor.Dense      { return nil }
func (s state) ImageShape() (h, w int)      { return 1, 1 }
func (s state) TileShape() (rows, cols int) { return 1, 1 }
func (s state) Caption() string             { return "cost 1" }

type counter struct{ encoded, flushed int }

func (c *counter) Encode(encoding.MetaState) error { c.encoded++; return nil }
func (c *counter) Flush() error                    { c.flushed++; return nil }

func TestConfigFile(t *testing.T) {
	*confFile = "gsn.toml"
	defer func() { *confFile = "" }()
	conf, trainConf, err := loadConfigs(784)
	require.NoError(t, err)
	assert.Equal(t, 784, conf.InputSize)
	assert.Equal(t, 3, conf.Layers)
	h, w := conf.ImageShape()
	assert.Equal(t, 28, h)
	assert.Equal(t, 28, w)
	assert.NoError(t, conf.Validate())
	assert.Equal(t, "gsn_mnist", trainConf.Name)
	assert.Equal(t, 100, trainConf.Samples)
	assert.NoError(t, trainConf.Validate())
}

func TestEncoders(t *testing.T) {
	a, b := new(counter), new(counter)
	es := encoders{a, b}
	require.NoError(t, es.Encode(state{1}))
	require.NoError(t, es.Flush())
	assert.Equal(t, 1, a.encoded)
	assert.Equal(t, 1, b.flushed)
}

func TestWebsocket(t *testing.T) {
	enc := NewEncoder()
	// nobody listens yet
	require.NoError(t, enc.Encode(state{1}))

	srv := httptest.NewServer(enc)
	defer srv.Close()
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer c.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				enc.Encode(state{2})
				time.Sleep(time.Millisecond)
			}
		}
	}()

	var got info
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, c.ReadJSON(&got))
	assert.Equal(t, 2, got.Epoch)
	assert.Equal(t, "cost 1", got.Caption)
}

func TestSaveOutputs(t *testing.T) {
	dir, err := ioutil.TempDir("", "gsncmd")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	conf := gsnet.DefaultConf(16)
	conf.HiddenSize = 8
	conf.Layers = 1
	conf.Walkbacks = 2
	conf.BatchSize = 2
	conf.OutputPath = dir
	model := gsnet.New(conf)
	if err := model.Init(); err != nil {
		t.Fatalf("%+v", err)
	}
	defer model.Close()

	backing := make([]float32, 4*16)
	for i := range backing {
		backing[i] = float32(i % 2)
	}
	data, err := gsn.NewMemDataset(tensor.New(tensor.WithShape(4, 16), tensor.WithBacking(backing)), nil, nil)
	require.NoError(t, err)

	trainConf := gsn.DefaultTrainConfig()
	trainConf.Epochs = 1
	trainConf.SaveFrequency = 0
	trainer, err := gsn.NewTrainer(model, data, trainConf, nil)
	require.NoError(t, err)
	defer trainer.Close()
	_, err = trainer.Train()
	require.NoError(t, err)

	assert.Empty(t, save(model, trainer, 4, 1))
	for _, name := range []string{"trained_final.gob", "reconstruction.png", "statistics.csv", "statistics.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(dir, dir))
	assert.True(t, os.IsNotExist(err))
}
