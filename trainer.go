package gsn

import (
	"fmt"
	"math"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gorgonia/gsn/encoding/tile"
	"github.com/gorgonia/gsn/gsnet"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// TrainConfig configures a Trainer. The keys share a flat namespace with
// gsnet.Config so both can be read from one file.
type TrainConfig struct {
	Name   string `toml:"name"`
	Epochs int    `toml:"n_epoch"` // maximum number of passes over the training set

	SaveFrequency      int     `toml:"save_frequency"`       // epochs between parameter files, 0 to never save
	EarlyStopThreshold float64 `toml:"early_stop_threshold"` // the train cost has to fall below best*threshold
	EarlyStopLength    int     `toml:"early_stop_length"`    // epochs to wait for an improvement, 0 to never stop early

	LearningRate   float64 `toml:"learning_rate"`
	LRDecay        string  `toml:"lr_decay"`
	LRFactor       float64 `toml:"lr_factor"`
	Momentum       float64 `toml:"momentum"` // 0 uses plain SGD
	MomentumDecay  string  `toml:"momentum_decay"`
	MomentumFactor float64 `toml:"momentum_factor"`

	Shuffle bool   `toml:"shuffle"` // visit the training set in a random order every epoch
	Seed    uint64 `toml:"seed"`

	// Samples is the number of test examples drawn with their corruption and
	// reconstruction for the output encoder.
	Samples int `toml:"n_samples"`
}

// DefaultTrainConfig returns the training schedule of Bengio et al.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Name:   "gsn",
		Epochs: 1000,

		SaveFrequency:      10,
		EarlyStopThreshold: .9995,
		EarlyStopLength:    30,

		LearningRate:   .25,
		LRDecay:        "exponential",
		LRFactor:       .995,
		Momentum:       0.5,
		MomentumDecay:  "linear",
		MomentumFactor: 0,

		Seed:    1,
		Samples: 100,
	}
}

// LoadTrainConfig reads a toml file on top of DefaultTrainConfig.
func LoadTrainConfig(filename string) (TrainConfig, error) {
	conf := DefaultTrainConfig()
	if _, err := toml.DecodeFile(filename, &conf); err != nil {
		return conf, errors.Wrapf(err, "unable to decode training config %q", filename)
	}
	return conf, nil
}

// Validate reports the first configuration error.
func (conf TrainConfig) Validate() error {
	switch {
	case conf.Epochs < 1:
		return errors.Wrapf(gsnet.ErrConfig, "n_epoch must be at least 1, got %d", conf.Epochs)
	case conf.LearningRate <= 0:
		return errors.Wrapf(gsnet.ErrConfig, "learning_rate must be positive, got %v", conf.LearningRate)
	case conf.Momentum < 0 || conf.Momentum >= 1:
		return errors.Wrapf(gsnet.ErrConfig, "momentum must be in [0, 1), got %v", conf.Momentum)
	case conf.SaveFrequency < 0 || conf.EarlyStopLength < 0 || conf.Samples < 0:
		return errors.Wrap(gsnet.ErrConfig, "save_frequency, early_stop_length and n_samples must not be negative")
	}
	return nil
}

// Trainer runs SGD on a GSN over a Dataset, one epoch at a time.
type Trainer struct {
	Statistics

	conf   TrainConfig
	model  *gsnet.GSN
	data   Dataset
	outEnc OutputEncoder

	lr, momentum *gsnet.Param
	decayers     []gsnet.Decayer
	solver       G.Solver
	src          rand.Source

	recon *gsnet.Inferencer

	epoch    int
	best     float32
	patience int
}

// NewTrainer prepares to train an initialised model on data. outEnc may be
// nil.
func NewTrainer(model *gsnet.GSN, data Dataset, conf TrainConfig, outEnc OutputEncoder) (*Trainer, error) {
	if err := conf.Validate(); err != nil {
		log.Error(err.Error())
		return nil, err
	}
	if model.Graph() == nil {
		return nil, gsnet.ErrNotBuilt
	}
	if data.ExampleShape() != model.InputSize {
		return nil, errors.Wrapf(gsnet.ErrConfig, "dataset examples have %d values, the GSN expects %d", data.ExampleShape(), model.InputSize)
	}
	if data.Len(Train) < model.BatchSize {
		return nil, errors.Errorf("need at least one batch of %d training examples, got %d", model.BatchSize, data.Len(Train))
	}

	t := &Trainer{
		Statistics: makeStatistics(),
		conf:       conf,
		model:      model,
		data:       data,
		outEnc:     outEnc,
		lr:         gsnet.NewParam("learning_rate", conf.LearningRate),
		momentum:   gsnet.NewParam("momentum", conf.Momentum),
		src:        rand.NewSource(conf.Seed),
	}
	if conf.LRDecay != "" {
		d, err := gsnet.GetDecay(conf.LRDecay, t.lr, conf.LRFactor)
		if err != nil {
			return nil, err
		}
		t.decayers = append(t.decayers, d)
	}
	if conf.MomentumDecay != "" && conf.Momentum > 0 {
		d, err := gsnet.GetDecay(conf.MomentumDecay, t.momentum, conf.MomentumFactor)
		if err != nil {
			return nil, err
		}
		t.decayers = append(t.decayers, d)
	}
	t.decayers = append(t.decayers, model.DecayParams()...)
	t.solver = t.newSolver()

	if model.VisInit {
		mean, err := Mean(data, Train, model.BatchSize)
		if err != nil {
			return nil, err
		}
		if err := model.InitVisibleBias(mean); err != nil {
			return nil, err
		}
		log.Lvl2("Initialised the visible bias from the training mean")
	}
	return t, nil
}

func (t *Trainer) newSolver() G.Solver {
	if t.momentum.Get() > 0 {
		return G.NewMomentum(G.WithLearnRate(t.lr.Get()), G.WithMomentum(t.momentum.Get()))
	}
	return G.NewVanillaSolver(G.WithLearnRate(t.lr.Get()))
}

// Epoch returns the number of epochs run so far.
func (t *Trainer) Epoch() int { return t.epoch }

// Train runs epochs until the configured maximum or until the train cost
// stops improving. It returns the number of epochs run.
func (t *Trainer) Train() (int, error) {
	for t.epoch < t.conf.Epochs {
		stop, err := t.RunEpoch()
		if err != nil {
			return t.epoch, err
		}
		if stop {
			log.Lvlf1("Stopping early after %d epochs: the train cost has not improved for %d epochs", t.epoch, t.patience)
			break
		}
	}
	if t.outEnc != nil {
		if err := t.outEnc.Flush(); err != nil {
			return t.epoch, errors.WithStack(err)
		}
	}
	return t.epoch, nil
}

// RunEpoch makes one pass over the training set, runs the monitors on the
// validation and test sets, decays the schedules and reports whether training
// should stop.
func (t *Trainer) RunEpoch() (stop bool, err error) {
	bs := t.model.BatchSize
	order := rangeInts(t.data.Len(Train))
	if t.conf.Shuffle {
		order = rand.New(t.src).Perm(len(order))
	}

	var costs stats.Float64Data
	for _, indices := range sequential(len(order), bs, false) {
		for i, idx := range indices {
			indices[i] = order[idx]
		}
		x, err := t.data.Batch(Train, indices)
		if err != nil {
			return false, err
		}
		c, err := t.model.TrainBatch(x, t.solver)
		if err != nil {
			return false, errors.Wrapf(err, "epoch %d", t.epoch)
		}
		costs = append(costs, float64(c))
	}
	mean, _ := stats.Mean(costs)
	std, _ := stats.StandardDeviation(costs)
	t.epoch++
	t.record(t.epoch, Train, []gsnet.Monitor{{Name: "train_cost", Value: float32(mean)}, {Name: "train_cost_std", Value: float32(std)}})
	log.Lvlf1("Epoch %d: train cost %.4f (±%.4f) over %d batches, learning rate %.4f", t.epoch, mean, std, len(costs), t.lr.Get())

	for _, s := range []Subset{Valid, Test} {
		if t.data.Len(s) == 0 {
			continue
		}
		ms, err := t.Monitor(s)
		if err != nil {
			return false, err
		}
		t.record(t.epoch, s, ms)
		for _, m := range ms {
			log.Lvlf2("\t%v %v: %.4f", s, m.Name, m.Value)
		}
	}

	if t.outEnc != nil && t.conf.Samples > 0 {
		if err := t.encode(); err != nil {
			return false, err
		}
	}

	if t.conf.SaveFrequency > 0 && t.epoch%t.conf.SaveFrequency == 0 {
		if err := t.model.SaveParams(fmt.Sprintf("trained_epoch_%d.gob", t.epoch)); err != nil {
			return false, err
		}
	}

	lr, momentum := t.lr.Get(), t.momentum.Get()
	for _, d := range t.decayers {
		d.Decay()
	}
	if lr != t.lr.Get() || momentum != t.momentum.Get() {
		t.solver = t.newSolver()
	}

	return t.earlyStop(float32(mean)), nil
}

func (t *Trainer) earlyStop(cost float32) bool {
	if t.conf.EarlyStopLength <= 0 || !isFinite(cost) {
		return false
	}
	if t.epoch == 1 || cost < t.best*float32(t.conf.EarlyStopThreshold) {
		t.best = cost
		t.patience = 0
		return false
	}
	t.patience++
	return t.patience >= t.conf.EarlyStopLength
}

// Monitor returns the mean of every model monitor over a subset. Only full
// batches are evaluated unless the subset is smaller than a batch.
func (t *Trainer) Monitor(s Subset) ([]gsnet.Monitor, error) {
	n := t.data.Len(s)
	if n == 0 {
		return nil, errors.Errorf("%v subset is empty", s)
	}
	batches := sequential(n, t.model.BatchSize, n < t.model.BatchSize)
	vals := make(map[string]stats.Float64Data)
	var names []string
	for _, indices := range batches {
		x, err := t.data.Batch(s, indices)
		if err != nil {
			return nil, err
		}
		ms, err := t.model.Evaluate(x)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %v", s)
		}
		for _, m := range ms {
			if _, ok := vals[m.Name]; !ok {
				names = append(names, m.Name)
			}
			vals[m.Name] = append(vals[m.Name], float64(m.Value))
		}
	}
	retVal := make([]gsnet.Monitor, 0, len(names))
	for _, name := range names {
		mean, err := stats.Mean(vals[name])
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		retVal = append(retVal, gsnet.Monitor{Name: name, Value: float32(mean)})
	}
	return retVal, nil
}

// Reconstruction returns the first n examples of a subset, their
// salt-and-pepper corruption and the reconstruction of the corruption,
// interleaved in blocks of cols rows: a block of examples, the same block
// corrupted, then reconstructed.
func (t *Trainer) Reconstruction(s Subset, n int) (stacked *tensor.Dense, rows, cols int, err error) {
	if avail := t.data.Len(s); n > avail {
		n = avail
	}
	if n == 0 {
		return nil, 0, 0, errors.Errorf("%v subset is empty", s)
	}
	x, err := t.data.Batch(s, rangeInts(n))
	if err != nil {
		return nil, 0, 0, err
	}
	noisy, err := t.model.Noise(x)
	if err != nil {
		return nil, 0, 0, err
	}

	if t.recon == nil || t.recon.GSN().BatchSize != n {
		if t.recon != nil {
			t.recon.Close()
		}
		if t.recon, err = gsnet.Infer(t.model, n, false); err != nil {
			return nil, 0, 0, err
		}
	}
	recon, err := t.recon.Predict(noisy)
	if err != nil {
		return nil, 0, 0, err
	}

	rows, block := gsnet.ClosestToSquareFactors(n)
	if stacked, err = tile.Stack(block, x, noisy, recon); err != nil {
		return nil, 0, 0, err
	}
	return stacked, rows, 3 * block, nil
}

// SaveReconstruction draws Reconstruction of the test set, or of the
// training set if there is no test set, to a PNG file.
func (t *Trainer) SaveReconstruction(filename string, n, scale int) error {
	s := Test
	if t.data.Len(Test) == 0 {
		s = Train
	}
	stacked, rows, cols, err := t.Reconstruction(s, n)
	if err != nil {
		return err
	}
	h, w := t.model.ImageShape()
	img, err := tile.Raster(stacked, tile.DefaultOptions(h, w, rows, cols))
	if err != nil {
		return err
	}
	log.Lvlf2("Saving reconstructions to %v", filename)
	return tile.SavePNG(filename, tile.Upscale(img, scale))
}

func (t *Trainer) encode() error {
	s := Test
	if t.data.Len(Test) == 0 {
		s = Train
	}
	stacked, rows, cols, err := t.Reconstruction(s, t.conf.Samples)
	if err != nil {
		return err
	}
	h, w := t.model.ImageShape()
	ms := &metaState{
		name:    t.conf.Name,
		epoch:   t.epoch,
		samples: stacked,
		h:       h,
		w:       w,
		rows:    rows,
		cols:    cols,
		caption: t.caption(),
	}
	return t.outEnc.Encode(ms)
}

func (t *Trainer) caption() string {
	var parts []string
	for _, name := range t.names {
		if vals := t.History[name]; len(vals) > 0 && !strings.HasSuffix(name, "_std") {
			parts = append(parts, fmt.Sprintf("%s %.4f", name, vals[len(vals)-1]))
		}
	}
	return strings.Join(parts, ", ")
}

// Close releases the VMs held by the trainer. The model is not closed.
func (t *Trainer) Close() error {
	if t.recon != nil {
		err := t.recon.Close()
		t.recon = nil
		return err
	}
	return nil
}

func rangeInts(n int) []int {
	retVal := make([]int, n)
	for i := range retVal {
		retVal[i] = i
	}
	return retVal
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
