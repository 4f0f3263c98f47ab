package gsnet

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// Monitor names, in the order Monitors returns them.
const (
	NoisyReconCost = "noisy_recon_cost"
	ReconCost      = "recon_cost"
)

// Monitor is a named scalar computed on the last run of a graph.
type Monitor struct {
	Name  string
	Value float32
}

// GSN is a Generative Stochastic Network.
//
// The graph holds two chains sharing the same parameters: a noisy chain whose
// summed reconstruction cost is the training cost, and a noise free chain
// whose last reconstruction is the output of the model.
type GSN struct {
	Config

	g   *G.ExprGraph
	src rand.Source // parameter initialisation and Noise

	weights []*G.Node
	biases  []*G.Node

	x    *G.Node // visible input
	hook *G.Node // packed hiddens, if HiddensHook

	saltPepper *Param
	sigma      *Param
	decayers   []Decayer
	noise      *noise

	vis, hid Activation
	costFn   Cost

	chain      []*G.Node // noisy p(X) chain
	reconChain []*G.Node // noise free p(X) chain
	hiddens    []*G.Node // noise free hidden state after the last walkback
	packed     *G.Node
	output     *G.Node
	cost       *G.Node // training cost
	showCost   *G.Node
	monitor    *G.Node
	learnables G.Nodes

	costVal     G.Value
	showCostVal G.Value
	monitorVal  G.Value
	outputVal   G.Value
	packedVal   G.Value

	m   G.VM
	inf *Inferencer
}

// New returns a new, uninitialized *GSN.
func New(conf Config) *GSN {
	return &GSN{Config: conf}
}

// Init validates the configuration, initialises the parameters and builds
// the computation graph.
func (d *GSN) Init() error {
	if err := d.Config.Validate(); err != nil {
		return err
	}
	if !d.enoughWalkbacks() {
		log.Warnf("Not enough walkbacks for the layers! Layers is %d and walkbacks is %d. Generally want 2X walkbacks to layers", d.Layers, d.Walkbacks)
	}
	if err := d.reset(); err != nil {
		return err
	}
	d.vis, d.hid, d.costFn, _ = d.functions()

	d.g = G.NewGraph()
	d.src = rand.NewSource(d.Seed)
	d.saltPepper = NewParam("input_salt_and_pepper", d.InputSaltAndPepper)
	d.sigma = NewParam("hidden_add_noise_sigma", d.HiddenAddNoiseSigma)
	d.noise = newNoise(d.Seed+1, d.saltPepper, d.sigma)

	sizes := d.LayerSizes()
	for i := 0; i < d.Layers; i++ {
		w := UniformWeights(d.src, sizes[i], sizes[i+1], MontrealInterval)
		d.weights = append(d.weights, G.NewMatrix(d.g, Float, G.WithShape(sizes[i], sizes[i+1]), G.WithName(weightName(i)), G.WithValue(w)))
	}
	for i := range sizes {
		d.biases = append(d.biases, G.NewMatrix(d.g, Float, G.WithShape(1, sizes[i]), G.WithName(biasName(i)), G.WithValue(Bias(sizes[i], 0))))
	}
	log.Lvlf3("gsn params: %v", d.Model())

	sched, err := GetDecay(d.NoiseDecay, d.saltPepper, d.NoiseAnnealing)
	if err != nil {
		log.Error(err.Error())
		return err
	}
	d.decayers = []Decayer{sched}

	return d.build()
}

func weightName(i int) string { return fmt.Sprintf("W_%d_%d", i, i+1) }
func biasName(i int) string   { return fmt.Sprintf("b_%d", i) }

func (d *GSN) walker(name string, addNoise bool, weights, biases []*G.Node, nz *noise) *walker {
	return &walker{
		g:             d.g,
		name:          name,
		weights:       weights,
		biases:        biases,
		vis:           d.vis,
		hid:           d.hid,
		batch:         d.BatchSize,
		addNoise:      addNoise,
		noiselessH1:   d.NoiselessH1,
		inputSampling: d.InputSampling,
		noise:         nz,
		deps:          make(map[*G.Node]paramSet),
	}
}

func (d *GSN) build() error {
	log.Lvl3("Building GSN graphs...")
	sizes := d.LayerSizes()
	d.x = G.NewMatrix(d.g, Float, G.WithShape(d.BatchSize, d.InputSize), G.WithName("X"))

	noisy := d.walker("noisy", d.AddNoise, d.weights, d.biases, d.noise)
	clean := d.walker("clean", false, d.weights, d.biases, d.noise)

	var m maebe
	if !d.HiddensHook {
		d.chain, _ = noisy.buildGSN(d.x, sizes, d.Walkbacks)
		d.reconChain, d.hiddens = clean.buildGSN(d.x, sizes, d.Walkbacks)
		d.cost, d.showCost = noisy.costs(d.x, d.costFn)
		_, d.monitor = clean.costs(d.x, d.costFn)
	} else {
		d.hook = G.NewMatrix(d.g, Float, G.WithShape(d.BatchSize, d.PackedSize()), G.WithName("H_hook"))
		noisyH := m.unpackNodes(d.g, d.hook, sizes, "noisy")
		cleanH := m.unpackNodes(d.g, d.hook, sizes, "clean")
		if m.err != nil {
			return m.err
		}
		d.chain, _, d.cost, d.showCost = noisy.buildGSNGivenHiddens(d.x, noisyH, d.Walkbacks, d.costFn)
		d.reconChain, d.hiddens, _, d.monitor = clean.buildGSNGivenHiddens(d.x, cleanH, d.Walkbacks, d.costFn)
	}
	if noisy.err != nil {
		return errors.Wrap(noisy.err, "building noisy chain")
	}
	if clean.err != nil {
		return errors.Wrap(clean.err, "building noise free chain")
	}

	d.output = d.reconChain[len(d.reconChain)-1]
	if d.packed = m.packNodes(d.hiddens); m.err != nil {
		return m.err
	}

	G.Read(d.cost, &d.costVal)
	G.Read(d.showCost, &d.showCostVal)
	G.Read(d.monitor, &d.monitorVal)
	G.Read(d.output, &d.outputVal)
	G.Read(d.packed, &d.packedVal)

	if d.FwdOnly {
		return nil
	}

	connected := noisy.connected()
	for _, n := range d.Model() {
		if _, ok := connected[n]; ok {
			d.learnables = append(d.learnables, n)
			continue
		}
		log.Warnf("%v does not affect the training cost with %d walkbacks and will not be trained", n.Name(), d.Walkbacks)
	}
	if _, err := G.Grad(d.cost, d.learnables...); err != nil {
		return errors.Wrap(err, "unable to differentiate the training cost")
	}
	return nil
}

// Model returns the parameters of the GSN: the weights followed by the
// biases, in layer order.
func (d *GSN) Model() G.Nodes {
	retVal := make(G.Nodes, 0, len(d.weights)+len(d.biases))
	retVal = append(retVal, d.weights...)
	return append(retVal, d.biases...)
}

// Learnables are the parameters the training cost is differentiated against.
func (d *GSN) Learnables() G.Nodes { return d.learnables }

// Inputs are the input nodes that need a value for every run.
func (d *GSN) Inputs() G.Nodes {
	if d.hook != nil {
		return G.Nodes{d.x, d.hook}
	}
	return G.Nodes{d.x}
}

// Graph returns the expression graph. It is nil before Init.
func (d *GSN) Graph() *G.ExprGraph { return d.g }

// TrainCost is the summed reconstruction cost of the noisy chain.
func (d *GSN) TrainCost() (*G.Node, error) {
	if d.cost == nil {
		return nil, ErrNotBuilt
	}
	return d.cost, nil
}

// Outputs is the noise free reconstruction after the last walkback.
func (d *GSN) Outputs() (*G.Node, error) {
	if d.output == nil {
		log.Error("Missing output: make sure Init was called")
		return nil, ErrNotBuilt
	}
	return d.output, nil
}

// Hiddens is the packed noise free hidden representation after the last
// walkback. It can be fed to the hiddens hook of another GSN.
func (d *GSN) Hiddens() (*G.Node, error) {
	if d.packed == nil {
		log.Error("Missing hiddens: make sure Init was called")
		return nil, ErrNotBuilt
	}
	return d.packed, nil
}

// HiddenLayers returns the noise free hidden state [h0 ... hK].
func (d *GSN) HiddenLayers() []*G.Node { return d.hiddens }

// Chains returns the noisy and noise free reconstruction chains.
func (d *GSN) Chains() (noisy, clean []*G.Node) { return d.chain, d.reconChain }

// DecayParams are the noise schedules the trainer decays once per epoch.
func (d *GSN) DecayParams() []Decayer { return d.decayers }

// NoiseParams returns the salt-and-pepper level and the hidden noise sigma.
func (d *GSN) NoiseParams() (saltPepper, sigma *Param) { return d.saltPepper, d.sigma }

// Monitors returns the monitor values of the last run.
func (d *GSN) Monitors() []Monitor {
	return []Monitor{
		{Name: NoisyReconCost, Value: scalar(d.showCostVal)},
		{Name: ReconCost, Value: scalar(d.monitorVal)},
	}
}

func scalar(v G.Value) float32 {
	if v == nil {
		return math32.NaN()
	}
	if f, ok := v.Data().(float32); ok {
		return f
	}
	return math32.NaN()
}

func (d *GSN) machine() G.VM {
	if d.m == nil {
		if d.FwdOnly {
			d.m = G.NewTapeMachine(d.g)
		} else {
			d.m = G.NewTapeMachine(d.g, G.BindDualValues(d.learnables...))
		}
	}
	return d.m
}

// SetHiddens sets the packed hidden state a hidden-hooked GSN starts from.
func (d *GSN) SetHiddens(packed *tensor.Dense) error {
	if d.g == nil {
		return ErrNotBuilt
	}
	if d.hook == nil {
		return errors.New("GSN was not built with a hiddens hook")
	}
	if !packed.Shape().Eq(d.hook.Shape()) {
		return errors.Errorf("expected packed hiddens of shape %v, got %v", d.hook.Shape(), packed.Shape())
	}
	return G.Let(d.hook, packed)
}

// run lets x and a fresh draw of noise into the graph and executes it.
func (d *GSN) run(x *tensor.Dense) error {
	if d.g == nil {
		return ErrNotBuilt
	}
	if !x.Shape().Eq(d.x.Shape()) {
		return errors.Errorf("expected input of shape %v, got %v", d.x.Shape(), x.Shape())
	}
	if err := G.Let(d.x, x); err != nil {
		return errors.WithStack(err)
	}
	if err := d.noise.draw(); err != nil {
		return err
	}
	m := d.machine()
	m.Reset()
	if err := m.RunAll(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// TrainBatch runs the graph on a batch and applies one solver step to the
// learnables. It returns the training cost of the batch.
func (d *GSN) TrainBatch(x *tensor.Dense, solver G.Solver) (float32, error) {
	if d.g == nil {
		return 0, ErrNotBuilt
	}
	if d.FwdOnly {
		return 0, errors.New("cannot train a forward only GSN")
	}
	if err := d.run(x); err != nil {
		return 0, err
	}
	if err := solver.Step(G.NodesToValueGrads(d.learnables)); err != nil {
		return 0, errors.WithStack(err)
	}
	return scalar(d.costVal), nil
}

// Predict returns the noise free reconstruction of x after the last
// walkback. x may have any number of rows.
func (d *GSN) Predict(x *tensor.Dense) (*tensor.Dense, error) {
	if d.g == nil {
		log.Error("Missing predict function: make sure Init was called")
		return nil, ErrNotBuilt
	}
	if d.HiddensHook {
		return nil, errors.New("predict is not defined for a GSN built from a hiddens hook")
	}
	if d.FwdOnly && x.Shape()[0] == d.BatchSize {
		if err := d.run(x); err != nil {
			return nil, err
		}
		return d.outputVal.(*tensor.Dense).Clone().(*tensor.Dense), nil
	}
	inf, err := d.inferencer(x.Shape()[0])
	if err != nil {
		return nil, err
	}
	return inf.Predict(x)
}

// Evaluate returns the monitors on x without training.
func (d *GSN) Evaluate(x *tensor.Dense) ([]Monitor, error) {
	if d.g == nil {
		return nil, ErrNotBuilt
	}
	if d.FwdOnly && x.Shape()[0] == d.BatchSize {
		if err := d.run(x); err != nil {
			return nil, err
		}
		return d.Monitors(), nil
	}
	inf, err := d.inferencer(x.Shape()[0])
	if err != nil {
		return nil, err
	}
	return inf.Evaluate(x)
}

func (d *GSN) inferencer(batchSize int) (*Inferencer, error) {
	if d.inf != nil && d.inf.d.BatchSize == batchSize {
		return d.inf, nil
	}
	if d.inf != nil {
		if err := d.inf.Close(); err != nil {
			return nil, err
		}
	}
	inf, err := Infer(d, batchSize, false)
	if err != nil {
		return nil, err
	}
	d.inf = inf
	return inf, nil
}

// Noise corrupts x with the current salt-and-pepper level.
func (d *GSN) Noise(x *tensor.Dense) (*tensor.Dense, error) {
	if d.g == nil {
		return nil, ErrNotBuilt
	}
	return SaltAndPepper(d.src, x, d.saltPepper.Get())
}

// InitVisibleBias sets the visible bias to the logit of the mean of the
// training data.
func (d *GSN) InitVisibleBias(mean []float32) error {
	if d.g == nil {
		return ErrNotBuilt
	}
	b := d.biases[0].Value().Data().([]float32)
	if len(mean) != len(b) {
		return errors.Errorf("expected %d means, got %d", len(b), len(mean))
	}
	const eps = 1e-3
	for i, m := range mean {
		if m < eps {
			m = eps
		}
		if m > 1-eps {
			m = 1 - eps
		}
		b[i] = math32.Log(m / (1 - m))
	}
	return nil
}

// Clone returns a new GSN with the same configuration and parameter values.
func (d *GSN) Clone() (*GSN, error) {
	d2 := New(d.Config)
	if err := d2.Init(); err != nil {
		return nil, err
	}
	if err := d2.copyParams(d); err != nil {
		return nil, err
	}
	return d2, nil
}

func (d *GSN) copyParams(from *GSN) error {
	model := d.Model()
	for i, n := range from.Model() {
		if err := copyInto(model[i].Value(), n.Value()); err != nil {
			return errors.Wrapf(err, "copying %v", n.Name())
		}
	}
	d.saltPepper.Set(from.saltPepper.Get())
	d.sigma.Set(from.sigma.Get())
	return nil
}

// Close releases the VMs held by the GSN.
func (d *GSN) Close() error {
	var allErrs manyErr
	if d.m != nil {
		if err := d.m.Close(); err != nil {
			allErrs = append(allErrs, err)
		}
		d.m = nil
	}
	if d.inf != nil {
		if err := d.inf.Close(); err != nil {
			allErrs = append(allErrs, err)
		}
		d.inf = nil
	}
	if len(allErrs) > 0 {
		return allErrs
	}
	return nil
}

func (d *GSN) reset() error {
	err := d.Close()
	d.g = nil
	d.weights = nil
	d.biases = nil
	d.x = nil
	d.hook = nil
	d.chain = nil
	d.reconChain = nil
	d.hiddens = nil
	d.packed = nil
	d.output = nil
	d.cost = nil
	d.learnables = nil
	return err
}

// GobEncode writes the parameters as (name, tensor) pairs, weights first.
// Biases are written as vectors.
func (d *GSN) GobEncode() (retVal []byte, err error) {
	if d.g == nil {
		return nil, ErrNotBuilt
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	model := d.Model()
	if err = enc.Encode(len(model)); err != nil {
		return nil, err
	}
	for i, n := range model {
		v := n.Value().(*tensor.Dense)
		if i >= len(d.weights) {
			data := make([]float32, v.Shape().TotalSize())
			copy(data, v.Data().([]float32))
			v = tensor.New(tensor.WithShape(len(data)), tensor.WithBacking(data))
		}
		if err = enc.Encode(n.Name()); err != nil {
			return nil, err
		}
		if err = enc.Encode(v); err != nil {
			return nil, errors.Wrapf(err, "encoding %v", n.Name())
		}
	}
	return buf.Bytes(), nil
}

// GobDecode reads parameters written by GobEncode. An uninitialized GSN is
// initialised first.
func (d *GSN) GobDecode(p []byte) error {
	if d.g == nil {
		if err := d.Init(); err != nil {
			return err
		}
	}
	dec := gob.NewDecoder(bytes.NewBuffer(p))
	model := d.Model()
	var count int
	if err := dec.Decode(&count); err != nil {
		return errors.WithStack(err)
	}
	if count != len(model) {
		return errors.Errorf("expected %d parameters, got %d", len(model), count)
	}
	for _, n := range model {
		var name string
		if err := dec.Decode(&name); err != nil {
			return errors.WithStack(err)
		}
		if name != n.Name() {
			return errors.Errorf("expected parameter %v, got %v", n.Name(), name)
		}
		v := new(tensor.Dense)
		if err := dec.Decode(v); err != nil {
			return errors.Wrapf(err, "decoding %v", name)
		}
		if err := copyInto(n.Value(), v); err != nil {
			return errors.Wrapf(err, "loading %v", name)
		}
	}
	return nil
}

// SaveParams writes the parameters to filename. Relative names are resolved
// under OutputPath.
func (d *GSN) SaveParams(filename string) error {
	path := filename
	if !filepath.IsAbs(filename) {
		path = filepath.Join(d.OutputPath, filename)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithStack(err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	log.Lvlf2("Saving GSN parameters to %v", path)
	return gob.NewEncoder(f).Encode(d)
}

// LoadParams reads parameters from filename. Relative names are resolved
// under OutputPath unless the file exists as given.
func (d *GSN) LoadParams(filename string) error {
	path := filename
	if _, err := os.Stat(path); err != nil && !filepath.IsAbs(filename) {
		path = filepath.Join(d.OutputPath, filename)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	log.Lvlf2("Loading GSN parameters from %v", path)
	return gob.NewDecoder(f).Decode(d)
}
