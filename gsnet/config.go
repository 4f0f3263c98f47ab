package gsnet

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// Config configures a GSN. The toml keys mirror the flat option names
// accepted by LoadConfig.
type Config struct {
	InputSize  int `toml:"input_size"`  // number of visible units
	HiddenSize int `toml:"hidden_size"` // units in each hidden layer
	Layers     int `toml:"layers"`      // number of hidden layers
	Walkbacks  int `toml:"walkbacks"`   // generally 2*Layers
	BatchSize  int `toml:"batch_size"`

	VisibleActivation string `toml:"visible_activation"`
	HiddenActivation  string `toml:"hidden_activation"`
	CostFunction      string `toml:"cost_function"`
	InputSampling     bool   `toml:"input_sampling"` // sample h0 at every walkback, Gibbs style

	// noise
	NoiseDecay          string  `toml:"noise_decay"`
	NoiseAnnealing      float64 `toml:"noise_annealing"` // 1.0 means no schedule
	AddNoise            bool    `toml:"add_noise"`
	NoiselessH1         bool    `toml:"noiseless_h1"`
	HiddenAddNoiseSigma float64 `toml:"hidden_add_noise_sigma"`
	InputSaltAndPepper  float64 `toml:"input_salt_and_pepper"`

	// data and io
	OutputPath    string `toml:"output_path"`
	IsImage       bool   `toml:"is_image"`
	Width, Height int    // image shape, derived from InputSize when zero
	VisInit       bool   `toml:"vis_init"`
	Seed          uint64 `toml:"seed"`

	// HiddensHook builds the graph from a packed hidden input instead of zeroes.
	HiddensHook bool `toml:"hiddens_hook"`
	FwdOnly     bool `toml:"-"` // is this a fwd only graph?

	// User supplied functions take precedence over the names above.
	VisibleActivationFn Activation `toml:"-"`
	HiddenActivationFn  Activation `toml:"-"`
	CostFn              Cost       `toml:"-"`
}

// DefaultConf returns the configuration that produces the MNIST results of
// Bengio et al. for the given input size.
func DefaultConf(inputSize int) Config {
	return Config{
		InputSize:  inputSize,
		HiddenSize: 1500,
		Layers:     3,
		Walkbacks:  5,
		BatchSize:  100,

		VisibleActivation: "sigmoid",
		HiddenActivation:  "tanh",
		CostFunction:      "binary_crossentropy",
		InputSampling:     true,

		NoiseDecay:          "exponential",
		NoiseAnnealing:      1.0,
		AddNoise:            true,
		NoiselessH1:         true,
		HiddenAddNoiseSigma: 2,
		InputSaltAndPepper:  0.4,

		OutputPath: "outputs/gsn/",
		IsImage:    true,
		Seed:       1,
	}
}

// LoadConfig reads a toml file on top of DefaultConf. Keys absent from the
// file keep their default values.
func LoadConfig(filename string, inputSize int) (Config, error) {
	conf := DefaultConf(inputSize)
	if _, err := toml.DecodeFile(filename, &conf); err != nil {
		return conf, errors.Wrapf(err, "unable to decode config %q", filename)
	}
	return conf, nil
}

func (conf Config) IsValid() bool { return conf.Validate() == nil }

// Validate reports the first configuration error. Configuration errors are
// fatal and are logged before being returned.
func (conf Config) Validate() error {
	var err error
	switch {
	case conf.InputSize <= 0:
		err = errors.Wrap(ErrConfig, "please specify input_size or provide an example dataset for input dimensionality")
	case conf.Layers < 1:
		err = errors.Wrapf(ErrConfig, "layers must be at least 1, got %d", conf.Layers)
	case conf.Walkbacks < 1:
		err = errors.Wrapf(ErrConfig, "walkbacks must be at least 1, got %d", conf.Walkbacks)
	case conf.HiddenSize < 1:
		err = errors.Wrapf(ErrConfig, "hidden_size must be at least 1, got %d", conf.HiddenSize)
	case conf.BatchSize < 1:
		err = errors.Wrapf(ErrConfig, "batch_size must be at least 1, got %d", conf.BatchSize)
	case conf.InputSaltAndPepper < 0 || conf.InputSaltAndPepper > 1:
		err = errors.Wrapf(ErrConfig, "input_salt_and_pepper must be in [0, 1], got %v", conf.InputSaltAndPepper)
	case conf.HiddenAddNoiseSigma < 0:
		err = errors.Wrapf(ErrConfig, "hidden_add_noise_sigma must not be negative, got %v", conf.HiddenAddNoiseSigma)
	}
	if err == nil {
		_, _, _, err = conf.functions()
	}
	if err != nil {
		log.Error(err.Error())
	}
	return err
}

func (conf Config) functions() (vis, hid Activation, cost Cost, err error) {
	if vis, err = resolveActivation(conf.VisibleActivationFn, conf.VisibleActivation, "visible"); err != nil {
		return
	}
	if hid, err = resolveActivation(conf.HiddenActivationFn, conf.HiddenActivation, "hidden"); err != nil {
		return
	}
	cost, err = resolveCost(conf.CostFn, conf.CostFunction)
	return
}

// LayerSizes is the size of h0 (the visible layer) to hK.
func (conf Config) LayerSizes() []int {
	retVal := make([]int, conf.Layers+1)
	retVal[0] = conf.InputSize
	for i := 1; i < len(retVal); i++ {
		retVal[i] = conf.HiddenSize
	}
	return retVal
}

// PackedSize is the width of the packed hidden representation: the sum of
// the odd layer widths.
func (conf Config) PackedSize() int {
	var retVal int
	sizes := conf.LayerSizes()
	for i := 1; i < len(sizes); i += 2 {
		retVal += sizes[i]
	}
	return retVal
}

// ImageShape returns the height and width used when the input is tiled as an
// image. Unless given, the shape is the most square factorisation of
// InputSize.
func (conf Config) ImageShape() (h, w int) {
	if conf.Width > 0 && conf.Height > 0 {
		return conf.Height, conf.Width
	}
	return ClosestToSquareFactors(conf.InputSize)
}

// ClosestToSquareFactors returns the pair of factors of n with the smallest
// difference, smaller factor first.
func ClosestToSquareFactors(n int) (int, int) {
	if n <= 0 {
		return 0, 0
	}
	best := 1
	for i := 1; i*i <= n; i++ {
		if n%i == 0 {
			best = i
		}
	}
	return best, n / best
}

// enoughWalkbacks checks that information from the top layer can reach the
// visible layer and back.
func (conf Config) enoughWalkbacks() bool {
	if conf.Layers%2 == 0 {
		return conf.Walkbacks >= 2*conf.Layers
	}
	return conf.Walkbacks >= 2*conf.Layers-1
}
