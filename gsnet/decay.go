package gsnet

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Param is a named scalar that can be changed between graph evaluations,
// such as a noise level. The noise feeds read it every time the graph runs.
type Param struct {
	name string
	v    float64
}

func NewParam(name string, v float64) *Param { return &Param{name: name, v: v} }

func (p *Param) Name() string     { return p.name }
func (p *Param) Get() float64     { return p.v }
func (p *Param) Set(v float64)    { p.v = v }
func (p *Param) String() string   { return p.name }
func (p *Param) Float32() float32 { return float32(p.v) }

// Decayer decays a Param once per epoch.
type Decayer interface {
	Param() *Param
	Decay() float64 // advances one epoch and returns the new value
	Epoch() int
	Reset()
}

// DecayFunc computes a value from the initial value, a factor and the number
// of elapsed epochs.
type DecayFunc func(initial, factor float64, epoch int) float64

var decays = map[string]DecayFunc{
	"exponential": Exponential,
	"linear":      Linear,
	"montreal":    Montreal,
}

// Exponential is initial * factor^epoch.
func Exponential(initial, factor float64, epoch int) float64 {
	return initial * math.Pow(factor, float64(epoch))
}

// Linear is initial - factor*epoch, floored at 0.
func Linear(initial, factor float64, epoch int) float64 {
	return math.Max(0, initial-factor*float64(epoch))
}

// Montreal is initial / (1 + factor*epoch).
func Montreal(initial, factor float64, epoch int) float64 {
	return initial / (1 + factor*float64(epoch))
}

type decayer struct {
	param   *Param
	initial float64
	factor  float64
	epoch   int
	f       DecayFunc
}

// GetDecay returns a Decayer for p using the named schedule. The initial
// value is p's current value.
func GetDecay(name string, p *Param, factor float64) (Decayer, error) {
	f, ok := decays[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrConfig, "unknown decay function %q", name)
	}
	return NewDecayer(f, p, factor), nil
}

func NewDecayer(f DecayFunc, p *Param, factor float64) Decayer {
	return &decayer{
		param:   p,
		initial: p.Get(),
		factor:  factor,
		f:       f,
	}
}

func (d *decayer) Param() *Param { return d.param }
func (d *decayer) Epoch() int    { return d.epoch }

func (d *decayer) Decay() float64 {
	d.epoch++
	v := d.f(d.initial, d.factor, d.epoch)
	d.param.Set(v)
	return v
}

func (d *decayer) Reset() {
	d.epoch = 0
	d.param.Set(d.initial)
}
