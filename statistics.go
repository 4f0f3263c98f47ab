package gsn

import (
	"encoding/csv"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gorgonia/gsn/gsnet"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Statistics is the per epoch history of the train cost and the monitors.
// A monitor m on subset s is recorded under "s_m", so the noise free
// reconstruction cost on the validation set is "valid_recon_cost".
type Statistics struct {
	Epochs  []int
	History map[string][]float32

	names []string // in order of first appearance
}

func makeStatistics() Statistics {
	return Statistics{
		Epochs:  make([]int, 0, 64),
		History: make(map[string][]float32),
	}
}

func (s *Statistics) record(epoch int, subset Subset, ms []gsnet.Monitor) {
	if len(s.Epochs) == 0 || s.Epochs[len(s.Epochs)-1] != epoch {
		s.Epochs = append(s.Epochs, epoch)
	}
	for _, m := range ms {
		name := m.Name
		if subset != Train {
			name = fmt.Sprintf("%v_%s", subset, m.Name)
		}
		if _, ok := s.History[name]; !ok {
			s.names = append(s.names, name)
		}
		// pad monitors that started late
		for len(s.History[name]) < len(s.Epochs)-1 {
			s.History[name] = append(s.History[name], math32.NaN())
		}
		s.History[name] = append(s.History[name], m.Value)
	}
}

// Names returns the recorded series in order of first appearance.
func (s *Statistics) Names() []string { return s.names }

// Dump writes the history as CSV: a header, then one row per epoch.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"epoch"}, s.names...)); err != nil {
		return err
	}
	var records [][]string
	for i, epoch := range s.Epochs {
		record := make([]string, len(s.names)+1)
		record[0] = strconv.Itoa(epoch)
		for j, name := range s.names {
			if vals := s.History[name]; i < len(vals) {
				record[j+1] = strconv.FormatFloat(float64(vals[i]), 'f', 5, 32)
			}
		}
		records = append(records, record)
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

var lineColours = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
}

// Plot draws the named series against the epoch and saves the plot. With no
// names every series but the deviations is drawn. The format follows the
// file extension.
func (s *Statistics) Plot(filename string, names ...string) error {
	if len(s.Epochs) == 0 {
		return errors.New("nothing to plot")
	}
	if len(names) == 0 {
		for _, name := range s.names {
			if !strings.HasSuffix(name, "_std") {
				names = append(names, name)
			}
		}
	}
	p := plot.New()
	p.Title.Text = "GSN training"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "cost"
	p.Add(plotter.NewGrid())

	for i, name := range names {
		vals, ok := s.History[name]
		if !ok {
			return errors.Errorf("no series named %q", name)
		}
		xys := make(plotter.XYs, 0, len(vals))
		for j, v := range vals {
			if !isFinite(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(s.Epochs[j]), Y: float64(v)})
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrap(err, name)
		}
		l.Color = lineColours[i%len(lineColours)]
		p.Add(l)
		p.Legend.Add(name, l)
	}
	return errors.WithStack(p.Save(6*vg.Inch, 4*vg.Inch, filename))
}
