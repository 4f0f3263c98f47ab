package gsnet

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
)

// ToDot renders the layer architecture of the GSN: one node per layer and
// one edge per weight matrix.
func (d *GSN) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("GSN"); err != nil {
		panic(err)
	}
	g.SetDir(true)
	g.AddAttr("GSN", "rankdir", "BT")
	g.AddAttr("GSN", "label", fmt.Sprintf(`"%d layers, %d walkbacks"`, d.Layers, d.Walkbacks))

	for i, size := range d.LayerSizes() {
		kind := "hidden"
		act := d.HiddenActivation
		if i == 0 {
			kind = "visible"
			act = d.VisibleActivation
		}
		group := "even"
		if i%2 != 0 {
			group = "odd"
		}
		attrs := map[string]string{
			"shape": "box",
			"label": fmt.Sprintf(`"h%d %s\n%d units, %s\n%s"`, i, kind, size, act, group),
		}
		if i == 1 && d.NoiselessH1 {
			attrs["style"] = "dashed"
		}
		g.AddNode("GSN", layerID(i), attrs)
	}
	for i := 0; i < d.Layers; i++ {
		g.AddEdge(layerID(i), layerID(i+1), true, map[string]string{
			"label": fmt.Sprintf(`"%s"`, weightName(i)),
			"dir":   "both",
		})
	}
	return g.String()
}

func layerID(i int) string { return fmt.Sprintf("h%d", i) }
