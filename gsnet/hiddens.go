package gsnet

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// PackHiddens concatenates the odd layers of a hidden state along the
// feature axis, in ascending layer order. Even layers, including the visible
// layer, are dropped.
func PackHiddens(hiddens []*tensor.Dense) (*tensor.Dense, error) {
	var odd [][][]float32
	var width, batch int
	for i := 1; i < len(hiddens); i += 2 {
		rs, err := rows(hiddens[i])
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if len(odd) > 0 && len(rs) != batch {
			return nil, errors.Errorf("layer %d has %d rows, expected %d", i, len(rs), batch)
		}
		batch = len(rs)
		width += hiddens[i].Shape()[1]
		odd = append(odd, rs)
	}
	if len(odd) == 0 {
		return nil, errors.New("no odd layers to pack")
	}

	retVal := zeroes(batch, width)
	out, _ := rows(retVal)
	for r := range out {
		var offset int
		for _, layer := range odd {
			offset += copy(out[r][offset:], layer[r])
		}
	}
	return retVal, nil
}

// UnpackHiddens is the inverse of PackHiddens for the given layer sizes. Odd
// layers are sliced out of packed with a running offset; even layers are
// zero.
func UnpackHiddens(packed *tensor.Dense, sizes []int) ([]*tensor.Dense, error) {
	in, err := rows(packed)
	if err != nil {
		return nil, err
	}
	if want := packedWidth(sizes); packed.Shape()[1] != want {
		return nil, errors.Errorf("packed width is %d, expected %d for layer sizes %v", packed.Shape()[1], want, sizes)
	}
	batch := len(in)
	retVal := make([]*tensor.Dense, len(sizes))
	var offset int
	for i, size := range sizes {
		retVal[i] = zeroes(batch, size)
		if i%2 == 0 {
			continue
		}
		out, _ := rows(retVal[i])
		for r := range out {
			copy(out[r], in[r][offset:offset+size])
		}
		offset += size
	}
	return retVal, nil
}

func packedWidth(sizes []int) int {
	var retVal int
	for i := 1; i < len(sizes); i += 2 {
		retVal += sizes[i]
	}
	return retVal
}

// packNodes is PackHiddens on graph nodes.
func (m *maebe) packNodes(hiddens []*G.Node) *G.Node {
	var odd []*G.Node
	for i := 1; i < len(hiddens); i += 2 {
		odd = append(odd, hiddens[i])
	}
	return m.concat(1, odd...)
}

// unpackNodes is UnpackHiddens on graph nodes. Even layers are new zero
// valued inputs of g.
func (m *maebe) unpackNodes(g *G.ExprGraph, packed *G.Node, sizes []int, name string) []*G.Node {
	if m.err != nil {
		return nil
	}
	batch := packed.Shape()[0]
	if want := packedWidth(sizes); packed.Shape()[1] != want {
		m.err = errors.Errorf("packed width is %d, expected %d for layer sizes %v", packed.Shape()[1], want, sizes)
		return nil
	}
	retVal := make([]*G.Node, len(sizes))
	var offset int
	for i, size := range sizes {
		if i%2 == 0 {
			retVal[i] = G.NewMatrix(g, Float, G.WithShape(batch, size), G.WithName(fmt.Sprintf("%s_h%d_zero", name, i)), G.WithValue(zeroes(batch, size)))
			continue
		}
		s := m.cols(packed, offset, offset+size)
		if s != nil && s.Dims() != 2 {
			s = m.do(func() (*G.Node, error) { return G.Reshape(s, tensor.Shape{batch, size}) })
		}
		retVal[i] = s
		offset += size
	}
	if m.err != nil {
		return nil
	}
	return retVal
}
