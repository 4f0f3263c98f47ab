package gsnet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func randomMatrix(src rand.Source, r, c int) *tensor.Dense {
	retVal := zeroes(r, c)
	fill(retVal.Data().([]float32), distuv.Uniform{Min: -1, Max: 1, Src: src}.Rand)
	return retVal
}

var packSizes = [][]int{
	{6, 4},
	{6, 4, 4},
	{6, 3, 5, 2},
	{5, 3, 4, 7, 2},
	{2, 1, 1, 1, 1, 1},
}

func TestUnpackThenPack(t *testing.T) {
	src := rand.NewSource(1337)
	for _, sizes := range packSizes {
		packed := randomMatrix(src, 3, packedWidth(sizes))
		hiddens, err := UnpackHiddens(packed, sizes)
		require.NoError(t, err, "sizes %v", sizes)
		require.Len(t, hiddens, len(sizes))

		repacked, err := PackHiddens(hiddens)
		require.NoError(t, err, "sizes %v", sizes)
		assert.True(t, packed.Shape().Eq(repacked.Shape()))
		if diff := cmp.Diff(packed.Data(), repacked.Data()); diff != "" {
			t.Errorf("sizes %v: pack(unpack(x)) differs (-want +got):\n%s", sizes, diff)
		}
	}
}

func TestPackThenUnpack(t *testing.T) {
	src := rand.NewSource(1337)
	for _, sizes := range packSizes {
		hiddens := make([]*tensor.Dense, len(sizes))
		for i, size := range sizes {
			hiddens[i] = randomMatrix(src, 3, size)
		}
		packed, err := PackHiddens(hiddens)
		require.NoError(t, err, "sizes %v", sizes)
		assert.Equal(t, packedWidth(sizes), packed.Shape()[1])

		unpacked, err := UnpackHiddens(packed, sizes)
		require.NoError(t, err, "sizes %v", sizes)
		for i := range sizes {
			assert.True(t, hiddens[i].Shape().Eq(unpacked[i].Shape()), "sizes %v layer %d", sizes, i)
			if i%2 == 1 {
				if diff := cmp.Diff(hiddens[i].Data(), unpacked[i].Data()); diff != "" {
					t.Errorf("sizes %v: odd layer %d differs (-want +got):\n%s", sizes, i, diff)
				}
				continue
			}
			assert.Equal(t, make([]float32, 3*sizes[i]), unpacked[i].Data(), "sizes %v: even layer %d should be zero", sizes, i)
		}
	}
}

func TestUnpackWrongWidth(t *testing.T) {
	_, err := UnpackHiddens(zeroes(2, 5), []int{4, 3, 3, 3})
	assert.Error(t, err)

	_, err = PackHiddens([]*tensor.Dense{zeroes(2, 4)})
	assert.Error(t, err)
}

func TestPackNodesUnpackNodes(t *testing.T) {
	src := rand.NewSource(2021)
	for _, sizes := range packSizes {
		g := G.NewGraph()
		packed := randomMatrix(src, 3, packedWidth(sizes))
		in := G.NewMatrix(g, Float, G.WithShape(3, packedWidth(sizes)), G.WithName("packed"), G.WithValue(packed))

		var m maebe
		hiddens := m.unpackNodes(g, in, sizes, "test")
		out := m.packNodes(hiddens)
		require.NoError(t, m.err, "sizes %v", sizes)
		require.Len(t, hiddens, len(sizes))
		for i, h := range hiddens {
			assert.Equal(t, tensor.Shape{3, sizes[i]}, h.Shape(), "sizes %v layer %d", sizes, i)
		}

		var got G.Value
		G.Read(out, &got)
		vm := G.NewTapeMachine(g)
		if err := vm.RunAll(); err != nil {
			t.Fatalf("sizes %v: %+v", sizes, err)
		}
		vm.Close()
		if diff := cmp.Diff(packed.Data(), got.Data()); diff != "" {
			t.Errorf("sizes %v: node pack(unpack(x)) differs (-want +got):\n%s", sizes, diff)
		}
	}
}

func TestUnpackNodesWrongWidth(t *testing.T) {
	g := G.NewGraph()
	in := G.NewMatrix(g, Float, G.WithShape(2, 5), G.WithName("packed"), G.WithValue(zeroes(2, 5)))
	var m maebe
	assert.Nil(t, m.unpackNodes(g, in, []int{6, 4, 4}, "test"))
	assert.Error(t, m.err)
}
