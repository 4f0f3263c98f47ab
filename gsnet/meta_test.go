package gsnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

func TestTrain(t *testing.T) {
	d := New(smallConf(2, 4))
	if err := d.Init(); err != nil {
		t.Fatalf("%+v", err)
	}
	defer d.Close()

	xs := binaryBatch(7, 8, 16)
	solver := G.NewVanillaSolver(G.WithLearnRate(0.1))
	costs, err := Train(d, xs, 2, 3, solver)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	require.Len(t, costs, 3)
	for _, c := range costs {
		assert.True(t, isFinite(c) && c >= 0, "cost %v", c)
	}

	_, err = Train(d, xs, 3, 1, solver)
	assert.Error(t, err)
}
