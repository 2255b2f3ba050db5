package transform

import (
	"testing"

	"github.com/grailbio/perc/dataset"
	"github.com/grailbio/perc/lattice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeDataset(t *testing.T) *dataset.D {
	lat := lattice.New(2, 2, 2, false, false, false)
	n := lat.NumVertices()
	vel := make([]float64, 3*n)
	avg := make([]float64, 3*n)
	for i := 0; i < n; i++ {
		for c := 0; c < 3; c++ {
			vel[i*3+c] = float64(i + c)
			avg[i*3+c] = float64(2 * (i + c))
		}
	}
	ds := dataset.New(lat)
	ds.Add(&dataset.Channel{Name: "Velocity", Arity: 3, Values: vel})
	ds.Add(&dataset.Channel{Name: "AveragedVelocity", Arity: 3, Values: avg})
	return ds
}

func TestVariantForFile(t *testing.T) {
	name, v, err := VariantForFile("/stats/uv_rms.dat")
	require.NoError(t, err)
	assert.Equal(t, "uv", name)
	assert.Equal(t, 3.0, v([3]float64{1, 3, 5}, [3]float64{}))

	_, _, err = VariantForFile("/stats/pressure_rms")
	assert.Error(t, err)
}

// K and k are distinct scalars: one reads the raw velocity, the other the
// fluctuations.
func TestKineticVariants(t *testing.T) {
	avg := [3]float64{1, 2, 3}
	vel := [3]float64{4, 2, 0}
	assert.Equal(t, 10.0, Variants["K"](avg, vel)) // 0.5*(16+4)
	assert.Equal(t, 7.0, Variants["k"](avg, vel))  // 0.5*(1+4+9)
	assert.Equal(t, -3.0, Variants["v2w2"](avg, vel))
	assert.Equal(t, 6.0, Variants["vw"](avg, vel))
}

func TestApply(t *testing.T) {
	ds := makeDataset(t)
	rms := []float64{1, 2, 4, 8}
	c, err := Apply(ds, rms, Variants["uv"], DefaultOpts)
	require.NoError(t, err)
	assert.Equal(t, ScalarName, c.Name)
	assert.Equal(t, 8, c.Len())

	// Vertex i has fluctuations (2i, 2(i+1), ...), so uv = 4i(i+1); rms
	// repeats per xy plane.
	assert.Equal(t, 0.0, c.Values[0])
	assert.Equal(t, 4.0, c.Values[1])  // 4*1*2 / 2
	assert.Equal(t, 6.0, c.Values[2])  // 4*2*3 / 4
	assert.Equal(t, 80.0, c.Values[4]) // 4*4*5 / 1, upper plane reuses rms[0]
	assert.Equal(t, 28.0, c.Values[7]) // 4*7*8 / 8

	// The channel lands in the dataset and feeds the engine as a scalar.
	s, err := ds.Scalar(ScalarName)
	require.NoError(t, err)
	assert.Equal(t, 8, s.Len())
}

func TestApplyZeroRMS(t *testing.T) {
	ds := makeDataset(t)
	rms := []float64{0, 1, 1, 1}
	c, err := Apply(ds, rms, Variants["uv"], DefaultOpts)
	require.NoError(t, err)
	// Both planes mask position 0 with the exclusion sentinel.
	assert.Equal(t, dataset.Excluded, c.Values[0])
	assert.Equal(t, dataset.Excluded, c.Values[4])

	opts := DefaultOpts
	opts.NegInfForUndefined = false
	opts.UndefinedValue = -3
	c, err = Apply(makeDataset(t), rms, Variants["uv"], opts)
	require.NoError(t, err)
	assert.Equal(t, -3.0, c.Values[0])
}

func TestApplyValidation(t *testing.T) {
	ds := makeDataset(t)
	_, err := Apply(ds, []float64{1, 1}, Variants["uv"], DefaultOpts)
	assert.Error(t, err)

	empty := dataset.New(lattice.New(2, 2, 2, false, false, false))
	_, err = Apply(empty, []float64{1, 1, 1, 1}, Variants["uv"], DefaultOpts)
	assert.Error(t, err)
}
