package percolation

import (
	"context"
	"testing"

	"github.com/grailbio/perc/dataset"
	"github.com/grailbio/perc/lattice"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func runF64(t *testing.T, values []float64, lat *lattice.L, opts Opts) (*StatsTable, *Snapshot) {
	cache := &StatCache{}
	table, snap, err := Run(context.Background(), dataset.Float64Scalar(values),
		dataset.ConstVolume(1), lat, cache, opts)
	assert.NoError(t, err)
	return table, snap
}

// A 1-D chain: activation order by value descending with larger-id ties
// first, one component forming per isolated activation, a final merge that
// spans the chain.
func TestChainSweep(t *testing.T) {
	lat := lattice.New(4, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 4
	opts.PercDim = lattice.X
	table, _ := runF64(t, []float64{3, 1, 2, 4}, lat, opts)

	expect.EQ(t, table.H, []float32{4, 3, 2, 1})
	expect.EQ(t, table.NumComps, []int32{1, 2, 2, 1})
	expect.EQ(t, table.TotalVol, []float32{1, 2, 3, 4})
	expect.EQ(t, table.LargestVol, []float32{1, 1, 2, 4})
	expect.EQ(t, table.IsPercolating, []int32{0, 0, 0, 1})
	expect.EQ(t, table.MaxNumCompsInRun, []int32{2, 2, 2, 2})
	expect.EQ(t, table.CompRatio, []float32{0.5, 1, 1, 0.5})
	// minVal=1, maxVal=4.
	expect.EQ(t, table.ValueFraction, []float32{0, 1. / 3, 2. / 3, 1})
}

// All values equal: the id-descending tie-break activates the chain back to
// front, each step extending one growing component.
func TestPlateauTieBreak(t *testing.T) {
	lat := lattice.New(3, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 3
	opts.PercDim = lattice.X
	table, snap := func() (*StatsTable, *Snapshot) {
		opts.SnapshotAt = 2
		return runF64(t, []float64{5, 5, 5}, lat, opts)
	}()

	expect.EQ(t, table.NumComps, []int32{1, 1, 1})
	expect.EQ(t, table.LargestVol, []float32{1, 2, 3})
	expect.EQ(t, table.IsPercolating, []int32{0, 0, 1})
	// id 2 activates first and stays the representative throughout.
	expect.EQ(t, snap.Labels, []int32{2, 2, 2})
}

// On a degenerate window (all values equal) value-based sampling emits a
// single closing sample with zero value fraction.
func TestValueSamplingDegenerateWindow(t *testing.T) {
	lat := lattice.New(3, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = ValueBased
	opts.NumSamples = 5
	table, _ := runF64(t, []float64{5, 5, 5}, lat, opts)
	expect.EQ(t, table.H, []float32{5})
	expect.EQ(t, table.ValueFraction, []float32{0})
}

// A periodic ring: wrap-around adjacency merges the last activation into the
// existing component and closes the span.
func TestPeriodicRing(t *testing.T) {
	lat := lattice.New(4, 1, 1, true, false, false)
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 4
	opts.PercDim = lattice.X
	table, _ := runF64(t, []float64{1, 2, 3, 4}, lat, opts)

	expect.EQ(t, table.NumComps, []int32{1, 1, 1, 1})
	expect.EQ(t, table.IsPercolating[3], int32(1))
	expect.EQ(t, table.TotalVol[3], float32(4))
}

// Value-based resampling across a value gap repeats samples at every missed
// threshold and closes the window at its lower bound.
func TestValueSamplingResampling(t *testing.T) {
	lat := lattice.New(2, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = ValueBased
	opts.NumSamples = 5
	opts.Window = Absolute
	opts.HMin, opts.HMax = 0, 10
	table, _ := runF64(t, []float64{10, 0}, lat, opts)

	expect.EQ(t, table.H, []float32{10, 7.5, 5, 2.5, 0})
	expect.EQ(t, table.ValueFraction, []float32{0, 0.25, 0.5, 0.75, 1})
	// All five rows are snapshots of the same final state.
	expect.EQ(t, table.NumComps, []int32{1, 1, 1, 1, 1})
	expect.EQ(t, table.TotalVol, []float32{2, 2, 2, 2, 2})
}

// A plateau lying exactly on a sampling threshold emits on the first value
// strictly below it, not on the plateau itself.
func TestValueSamplingPlateauBoundary(t *testing.T) {
	lat := lattice.New(4, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = ValueBased
	opts.NumSamples = 3
	table, _ := runF64(t, []float64{4, 3, 3, 2}, lat, opts)

	// hStep=1.  The two vertices at value 3 emit no sample at threshold 3;
	// that sample appears once the value 2 < 3 activates, with the plateau
	// already absorbed.  Threshold 4 lags one step for the same reason: it
	// is emitted when the first value-3 vertex activates.
	expect.EQ(t, table.H, []float32{4, 3, 2})
	expect.EQ(t, table.TotalVol, []float32{2, 4, 4})
}

func TestSnapshotWithStopEarly(t *testing.T) {
	lat := lattice.New(4, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 4
	opts.PercDim = lattice.X
	opts.SnapshotAt = 2
	opts.StopEarly = true
	table, snap := runF64(t, []float64{3, 1, 2, 4}, lat, opts)

	expect.EQ(t, table.NumRows(), 3)
	assert.True(t, snap != nil)
	expect.EQ(t, snap.Threshold, 2.0)
	// Components at the snapshot: {0} and {2,3} with representative 3.
	expect.EQ(t, snap.Labels, []int32{0, -1, 3, 3})
	expect.EQ(t, snap.MaxVolumeRep, int32(3))
	expect.EQ(t, snap.LargestMask, []float32{0, 0, 1, 1})
	expect.EQ(t, snap.TripleMask, []float32{1, 0, -1, -1})
	assert.EQ(t, len(snap.Clusters), 2)
	expect.EQ(t, snap.Clusters[0].ID, int32(0))
	expect.EQ(t, snap.Clusters[0].SizeX, int32(1))
	expect.EQ(t, snap.Clusters[1].ID, int32(3))
	expect.EQ(t, snap.Clusters[1].SizeX, int32(2))
	expect.EQ(t, snap.Clusters[1].Volume, 2.0)
	expect.EQ(t, snap.Clusters[1].SizeBBox, int64(2))
}

// Vertices at the exclusion sentinel never enter the sweep and keep label -1.
func TestSentinelExclusion(t *testing.T) {
	lat := lattice.New(3, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 2
	opts.SnapshotAt = 1
	table, snap := runF64(t, []float64{dataset.Excluded, 1, 2}, lat, opts)

	expect.EQ(t, table.NumRows(), 2)
	expect.EQ(t, table.TotalVol, []float32{1, 2})
	expect.EQ(t, snap.Labels[0], int32(-1))
	expect.EQ(t, snap.Labels[1], int32(2))
	expect.EQ(t, snap.Labels[2], int32(2))
}

// A cross shape whose center joins four components in one step: the merged
// volume and extent must be the sum/union of all operands plus the center.
func TestMultiwayMerge(t *testing.T) {
	lat := lattice.New(3, 3, 1, false, false, false)
	values := make([]float64, 9)
	for i := range values {
		values[i] = dataset.Excluded
	}
	// Arms high, center lower: four creates, then a 4-way merge.
	values[lat.LinearOf(1, 0, 0)] = 9
	values[lat.LinearOf(0, 1, 0)] = 8
	values[lat.LinearOf(2, 1, 0)] = 7
	values[lat.LinearOf(1, 2, 0)] = 6
	values[lat.LinearOf(1, 1, 0)] = 5

	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 5
	opts.PercDim = lattice.Any
	opts.SnapshotAt = 4
	table, snap := runF64(t, values, lat, opts)

	expect.EQ(t, table.NumComps, []int32{1, 2, 3, 4, 1})
	expect.EQ(t, table.LargestVol[4], float32(5))
	expect.EQ(t, table.IsPercolating[4], int32(1))
	assert.EQ(t, len(snap.Clusters), 1)
	c := snap.Clusters[0]
	expect.EQ(t, c.Volume, 5.0)
	expect.EQ(t, c.SizeX, int32(3))
	expect.EQ(t, c.SizeY, int32(3))
	expect.EQ(t, c.SizeZ, int32(1))
}

// Volume is conserved: at any snapshot the per-cluster volumes sum to the
// total, and the cluster count matches the reported component count.
func TestVolumeConservation(t *testing.T) {
	lat := lattice.New(4, 3, 2, false, false, false)
	values := make([]float64, lat.NumVertices())
	vols := make([]float64, lat.NumVertices())
	for i := range values {
		values[i] = float64((i*7919)%23) - 11
		vols[i] = 0.25 + float64(i%5)
	}
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 8
	opts.SnapshotAt = 5
	cache := &StatCache{}
	table, snap, err := Run(context.Background(), dataset.Float64Scalar(values),
		dataset.BufferVolume(vols), lat, cache, opts)
	assert.NoError(t, err)
	assert.True(t, snap != nil)

	sum := 0.0
	for _, c := range snap.Clusters {
		sum += c.Volume
	}
	expect.EQ(t, float32(sum), table.TotalVol[5])
	expect.EQ(t, int32(len(snap.Clusters)), table.NumComps[5])
}

// Within a run: largest and total volume are non-decreasing, the percolation
// flag latches, the value fraction stays in [0, 1].
func TestMonotoneColumns(t *testing.T) {
	lat := lattice.New(5, 4, 3, true, false, false)
	values := make([]float64, lat.NumVertices())
	for i := range values {
		values[i] = float64((i*104729)%37) * 0.5
	}
	for _, mode := range []SampleMode{ValueBased, VoxelBased} {
		opts := DefaultOpts
		opts.SampleMode = mode
		opts.NumSamples = 11
		opts.PercDim = lattice.Any
		table, _ := runF64(t, values, lat, opts)
		assert.True(t, table.NumRows() > 0)
		for i := 1; i < table.NumRows(); i++ {
			expect.True(t, table.LargestVol[i] >= table.LargestVol[i-1])
			expect.True(t, table.TotalVol[i] >= table.TotalVol[i-1])
			expect.True(t, table.IsPercolating[i] >= table.IsPercolating[i-1])
		}
		for i := 0; i < table.NumRows(); i++ {
			expect.True(t, table.ValueFraction[i] >= 0 && table.ValueFraction[i] <= 1)
		}
		if mode == ValueBased {
			expect.True(t, table.NumRows() >= opts.NumSamples)
		}
	}
}

// Voxel-based sampling honors the bin-count upper bound.
func TestVoxelSampleCountBound(t *testing.T) {
	lat := lattice.New(10, 10, 1, false, false, false)
	values := make([]float64, lat.NumVertices())
	for i := range values {
		values[i] = float64(i % 17)
	}
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 7
	table, _ := runF64(t, values, lat, opts)

	window := lat.NumVertices()
	binSize := (window - 1) / (opts.NumSamples - 1)
	bound := (window+binSize-1)/binSize + 1
	expect.True(t, table.NumRows() <= bound)
	expect.True(t, table.NumRows() >= opts.NumSamples)
}

// Percentile trims move the sampled window but still sweep from the top.
func TestPercentWindow(t *testing.T) {
	lat := lattice.New(10, 1, 1, false, false, false)
	values := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 10
	opts.Percent = 20
	table, _ := runF64(t, values, lat, opts)

	// minIdx=2: the two highest values are activated but not sampled.
	expect.EQ(t, table.H[0], float32(8))
	expect.EQ(t, table.TotalVol[0], float32(3))
	expect.EQ(t, table.NumRows(), 8)
	// Trimmed samples still normalize within the sampled value range.
	expect.EQ(t, table.ValueFraction[0], float32(0))
	expect.EQ(t, table.ValueFraction[table.NumRows()-1], float32(1))
}

func TestRunsAccumulate(t *testing.T) {
	lat := lattice.New(3, 1, 1, false, false, false)
	cache := &StatCache{}
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 3

	// The ends activate first and merge at the middle vertex: two components
	// at the peak.
	opts.RunID = 0
	_, _, err := Run(context.Background(), dataset.Float64Scalar([]float64{2, 1, 3}),
		dataset.ConstVolume(1), lat, cache, opts)
	assert.NoError(t, err)

	// A descending chain never has more than one component.
	opts.RunID = 1
	table, _, err := Run(context.Background(), dataset.Float64Scalar([]float64{3, 2, 1}),
		dataset.ConstVolume(1), lat, cache, opts)
	assert.NoError(t, err)

	expect.EQ(t, table.NumRows(), 6)
	expect.EQ(t, table.RunID, []int32{0, 0, 0, 1, 1, 1})
	expect.EQ(t, table.NumComps, []int32{1, 2, 1, 1, 1, 1})
	// Each run keeps its own component-count maximum.
	expect.EQ(t, table.MaxNumCompsInRun, []int32{2, 2, 2, 1, 1, 1})

	cache.Clear()
	expect.EQ(t, cache.NumRows(), 0)
}

func TestValidationLeavesCacheUntouched(t *testing.T) {
	lat := lattice.New(3, 1, 1, false, false, false)
	cache := &StatCache{}
	values := []float64{1, 2, 3}

	opts := DefaultOpts
	opts.NumSamples = 0
	_, _, err := Run(context.Background(), dataset.Float64Scalar(values),
		dataset.ConstVolume(1), lat, cache, opts)
	expect.True(t, err != nil)
	expect.EQ(t, cache.NumRows(), 0)

	opts = DefaultOpts
	opts.Window = Absolute
	opts.HMin, opts.HMax = 5, 1
	_, _, err = Run(context.Background(), dataset.Float64Scalar(values),
		dataset.ConstVolume(1), lat, cache, opts)
	expect.True(t, err != nil)
	expect.EQ(t, cache.NumRows(), 0)

	_, _, err = Run(context.Background(), dataset.Float64Scalar([]float64{1, 2}),
		dataset.ConstVolume(1), lat, cache, opts)
	expect.True(t, err != nil)
	expect.EQ(t, cache.NumRows(), 0)
}

// An input of nothing but sentinels is not an error; it yields no rows.
func TestAllExcluded(t *testing.T) {
	lat := lattice.New(2, 2, 1, false, false, false)
	values := []float64{dataset.Excluded, dataset.Excluded, dataset.Excluded, dataset.Excluded}
	cache := &StatCache{}
	table, snap, err := Run(context.Background(), dataset.Float64Scalar(values),
		dataset.ConstVolume(1), lat, cache, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, table.NumRows(), 0)
	expect.True(t, snap == nil)
}

func TestEmptyWindow(t *testing.T) {
	lat := lattice.New(4, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.Percent = 80
	opts.CutBothEnds = true
	cache := &StatCache{}
	_, _, err := Run(context.Background(), dataset.Float64Scalar([]float64{1, 2, 3, 4}),
		dataset.ConstVolume(1), lat, cache, opts)
	expect.True(t, err != nil)
	expect.EQ(t, cache.NumRows(), 0)
}

func TestSnapshotOutOfRange(t *testing.T) {
	lat := lattice.New(3, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 3
	opts.SnapshotAt = 99
	cache := &StatCache{}
	table, snap, err := Run(context.Background(), dataset.Float64Scalar([]float64{1, 2, 3}),
		dataset.ConstVolume(1), lat, cache, opts)
	expect.True(t, err != nil)
	expect.True(t, snap == nil)
	// The emitted rows stand.
	expect.EQ(t, table.NumRows(), 3)
	expect.EQ(t, cache.NumRows(), 3)
}

func TestCancellation(t *testing.T) {
	lat := lattice.New(8, 8, 8, false, false, false)
	values := make([]float64, lat.NumVertices())
	for i := range values {
		values[i] = float64(i)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cache := &StatCache{}
	table, _, err := Run(ctx, dataset.Float64Scalar(values),
		dataset.ConstVolume(1), lat, cache, DefaultOpts)
	expect.True(t, err != nil)
	expect.EQ(t, table.NumRows(), 0)
}

// Float32 and int16 channels sweep identically to their float64 widening.
func TestScalarElementTypes(t *testing.T) {
	lat := lattice.New(4, 1, 1, false, false, false)
	opts := DefaultOpts
	opts.SampleMode = VoxelBased
	opts.NumSamples = 4
	opts.PercDim = lattice.X

	cache := &StatCache{}
	t32, _, err := Run(context.Background(), dataset.Float32Scalar([]float32{3, 1, 2, 4}),
		dataset.ConstVolume(1), lat, cache, opts)
	assert.NoError(t, err)
	expect.EQ(t, t32.H, []float32{4, 3, 2, 1})
	expect.EQ(t, t32.IsPercolating, []int32{0, 0, 0, 1})

	cache = &StatCache{}
	t16, _, err := Run(context.Background(), dataset.Int16Scalar([]int16{3, 1, 2, 4}),
		dataset.ConstVolume(1), lat, cache, opts)
	assert.NoError(t, err)
	expect.EQ(t, t16.H, []float32{4, 3, 2, 1})
	expect.EQ(t, t16.NumComps, []int32{1, 2, 2, 1})
}
