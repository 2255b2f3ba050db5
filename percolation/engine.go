// Copyright 2019 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package percolation sweeps a scalar field from high to low threshold,
// incrementally building connected components of super-level vertices, and
// records per-threshold component statistics: component count, wetted
// volume, largest component volume, and whether any component spans the
// lattice.
package percolation

import (
	"context"
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/perc/dataset"
	"github.com/grailbio/perc/lattice"
	"github.com/grailbio/perc/unionfind"
)

// sweepEntry pairs a scalar value with its vertex id.  The sweep table is
// sorted by value descending, ties by id descending.
type sweepEntry struct {
	val float64
	id  int32
}

// checkCancelMask controls how often the sweep polls the context; once every
// 4096 activations keeps the overhead invisible.
const checkCancelMask = 4095

// Run sweeps scalar over lat from its highest to its lowest value and
// appends one statistics row per sample to cache.  It returns a table built
// from the full cache (all accumulated runs) and, when Opts.SnapshotAt is
// set, the cluster snapshot frozen at that sample.
//
// Validation failures return an empty table and a typed error without
// touching cache.  A canceled ctx returns the rows appended so far together
// with the context error.
func Run(ctx context.Context, scalar *dataset.Scalar, volume dataset.Volume, lat *lattice.L, cache *StatCache, opts Opts) (*StatsTable, *Snapshot, error) {
	if err := opts.validate(); err != nil {
		log.Error.Printf("percolation: %v", err)
		return &StatsTable{}, nil, err
	}
	if scalar == nil || volume == nil {
		log.Error.Printf("percolation: scalar or volume channel missing")
		return &StatsTable{}, nil, dataset.ErrMissingChannel
	}
	numVertices := lat.NumVertices()
	if scalar.Len() != numVertices {
		log.Error.Printf("percolation: scalar has %d values, grid has %d vertices", scalar.Len(), numVertices)
		return &StatsTable{}, nil, dataset.ErrGridMismatch
	}
	if n := volume.Len(); n >= 0 && n != numVertices {
		log.Error.Printf("percolation: volume has %d values, grid has %d vertices", n, numVertices)
		return &StatsTable{}, nil, dataset.ErrGridMismatch
	}

	entries := buildSweepTable(scalar)

	// Vertices at or below the exclusion sentinel sort to the back; cut them
	// off.
	numElements := sort.Search(len(entries), func(i int) bool {
		return entries[i].val <= dataset.Excluded
	})
	if numElements == 0 {
		log.Printf("percolation: all %d vertices excluded, nothing to sweep", numVertices)
		return cache.buildTable(), nil, nil
	}

	minIdx, maxIdx, minVal, maxVal, err := sweepWindow(entries[:numElements], opts)
	if err != nil {
		log.Error.Printf("percolation: %v", err)
		return &StatsTable{}, nil, err
	}
	log.Printf("percolation: sweeping [%g (idx %d), %g (idx %d)] of %d values",
		entries[maxIdx].val, maxIdx, entries[minIdx].val, minIdx, numElements)

	numWindow := maxIdx - minIdx + 1
	numSamples := opts.NumSamples
	binSize := 1
	hStep := 0.0
	if opts.SampleMode == VoxelBased {
		if numSamples > 1 {
			binSize = (numWindow - 1) / (numSamples - 1)
		} else {
			binSize = numWindow
		}
		if binSize < 1 {
			binSize = 1
		}
		numSamples = (numWindow-1)/binSize + 1
	} else if numSamples > 1 {
		hStep = (maxVal - minVal) / float64(numSamples-1)
	}
	cache.grow(numSamples)
	rowsAtStart := cache.NumRows()

	var (
		uf          = unionfind.New(numVertices)
		volPerComp  = make([]float64, numVertices)
		extPerComp  = make([]lattice.Extent, numVertices)
		present     = make([]bool, numVertices)
		totalVolume float64
		maxVolume   float64
		maxRep      = int32(-1)
		percolating bool

		nextVal    = maxVal
		thresholds []float64
		neighBuf   [6]int32
		compBuf    [6]int32
		snap       *Snapshot

		numCreates, numExtends, numMerges int
	)

sweep:
	for i := 0; i <= maxIdx; i++ {
		if i&checkCancelMask == 0 && ctx.Err() != nil {
			log.Error.Printf("percolation: sweep canceled after %d activations", i)
			return cache.buildTable(), snap, ctx.Err()
		}
		cur := entries[i]
		curVolume := volume.At(cur.id)
		totalVolume += curVolume
		coord := lat.CoordOf(cur.id)

		// Distinct components adjacent to the current vertex, ascending.
		neighComps := compBuf[:0]
		for _, n := range lat.Neighbors(cur.id, neighBuf[:0]) {
			r := uf.Find(n)
			if r < 0 {
				continue
			}
			neighComps = insertComp(neighComps, r)
		}

		switch len(neighComps) {
		case 0: // create
			numCreates++
			uf.MakeSet(cur.id)
			volPerComp[cur.id] = curVolume
			extPerComp[cur.id] = lattice.ExtentAt(coord)
			present[cur.id] = true
			if curVolume > maxVolume {
				maxVolume = curVolume
				maxRep = cur.id
			}

		case 1: // extend
			numExtends++
			r := neighComps[0]
			uf.ExtendSetByRoot(r, cur.id)
			volPerComp[r] += curVolume
			extPerComp[r].Extend(coord)
			if volPerComp[r] > maxVolume {
				maxVolume = volPerComp[r]
				maxRep = r
			}
			if extPerComp[r].Percolates(lat.Dims, opts.PercDim) {
				percolating = true
			}

		default: // merge
			numMerges++
			r0 := neighComps[0]
			for _, r := range neighComps[1:] {
				surviving := uf.Union(r, r0)
				absorbed := r0
				if surviving == r0 {
					absorbed = r
				}
				volPerComp[surviving] += volPerComp[absorbed]
				extPerComp[surviving].Merge(extPerComp[absorbed])
				present[absorbed] = false
				if maxRep == absorbed {
					maxRep = surviving
				}
				r0 = surviving
			}
			uf.ExtendSetByRoot(r0, cur.id)
			volPerComp[r0] += curVolume
			extPerComp[r0].Extend(coord)
			if volPerComp[r0] > maxVolume {
				maxVolume = volPerComp[r0]
				maxRep = r0
			}
			if extPerComp[r0].Percolates(lat.Dims, opts.PercDim) {
				percolating = true
			}
		}

		if i < minIdx {
			continue
		}

		// Thresholds to sample at this step.
		thresholds = thresholds[:0]
		if opts.SampleMode == VoxelBased {
			if (i-minIdx)%binSize == 0 {
				thresholds = append(thresholds, cur.val)
			}
			if i == maxIdx && len(thresholds) == 0 {
				thresholds = append(thresholds, cur.val)
			}
		} else {
			for hStep > 0 && cur.val < nextVal {
				thresholds = append(thresholds, nextVal)
				nextVal -= hStep
			}
			// The lowest threshold is closed off at the final index whenever
			// the cursor has not yet passed it.
			if i == maxIdx && (len(thresholds) == 0 || nextVal > minVal-hStep/2) {
				thresholds = append(thresholds, minVal)
			}
		}

		snapped := false
		for _, h := range thresholds {
			if opts.SnapshotAt >= 0 && snap == nil &&
				cache.NumRows()-rowsAtStart == opts.SnapshotAt {
				snap = newSnapshot(h, uf, maxRep, volPerComp, extPerComp, present)
				snapped = true
			}
			normH := 0.0
			if maxVal != minVal {
				normH = 1 - (h-minVal)/(maxVal-minVal)
			}
			cache.appendRow(opts.RunID, h, normH, uf.NumSets(), totalVolume,
				totalVolume/float64(numVertices), maxVolume, percolating)
		}
		if opts.StopEarly && snapped {
			break sweep
		}
	}

	log.Printf("percolation: %d creates, %d extends, %d merges, %d rows",
		numCreates, numExtends, numMerges, cache.NumRows()-rowsAtStart)
	if opts.SnapshotAt >= 0 && snap == nil {
		log.Error.Printf("percolation: snapshot sample %d out of range, run emitted %d rows",
			opts.SnapshotAt, cache.NumRows()-rowsAtStart)
		return cache.buildTable(), nil, ErrSnapshotOutOfRange
	}
	return cache.buildTable(), snap, nil
}

// insertComp inserts r into the sorted set comps, ignoring duplicates.  The
// set has at most six entries, so linear insertion wins over anything
// fancier, and the ascending order makes merge order deterministic.
func insertComp(comps []int32, r int32) []int32 {
	i := 0
	for ; i < len(comps); i++ {
		if comps[i] == r {
			return comps
		}
		if comps[i] > r {
			break
		}
	}
	comps = append(comps, 0)
	copy(comps[i+1:], comps[i:])
	comps[i] = r
	return comps
}

// buildSweepTable reads the scalar into (value, id) pairs and sorts them by
// value descending, ties broken by larger id first.  The fill loop is
// monomorphic per element type; float32 and int16 convert to float64
// exactly, so the sort order is that of the raw channel.
func buildSweepTable(scalar *dataset.Scalar) []sweepEntry {
	entries := make([]sweepEntry, scalar.Len())
	switch {
	case scalar.Float64s() != nil:
		for i, v := range scalar.Float64s() {
			entries[i] = sweepEntry{val: v, id: int32(i)}
		}
	case scalar.Float32s() != nil:
		for i, v := range scalar.Float32s() {
			entries[i] = sweepEntry{val: float64(v), id: int32(i)}
		}
	default:
		for i, v := range scalar.Int16s() {
			entries[i] = sweepEntry{val: float64(v), id: int32(i)}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		ei, ej := entries[i], entries[j]
		if ei.val != ej.val {
			return ei.val > ej.val
		}
		return ei.id > ej.id
	})
	return entries
}

// sweepWindow maps the window configuration onto index bounds of the sorted
// table and the swept value range.
func sweepWindow(entries []sweepEntry, opts Opts) (minIdx, maxIdx int, minVal, maxVal float64, err error) {
	numElements := len(entries)
	maxIdx = numElements - 1
	switch opts.Window {
	case PercentOfEnds:
		minIdx = int(math.Floor(float64(numElements) * opts.Percent / 100))
		if opts.CutBothEnds {
			m := int(math.Ceil(float64(numElements) * (100 - opts.Percent) / 100))
			if m < maxIdx {
				maxIdx = m
			}
		}
		if minIdx > maxIdx {
			return 0, 0, 0, 0, ErrEmptySweep
		}
		minVal, maxVal = entries[maxIdx].val, entries[minIdx].val
	case Absolute:
		// Descending order: the window starts at the first value below HMax
		// and ends at the first value at or below HMin.
		minIdx = sort.Search(numElements, func(i int) bool {
			return entries[i].val < opts.HMax
		})
		maxIdx = sort.Search(numElements, func(i int) bool {
			return entries[i].val <= opts.HMin
		})
		if maxIdx > numElements-1 {
			maxIdx = numElements - 1
		}
		if minIdx > maxIdx {
			return 0, 0, 0, 0, ErrEmptySweep
		}
		minVal, maxVal = opts.HMin, opts.HMax
	}
	return minIdx, maxIdx, minVal, maxVal, nil
}
