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

package percolation

import (
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// StatsTable is the columnar result of one or more accumulated runs: one row
// per emitted sample.  Aggregates are narrowed to float32/int32 here, at
// write-out, never earlier.
type StatsTable struct {
	RunID            []int32
	H                []float32
	ValueFraction    []float32
	NormalizedVolume []float32
	NumComps         []int32
	MaxNumCompsInRun []int32
	CompRatio        []float32
	LargestVol       []float32
	TotalVol         []float32
	VolRatio         []float32
	IsPercolating    []int32
}

// NumRows returns the row count.
func (t *StatsTable) NumRows() int { return len(t.H) }

// buildTable converts the accumulated cache into the output table.  The
// maximum component count is computed per run id, so rows of earlier runs
// keep their own run's maximum.
func (c *StatCache) buildTable() *StatsTable {
	n := c.NumRows()
	t := &StatsTable{
		RunID:            make([]int32, n),
		H:                make([]float32, n),
		ValueFraction:    make([]float32, n),
		NormalizedVolume: make([]float32, n),
		NumComps:         make([]int32, n),
		MaxNumCompsInRun: make([]int32, n),
		CompRatio:        make([]float32, n),
		LargestVol:       make([]float32, n),
		TotalVol:         make([]float32, n),
		VolRatio:         make([]float32, n),
		IsPercolating:    make([]int32, n),
	}
	maxComps := map[int32]int32{}
	for i := 0; i < n; i++ {
		if c.NumComps[i] > maxComps[c.RunID[i]] {
			maxComps[c.RunID[i]] = c.NumComps[i]
		}
	}
	for i := 0; i < n; i++ {
		runMax := maxComps[c.RunID[i]]
		t.RunID[i] = c.RunID[i]
		t.H[i] = float32(c.H[i])
		t.ValueFraction[i] = float32(c.NormH[i])
		t.NormalizedVolume[i] = float32(c.NormVol[i])
		t.NumComps[i] = c.NumComps[i]
		t.MaxNumCompsInRun[i] = runMax
		if runMax > 0 {
			t.CompRatio[i] = float32(c.NumComps[i]) / float32(runMax)
		}
		t.LargestVol[i] = float32(c.LargestVol[i])
		t.TotalVol[i] = float32(c.TotalVol[i])
		if c.TotalVol[i] > 0 {
			t.VolRatio[i] = float32(c.LargestVol[i] / c.TotalVol[i])
		}
		if c.Percolating[i] {
			t.IsPercolating[i] = 1
		}
	}
	return t
}

func writeFloat(w *tsv.Writer, v float32) {
	w.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
}

// WriteTSV writes the table with a header line.
func (t *StatsTable) WriteTSV(out io.Writer) error {
	w := tsv.NewWriter(out)
	w.WriteString("run_id\th\tvalue_fraction\tnormalized_volume\tnum_comps\tmax_num_comps_in_run\tcomp_ratio\tlargest_vol\ttotal_vol\tvol_ratio\tis_percolating")
	if err := w.EndLine(); err != nil {
		return err
	}
	for i := 0; i < t.NumRows(); i++ {
		w.WriteInt64(int64(t.RunID[i]))
		writeFloat(w, t.H[i])
		writeFloat(w, t.ValueFraction[i])
		writeFloat(w, t.NormalizedVolume[i])
		w.WriteInt64(int64(t.NumComps[i]))
		w.WriteInt64(int64(t.MaxNumCompsInRun[i]))
		writeFloat(w, t.CompRatio[i])
		writeFloat(w, t.LargestVol[i])
		writeFloat(w, t.TotalVol[i])
		writeFloat(w, t.VolRatio[i])
		w.WriteInt64(int64(t.IsPercolating[i]))
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
