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
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/perc/lattice"
	"github.com/grailbio/perc/unionfind"
)

// ClusterStat summarizes one component at snapshot time.
type ClusterStat struct {
	// ID is the component representative.
	ID int32
	// Volume is the summed vertex volume.
	Volume float64
	// SizeX, SizeY, SizeZ are the inclusive bounding-box side lengths.
	SizeX, SizeY, SizeZ int32
	// SizeBBox is SizeX*SizeY*SizeZ.
	SizeBBox int64
	// Extent is the bounding box itself.
	Extent lattice.Extent
}

// Snapshot freezes cluster membership at one sample of the sweep.
type Snapshot struct {
	// Threshold is the H value of the sample the snapshot was taken at.
	Threshold float64
	// MaxVolumeRep is the representative of the largest component.
	MaxVolumeRep int32
	// Labels holds the component representative per vertex, -1 for vertices
	// not yet activated.
	Labels []int32
	// LargestMask is 1 for vertices of the largest component, else 0.
	LargestMask []float32
	// TripleMask is 0 for inactive vertices, -1 for the largest component,
	// +1 for all other components.
	TripleMask []float32
	// Clusters lists the live components in ascending representative order.
	Clusters []ClusterStat
}

// newSnapshot labels every vertex with its current representative and
// collects per-cluster records.  The label pass is sequential (Find
// compresses paths, a mutation); the mask fills run data-parallel over
// vertex shards.
func newSnapshot(threshold float64, uf *unionfind.U, maxRep int32, volPerComp []float64, extPerComp []lattice.Extent, present []bool) *Snapshot {
	n := uf.Len()
	s := &Snapshot{
		Threshold:    threshold,
		MaxVolumeRep: maxRep,
		Labels:       make([]int32, n),
		LargestMask:  make([]float32, n),
		TripleMask:   make([]float32, n),
	}
	for id := 0; id < n; id++ {
		s.Labels[id] = uf.Find(int32(id))
	}

	parallelism := runtime.NumCPU()
	err := traverse.Each(parallelism, func(job int) error {
		begin := job * n / parallelism
		end := (job + 1) * n / parallelism
		for id := begin; id < end; id++ {
			label := s.Labels[id]
			switch {
			case label < 0:
				// inactive: both masks stay 0
			case label == maxRep:
				s.LargestMask[id] = 1
				s.TripleMask[id] = -1
			default:
				s.TripleMask[id] = 1
			}
		}
		return nil
	})
	if err != nil {
		log.Panicf("percolation: snapshot mask fill: %v", err)
	}

	for id := int32(0); int(id) < n; id++ {
		if !present[id] {
			continue
		}
		size := extPerComp[id].Size()
		s.Clusters = append(s.Clusters, ClusterStat{
			ID:       id,
			Volume:   volPerComp[id],
			SizeX:    size[0],
			SizeY:    size[1],
			SizeZ:    size[2],
			SizeBBox: int64(size[0]) * int64(size[1]) * int64(size[2]),
			Extent:   extPerComp[id],
		})
	}
	return s
}

// WriteClusterTSV writes the per-cluster table with a header line.
func (s *Snapshot) WriteClusterTSV(out io.Writer) error {
	w := tsv.NewWriter(out)
	w.WriteString("cluster_id\tvolume\tsize_x\tsize_y\tsize_z\tsize_bbox")
	if err := w.EndLine(); err != nil {
		return err
	}
	for _, c := range s.Clusters {
		w.WriteInt64(int64(c.ID))
		writeFloat(w, float32(c.Volume))
		w.WriteInt64(int64(c.SizeX))
		w.WriteInt64(int64(c.SizeY))
		w.WriteInt64(int64(c.SizeZ))
		w.WriteInt64(c.SizeBBox)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
