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
	"runtime"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/perc/lattice"
)

// LocalGlobalStats classifies the clusters of a snapshot against a regular
// block partition of the lattice: a cluster is local when its bounding box
// lies strictly inside the interior of a single block, global when it
// straddles block boundaries.
type LocalGlobalStats struct {
	// ClusterClass per vertex: 0 inactive, -1 in a local cluster, +1 in a
	// global cluster.
	ClusterClass []float32
	// PositionClass per vertex: -1 when the vertex itself sits in the local
	// interior of its block, +1 otherwise.
	PositionClass []float32

	LocalClusters, GlobalClusters int
	LocalVoxels, GlobalVoxels     int

	// GlobalClusterPercent is 100 * global / (local + global) clusters.
	GlobalClusterPercent float32
	// GlobalVoxelPercent is the percentage of labeled voxels in global
	// clusters.
	GlobalVoxelPercent float32
}

// blockInterior returns the inclusive coordinate range of the locally owned
// part of the block containing c: the block shrunk by one voxel on every
// side that is not a lattice boundary.
func blockInterior(c [3]int32, blockSize, dims [3]int32) (lo, hi [3]int32) {
	for dim := 0; dim < 3; dim++ {
		lo[dim] = (c[dim] / blockSize[dim]) * blockSize[dim]
		hi[dim] = lo[dim] + blockSize[dim]
		if lo[dim] > 0 {
			lo[dim]++
		}
		if hi[dim] < dims[dim] {
			hi[dim] -= 2
		} else {
			hi[dim]--
		}
	}
	return lo, hi
}

func sameBlock(a, b [3]int32, blockSize [3]int32) bool {
	for dim := 0; dim < 3; dim++ {
		if a[dim]/blockSize[dim] != b[dim]/blockSize[dim] {
			return false
		}
	}
	return true
}

// ClassifyLocalGlobal computes local/global statistics for a snapshot.
func ClassifyLocalGlobal(snap *Snapshot, lat *lattice.L, blockSize [3]int32) (*LocalGlobalStats, error) {
	for dim := 0; dim < 3; dim++ {
		if blockSize[dim] < 1 {
			return nil, errors.E(ErrInvalidConfig, "nonpositive block size")
		}
	}
	n := len(snap.Labels)
	stats := &LocalGlobalStats{
		ClusterClass:  make([]float32, n),
		PositionClass: make([]float32, n),
	}

	// Classify each cluster once, from its extent.
	isLocal := make(map[int32]bool, len(snap.Clusters))
	for _, c := range snap.Clusters {
		local := false
		if sameBlock(c.Extent.Min, c.Extent.Max, blockSize) {
			lo, hi := blockInterior(c.Extent.Min, blockSize, lat.Dims)
			local = true
			for dim := 0; dim < 3; dim++ {
				if lo[dim] > c.Extent.Min[dim] || hi[dim] < c.Extent.Max[dim] {
					local = false
					break
				}
			}
		}
		isLocal[c.ID] = local
		if local {
			stats.LocalClusters++
		} else {
			stats.GlobalClusters++
		}
	}

	// Per-vertex channels and voxel counts, sharded.
	parallelism := runtime.NumCPU()
	var mu sync.Mutex
	err := traverse.Each(parallelism, func(job int) error {
		begin := job * n / parallelism
		end := (job + 1) * n / parallelism
		localVoxels, globalVoxels := 0, 0
		for id := begin; id < end; id++ {
			label := snap.Labels[id]
			if label >= 0 {
				if isLocal[label] {
					stats.ClusterClass[id] = -1
					localVoxels++
				} else {
					stats.ClusterClass[id] = 1
					globalVoxels++
				}
			}
			c := lat.CoordOf(int32(id))
			lo, hi := blockInterior(c, blockSize, lat.Dims)
			posLocal := true
			for dim := 0; dim < 3; dim++ {
				if c[dim] < lo[dim] || c[dim] > hi[dim] {
					posLocal = false
					break
				}
			}
			if posLocal {
				stats.PositionClass[id] = -1
			} else {
				stats.PositionClass[id] = 1
			}
		}
		mu.Lock()
		stats.LocalVoxels += localVoxels
		stats.GlobalVoxels += globalVoxels
		mu.Unlock()
		return nil
	})
	if err != nil {
		log.Panicf("percolation: local/global vertex pass: %v", err)
	}

	if total := stats.LocalClusters + stats.GlobalClusters; total > 0 {
		stats.GlobalClusterPercent = 100 * float32(stats.GlobalClusters) / float32(total)
	}
	if total := stats.LocalVoxels + stats.GlobalVoxels; total > 0 {
		stats.GlobalVoxelPercent = 100 * float32(stats.GlobalVoxels) / float32(total)
	}
	return stats, nil
}
