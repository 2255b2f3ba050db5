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

// Package lattice models an axis-aligned 3-D structured grid with optional
// per-axis periodicity.  Vertices are identified by dense int32 ids in
// z-major order: id = x + Nx*y + Nx*Ny*z.
package lattice

import (
	"math"

	"github.com/grailbio/base/log"
)

// L is a structured lattice.  Degenerate axes (size 1) are allowed.
type L struct {
	// Dims holds the vertex counts (Nx, Ny, Nz).
	Dims [3]int32
	// Periodic marks axes that wrap around.
	Periodic [3]bool
}

// New returns a lattice with the given vertex counts and periodicity flags.
// The total vertex count must fit an int32 id.
func New(nx, ny, nz int32, px, py, pz bool) *L {
	if nx < 1 || ny < 1 || nz < 1 {
		log.Panicf("lattice: nonpositive dimensions (%d, %d, %d)", nx, ny, nz)
	}
	if int64(nx)*int64(ny)*int64(nz) > math.MaxInt32 {
		log.Panicf("lattice: %d x %d x %d vertices exceed int32 ids", nx, ny, nz)
	}
	return &L{
		Dims:     [3]int32{nx, ny, nz},
		Periodic: [3]bool{px, py, pz},
	}
}

// NumVertices returns Nx*Ny*Nz.
func (l *L) NumVertices() int {
	return int(l.Dims[0]) * int(l.Dims[1]) * int(l.Dims[2])
}

// LinearOf returns the id of the vertex at (x, y, z).
func (l *L) LinearOf(x, y, z int32) int32 {
	return x + l.Dims[0]*(y+l.Dims[1]*z)
}

// CoordOf returns the (x, y, z) coordinate of id.
func (l *L) CoordOf(id int32) [3]int32 {
	nx, ny := l.Dims[0], l.Dims[1]
	return [3]int32{id % nx, (id / nx) % ny, id / (nx * ny)}
}

// Neighbors appends the ids of the up-to-six axis neighbors of id to buf and
// returns the extended slice.  On periodic axes neighbors wrap around; on
// non-periodic axes off-grid neighbors are omitted.  A periodic axis of size
// 1 contributes no neighbors (the vertex would be its own neighbor).
func (l *L) Neighbors(id int32, buf []int32) []int32 {
	c := l.CoordOf(id)
	for dim := 0; dim < 3; dim++ {
		n := l.Dims[dim]
		if n == 1 {
			continue
		}
		stride := int32(1)
		if dim > 0 {
			stride = l.Dims[0]
		}
		if dim > 1 {
			stride *= l.Dims[1]
		}
		if c[dim] > 0 {
			buf = append(buf, id-stride)
		} else if l.Periodic[dim] {
			buf = append(buf, id+(n-1)*stride)
		}
		if c[dim] < n-1 {
			buf = append(buf, id+stride)
		} else if l.Periodic[dim] {
			buf = append(buf, id-(n-1)*stride)
		}
	}
	return buf
}
