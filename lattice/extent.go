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

package lattice

import "math"

// PercDim selects the dimension mode of the percolation test.
type PercDim int

const (
	// X, Y, Z test a single axis.
	X PercDim = iota
	Y
	Z
	// Any passes if at least one non-degenerate axis spans the lattice.
	Any
	// All passes if every non-degenerate axis spans the lattice.
	All
)

// String returns the display name of the dimension mode.
func (d PercDim) String() string {
	switch d {
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	case Any:
		return "Any"
	case All:
		return "All"
	}
	return "?"
}

// Extent is an axis-aligned bounding box in integer grid coordinates.
// The zero-ish initial state (EmptyExtent) contains no points.
type Extent struct {
	Min, Max [3]int32
}

// EmptyExtent returns a box containing no points.
func EmptyExtent() Extent {
	return Extent{
		Min: [3]int32{math.MaxInt32, math.MaxInt32, math.MaxInt32},
		Max: [3]int32{-1, -1, -1},
	}
}

// ExtentAt returns a box containing exactly the point c.
func ExtentAt(c [3]int32) Extent {
	return Extent{Min: c, Max: c}
}

// Extend grows the box to include the point c.
func (e *Extent) Extend(c [3]int32) {
	for dim := 0; dim < 3; dim++ {
		if c[dim] < e.Min[dim] {
			e.Min[dim] = c[dim]
		}
		if c[dim] > e.Max[dim] {
			e.Max[dim] = c[dim]
		}
	}
}

// Merge grows the box to include other.
func (e *Extent) Merge(other Extent) {
	for dim := 0; dim < 3; dim++ {
		if other.Min[dim] < e.Min[dim] {
			e.Min[dim] = other.Min[dim]
		}
		if other.Max[dim] > e.Max[dim] {
			e.Max[dim] = other.Max[dim]
		}
	}
}

// Size returns the inclusive side lengths of the box.
func (e Extent) Size() [3]int32 {
	return [3]int32{
		e.Max[0] - e.Min[0] + 1,
		e.Max[1] - e.Min[1] + 1,
		e.Max[2] - e.Min[2] + 1,
	}
}

// Percolates reports whether the box spans a lattice with the given vertex
// counts in the mode's dimension(s).  For Any and All, axes of size 1 are
// skipped; Any over a lattice with no non-degenerate axis never percolates.
func (e Extent) Percolates(dims [3]int32, mode PercDim) bool {
	switch mode {
	case X, Y, Z:
		return e.Min[mode] == 0 && e.Max[mode] == dims[mode]-1
	}
	percolates := mode == All
	for dim := 0; dim < 3; dim++ {
		if dims[dim] == 1 {
			continue
		}
		spansDim := e.Min[dim] == 0 && e.Max[dim] == dims[dim]-1
		if mode == All {
			percolates = percolates && spansDim
		} else {
			percolates = percolates || spansDim
		}
	}
	return percolates
}
