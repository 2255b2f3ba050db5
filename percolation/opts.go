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
	"github.com/grailbio/base/errors"
	"github.com/grailbio/perc/lattice"
)

// SampleMode selects how sample thresholds are placed along the sweep.
type SampleMode int

const (
	// ValueBased spaces samples uniformly in H.  Thresholds that fall in a
	// gap of the values are all emitted once the first vertex below them is
	// activated, repeating that step's aggregates.
	ValueBased SampleMode = iota
	// VoxelBased spaces samples uniformly in the count of activated
	// vertices.
	VoxelBased
)

// WindowMode selects how the swept H range is determined.
type WindowMode int

const (
	// PercentOfEnds trims Percent of the sweep positions from the high end,
	// and with CutBothEnds also from the low end.
	PercentOfEnds WindowMode = iota
	// Absolute sweeps the explicit value range [HMin, HMax].
	Absolute
)

type Opts struct {
	SampleMode SampleMode
	// NumSamples is the target sample count (>= 1).
	NumSamples int

	Window WindowMode
	// HMin, HMax bound the sweep for the Absolute window mode.
	HMin, HMax float64
	// Percent is the percentage trimmed for the PercentOfEnds window mode.
	Percent float64
	// CutBothEnds also trims the low end, for comparing super-level against
	// sub-level sets.
	CutBothEnds bool

	// PercDim is the dimension mode of the percolation test.
	PercDim lattice.PercDim

	// SnapshotAt is the sample index at which to freeze cluster output, or
	// -1 to disable.
	SnapshotAt int
	// StopEarly halts the sweep once the snapshot has been emitted.
	StopEarly bool

	// RunID is the caller-supplied iteration id written into each row.
	RunID int32
}

// DefaultOpts mirrors the defaults of the interactive tool this engine was
// extracted from.
var DefaultOpts = Opts{
	SampleMode:  ValueBased,
	NumSamples:  100,
	Window:      PercentOfEnds,
	Percent:     0,
	CutBothEnds: false,
	PercDim:     lattice.X,
	SnapshotAt:  -1,
	StopEarly:   false,
}

func (o Opts) validate() error {
	if o.NumSamples < 1 {
		return errors.E(ErrInvalidConfig, "numSamples < 1")
	}
	switch o.Window {
	case Absolute:
		if o.HMax < o.HMin {
			return errors.E(ErrInvalidConfig, "window reversed")
		}
	case PercentOfEnds:
		if o.Percent < 0 || o.Percent > 100 {
			return errors.E(ErrInvalidConfig, "percentage outside [0, 100]")
		}
	default:
		return errors.E(ErrInvalidConfig, "unknown window mode")
	}
	if o.SampleMode != ValueBased && o.SampleMode != VoxelBased {
		return errors.E(ErrInvalidConfig, "unknown sample mode")
	}
	return nil
}
