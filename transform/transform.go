// Package transform derives the percolation scalar from velocity data: a
// pointwise combination of the velocity and its per-plane mean fluctuation,
// divided by a 2-D RMS mask.  Positions where the mask is zero (undefined
// statistics, typically masked walls) are set to the exclusion sentinel so
// the sweep skips them.
package transform

import (
	"math"
	"path"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/perc/dataset"
)

// Variant combines the mean fluctuation and raw velocity of one vertex into
// a scalar.  avg holds the per-component |v - mean| channel, vel the raw
// components.
type Variant func(avg, vel [3]float64) float64

// Variants maps scalar names, as encoded in RMS mask file names, to their
// definitions: the Reynolds-stress component products over the fluctuations,
// the v2-w2 anisotropy, and the kinetic energies.  Names are case
// sensitive: K is built from the raw velocity (no average), k from the
// fluctuations; both still divide by the mask.
var Variants = map[string]Variant{
	"uv":   func(avg, _ [3]float64) float64 { return avg[0] * avg[1] },
	"uw":   func(avg, _ [3]float64) float64 { return avg[0] * avg[2] },
	"vw":   func(avg, _ [3]float64) float64 { return avg[1] * avg[2] },
	"v2w2": func(avg, _ [3]float64) float64 { return avg[0]*avg[0] - avg[1]*avg[1] },
	"K": func(_, vel [3]float64) float64 {
		return 0.5 * (vel[0]*vel[0] + vel[1]*vel[1])
	},
	"k": func(avg, _ [3]float64) float64 {
		return 0.5 * (avg[0]*avg[0] + avg[1]*avg[1] + avg[2]*avg[2])
	},
}

// VariantForFile picks the variant matching an RMS mask file name.  The
// scalar name is the part of the base name before the first underscore,
// e.g. "uv_rms" selects uv.
func VariantForFile(p string) (string, Variant, error) {
	name := path.Base(p)
	if i := strings.IndexByte(name, '_'); i >= 0 {
		name = name[:i]
	}
	v, ok := Variants[name]
	if !ok {
		return "", nil, errors.New("transform: no scalar variant for file " + p)
	}
	return name, v, nil
}

type Opts struct {
	// NegInfForUndefined marks zero-RMS positions with the exclusion
	// sentinel; otherwise they get UndefinedValue.
	NegInfForUndefined bool
	// UndefinedValue substitutes for zero-RMS positions when they are kept
	// in the sweep.
	UndefinedValue float64
}

var DefaultOpts = Opts{NegInfForUndefined: true, UndefinedValue: -1}

// ScalarName is the channel name Apply adds to the dataset.
const ScalarName = "PercolationScalar"

// Apply computes |variant| / rms per vertex and adds the result to ds as the
// PercolationScalar channel.  rms holds one value per xy position, shared by
// all z planes.  Planes are processed in parallel.
func Apply(ds *dataset.D, rms []float64, variant Variant, opts Opts) (*dataset.Channel, error) {
	vel, ok := ds.Channel("Velocity")
	if !ok {
		return nil, errors.E(dataset.ErrMissingChannel, "Velocity")
	}
	avg, ok := ds.Channel("AveragedVelocity")
	if !ok {
		return nil, errors.E(dataset.ErrMissingChannel, "AveragedVelocity")
	}
	if vel.Arity != 3 || avg.Arity != 3 {
		return nil, errors.E(dataset.ErrWrongArity, "Velocity/AveragedVelocity")
	}
	dims := ds.Lattice.Dims
	n := ds.Lattice.NumVertices()
	nPlane := int(dims[0]) * int(dims[1])
	if vel.Len() != n || avg.Len() != n {
		return nil, errors.E(dataset.ErrGridMismatch, "Velocity/AveragedVelocity")
	}
	if len(rms) != nPlane {
		return nil, errors.E(dataset.ErrGridMismatch, "rms mask")
	}

	out := &dataset.Channel{Name: ScalarName, Arity: 1, Values: make([]float64, n)}
	err := traverse.Each(int(dims[2]), func(z int) error {
		for xy := 0; xy < nPlane; xy++ {
			xyz := xy + z*nPlane
			r := rms[xy]
			if r < 0 {
				log.Panicf("transform: negative rms %g at plane position %d", r, xy)
			}
			if r == 0 {
				if opts.NegInfForUndefined {
					out.Values[xyz] = dataset.Excluded
				} else {
					out.Values[xyz] = opts.UndefinedValue
				}
				continue
			}
			var a, v [3]float64
			copy(a[:], avg.Values[xyz*3:])
			copy(v[:], vel.Values[xyz*3:])
			out.Values[xyz] = math.Abs(variant(a, v)) / r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ds.Add(out)
	return out, nil
}
