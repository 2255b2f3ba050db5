// Package rawvel loads raw binary velocity time-slices as produced by the
// turbulence solvers this toolkit consumes.  A component file holds
// Nx*Ny*Nz little-endian float64 values, optionally wrapped in
// Fortran-style record markers; the marker width is inferred from the file
// length.
package rawvel

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"math"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/perc/dataset"
	"github.com/grailbio/perc/lattice"
	"github.com/pkg/errors"
)

// componentExts are the velocity component file suffixes, in x, y, z order.
var componentExts = [3]string{".vx", ".vy", ".vz"}

// recordHeaderSize infers the record marker width from the file size.  A
// bare dump has no marker; Fortran unformatted output wraps the payload in a
// 4- or 8-byte length marker on both ends.
func recordHeaderSize(fileSize int64, n int) (int64, error) {
	switch fileSize - int64(n)*8 {
	case 0:
		return 0, nil
	case 8:
		return 4, nil
	case 16:
		return 8, nil
	}
	return 0, fmt.Errorf("rawvel: file size %d does not match %d float64 values with a header of 0, 4, or 8 bytes", fileSize, n)
}

// LoadComponent reads one component volume of n float64 values from path.
func LoadComponent(ctx context.Context, path string, n int) (data []float64, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	info, err := in.Stat(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	header, err := recordHeaderSize(info.Size(), n)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	r := in.Reader(ctx)
	if header > 0 {
		if _, err := io.CopyN(ioutil.Discard, r, header); err != nil {
			return nil, errors.Wrapf(err, "skip header of %s", path)
		}
	}
	buf := make([]byte, n*8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	data = make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return data, nil
}

// SlicePath returns the path of one velocity component of a time slice:
// <dir>/VELOCITY/<slice as %04d><ext>.
func SlicePath(dir string, slice, component int) string {
	return fmt.Sprintf("%s/VELOCITY/%04d%s", dir, slice, componentExts[component])
}

// averagePath returns the path of the per-plane average of a component:
// <dir>/STAT/average_vx and friends.
func averagePath(dir string, component int) string {
	return fmt.Sprintf("%s/STAT/average_v%c", dir, "xyz"[component])
}

// LoadTimeSlice loads the three velocity components of a time slice together
// with their xy-plane averages and assembles a dataset over lat with two
// 3-component channels:
//
//	Velocity          the raw components
//	AveragedVelocity  |v - avg| per component, non-finite values zeroed
//
// The averages are 2-D (one value per xy position, shared by all z planes).
func LoadTimeSlice(ctx context.Context, dir string, slice int, lat *lattice.L) (*dataset.D, error) {
	n := lat.NumVertices()
	nPlane := int(lat.Dims[0]) * int(lat.Dims[1])
	var vel, avg [3][]float64
	err := traverse.Each(3, func(c int) (err error) {
		if vel[c], err = LoadComponent(ctx, SlicePath(dir, slice, c), n); err != nil {
			return err
		}
		avg[c], err = LoadComponent(ctx, averagePath(dir, c), nPlane)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("rawvel: loaded t=%d at %dx%dx%d from %s",
		slice, lat.Dims[0], lat.Dims[1], lat.Dims[2], dir)

	velocity := make([]float64, 3*n)
	averaged := make([]float64, 3*n)
	if err := traverse.Each(3, func(c int) error {
		for i := 0; i < n; i++ {
			velocity[i*3+c] = vel[c][i]
			d := math.Abs(vel[c][i] - avg[c][i%nPlane])
			if !isFinite(d) {
				d = 0
			}
			averaged[i*3+c] = d
		}
		return nil
	}); err != nil {
		return nil, err
	}

	ds := dataset.New(lat)
	ds.Add(&dataset.Channel{Name: "Velocity", Arity: 3, Values: velocity})
	ds.Add(&dataset.Channel{Name: "AveragedVelocity", Arity: 3, Values: averaged})
	return ds, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
