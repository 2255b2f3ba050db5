// Package dataset holds named per-vertex data channels defined over a
// lattice.  A channel stores arity interleaved float64 values per vertex;
// scalar views and volume views over channels feed the percolation engine.
package dataset

import (
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/perc/lattice"
)

// Excluded is the sentinel value marking vertices that must be left out of a
// sweep (e.g. masked borders).  Any value <= Excluded is treated as excluded.
const Excluded = -math.MaxFloat64

var (
	// ErrMissingChannel is returned when a named channel does not exist.
	ErrMissingChannel = errors.New("dataset: no such channel")
	// ErrWrongArity is returned when a channel has more components than the
	// requested view supports.
	ErrWrongArity = errors.New("dataset: wrong channel arity")
	// ErrGridMismatch is returned when a channel disagrees with the lattice
	// on the vertex count.
	ErrGridMismatch = errors.New("dataset: channel does not match grid")
)

// Channel is a named per-vertex buffer.  Values holds Arity values per
// vertex, interleaved: component c of vertex i is Values[i*Arity+c].
type Channel struct {
	Name   string
	Arity  int
	Values []float64
}

// Len returns the number of vertices covered by the channel.
func (c *Channel) Len() int { return len(c.Values) / c.Arity }

// D is a set of channels sharing one lattice.
type D struct {
	Lattice  *lattice.L
	channels []*Channel
}

// New returns an empty dataset over lat.
func New(lat *lattice.L) *D {
	return &D{Lattice: lat}
}

// Add appends a channel.  A channel with the same name shadows earlier ones.
func (d *D) Add(c *Channel) {
	d.channels = append(d.channels, c)
}

// Channel returns the most recently added channel with the given name.
func (d *D) Channel(name string) (*Channel, bool) {
	for i := len(d.channels) - 1; i >= 0; i-- {
		if d.channels[i].Name == name {
			return d.channels[i], true
		}
	}
	return nil, false
}

// Scalar returns a single-component scalar view of the named channel.
func (d *D) Scalar(name string) (*Scalar, error) {
	c, ok := d.Channel(name)
	if !ok {
		return nil, errors.E(ErrMissingChannel, name)
	}
	if c.Arity != 1 {
		return nil, errors.E(ErrWrongArity, name)
	}
	if c.Len() != d.Lattice.NumVertices() {
		return nil, errors.E(ErrGridMismatch, name)
	}
	return Float64Scalar(c.Values), nil
}

// Volume returns a volume-weight view of the named channel.
func (d *D) Volume(name string) (Volume, error) {
	c, ok := d.Channel(name)
	if !ok {
		return nil, errors.E(ErrMissingChannel, name)
	}
	if c.Arity != 1 {
		return nil, errors.E(ErrWrongArity, name)
	}
	if c.Len() != d.Lattice.NumVertices() {
		return nil, errors.E(ErrGridMismatch, name)
	}
	return BufferVolume(c.Values), nil
}
