package dataset

// Scalar is a single-component per-vertex channel tagged by element type.
// The sweep dispatches on the concrete element slice once, at table-build
// time, instead of converting per vertex through an interface.
type Scalar struct {
	f64 []float64
	f32 []float32
	i16 []int16
}

// Float64Scalar wraps v as a scalar channel.
func Float64Scalar(v []float64) *Scalar { return &Scalar{f64: v} }

// Float32Scalar wraps v as a scalar channel.
func Float32Scalar(v []float32) *Scalar { return &Scalar{f32: v} }

// Int16Scalar wraps v as a scalar channel.
func Int16Scalar(v []int16) *Scalar { return &Scalar{i16: v} }

// Float64s returns the underlying slice if the element type is float64.
func (s *Scalar) Float64s() []float64 { return s.f64 }

// Float32s returns the underlying slice if the element type is float32.
func (s *Scalar) Float32s() []float32 { return s.f32 }

// Int16s returns the underlying slice if the element type is int16.
func (s *Scalar) Int16s() []int16 { return s.i16 }

// Len returns the vertex count of the channel.
func (s *Scalar) Len() int {
	switch {
	case s.f64 != nil:
		return len(s.f64)
	case s.f32 != nil:
		return len(s.f32)
	default:
		return len(s.i16)
	}
}

// At returns the value of vertex id as float64.  Conversion from float32 and
// int16 is exact.
func (s *Scalar) At(id int) float64 {
	switch {
	case s.f64 != nil:
		return s.f64[id]
	case s.f32 != nil:
		return float64(s.f32[id])
	default:
		return float64(s.i16[id])
	}
}

// MinMax returns the smallest and largest raw values of the channel,
// excluded sentinels included.  An empty channel returns (0, 0).
func (s *Scalar) MinMax() (min, max float64) {
	n := s.Len()
	if n == 0 {
		return 0, 0
	}
	min, max = s.At(0), s.At(0)
	for i := 1; i < n; i++ {
		v := s.At(i)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Volume maps a vertex id to its non-negative volume weight.
type Volume interface {
	// At returns the weight of vertex id.
	At(id int32) float64
	// Len returns the vertex count covered, or -1 when the volume is defined
	// for any id.
	Len() int
}

// BufferVolume is a per-vertex volume channel.
type BufferVolume []float64

// At implements Volume.
func (v BufferVolume) At(id int32) float64 { return v[id] }

// Len implements Volume.
func (v BufferVolume) Len() int { return len(v) }

// ConstVolume is an analytic volume channel assigning the same weight to
// every vertex.
type ConstVolume float64

// At implements Volume.
func (v ConstVolume) At(int32) float64 { return float64(v) }

// Len implements Volume.
func (v ConstVolume) Len() int { return -1 }
