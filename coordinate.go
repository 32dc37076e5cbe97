package shapefile

import (
	"math"

	"github.com/paulmach/orb"
)

// noDataMeasure is the threshold at or below which a measure means "no data".
const noDataMeasure = -1e38

// Dimension identifies which ordinates a Coordinate carries.
type Dimension uint8

const (
	XY   Dimension = 2
	XYM  Dimension = 3
	XYZM Dimension = 4
)

// Coordinate is a single vertex. Absent ordinates are NaN.
type Coordinate struct {
	X, Y float64
	Z    float64
	M    float64
	Dim  Dimension
}

// NewXY returns a planar coordinate.
func NewXY(x, y float64) Coordinate {
	return Coordinate{X: x, Y: y, Z: math.NaN(), M: math.NaN(), Dim: XY}
}

// NewXYM returns a planar coordinate with a measure.
func NewXYM(x, y, m float64) Coordinate {
	return Coordinate{X: x, Y: y, Z: math.NaN(), M: m, Dim: XYM}
}

// NewXYZM returns a coordinate with height and measure.
func NewXYZM(x, y, z, m float64) Coordinate {
	return Coordinate{X: x, Y: y, Z: z, M: m, Dim: XYZM}
}

// HasZ reports whether the coordinate carries a height.
func (c Coordinate) HasZ() bool { return c.Dim == XYZM }

// HasM reports whether the coordinate carries a measure.
func (c Coordinate) HasM() bool { return c.Dim == XYZM || c.Dim == XYM }

// Point returns the planar part of the coordinate.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.X, c.Y}
}

// measure applies the no-data sentinel to a raw measure value.
func measure(m float64) float64 {
	if m <= noDataMeasure {
		return math.NaN()
	}
	return m
}

// coordinateAt zips the flat ordinate arrays of a record at vertex i.
// zs and ms are nil when the file carries no heights or measures.
func coordinateAt(xy, zs, ms []float64, i int) Coordinate {
	x, y := xy[i*2], xy[i*2+1]
	switch {
	case ms != nil && zs != nil:
		return NewXYZM(x, y, zs[i], measure(ms[i]))
	case ms != nil:
		return NewXYM(x, y, measure(ms[i]))
	default:
		return NewXY(x, y)
	}
}
