package shapefile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ShapeType is the shape type tag stored in the file and record headers.
type ShapeType int32

const (
	ShapeNull        ShapeType = 0
	ShapePoint       ShapeType = 1
	ShapePolyLine    ShapeType = 3
	ShapePolygon     ShapeType = 5
	ShapeMultiPoint  ShapeType = 8
	ShapePointZ      ShapeType = 11
	ShapePolyLineZ   ShapeType = 13
	ShapePolygonZ    ShapeType = 15
	ShapeMultiPointZ ShapeType = 18
	ShapePointM      ShapeType = 21
	ShapePolyLineM   ShapeType = 23
	ShapePolygonM    ShapeType = 25
	ShapeMultiPointM ShapeType = 28
)

var shapeTypeNames = map[ShapeType]string{
	ShapeNull:        "Null",
	ShapePoint:       "Point",
	ShapePolyLine:    "PolyLine",
	ShapePolygon:     "Polygon",
	ShapeMultiPoint:  "MultiPoint",
	ShapePointZ:      "PointZ",
	ShapePolyLineZ:   "PolyLineZ",
	ShapePolygonZ:    "PolygonZ",
	ShapeMultiPointZ: "MultiPointZ",
	ShapePointM:      "PointM",
	ShapePolyLineM:   "PolyLineM",
	ShapePolygonM:    "PolygonM",
	ShapeMultiPointM: "MultiPointM",
}

// String returns the shapefile name of the type, or "Unknown".
func (t ShapeType) String() string {
	if name, ok := shapeTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Dimension returns the coordinate layout implied by the shape type.
// Tags below 10 are planar, the 10s carry height and measure, the 20s measure only.
func (t ShapeType) Dimension() Dimension {
	switch {
	case t <= 0:
		return 0
	case t < 10:
		return XY
	case t < 20:
		return XYZM
	case t < 30:
		return XYM
	}
	return 0
}

// HasZ reports whether records of this type store heights.
func (t ShapeType) HasZ() bool { return t.Dimension() == XYZM }

// HasM reports whether records of this type may store measures.
func (t ShapeType) HasM() bool {
	d := t.Dimension()
	return d == XYZM || d == XYM
}

// Kind returns the geometry family of the shape type.
func (t ShapeType) Kind() Kind {
	switch t {
	case ShapePoint, ShapePointZ, ShapePointM:
		return KindPoint
	case ShapeMultiPoint, ShapeMultiPointZ, ShapeMultiPointM:
		return KindMultiPoint
	case ShapePolyLine, ShapePolyLineZ, ShapePolyLineM:
		return KindPolyLine
	case ShapePolygon, ShapePolygonZ, ShapePolygonM:
		return KindPolygon
	}
	return KindNull
}

// Kind discriminates the Geometry variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindPoint
	KindMultiPoint
	KindPolyLine
	KindPolygon
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "Point"
	case KindMultiPoint:
		return "MultiPoint"
	case KindPolyLine:
		return "PolyLine"
	case KindPolygon:
		return "Polygon"
	}
	return "Null"
}

// LineString is an ordered run of vertices. It is not closed by construction.
type LineString []Coordinate

// Orb converts the line to an orb.LineString.
func (ls LineString) Orb() orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, c := range ls {
		out[i] = c.Point()
	}
	return out
}

// PolygonPart is one exterior ring and the holes it owns.
type PolygonPart struct {
	Exterior  LinearRing
	Interiors []LinearRing
}

// Orb converts the part to an orb.Polygon with right-hand-rule winding.
func (p PolygonPart) Orb() orb.Polygon {
	poly := make(orb.Polygon, 0, 1+len(p.Interiors))
	poly = append(poly, p.Exterior.Orb())
	for _, hole := range p.Interiors {
		poly = append(poly, hole.Orb())
	}
	return poly
}

// Geometry is a decoded shape record. Which accessors carry data depends on Kind.
// A Geometry and the slices it returns must be treated as read-only.
type Geometry struct {
	Type ShapeType
	Kind Kind

	points  []Coordinate
	lines   []LineString
	parts   []PolygonPart
	orphans []LinearRing

	hasZ bool
	hasM bool
}

func newGeometry(t ShapeType, k Kind) Geometry {
	return Geometry{Type: t, Kind: k, hasZ: t.HasZ(), hasM: t.HasM()}
}

// NewNull returns the geometry of a record without shape data.
func NewNull() Geometry {
	return newGeometry(ShapeNull, KindNull)
}

// NewPoint returns a point geometry.
func NewPoint(t ShapeType, c Coordinate) Geometry {
	g := newGeometry(t, KindPoint)
	g.points = []Coordinate{c}
	return g
}

// NewMultiPoint returns a multipoint geometry.
func NewMultiPoint(t ShapeType, points []Coordinate) Geometry {
	g := newGeometry(t, KindMultiPoint)
	g.points = points
	return g
}

// NewPolyLine returns a polyline geometry with one line per part.
func NewPolyLine(t ShapeType, lines []LineString) Geometry {
	g := newGeometry(t, KindPolyLine)
	g.lines = lines
	return g
}

// NewPolygon returns a polygon geometry. orphans holds hole rings that no
// exterior ring contains; they are kept for inspection but not serialized.
func NewPolygon(t ShapeType, parts []PolygonPart, orphans []LinearRing) Geometry {
	g := newGeometry(t, KindPolygon)
	g.parts = parts
	g.orphans = orphans
	return g
}

// HasZ reports whether the vertices carry heights.
func (g Geometry) HasZ() bool { return g.hasZ }

// HasM reports whether the vertices carry measures.
func (g Geometry) HasM() bool { return g.hasM }

// IsNull reports whether the record had no shape.
func (g Geometry) IsNull() bool { return g.Kind == KindNull }

// Point returns the coordinate of a point geometry.
func (g Geometry) Point() (Coordinate, bool) {
	if g.Kind != KindPoint || len(g.points) == 0 {
		return Coordinate{}, false
	}
	return g.points[0], true
}

// Points returns the vertices of a point or multipoint geometry.
func (g Geometry) Points() []Coordinate { return g.points }

// Lines returns the parts of a polyline geometry.
func (g Geometry) Lines() []LineString { return g.lines }

// Parts returns the parts of a polygon geometry.
func (g Geometry) Parts() []PolygonPart { return g.parts }

// OrphanHoles returns polygon holes that were not assigned to any part.
func (g Geometry) OrphanHoles() []LinearRing { return g.orphans }

// Orb converts the geometry to its orb equivalent. Polylines and polygons with
// a single part become LineString and Polygon, otherwise the Multi types.
// A null geometry returns nil.
func (g Geometry) Orb() orb.Geometry {
	switch g.Kind {
	case KindPoint:
		if len(g.points) == 0 {
			return nil
		}
		return g.points[0].Point()

	case KindMultiPoint:
		mp := make(orb.MultiPoint, len(g.points))
		for i, c := range g.points {
			mp[i] = c.Point()
		}
		return mp

	case KindPolyLine:
		if len(g.lines) == 1 {
			return g.lines[0].Orb()
		}
		if len(g.lines) == 0 {
			return orb.LineString{}
		}
		mls := make(orb.MultiLineString, len(g.lines))
		for i, ls := range g.lines {
			mls[i] = ls.Orb()
		}
		return mls

	case KindPolygon:
		if len(g.parts) == 1 {
			return g.parts[0].Orb()
		}
		if len(g.parts) == 0 {
			return orb.Polygon{}
		}
		mp := make(orb.MultiPolygon, len(g.parts))
		for i, part := range g.parts {
			mp[i] = part.Orb()
		}
		return mp
	}
	return nil
}

// GeoJSON returns the GeoJSON geometry object. Null geometries marshal as null.
func (g Geometry) GeoJSON() *geojson.Geometry {
	return geojson.NewGeometry(g.Orb())
}

// Bound returns the planar bounding box of the geometry.
func (g Geometry) Bound() orb.Bound {
	o := g.Orb()
	if o == nil {
		return orb.Bound{}
	}
	return o.Bound()
}
