package shapefile

import (
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// CRS identifies the coordinate reference system written to a FlatGeobuf header.
type CRS struct {
	Org         string // defaults to EPSG
	Code        int
	Name        string
	Description string
}

// WGS84 returns EPSG:4326.
func WGS84() *CRS {
	return &CRS{Org: "EPSG", Code: 4326, Name: "WGS 84"}
}

// WriteOptions configures FlatGeobuf export.
type WriteOptions struct {
	Name         string // layer name
	Description  string
	IncludeIndex bool // packed Hilbert R-tree, required for bbox queries by readers
	CRS          *CRS
	Logger       *zap.Logger
}

// DefaultWriteOptions returns options that write a spatial index and log nothing.
func DefaultWriteOptions() *WriteOptions {
	return &WriteOptions{
		IncludeIndex: true,
		Logger:       zap.NewNop(),
	}
}

// WriteStats reports what an export wrote.
type WriteStats struct {
	Features    int
	SkippedNull int
}

// WriteFlatGeobuf encodes fc as FlatGeobuf. Columns follow the .dbf field
// descriptors. FlatGeobuf features need a geometry, so null records are
// skipped and counted in the returned stats. Heights and measures are not written.
func WriteFlatGeobuf(w io.Writer, fc *FeatureCollection, opts *WriteOptions) (WriteStats, error) {
	if opts == nil {
		opts = DefaultWriteOptions()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var stats WriteStats
	features := make([]*Feature, 0, len(fcFeatures(fc)))
	for _, f := range fcFeatures(fc) {
		if f == nil || f.Geometry.Orb() == nil {
			stats.SkippedNull++
			continue
		}
		features = append(features, f)
	}
	if len(features) == 0 {
		return stats, fmt.Errorf("%w: no feature has a geometry", ErrNilCollection)
	}
	if stats.SkippedNull > 0 {
		log.Warn("skipping null geometries in flatgeobuf export", zap.Int("count", stats.SkippedNull))
	}

	builder := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(builder)
	header.SetGeometryType(collectionGeometryType(features))
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}

	columns := columnsForFields(fc.Fields, builder)
	if len(columns) > 0 {
		header.SetColumns(columns)
	}

	if opts.CRS != nil {
		crs := writer.NewCrs(builder)
		org := opts.CRS.Org
		if org == "" {
			org = "EPSG"
		}
		crs.SetOrg(org)
		if opts.CRS.Code > 0 {
			crs.SetCode(int32(opts.CRS.Code))
		}
		if opts.CRS.Name != "" {
			crs.SetName(opts.CRS.Name)
		}
		if opts.CRS.Description != "" {
			crs.SetDescription(opts.CRS.Description)
		}
		header.SetCrs(crs)
	}

	gen := &featureGenerator{features: features, fields: fc.Fields}
	if _, err := writer.NewWriter(header, opts.IncludeIndex, gen, nil).Write(w); err != nil {
		return stats, fmt.Errorf("write flatgeobuf: %w", err)
	}
	stats.Features = len(features)

	log.Debug("wrote flatgeobuf",
		zap.Int("features", stats.Features),
		zap.Int("columns", len(columns)),
		zap.Bool("index", opts.IncludeIndex))
	return stats, nil
}

func fcFeatures(fc *FeatureCollection) []*Feature {
	if fc == nil {
		return nil
	}
	return fc.Features
}

// collectionGeometryType is the shared FlatGeobuf type of all features, or
// Unknown when they differ, e.g. a polygon file mixing single and multi part records.
func collectionGeometryType(features []*Feature) flattypes.GeometryType {
	var t flattypes.GeometryType
	for i, f := range features {
		ft := fgbGeometryType(f.Geometry.Orb())
		if i == 0 {
			t = ft
		} else if ft != t {
			return flattypes.GeometryTypeUnknown
		}
	}
	return t
}

// featureGenerator feeds features to the FlatGeobuf writer one at a time.
type featureGenerator struct {
	features []*Feature
	fields   []Field
	index    int
}

// Generate returns the next exportable feature, or nil when done.
func (g *featureGenerator) Generate() *writer.Feature {
	for g.index < len(g.features) {
		f := g.features[g.index]
		g.index++

		builder := flatbuffers.NewBuilder(1024)
		geom := geometryToFGB(f.Geometry.Orb(), builder)
		if geom == nil {
			continue
		}

		feature := writer.NewFeature(builder)
		feature.SetGeometry(geom)
		if props := encodeProperties(g.fields, f.Attributes); len(props) > 0 {
			feature.SetProperties(props)
		}
		return feature
	}
	return nil
}

func fgbGeometryType(geom orb.Geometry) flattypes.GeometryType {
	switch geom.(type) {
	case orb.Point:
		return flattypes.GeometryTypePoint
	case orb.MultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case orb.LineString:
		return flattypes.GeometryTypeLineString
	case orb.MultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case orb.Polygon:
		return flattypes.GeometryTypePolygon
	case orb.MultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	}
	return flattypes.GeometryTypeUnknown
}

// geometryToFGB converts the orb form of a decoded record. Rings keep the
// right-hand-rule winding produced by Geometry.Orb.
func geometryToFGB(geom orb.Geometry, builder *flatbuffers.Builder) *writer.Geometry {
	g := writer.NewGeometry(builder)

	switch v := geom.(type) {
	case orb.Point:
		g.SetType(flattypes.GeometryTypePoint)
		g.SetXY([]float64{v[0], v[1]})

	case orb.MultiPoint:
		g.SetType(flattypes.GeometryTypeMultiPoint)
		g.SetXY(flatXY(v))

	case orb.LineString:
		g.SetType(flattypes.GeometryTypeLineString)
		g.SetXY(flatXY(v))

	case orb.MultiLineString:
		g.SetType(flattypes.GeometryTypeMultiLineString)
		lines := make([][]orb.Point, len(v))
		for i, ls := range v {
			lines[i] = ls
		}
		xy, ends := flatXYEnds(lines)
		g.SetXY(xy)
		g.SetEnds(ends)

	case orb.Polygon:
		g.SetType(flattypes.GeometryTypePolygon)
		xy, ends := polygonXYEnds(v)
		g.SetXY(xy)
		g.SetEnds(ends)

	case orb.MultiPolygon:
		g.SetType(flattypes.GeometryTypeMultiPolygon)
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			pg := writer.NewGeometry(builder)
			pg.SetType(flattypes.GeometryTypePolygon)
			xy, ends := polygonXYEnds(poly)
			pg.SetXY(xy)
			pg.SetEnds(ends)
			parts = append(parts, *pg)
		}
		g.SetParts(parts)

	default:
		return nil
	}
	return g
}

func flatXY(points []orb.Point) []float64 {
	xy := make([]float64, 0, len(points)*2)
	for _, p := range points {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

// flatXYEnds concatenates runs of points and records the cumulative end of each run.
func flatXYEnds(runs [][]orb.Point) ([]float64, []uint32) {
	total := 0
	for _, run := range runs {
		total += len(run)
	}
	xy := make([]float64, 0, total*2)
	ends := make([]uint32, 0, len(runs))
	var end uint32
	for _, run := range runs {
		xy = append(xy, flatXY(run)...)
		end += uint32(len(run))
		ends = append(ends, end)
	}
	return xy, ends
}

func polygonXYEnds(poly orb.Polygon) ([]float64, []uint32) {
	rings := make([][]orb.Point, len(poly))
	for i, r := range poly {
		rings[i] = r
	}
	return flatXYEnds(rings)
}
