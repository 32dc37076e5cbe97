package shapefile

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// ShapeReader decodes geometry records from a .shp buffer using the offsets
// stored in the matching .shx buffer.
type ShapeReader struct {
	shp    *cursor
	shx    *cursor
	header Header
	count  int

	// derived once from the file-level shape type
	hasZ bool
	hasM bool

	log          *zap.Logger
	onOrphanHole func(*OrphanHoleError)
}

func newShapeReader(shp, shx []byte, opts *Options) (*ShapeReader, error) {
	opts = opts.withDefaults()
	r := &ShapeReader{
		shp:          newCursor("shp", shp),
		shx:          newCursor("shx", shx),
		log:          opts.Logger,
		onOrphanHole: opts.OnOrphanHole,
	}

	shpHeader, err := readFileHeader(r.shp)
	if err != nil {
		return nil, err
	}
	shxHeader, err := readFileHeader(r.shx)
	if err != nil {
		return nil, err
	}
	if shpHeader.ShapeType != shxHeader.ShapeType {
		return nil, fmt.Errorf("%w: shp is %s(%d), shx is %s(%d)", ErrShapeTypeMismatch,
			shpHeader.ShapeType, int32(shpHeader.ShapeType), shxHeader.ShapeType, int32(shxHeader.ShapeType))
	}

	count, truncated := indexRecordCount(shxHeader.FileLength)
	if truncated {
		r.log.Warn("shx length is not a whole number of index entries",
			zap.Int("file_length", shxHeader.FileLength),
			zap.Int("records", count))
	}

	r.header = shpHeader
	r.count = count
	r.hasZ = shpHeader.ShapeType.HasZ()
	r.hasM = shpHeader.ShapeType.HasM()
	return r, nil
}

// Header returns the .shp file header.
func (r *ShapeReader) Header() Header { return r.header }

// RecordCount returns the number of records listed in the index.
func (r *ShapeReader) RecordCount() int { return r.count }

// ReadGeometry decodes the record at the zero-based index.
func (r *ShapeReader) ReadGeometry(index int) (Geometry, error) {
	if index < 0 || index >= r.count {
		return Geometry{}, fmt.Errorf("%w: record %d, count %d", ErrIndexOutOfRange, index, r.count)
	}

	offset, err := r.recordOffset(index)
	if err != nil {
		return Geometry{}, err
	}

	r.shp.reset()
	if err := r.shp.seek(offset); err != nil {
		return Geometry{}, fmt.Errorf("record %d: %w", index, err)
	}
	rec := readRecordHeader(r.shp)
	if err := r.shp.err(); err != nil {
		return Geometry{}, fmt.Errorf("record %d: %w", index, err)
	}

	if rec.ShapeType != r.header.ShapeType {
		if rec.ShapeType == ShapeNull {
			return NewNull(), nil
		}
		return Geometry{}, fmt.Errorf("%w: record %d is %s(%d), expected %s(%d)", ErrShapeTypeMismatch, index,
			rec.ShapeType, int32(rec.ShapeType), r.header.ShapeType, int32(r.header.ShapeType))
	}

	// content length counts the shape type tag already consumed
	end := offset + recordHeaderLen + rec.ContentLength

	var g Geometry
	switch rec.ShapeType.Kind() {
	case KindPoint:
		g = r.readPoint(rec, end)
	case KindMultiPoint:
		g = r.readMultiPoint(rec, end)
	case KindPolyLine:
		g = r.readPolyLine(rec, end)
	case KindPolygon:
		g = r.readPolygon(index, rec, end)
	default:
		return Geometry{}, fmt.Errorf("%w: %s(%d)", ErrUnsupportedShape, rec.ShapeType, int32(rec.ShapeType))
	}

	if err := r.shp.err(); err != nil {
		return Geometry{}, fmt.Errorf("record %d: %w", index, err)
	}
	return g, nil
}

// recordOffset reads the byte offset of a record from the index.
func (r *ShapeReader) recordOffset(index int) (int, error) {
	r.shx.reset()
	if err := r.shx.seek(fileHeaderLen + index*indexEntryLen); err != nil {
		return 0, fmt.Errorf("record %d: %w", index, err)
	}
	offset := int(r.shx.int32(binary.BigEndian)) * 2
	if err := r.shx.err(); err != nil {
		return 0, fmt.Errorf("record %d: %w", index, err)
	}
	return offset, nil
}

// hasMeasureBlock reports whether the record still has room for a measure
// range and n measures. The block is optional in Z records.
func (r *ShapeReader) hasMeasureBlock(end, n int) bool {
	return r.shp.tell()+16+n*8 <= end
}

// readZM reads the optional height and measure arrays of n vertices, skipping
// their min/max ranges. Missing measures in a Z record come back as NaN.
// Nothing is allocated once the cursor has failed, since n is untrusted.
func (r *ShapeReader) readZM(n, end int) (zs, ms []float64) {
	le := binary.LittleEndian
	if r.shp.err() != nil {
		return nil, nil
	}
	if r.hasZ {
		r.shp.skip(16)
		zs = r.shp.float64s(n, le)
		if r.shp.err() != nil {
			return nil, nil
		}
	}
	if r.hasM {
		if r.hasZ && !r.hasMeasureBlock(end, n) {
			ms = make([]float64, n)
			for i := range ms {
				ms[i] = math.NaN()
			}
			return zs, ms
		}
		r.shp.skip(16)
		ms = r.shp.float64s(n, le)
	}
	return zs, ms
}

func (r *ShapeReader) readPoint(rec recordHeader, end int) Geometry {
	le := binary.LittleEndian
	x := r.shp.float64(le)
	y := r.shp.float64(le)

	var c Coordinate
	switch {
	case r.hasZ:
		z := r.shp.float64(le)
		m := math.NaN()
		if r.shp.err() == nil && r.shp.tell()+8 <= end {
			m = measure(r.shp.float64(le))
		}
		c = NewXYZM(x, y, z, m)
	case r.hasM:
		c = NewXYM(x, y, measure(r.shp.float64(le)))
	default:
		c = NewXY(x, y)
	}
	return NewPoint(rec.ShapeType, c)
}

func (r *ShapeReader) readMultiPoint(rec recordHeader, end int) Geometry {
	le := binary.LittleEndian
	r.shp.skip(32) // bounding box
	n := int(r.shp.int32(le))
	xy := r.shp.float64s(n*2, le)
	zs, ms := r.readZM(n, end)
	if r.shp.err() != nil {
		return Geometry{}
	}

	points := make([]Coordinate, n)
	for i := range points {
		points[i] = coordinateAt(xy, zs, ms, i)
	}
	return NewMultiPoint(rec.ShapeType, points)
}

func (r *ShapeReader) readPolyLine(rec recordHeader, end int) Geometry {
	parts := readParts(r, end, func(coords []Coordinate) LineString {
		return LineString(coords)
	})
	return NewPolyLine(rec.ShapeType, parts)
}

func (r *ShapeReader) readPolygon(index int, rec recordHeader, end int) Geometry {
	rings := readParts(r, end, func(coords []Coordinate) LinearRing {
		return LinearRing(coords)
	})
	parts, orphans := buildPolygonParts(rings)
	for _, hole := range orphans {
		oerr := &OrphanHoleError{Record: index, Ring: hole}
		r.log.Warn("polygon hole outside every exterior ring",
			zap.Int("record", index),
			zap.Int("vertices", len(hole)),
			zap.Error(oerr))
		if r.onOrphanHole != nil {
			r.onOrphanHole(oerr)
		}
	}
	return NewPolygon(rec.ShapeType, parts, orphans)
}

// readParts reads the parts layout shared by polylines and polygons and
// splits the vertices into one container per part using alloc.
func readParts[T any](r *ShapeReader, end int, alloc func([]Coordinate) T) []T {
	le := binary.LittleEndian
	r.shp.skip(32) // bounding box
	numParts := int(r.shp.int32(le))
	numPoints := int(r.shp.int32(le))
	starts := r.shp.int32s(numParts, le)
	xy := r.shp.float64s(numPoints*2, le)
	zs, ms := r.readZM(numPoints, end)
	if r.shp.err() != nil {
		return nil
	}

	parts := make([]T, 0, numParts)
	for p := 0; p < numParts; p++ {
		start := int(starts[p])
		stop := numPoints
		if p < numParts-1 {
			stop = int(starts[p+1])
		}
		if start < 0 || stop > numPoints || start > stop {
			r.shp.fail = fmt.Errorf("%w: part %d spans vertices %d..%d of %d", ErrInvalidFormat, p, start, stop, numPoints)
			return nil
		}
		coords := make([]Coordinate, 0, stop-start)
		for i := start; i < stop; i++ {
			coords = append(coords, coordinateAt(xy, zs, ms, i))
		}
		parts = append(parts, alloc(coords))
	}
	return parts
}
