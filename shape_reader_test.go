package shapefile

import (
	"encoding/binary"
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func openShapes(t *testing.T, fileType ShapeType, records []testRecord, opts *Options) *ShapeReader {
	t.Helper()
	shp, shx := buildShapefile(fileType, records)
	r, err := newShapeReader(shp, shx, opts)
	if err != nil {
		t.Fatalf("newShapeReader failed: %v", err)
	}
	return r
}

func readGeometry(t *testing.T, r *ShapeReader, index int) Geometry {
	t.Helper()
	g, err := r.ReadGeometry(index)
	if err != nil {
		t.Fatalf("ReadGeometry(%d) failed: %v", index, err)
	}
	return g
}

func TestShapeReader_Points(t *testing.T) {
	r := openShapes(t, ShapePoint, []testRecord{
		{tag: ShapePoint, body: pointBody(1, 2)},
		{tag: ShapePoint, body: pointBody(-3.5, 4.25)},
	}, nil)

	if r.RecordCount() != 2 {
		t.Fatalf("expected 2 records, got %d", r.RecordCount())
	}
	g := readGeometry(t, r, 1)
	c, ok := g.Point()
	if !ok {
		t.Fatal("expected a point")
	}
	if c.X != -3.5 || c.Y != 4.25 || c.Dim != XY {
		t.Errorf("unexpected coordinate: %+v", c)
	}
}

func TestShapeReader_PointM(t *testing.T) {
	r := openShapes(t, ShapePointM, []testRecord{
		{tag: ShapePointM, body: pointMBody(1, 2, -1e38)},
		{tag: ShapePointM, body: pointMBody(1, 2, -9.9e37)},
		{tag: ShapePointM, body: pointMBody(1, 2, 7)},
	}, nil)

	c, _ := readGeometry(t, r, 0).Point()
	if !math.IsNaN(c.M) {
		t.Errorf("measure -1e38 should be NaN, got %g", c.M)
	}
	c, _ = readGeometry(t, r, 1).Point()
	if c.M != -9.9e37 {
		t.Errorf("measure -9.9e37 should be kept, got %g", c.M)
	}
	c, _ = readGeometry(t, r, 2).Point()
	if c.M != 7 || c.HasZ() {
		t.Errorf("unexpected coordinate: %+v", c)
	}
}

func TestShapeReader_PointZ(t *testing.T) {
	r := openShapes(t, ShapePointZ, []testRecord{
		{tag: ShapePointZ, body: pointZBody(1, 2, 3, 4)},
		{tag: ShapePointZ, body: pointBody(5, 6)},
	}, nil)

	g := readGeometry(t, r, 0)
	if !g.HasZ() || !g.HasM() {
		t.Error("PointZ geometry should have Z and M")
	}
	c, _ := g.Point()
	if c.Z != 3 || c.M != 4 {
		t.Errorf("unexpected coordinate: %+v", c)
	}

	// a record too short for the height is a read past its end
	if _, err := r.ReadGeometry(1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds for truncated PointZ, got %v", err)
	}
}

func TestShapeReader_PointZWithoutMeasure(t *testing.T) {
	var f fixture
	f.le([]float64{1, 2, 3})
	r := openShapes(t, ShapePointZ, []testRecord{{tag: ShapePointZ, body: f.Bytes()}}, nil)

	c, _ := readGeometry(t, r, 0).Point()
	if c.Z != 3 || !math.IsNaN(c.M) {
		t.Errorf("expected Z 3 and NaN measure, got %+v", c)
	}
}

func TestShapeReader_MultiPointZ(t *testing.T) {
	points := [][2]float64{{0, 0}, {1, 1}, {2, 2}}
	r := openShapes(t, ShapeMultiPointZ, []testRecord{
		{tag: ShapeMultiPointZ, body: multiPointBody(points, []float64{10, 11, 12}, []float64{-1e38, 1, 2})},
		{tag: ShapeMultiPointZ, body: multiPointBody(points, []float64{10, 11, 12}, nil)},
	}, nil)

	pts := readGeometry(t, r, 0).Points()
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	if pts[2].X != 2 || pts[2].Z != 12 || pts[2].M != 2 {
		t.Errorf("unexpected third point: %+v", pts[2])
	}
	if !math.IsNaN(pts[0].M) {
		t.Errorf("sentinel measure should be NaN, got %g", pts[0].M)
	}

	// the measure block is optional in Z records
	for _, p := range readGeometry(t, r, 1).Points() {
		if !math.IsNaN(p.M) || p.Dim != XYZM {
			t.Errorf("expected XYZM with NaN measure, got %+v", p)
		}
	}
}

func TestShapeReader_PolyLineParts(t *testing.T) {
	a := [][2]float64{{0, 0}, {1, 1}}
	b := [][2]float64{{2, 2}, {3, 3}, {4, 4}}
	c := [][2]float64{{5, 5}, {6, 6}}
	r := openShapes(t, ShapePolyLine, []testRecord{
		{tag: ShapePolyLine, body: partsBody([][][2]float64{a}, nil, nil)},
		{tag: ShapePolyLine, body: partsBody([][][2]float64{a, b, c}, nil, nil)},
	}, nil)

	single := readGeometry(t, r, 0)
	if _, ok := single.Orb().(orb.LineString); !ok {
		t.Errorf("one part should be a LineString, got %T", single.Orb())
	}

	multi := readGeometry(t, r, 1)
	lines := multi.Lines()
	if len(lines) != 3 || len(lines[1]) != 3 || lines[2][1].X != 6 {
		t.Fatalf("unexpected parts: %v", lines)
	}
	mls, ok := multi.Orb().(orb.MultiLineString)
	if !ok || len(mls) != 3 {
		t.Errorf("three parts should be a MultiLineString of 3, got %T", multi.Orb())
	}
}

func TestShapeReader_PolyLineM(t *testing.T) {
	line := [][2]float64{{0, 0}, {1, 0}, {2, 0}}
	r := openShapes(t, ShapePolyLineM, []testRecord{
		{tag: ShapePolyLineM, body: partsBody([][][2]float64{line}, nil, []float64{0, -2e38, 5})},
	}, nil)

	ls := readGeometry(t, r, 0).Lines()[0]
	if ls[0].M != 0 || !math.IsNaN(ls[1].M) || ls[2].M != 5 {
		t.Errorf("unexpected measures: %v %v %v", ls[0].M, ls[1].M, ls[2].M)
	}
	if ls[0].HasZ() {
		t.Error("PolyLineM vertices have no Z")
	}
}

func TestShapeReader_PolygonHoles(t *testing.T) {
	rings := [][][2]float64{squareCW, innerHoleCCW, farSquareCW, farHoleCCW}
	r := openShapes(t, ShapePolygon, []testRecord{
		{tag: ShapePolygon, body: partsBody(rings, nil, nil)},
	}, nil)

	g := readGeometry(t, r, 0)
	parts := g.Parts()
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	for i, p := range parts {
		if len(p.Interiors) != 1 {
			t.Errorf("part %d: expected 1 hole, got %d", i, len(p.Interiors))
		}
	}

	mp, ok := g.Orb().(orb.MultiPolygon)
	if !ok {
		t.Fatalf("expected MultiPolygon, got %T", g.Orb())
	}
	for i, poly := range mp {
		if poly[0].Orientation() != orb.CCW || poly[1].Orientation() != orb.CW {
			t.Errorf("polygon %d rings should follow the right-hand rule", i)
		}
	}
}

func TestShapeReader_OrphanHole(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var orphans []*OrphanHoleError
	opts := &Options{
		Logger:       zap.New(core),
		OnOrphanHole: func(e *OrphanHoleError) { orphans = append(orphans, e) },
	}

	r := openShapes(t, ShapePolygon, []testRecord{
		{tag: ShapePolygon, body: partsBody([][][2]float64{squareCW}, nil, nil)},
		{tag: ShapePolygon, body: partsBody([][][2]float64{squareCW, strayHoleCCW}, nil, nil)},
	}, opts)

	g := readGeometry(t, r, 1)
	if len(g.Parts()) != 1 || len(g.Parts()[0].Interiors) != 0 {
		t.Errorf("stray hole should not be attached: %v", g.Parts())
	}
	if len(g.OrphanHoles()) != 1 {
		t.Errorf("expected 1 orphan hole on the geometry, got %d", len(g.OrphanHoles()))
	}
	if len(orphans) != 1 || orphans[0].Record != 1 {
		t.Errorf("callback should see record 1, got %v", orphans)
	}
	if n := logs.FilterMessage("polygon hole outside every exterior ring").Len(); n != 1 {
		t.Errorf("expected 1 warning, got %d", n)
	}
}

func TestShapeReader_NullRecord(t *testing.T) {
	r := openShapes(t, ShapePolygon, []testRecord{
		{tag: ShapePolygon, body: partsBody([][][2]float64{squareCW}, nil, nil)},
		nullRecord(),
		{tag: ShapePolygon, body: partsBody([][][2]float64{farSquareCW}, nil, nil)},
	}, nil)

	if g := readGeometry(t, r, 1); !g.IsNull() {
		t.Errorf("expected null geometry, got %s", g.Kind)
	}
	if g := readGeometry(t, r, 2); g.Kind != KindPolygon {
		t.Errorf("record after a null should still decode, got %s", g.Kind)
	}
}

func TestShapeReader_RandomAccess(t *testing.T) {
	records := make([]testRecord, 10)
	for i := range records {
		records[i] = testRecord{tag: ShapePoint, body: pointBody(float64(i), float64(-i))}
	}
	r := openShapes(t, ShapePoint, records, nil)

	for _, i := range []int{7, 0, 9, 3} {
		c, _ := readGeometry(t, r, i).Point()
		if c.X != float64(i) {
			t.Errorf("record %d: expected x %d, got %v", i, i, c.X)
		}
	}
}

func TestShapeReader_IndexOutOfRange(t *testing.T) {
	r := openShapes(t, ShapePoint, []testRecord{{tag: ShapePoint, body: pointBody(0, 0)}}, nil)
	for _, i := range []int{-1, 1, 100} {
		if _, err := r.ReadGeometry(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("ReadGeometry(%d): expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
}

func TestShapeReader_RecordTypeMismatch(t *testing.T) {
	r := openShapes(t, ShapePolygon, []testRecord{
		{tag: ShapePoint, body: pointBody(0, 0)},
		{tag: ShapePolygon, body: partsBody([][][2]float64{squareCW}, nil, nil)},
	}, nil)

	if _, err := r.ReadGeometry(0); !errors.Is(err, ErrShapeTypeMismatch) {
		t.Errorf("expected ErrShapeTypeMismatch, got %v", err)
	}
	// the failure is confined to that record
	readGeometry(t, r, 1)
}

func TestShapeReader_FileTypeMismatch(t *testing.T) {
	shp, _ := buildShapefile(ShapePolygon, nil)
	_, shx := buildShapefile(ShapePolyLine, nil)

	if _, err := newShapeReader(shp, shx, nil); !errors.Is(err, ErrShapeTypeMismatch) {
		t.Errorf("expected ErrShapeTypeMismatch, got %v", err)
	}
}

func TestShapeReader_InvalidHeader(t *testing.T) {
	shp, shx := buildShapefile(ShapePoint, nil)
	shx[0] = 0xFF

	if _, err := newShapeReader(shp, shx, nil); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestShapeReader_BadPartSpan(t *testing.T) {
	var f fixture
	f.zeros(32)
	f.le(int32(2))
	f.le(int32(2))
	f.le([]int32{0, 5})
	f.le([]float64{0, 0, 1, 1})
	r := openShapes(t, ShapePolyLine, []testRecord{{tag: ShapePolyLine, body: f.Bytes()}}, nil)

	if _, err := r.ReadGeometry(0); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestShapeReader_HugePointCount(t *testing.T) {
	multiPoint := func(n int32) []byte {
		var f fixture
		f.zeros(32)
		f.le(n)
		return f.Bytes()
	}
	parts := func(n int32) []byte {
		var f fixture
		f.zeros(32)
		f.le(int32(1))
		f.le(n)
		f.le(int32(0))
		return f.Bytes()
	}

	tests := []struct {
		name string
		tag  ShapeType
		body []byte
	}{
		{"multipoint z", ShapeMultiPointZ, multiPoint(math.MaxInt32)},
		{"multipoint z negative", ShapeMultiPointZ, multiPoint(-1)},
		{"polyline z", ShapePolyLineZ, parts(math.MaxInt32)},
		{"polygon z", ShapePolygonZ, parts(math.MaxInt32)},
		{"multipoint m", ShapeMultiPointM, multiPoint(math.MaxInt32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := openShapes(t, tt.tag, []testRecord{{tag: tt.tag, body: tt.body}}, nil)

			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := r.ReadGeometry(0)
			runtime.ReadMemStats(&after)

			if !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("expected ErrOutOfBounds, got %v", err)
			}
			if grew := after.TotalAlloc - before.TotalAlloc; grew > 1<<20 {
				t.Errorf("a truncated record allocated %d bytes", grew)
			}
		})
	}
}

func TestShapeReader_PointZTruncated(t *testing.T) {
	var f fixture
	f.le([]float64{1, 2})
	r := openShapes(t, ShapePointZ, []testRecord{{tag: ShapePointZ, body: f.Bytes()}}, nil)

	if _, err := r.ReadGeometry(0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestShapeReader_TruncatedIndex(t *testing.T) {
	shp, shx := buildShapefile(ShapePoint, []testRecord{
		{tag: ShapePoint, body: pointBody(1, 1)},
		{tag: ShapePoint, body: pointBody(2, 2)},
	})
	// a partial third entry
	shx = append(shx, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(shx[24:], uint32(len(shx)/2))

	core, logs := observer.New(zapcore.WarnLevel)
	r, err := newShapeReader(shp, shx, &Options{Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("newShapeReader failed: %v", err)
	}
	if r.RecordCount() != 2 {
		t.Errorf("expected 2 records, got %d", r.RecordCount())
	}
	if logs.Len() != 1 {
		t.Errorf("expected 1 warning, got %d", logs.Len())
	}
}
