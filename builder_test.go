package shapefile

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Fixture builders that lay out .shp, .shx and .dbf bytes the way ArcGIS writes them.

type fixture struct {
	bytes.Buffer
}

func (f *fixture) le(v any) { _ = binary.Write(&f.Buffer, binary.LittleEndian, v) }

func (f *fixture) be(v any) { _ = binary.Write(&f.Buffer, binary.BigEndian, v) }

func (f *fixture) zeros(n int) { f.Write(make([]byte, n)) }

// testRecord is one .shp record. body is everything after the shape type tag.
type testRecord struct {
	tag  ShapeType
	body []byte
}

func nullRecord() testRecord { return testRecord{tag: ShapeNull} }

// buildShapefile returns matching .shp and .shx buffers.
func buildShapefile(fileType ShapeType, records []testRecord) (shp, shx []byte) {
	var body, index fixture
	offset := fileHeaderLen
	for i, rec := range records {
		contentLen := 4 + len(rec.body)
		body.be(int32(i + 1))
		body.be(int32(contentLen / 2))
		body.le(int32(rec.tag))
		body.Write(rec.body)

		index.be(int32(offset / 2))
		index.be(int32(contentLen / 2))
		offset += recordHeaderLen + contentLen
	}

	shp = append(fileHeader(fileType, fileHeaderLen+body.Len()), body.Bytes()...)
	shx = append(fileHeader(fileType, fileHeaderLen+index.Len()), index.Bytes()...)
	return shp, shx
}

func fileHeader(fileType ShapeType, length int) []byte {
	var f fixture
	f.be(int32(fileCode))
	f.zeros(20)
	f.be(int32(length / 2))
	f.le(int32(1000))
	f.le(int32(fileType))
	f.le([8]float64{-180, -90, 180, 90, 0, 0, 0, 0})
	return f.Bytes()
}

func pointBody(x, y float64) []byte {
	var f fixture
	f.le([]float64{x, y})
	return f.Bytes()
}

func pointMBody(x, y, m float64) []byte {
	var f fixture
	f.le([]float64{x, y, m})
	return f.Bytes()
}

func pointZBody(x, y, z, m float64) []byte {
	var f fixture
	f.le([]float64{x, y, z, m})
	return f.Bytes()
}

// ordinates appends an optional range and value array, as used for Z and M blocks.
func (f *fixture) ordinates(values []float64) {
	if values == nil {
		return
	}
	f.le([]float64{0, 0})
	f.le(values)
}

func multiPointBody(points [][2]float64, zs, ms []float64) []byte {
	var f fixture
	f.zeros(32)
	f.le(int32(len(points)))
	for _, p := range points {
		f.le(p)
	}
	f.ordinates(zs)
	f.ordinates(ms)
	return f.Bytes()
}

// partsBody encodes the polyline/polygon layout with one part per entry of parts.
func partsBody(parts [][][2]float64, zs, ms []float64) []byte {
	var f fixture
	f.zeros(32)
	f.le(int32(len(parts)))
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	f.le(int32(total))
	start := 0
	for _, p := range parts {
		f.le(int32(start))
		start += len(p)
	}
	for _, p := range parts {
		for _, v := range p {
			f.le(v)
		}
	}
	f.ordinates(zs)
	f.ordinates(ms)
	return f.Bytes()
}

// Rings in storage winding: exteriors clockwise, holes counterclockwise.
var (
	squareCW     = [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}
	innerHoleCCW = [][2]float64{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}}
	farSquareCW  = [][2]float64{{20, 20}, {20, 30}, {30, 30}, {30, 20}, {20, 20}}
	farHoleCCW   = [][2]float64{{22, 22}, {24, 22}, {24, 24}, {22, 24}, {22, 22}}
	strayHoleCCW = [][2]float64{{50, 50}, {52, 50}, {52, 52}, {50, 52}, {50, 50}}
)

type testField struct {
	name     string
	typ      FieldType
	length   int
	decimals int
}

// testRow holds raw field text. A nil row with deleted set writes a deleted record.
type testRow struct {
	values  []string
	deleted bool
}

func row(values ...string) testRow { return testRow{values: values} }

// buildDBF lays out a dBASE III table. Values are padded with spaces to the
// field length and may hold bytes of any codepage.
func buildDBF(ldid byte, fields []testField, rows []testRow) []byte {
	recordSize := 1
	for _, fd := range fields {
		recordSize += fd.length
	}

	var f fixture
	f.WriteByte(0x03)
	f.Write([]byte{124, 10, 19})
	f.le(uint32(len(rows)))
	f.le(uint16(32 + 32*len(fields) + 1))
	f.le(uint16(recordSize))
	f.zeros(17)
	f.WriteByte(ldid)
	f.zeros(2)

	for _, fd := range fields {
		name := make([]byte, 11)
		copy(name, fd.name)
		f.Write(name)
		f.WriteByte(byte(fd.typ))
		f.zeros(4)
		f.WriteByte(byte(fd.length))
		f.WriteByte(byte(fd.decimals))
		f.zeros(14)
	}
	f.WriteByte(dbfTerminator)

	for _, r := range rows {
		if r.deleted {
			f.WriteByte(dbfDeleted)
		} else {
			f.WriteByte(' ')
		}
		for i, fd := range fields {
			v := ""
			if i < len(r.values) {
				v = r.values[i]
			}
			if len(v) > fd.length {
				v = v[:fd.length]
			}
			f.WriteString(v + strings.Repeat(" ", fd.length-len(v)))
		}
	}
	f.WriteByte(0x1A)
	return f.Bytes()
}

// cityFields and cityRows describe a small attribute table used across tests.
var cityFields = []testField{
	{name: "NAME", typ: FieldCharacter, length: 20},
	{name: "POP", typ: FieldNumber, length: 10},
	{name: "AREA", typ: FieldNumber, length: 12, decimals: 3},
	{name: "FOUNDED", typ: FieldDate, length: 8},
	{name: "CAPITAL", typ: FieldLogical, length: 1},
}

func cityRows() []testRow {
	return []testRow{
		row("Tokyo", "13960000", "2194.070", "14570101", "Y"),
		row("Osaka", "2691000", "225.210", "", "N"),
		row("Sapporo", "", "1121.260", "18690101", "?"),
	}
}
