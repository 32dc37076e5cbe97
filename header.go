package shapefile

import (
	"encoding/binary"
	"fmt"

	"github.com/paulmach/orb"
)

const (
	fileCode        = 9994
	fileHeaderLen   = 100
	indexEntryLen   = 8
	recordHeaderLen = 8
)

// Header is the 100 byte header shared by .shp and .shx files.
type Header struct {
	ShapeType  ShapeType
	FileLength int // in bytes
	Bound      orb.Bound
	ZMin, ZMax float64
	MMin, MMax float64
}

// readFileHeader decodes the fixed-layout header at the start of c.
func readFileHeader(c *cursor) (Header, error) {
	if c.size() < fileHeaderLen {
		return Header{}, fmt.Errorf("%w: %s is %d bytes, shorter than its header", ErrInvalidFormat, c.name, c.size())
	}

	_ = c.seek(0)
	if code := c.int32(binary.BigEndian); code != fileCode {
		return Header{}, fmt.Errorf("%w: %s has file code %d, expected %d", ErrInvalidFormat, c.name, code, fileCode)
	}

	_ = c.seek(24)
	h := Header{FileLength: int(c.int32(binary.BigEndian)) * 2}

	_ = c.seek(32)
	h.ShapeType = ShapeType(c.int32(binary.LittleEndian))

	_ = c.seek(36)
	h.Bound = readBound(c)
	h.ZMin = c.float64(binary.LittleEndian)
	h.ZMax = c.float64(binary.LittleEndian)
	h.MMin = c.float64(binary.LittleEndian)
	h.MMax = c.float64(binary.LittleEndian)

	if err := c.err(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// readBound reads xMin, yMin, xMax, yMax as little-endian doubles.
func readBound(c *cursor) orb.Bound {
	xMin := c.float64(binary.LittleEndian)
	yMin := c.float64(binary.LittleEndian)
	xMax := c.float64(binary.LittleEndian)
	yMax := c.float64(binary.LittleEndian)
	return orb.Bound{Min: orb.Point{xMin, yMin}, Max: orb.Point{xMax, yMax}}
}

// recordHeader precedes every record in the .shp file.
type recordHeader struct {
	Number        int32
	ContentLength int // in bytes, excluding this header
	ShapeType     ShapeType
}

func readRecordHeader(c *cursor) recordHeader {
	return recordHeader{
		Number:        c.int32(binary.BigEndian),
		ContentLength: int(c.int32(binary.BigEndian)) * 2,
		ShapeType:     ShapeType(c.int32(binary.LittleEndian)),
	}
}

// indexRecordCount derives the number of .shx entries from the declared file
// length. The second result reports whether a partial trailing entry was dropped.
func indexRecordCount(fileLength int) (count int, truncated bool) {
	body := fileLength - fileHeaderLen
	if body <= 0 {
		return 0, body < 0
	}
	return body / indexEntryLen, body%indexEntryLen != 0
}
